// Package utils holds tiny helpers with no domain knowledge of their own.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int, falling back to def when s is
// empty or malformed. Handlers use it for optional numeric query
// parameters, where absent and garbage both mean "use the default".
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
