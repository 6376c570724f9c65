// Package services implements the fetch-paginate-persist pipeline that
// drives a platform adapter to exhaustion and writes detail records through
// to the store. This file centralizes service-level error values so callers
// can check them consistently.
package services

import "errors"

// ErrNoCategories indicates the adapter has no configured categories or
// catalogs to walk. This is a configuration failure and is surfaced before
// any request is made.
var ErrNoCategories = errors.New("no categories configured")
