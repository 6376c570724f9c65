// Package platform hides the wire-format differences between the two
// travel-activity platforms behind one capability interface. The pipeline in
// internal/services is written once against Adapter; Tiga and Gaia each
// provide an implementation that translates the generic intent ("list page N
// of category C", "detail for id D") into platform-specific requests and
// parses the platform envelope back into the generic result shapes.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
)

// Category is one partition of a platform's activity listing: a named
// category for Tiga ("domestic"/"overseas" with a numeric id) or a catalog
// code for Gaia ("E", "L", ...). Tag is what gets stored as the record's
// type_tag.
type Category struct {
	ID       string
	Tag      string
	Overseas bool
}

// Item is one listing row. RawID is the listing's primary identifier; JumpID
// is the redirect identifier the detail endpoint actually expects, when the
// platform provides one.
type Item struct {
	RawID  ID
	JumpID ID
}

// DetailID applies the identifier tie-break rule: the jump identifier wins
// over the raw one, and an item with neither yields "".
func (it Item) DetailID() string {
	if it.JumpID != "" {
		return string(it.JumpID)
	}
	return string(it.RawID)
}

// ListResult is the parsed outcome of one listing page request.
//
// OK is false for any non-success outcome, HTTP-level or application-level;
// Code carries the platform's status code either way. Exactly one of Total
// (count style, Tiga) or TotalPages (page-count style, Gaia) is reported,
// whichever the platform's pagination metadata provides; the zero value
// means "not reported".
type ListResult struct {
	OK         bool
	Code       int
	Items      []Item
	Total      int
	TotalPages int
}

// DetailResult is the parsed outcome of one detail fetch. Payload is the
// opaque platform-defined document that gets persisted verbatim; it is only
// set when OK is true. Composite platforms never populate a partial payload.
type DetailResult struct {
	OK      bool
	Code    int
	Payload json.RawMessage
}

// Adapter is the per-platform scraping capability the pipeline drives.
// Implementations apply no retry policy of their own (that lives in
// transport) and must honor ctx on every call.
type Adapter interface {
	// Name returns the platform discriminator stored on every record.
	Name() string
	// FirstPage returns the platform's initial page index (0 or 1).
	FirstPage() int
	// Categories returns the configured listing partitions to walk.
	Categories() []Category
	// ListPage fetches one listing page. A Go error means the transport
	// failed outright; an OK=false result means the platform answered with a
	// non-success status.
	ListPage(ctx context.Context, cat Category, page int) (ListResult, error)
	// FetchDetail fetches the detail payload for one activity identifier.
	FetchDetail(ctx context.Context, id string) (DetailResult, error)
}

// ID is a listing identifier as platforms actually serialize it: a JSON
// string, a bare number, or null. Numbers are normalized to their decimal
// string form.
type ID string

// UnmarshalJSON accepts string, number, and null scalars.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the normalized string form.
func (id ID) String() string { return string(id) }

func itoa(n int) string { return strconv.Itoa(n) }
