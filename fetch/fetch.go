// Package fetch is the boundary between the projection core and the data
// stores. The core compiles a plan, an executor materializes records for
// it, and the projector consumes the records. Executors may block; the
// core itself performs no I/O.
package fetch

import (
	"context"

	"github.com/lenslib/lens/plan"
)

// MetaKey is the reserved record key for positional metadata set by the
// executor. The projector derives page cursors from it and never emits it.
const MetaKey = "_meta"

// Record is one materialized entity row keyed by internal field name.
// Values use internal representations and may be the dom sentinels.
type Record map[string]interface{}

// Cursor returns the record's position marker or the empty string.
func (r Record) Cursor() string {
	c, _ := r[MetaKey].(string)
	return c
}

// Filter holds equality conditions keyed by internal field name.
type Filter map[string]interface{}

// Ord orders results by an internal field key.
type Ord struct {
	Key  string
	Desc bool
}

// PageReq selects a window of the result set, either by offset or by
// keyset cursor. Keyset picks the cursor style; it must be set even on the
// first page, when no cursor exists yet. Cursors are opaque markers minted
// by the same executor.
type PageReq struct {
	Limit  int64
	Offset int64
	After  string
	Before string
	Keyset bool
}

// Mode selects the result shape of a request.
type Mode uint8

const (
	ModeOne Mode = iota
	ModeList
	ModePage
)

func (m Mode) String() string {
	switch m {
	case ModeOne:
		return "one"
	case ModeList:
		return "list"
	case ModePage:
		return "page"
	}
	return "invalid"
}

// Request asks an executor for materialized records of one entity,
// selected and loaded per the compiled plan.
type Request struct {
	Entity string
	Mode   Mode
	Plan   *plan.Plan
	Filter Filter
	Ord    []Ord
	Page   PageReq
}

// Page is one window of a larger result set. Keyset marks cursor style
// pagination; the projector then derives the page cursors from the first
// and last record metadata instead of emitting limit and offset.
type Page struct {
	Records []Record
	Limit   int64
	Offset  int64
	More    bool
	Keyset  bool
}

// Result carries materialized data in the shape the request mode asked
// for. Exactly one of One, Many or Page is set; a one request without a
// match returns a nil One and no error.
type Result struct {
	One  Record
	Many []Record
	Page *Page
}

// Executor materializes records for a compiled fetch plan.
type Executor interface {
	Exec(ctx context.Context, req *Request) (*Result, error)
}
