// Package proj assembles client output from materialized records by
// executing compiled extraction templates. Projection is a single pass per
// record: every instruction reads its source value once, and output keys
// follow template order. Projectors hold no per-call state and are safe
// for concurrent use.
package proj

import (
	"github.com/pkg/errors"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/fetch"
	"github.com/lenslib/lens/lit"
	"github.com/lenslib/lens/plan"
	"github.com/lenslib/lens/shape"
)

// Reserved page envelope keys merged with the projected result list.
const (
	KeyResults = "results"
	KeyHasMore = "hasMore"
	KeyLimit   = "limit"
	KeyOffset  = "offset"
	KeyBefore  = "before"
	KeyAfter   = "after"
)

// Projector projects materialized data through extraction templates and
// formats leaf values on the way out.
type Projector struct {
	Format shape.Formatter
}

// New returns a projector formatting against the schema.
func New(s *dom.Schema) *Projector {
	return &Projector{Format: shape.Formatter{Schema: s}}
}

// Record projects one record. A nil record projects to nil, which the
// envelope renders as null.
func (p *Projector) Record(tmpl *plan.Template, rec fetch.Record) (*lit.Dict, error) {
	if rec == nil {
		return nil, nil
	}
	return p.apply(tmpl, rec)
}

// List projects records element-wise, keeping positions.
func (p *Projector) List(tmpl *plan.Template, recs []fetch.Record) ([]interface{}, error) {
	res := make([]interface{}, 0, len(recs))
	for _, rec := range recs {
		d, err := p.Record(tmpl, rec)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}

// Page projects the page records and merges the pagination metadata under
// the reserved keys. Keyset pages carry before and after cursors taken
// from the first and last record markers; offset pages carry limit and
// offset instead.
func (p *Projector) Page(tmpl *plan.Template, pg *fetch.Page) (*lit.Dict, error) {
	list, err := p.List(tmpl, pg.Records)
	if err != nil {
		return nil, err
	}
	res := &lit.Dict{}
	res.SetKey(KeyResults, list)
	res.SetKey(KeyHasMore, pg.More)
	if pg.Keyset {
		var before, after interface{}
		if n := len(pg.Records); n > 0 {
			before = pg.Records[0].Cursor()
			after = pg.Records[n-1].Cursor()
		}
		res.SetKey(KeyBefore, before)
		res.SetKey(KeyAfter, after)
		return res, nil
	}
	res.SetKey(KeyLimit, pg.Limit)
	res.SetKey(KeyOffset, pg.Offset)
	return res, nil
}

// apply runs every instruction of the template against the source value.
// Sources missing a field or holding the not loaded sentinel omit the key;
// the forbidden sentinel emits an explicit null.
func (p *Projector) apply(tmpl *plan.Template, v interface{}) (*lit.Dict, error) {
	res := &lit.Dict{}
	for i := range tmpl.Instrs {
		in := &tmpl.Instrs[i]
		src, ok, err := source(in, v)
		if err != nil {
			return nil, err
		}
		if !ok || src == dom.NotLoaded {
			continue
		}
		if src == dom.Forbidden {
			res.SetKey(in.Key, nil)
			continue
		}
		out, err := p.value(in, src)
		if err != nil {
			return nil, err
		}
		res.SetKey(in.Key, out)
	}
	return res, nil
}

// source looks up the instruction's input in the record or positional
// value. Positional values shorter than the index report absent.
func source(in *plan.Instr, v interface{}) (interface{}, bool, error) {
	if in.Pos {
		list, ok := v.([]interface{})
		if !ok {
			return nil, false, errors.Errorf("project %s: want positional value, got %T", in.Key, v)
		}
		if in.Index >= len(list) {
			return nil, false, nil
		}
		return list[in.Index], true, nil
	}
	rec, ok := record(v)
	if !ok {
		return nil, false, errors.Errorf("project %s: want record value, got %T", in.Key, v)
	}
	src, ok := rec[in.Field]
	return src, ok, nil
}

// value projects one source value, element-wise when the instruction
// applies to a list. A nil value short-circuits to null without running
// the sub-template.
func (p *Projector) value(in *plan.Instr, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if in.Many {
		list, ok := elements(v)
		if !ok {
			return nil, errors.Errorf("project %s: want list, got %T", in.Key, v)
		}
		res := make([]interface{}, 0, len(list))
		for _, el := range list {
			out, err := p.one(in, el)
			if err != nil {
				return nil, err
			}
			res = append(res, out)
		}
		return res, nil
	}
	return p.one(in, v)
}

func (p *Projector) one(in *plan.Instr, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	// sentinels below the field level have no keyed slot to omit, they
	// render as null
	if v == dom.NotLoaded || v == dom.Forbidden {
		return nil, nil
	}
	switch in.Op {
	case plan.OpFormat:
		return p.Format.ToClient(in.Scope, in.Type, v)
	case plan.OpNested:
		return p.apply(in.Sub, v)
	case plan.OpUnion:
		return p.union(in, v)
	}
	return v, nil
}

// union resolves the active member of the stored single key member map and
// projects it through the member instruction. An active member outside the
// selection projects to null.
func (p *Projector) union(in *plan.Instr, v interface{}) (interface{}, error) {
	rec, ok := record(v)
	if !ok {
		return nil, errors.Errorf("project %s: want union value, got %T", in.Key, v)
	}
	for name, mv := range rec {
		m := in.Member(name)
		if m == nil {
			continue
		}
		out, err := p.value(&m.Instr, mv)
		if err != nil {
			return nil, err
		}
		res := &lit.Dict{}
		res.SetKey(m.Instr.Key, out)
		return res, nil
	}
	return nil, nil
}

func record(v interface{}) (fetch.Record, bool) {
	switch m := v.(type) {
	case fetch.Record:
		return m, true
	case map[string]interface{}:
		return m, true
	}
	return nil, false
}

func elements(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []fetch.Record:
		res := make([]interface{}, len(l))
		for i, r := range l {
			res[i] = r
		}
		return res, true
	}
	return nil, false
}
