package fetchmem

import (
	"github.com/pkg/errors"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/fetch"
	"github.com/lenslib/lens/plan"
)

// materialize assembles the record the plan asks for: selected attributes
// copy from the row, load entries resolve relationships, aggregates and
// calculations. Denied fields hold the forbidden sentinel.
func (b *Backend) materialize(ent *dom.Entity, p *plan.Plan, row fetch.Record) (fetch.Record, error) {
	res := make(fetch.Record, len(p.Select)+len(p.Load))
	for _, key := range p.Select {
		if !b.visible(ent.Name, key) {
			res[key] = dom.Forbidden
			continue
		}
		if v, ok := row[key]; ok {
			res[key] = v
		}
	}
	for _, l := range p.Load {
		if !b.visible(ent.Name, l.Field) {
			res[l.Field] = dom.Forbidden
			continue
		}
		v, err := b.load(ent, l, row)
		if err != nil {
			return nil, err
		}
		res[l.Field] = v
	}
	return res, nil
}

func (b *Backend) materializeAll(ent *dom.Entity, p *plan.Plan, rows []fetch.Record) ([]fetch.Record, error) {
	res := make([]fetch.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := b.materialize(ent, p, row)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, nil
}

func (b *Backend) visible(entity, field string) bool {
	return b.Policy == nil || b.Policy.Field(entity, field)
}

// load resolves one load entry against the host row.
func (b *Backend) load(ent *dom.Entity, l *plan.LoadEntry, row fetch.Record) (interface{}, error) {
	f := ent.Field(l.Field)
	if f == nil {
		return nil, errors.Errorf("no field %s on entity %s", l.Field, ent.Name)
	}
	switch f.Kind {
	case dom.KindRel:
		return b.loadRel(ent, f, l.Sub, row)
	case dom.KindCalc:
		fn := b.calcs[ent.Name+"."+f.Name]
		if fn == nil {
			return dom.NotLoaded, nil
		}
		return fn(row, l.Args)
	case dom.KindAggr:
		return b.loadAggr(ent, f, row)
	}
	// embedded structure, the value is part of the row itself
	return b.loadEmbedded(ent, f, l.Sub, row)
}

func (b *Backend) loadRel(ent *dom.Entity, f *dom.Field, sub *plan.Plan, row fetch.Record) (interface{}, error) {
	target := b.schema.Entity(f.Entity)
	if f.Many {
		return b.materializeAll(target, sub, b.relRows(ent, f, row))
	}
	rel := b.relRow(f, row)
	if rel == nil {
		return nil, nil
	}
	return b.materialize(target, sub, rel)
}

// relRow resolves a to one relationship over the f_id key.
func (b *Backend) relRow(f *dom.Field, row fetch.Record) fetch.Record {
	fk, ok := row[f.Name+"_id"]
	if !ok || fk == nil {
		return nil
	}
	for _, r := range b.tables[f.Entity] {
		if eq(r["id"], fk) {
			return r
		}
	}
	return nil
}

// relRows resolves a to many relationship over the <host>_id back ref,
// keeping table order.
func (b *Backend) relRows(ent *dom.Entity, f *dom.Field, row fetch.Record) []fetch.Record {
	id := row["id"]
	if id == nil {
		return nil
	}
	key := ent.Name + "_id"
	var res []fetch.Record
	for _, r := range b.tables[f.Entity] {
		if eq(r[key], id) {
			res = append(res, r)
		}
	}
	return res
}

// loadAggr folds the related records of the aggregate path. First takes
// the first related record in table order.
func (b *Backend) loadAggr(ent *dom.Entity, f *dom.Field, row fetch.Record) (interface{}, error) {
	rel := ent.Field(f.Path)
	if rel == nil || rel.Kind != dom.KindRel || !rel.Many {
		return nil, errors.Errorf("aggregate %s.%s needs a to many relationship path", ent.Name, f.Name)
	}
	rows := b.relRows(ent, rel, row)
	switch f.Aggr {
	case dom.AggrCount:
		return int64(len(rows)), nil
	case dom.AggrExists:
		return len(rows) > 0, nil
	case dom.AggrSum:
		var isum int64
		var fsum float64
		var float bool
		for _, r := range rows {
			switch n := r[f.Of].(type) {
			case nil:
			case int:
				isum += int64(n)
			case int64:
				isum += n
			case float64:
				fsum, float = fsum+n, true
			default:
				return nil, errors.Errorf("aggregate %s.%s cannot sum %T", ent.Name, f.Name, n)
			}
		}
		if float {
			return fsum + float64(isum), nil
		}
		return isum, nil
	case dom.AggrFirst:
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0][f.Of], nil
	}
	return nil, errors.Errorf("invalid aggregate kind %d", f.Aggr)
}

// loadEmbedded reads an embedded structure value stored inline in the row.
func (b *Backend) loadEmbedded(ent *dom.Entity, f *dom.Field, sub *plan.Plan, row fetch.Record) (interface{}, error) {
	v, ok := row[f.Name]
	if !ok {
		return dom.NotLoaded, nil
	}
	if v == nil {
		return nil, nil
	}
	target := b.schema.Entity(sub.Entity)
	switch d := v.(type) {
	case fetch.Record:
		return b.materialize(target, sub, d)
	case map[string]interface{}:
		return b.materialize(target, sub, d)
	case []interface{}:
		rows := make([]fetch.Record, 0, len(d))
		for _, el := range d {
			m, ok := el.(map[string]interface{})
			if !ok {
				return nil, errors.Errorf("embedded %s.%s: want record element, got %T", ent.Name, f.Name, el)
			}
			rows = append(rows, m)
		}
		return b.materializeAll(target, sub, rows)
	}
	return nil, errors.Errorf("embedded %s.%s: want record value, got %T", ent.Name, f.Name, v)
}
