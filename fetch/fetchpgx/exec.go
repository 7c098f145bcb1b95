package fetchpgx

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx"
	"github.com/pkg/errors"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/fetch"
	"github.com/lenslib/lens/plan"
	"github.com/lenslib/lens/typ"
)

func (b *Backend) queryRows(ctx context.Context, q *query) ([]fetch.Record, error) {
	rows, err := b.DB.QueryEx(ctx, q.sql, nil, q.args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", q.sql)
	}
	recs, err := collect(rows, q.cols)
	if err != nil {
		return nil, err
	}
	for _, key := range q.deny {
		for _, r := range recs {
			r[key] = dom.Forbidden
		}
	}
	return recs, nil
}

// collect scans all rows into records keyed by the column names. Json
// columns arrive as text and are decoded into plain values.
func collect(rows *pgx.Rows, cols []col) ([]fetch.Record, error) {
	defer rows.Close()
	res := []fetch.Record{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		dest := make([]interface{}, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		rec := make(fetch.Record, len(cols))
		for i, c := range cols {
			v := vals[i]
			if c.json && v != nil {
				s, ok := v.(string)
				if !ok {
					return nil, errors.Errorf("expect json text for %s, got %T", c.name, v)
				}
				var el interface{}
				if err := json.Unmarshal([]byte(s), &el); err != nil {
					return nil, errors.Wrapf(err, "decode column %s", c.name)
				}
				v = el
			}
			rec[c.name] = v
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// resolve runs the load entries of the plan over the batch of rows,
// recursing into the sub plans of the loaded records.
func (b *Backend) resolve(ctx context.Context, ent *dom.Entity, p *plan.Plan, rows []fetch.Record) error {
	if len(rows) == 0 {
		return nil
	}
	for _, l := range p.Load {
		f := ent.Field(l.Field)
		if f == nil || !b.visible(ent.Name, f.Name) {
			continue
		}
		var err error
		switch f.Kind {
		case dom.KindRel:
			if f.Many {
				err = b.loadMany(ctx, ent, f, l.Sub, rows)
			} else {
				err = b.loadOne(ctx, f, l.Sub, rows)
			}
		case dom.KindAggr:
			err = b.loadAggr(ctx, ent, f, rows)
		case dom.KindCalc:
			// rejected while generating the select
		default:
			err = b.loadEmbedded(ctx, f, l.Sub, rows)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) visible(entity, field string) bool {
	return b.Policy == nil || b.Policy.Field(entity, field)
}

// loadOne resolves a to-one relationship for the whole batch with a single
// query over the distinct foreign keys.
func (b *Backend) loadOne(ctx context.Context, f *dom.Field, sub *plan.Plan, rows []fetch.Record) error {
	fk := f.Name + "_id"
	ids := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		if s, ok := r[fk].(string); ok && !seen[s] {
			seen[s] = true
			ids = append(ids, s)
		}
	}
	if len(ids) == 0 {
		for _, r := range rows {
			r[f.Name] = nil
		}
		return nil
	}
	target := b.Schema.Related(f)
	q, err := b.genSub(target, sub, "", ids)
	if err != nil {
		return err
	}
	children, err := b.queryRows(ctx, q)
	if err != nil {
		return err
	}
	if err = b.resolve(ctx, target, sub, children); err != nil {
		return err
	}
	byID := make(map[string]fetch.Record, len(children))
	for _, c := range children {
		if s, ok := c[fetch.MetaKey].(string); ok {
			byID[s] = c
		}
	}
	for _, r := range rows {
		s, ok := r[fk].(string)
		if !ok {
			r[f.Name] = nil
			continue
		}
		if c, ok := byID[s]; ok {
			r[f.Name] = c
		} else {
			r[f.Name] = nil
		}
	}
	return nil
}

// loadMany resolves a to-many relationship with one query over the host
// back reference and regroups the children by host id.
func (b *Backend) loadMany(ctx context.Context, host *dom.Entity, f *dom.Field, sub *plan.Plan, rows []fetch.Record) error {
	ids := hostIDs(rows)
	if len(ids) == 0 {
		return errors.Errorf("relationship %s.%s needs host ids", host.Name, f.Name)
	}
	target := b.Schema.Related(f)
	q, err := b.genSub(target, sub, host.Name+"_id", ids)
	if err != nil {
		return err
	}
	children, err := b.queryRows(ctx, q)
	if err != nil {
		return err
	}
	if err = b.resolve(ctx, target, sub, children); err != nil {
		return err
	}
	group := make(map[string][]fetch.Record, len(rows))
	for _, c := range children {
		if s, ok := c[refKey].(string); ok {
			group[s] = append(group[s], c)
		}
	}
	for _, r := range rows {
		id, _ := r[fetch.MetaKey].(string)
		recs := group[id]
		if recs == nil {
			recs = []fetch.Record{}
		}
		r[f.Name] = recs
	}
	return nil
}

// loadAggr resolves an aggregate with one grouped query over the related
// entity. Hosts without related rows take the aggregate zero value.
func (b *Backend) loadAggr(ctx context.Context, host *dom.Entity, f *dom.Field, rows []fetch.Record) error {
	rel := host.Field(f.Path)
	if rel == nil || rel.Kind != dom.KindRel || !rel.Many {
		return errors.Errorf("aggregate %s.%s needs a to-many relationship path",
			host.Name, f.Name)
	}
	target := b.Schema.Related(rel)
	var of *dom.Field
	if f.Of != "" {
		of = target.Field(f.Of)
		if of == nil {
			return errors.Errorf("aggregate %s.%s: no field %s on entity %s",
				host.Name, f.Name, f.Of, target.Name)
		}
	}
	ids := hostIDs(rows)
	if len(ids) == 0 {
		return errors.Errorf("aggregate %s.%s needs host ids", host.Name, f.Name)
	}
	q, err := genAggr(target, f, of, host.Name+"_id", ids)
	if err != nil {
		return err
	}
	recs, err := b.queryRows(ctx, q)
	if err != nil {
		return err
	}
	got := make(map[string]interface{}, len(recs))
	for _, r := range recs {
		if s, ok := r[refKey].(string); ok {
			got[s] = r["v"]
		}
	}
	for _, r := range rows {
		id, _ := r[fetch.MetaKey].(string)
		v := got[id]
		switch f.Aggr {
		case dom.AggrCount:
			if v == nil {
				v = int64(0)
			}
		case dom.AggrExists:
			n, _ := v.(int64)
			v = n > 0
		case dom.AggrSum:
			if v == nil {
				v = float64(0)
			}
		}
		r[f.Name] = v
	}
	return nil
}

// loadEmbedded resolves nested loads within an embedded structure column.
// The decoded value itself already sits in the host record.
func (b *Backend) loadEmbedded(ctx context.Context, f *dom.Field, sub *plan.Plan, rows []fetch.Record) error {
	target := b.Schema.Related(f)
	if target == nil {
		return errors.Errorf("field %s is not an embedded structure", f.Name)
	}
	var children []fetch.Record
	for _, r := range rows {
		v := r[f.Name]
		if v == nil {
			continue
		}
		if f.Type.Kind == typ.KindArray {
			list, ok := v.([]interface{})
			if !ok {
				return errors.Errorf("embedded %s: expected a list, got %T", f.Name, v)
			}
			for _, el := range list {
				if el == nil {
					continue
				}
				child, ok := el.(map[string]interface{})
				if !ok {
					return errors.Errorf("embedded %s: expected a record, got %T", f.Name, el)
				}
				children = append(children, embedRow(child))
			}
			continue
		}
		child, ok := v.(map[string]interface{})
		if !ok {
			return errors.Errorf("embedded %s: expected a record, got %T", f.Name, v)
		}
		children = append(children, embedRow(child))
	}
	if len(children) == 0 {
		return nil
	}
	for _, c := range children {
		b.denyFields(target, sub, c)
	}
	return b.resolve(ctx, target, sub, children)
}

// embedRow adopts a decoded structure as a row. An id key doubles as the
// meta key so nested batch loads can reference it.
func embedRow(m map[string]interface{}) fetch.Record {
	r := fetch.Record(m)
	if s, ok := r["id"].(string); ok {
		r[fetch.MetaKey] = s
	}
	return r
}

func (b *Backend) denyFields(ent *dom.Entity, p *plan.Plan, rec fetch.Record) {
	for _, key := range p.Select {
		if !b.visible(ent.Name, key) {
			rec[key] = dom.Forbidden
		}
	}
	for _, l := range p.Load {
		if !b.visible(ent.Name, l.Field) {
			rec[l.Field] = dom.Forbidden
		}
	}
}

func hostIDs(rows []fetch.Record) []string {
	ids := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		if s, ok := r[fetch.MetaKey].(string); ok && !seen[s] {
			seen[s] = true
			ids = append(ids, s)
		}
	}
	return ids
}
