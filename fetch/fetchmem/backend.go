// Package fetchmem executes fetch plans over in-memory Go records. It is
// the reference executor for tests and small datasets.
package fetchmem

import (
	"context"

	"github.com/pkg/errors"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/fetch"
	"github.com/lenslib/lens/pol"
)

// CalcFunc computes a calculation field from its host record and the
// converted arguments.
type CalcFunc func(rec fetch.Record, args map[string]interface{}) (interface{}, error)

// Backend holds records per entity. Relationships resolve by store
// convention: a to one field f reads the f_id key of the host record, a to
// many field matches the host id against the <host>_id key of the target
// records. A nil Policy leaves every field visible.
type Backend struct {
	schema *dom.Schema
	tables map[string][]fetch.Record
	calcs  map[string]CalcFunc
	Policy pol.Policy
}

var _ fetch.Executor = (*Backend)(nil)

// New returns an empty backend for the schema.
func New(s *dom.Schema) *Backend {
	return &Backend{
		schema: s,
		tables: make(map[string][]fetch.Record),
		calcs:  make(map[string]CalcFunc),
	}
}

// Add appends records to the entity table.
func (b *Backend) Add(entity string, recs ...fetch.Record) error {
	if b.schema.Entity(entity) == nil {
		return errors.Errorf("no entity %s in schema %s", entity, b.schema.Name)
	}
	b.tables[entity] = append(b.tables[entity], recs...)
	return nil
}

// Calc registers the function computing entity.field. Requests for an
// unregistered calculation materialize as not loaded.
func (b *Backend) Calc(entity, field string, fn CalcFunc) {
	b.calcs[entity+"."+field] = fn
}

// Exec materializes records for the request.
func (b *Backend) Exec(ctx context.Context, req *fetch.Request) (*fetch.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ent := b.schema.Entity(req.Entity)
	if ent == nil {
		return nil, errors.Errorf("no entity %s in schema %s", req.Entity, b.schema.Name)
	}
	rows, err := b.match(ent, req)
	if err != nil {
		return nil, err
	}
	switch req.Mode {
	case fetch.ModeOne:
		if len(rows) == 0 {
			return &fetch.Result{}, nil
		}
		rec, err := b.materialize(ent, req.Plan, rows[0])
		if err != nil {
			return nil, err
		}
		return &fetch.Result{One: rec}, nil
	case fetch.ModeList:
		recs, err := b.materializeAll(ent, req.Plan, rows)
		if err != nil {
			return nil, err
		}
		return &fetch.Result{Many: recs}, nil
	case fetch.ModePage:
		pg, err := b.page(ent, req, rows)
		if err != nil {
			return nil, err
		}
		return &fetch.Result{Page: pg}, nil
	}
	return nil, errors.Errorf("invalid request mode %d", req.Mode)
}

// match filters and orders the entity table.
func (b *Backend) match(ent *dom.Entity, req *fetch.Request) ([]fetch.Record, error) {
	table := b.tables[ent.Name]
	rows := make([]fetch.Record, 0, len(table))
	for _, row := range table {
		ok, err := matches(row, req.Filter)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	if len(req.Ord) > 0 {
		if err := order(rows, req.Ord); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// page windows the ordered rows and checks one row past the limit for the
// has more flag.
func (b *Backend) page(ent *dom.Entity, req *fetch.Request, rows []fetch.Record) (*fetch.Page, error) {
	pr := req.Page
	if pr.Keyset {
		var err error
		rows, err = window(rows, pr)
		if err != nil {
			return nil, err
		}
	} else if pr.Offset > 0 {
		if len(rows) > int(pr.Offset) {
			rows = rows[pr.Offset:]
		} else {
			rows = nil
		}
	}
	more := false
	if pr.Limit > 0 && len(rows) > int(pr.Limit) {
		rows, more = rows[:pr.Limit], true
	}
	recs, err := b.materializeAll(ent, req.Plan, rows)
	if err != nil {
		return nil, err
	}
	if pr.Keyset {
		for i, rec := range recs {
			rec[fetch.MetaKey] = cursor(rows[i])
		}
	}
	return &fetch.Page{
		Records: recs,
		Limit:   pr.Limit,
		Offset:  pr.Offset,
		More:    more,
		Keyset:  pr.Keyset,
	}, nil
}

// window applies the keyset cursors within the ordered rows.
func window(rows []fetch.Record, pr fetch.PageReq) ([]fetch.Record, error) {
	if pr.After != "" {
		i, err := find(rows, pr.After)
		if err != nil {
			return nil, err
		}
		rows = rows[i+1:]
	}
	if pr.Before != "" {
		i, err := find(rows, pr.Before)
		if err != nil {
			return nil, err
		}
		rows = rows[:i]
	}
	return rows, nil
}

func find(rows []fetch.Record, cur string) (int, error) {
	for i, row := range rows {
		if cursor(row) == cur {
			return i, nil
		}
	}
	return 0, errors.Errorf("unknown cursor %s", cur)
}
