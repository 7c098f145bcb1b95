// Package fetchpgx executes fetch requests against a postgresql database
// using the pgx client package.
package fetchpgx

import (
	"context"
	"strings"

	"github.com/jackc/pgx"
	"github.com/pkg/errors"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/fetch"
	"github.com/lenslib/lens/pol"
)

// Backend resolves fetch plans with sql queries. The primary select covers
// the plan's attribute columns, relationship and aggregate loads run as
// batched secondary queries over the collected host ids. Calculations have
// no sql rendition and are rejected.
type Backend struct {
	DB     *pgx.ConnPool
	Schema *dom.Schema

	// Policy controls field visibility. A nil policy allows everything.
	Policy pol.Policy
}

var _ fetch.Executor = (*Backend)(nil)

func New(db *pgx.ConnPool, s *dom.Schema) *Backend {
	return &Backend{DB: db, Schema: s}
}

func (b *Backend) Exec(ctx context.Context, req *fetch.Request) (*fetch.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Plan == nil {
		return nil, errors.Errorf("fetch request for %s without a plan", req.Entity)
	}
	ent := b.Schema.Entity(req.Entity)
	if ent == nil {
		return nil, errors.Errorf("unknown entity %s", req.Entity)
	}
	var ks *boundary
	if req.Mode == fetch.ModePage && req.Page.Keyset {
		var err error
		ks, err = b.boundary(ctx, ent, req)
		if err != nil {
			return nil, err
		}
	}
	q, err := b.genSelect(ent, req, ks)
	if err != nil {
		return nil, err
	}
	rows, err := b.queryRows(ctx, q)
	if err != nil {
		return nil, err
	}
	more := false
	if req.Mode == fetch.ModePage {
		if pr := req.Page; pr.Limit > 0 && len(rows) > int(pr.Limit) {
			rows, more = rows[:pr.Limit], true
		}
	}
	if err = b.resolve(ctx, ent, req.Plan, rows); err != nil {
		return nil, err
	}
	switch req.Mode {
	case fetch.ModeOne:
		if len(rows) == 0 {
			return &fetch.Result{}, nil
		}
		return &fetch.Result{One: rows[0]}, nil
	case fetch.ModeList:
		return &fetch.Result{Many: rows}, nil
	case fetch.ModePage:
		return &fetch.Result{Page: &fetch.Page{
			Records: rows,
			Limit:   req.Page.Limit,
			Offset:  req.Page.Offset,
			More:    more,
			Keyset:  req.Page.Keyset,
		}}, nil
	}
	return nil, errors.Errorf("invalid fetch mode %s", req.Mode)
}

// boundary resolves the order key values of the cursor rows so the main
// query can window with a row comparison.
func (b *Backend) boundary(ctx context.Context, ent *dom.Entity, req *fetch.Request) (*boundary, error) {
	pr := req.Page
	ks := &boundary{}
	if pr.After == "" && pr.Before == "" {
		return ks, nil
	}
	ords, err := ordCols(ent, req.Ord, true)
	if err != nil {
		return nil, err
	}
	if pr.After != "" {
		ks.after, err = b.boundaryVals(ctx, ent, ords, pr.After)
		if err != nil {
			return nil, err
		}
	}
	if pr.Before != "" {
		ks.before, err = b.boundaryVals(ctx, ent, ords, pr.Before)
		if err != nil {
			return nil, err
		}
	}
	return ks, nil
}

func (b *Backend) boundaryVals(ctx context.Context, ent *dom.Entity, ords []string, cur string) ([]interface{}, error) {
	q := &query{}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(ords, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(tableIdent(ent))
	sb.WriteString(" WHERE id::text = ")
	sb.WriteString(q.param(cur))
	q.sql = sb.String()
	rows, err := b.DB.QueryEx(ctx, q.sql, nil, q.args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", q.sql)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, errors.Errorf("unknown cursor %q", cur)
	}
	vals := make([]interface{}, len(ords))
	dest := make([]interface{}, len(ords))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, errors.Wrap(err, "scan cursor row")
	}
	return vals, nil
}
