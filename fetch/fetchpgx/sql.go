package fetchpgx

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/fetch"
	"github.com/lenslib/lens/plan"
	"github.com/lenslib/lens/typ"
)

// refKey holds the host back reference on child rows so batch loads can
// regroup them. Like fetch.MetaKey it never collides with schema fields.
const refKey = "_ref"

// col is one output column of a generated select. Values of json columns
// arrive as text and are decoded after the scan.
type col struct {
	name string
	expr string
	json bool
}

// query is a generated sql statement with its parameters, the output
// columns and the fields denied by policy that are stamped after the scan.
type query struct {
	sql  string
	args []interface{}
	cols []col
	deny []string
}

func (q *query) param(v interface{}) string {
	q.args = append(q.args, sqlParam(v))
	return fmt.Sprintf("$%d", len(q.args))
}

// boundary carries the order key values of the cursor rows for keyset
// paging. Values align with the order columns including the id tie break.
type boundary struct {
	after, before []interface{}
}

// genSelect builds the primary select for a fetch request. Keyset row
// comparisons use the boundary values resolved beforehand.
func (b *Backend) genSelect(ent *dom.Entity, req *fetch.Request, ks *boundary) (*query, error) {
	q := &query{}
	need := req.Mode == fetch.ModePage && req.Page.Keyset
	err := b.planCols(ent, req.Plan, q, &need)
	if err != nil {
		return nil, err
	}
	if need {
		q.cols = append(q.cols, col{fetch.MetaKey, "id::text", false})
	}
	if len(q.cols) == 0 {
		q.cols = append(q.cols, col{"id", "id::text", false})
	}
	var sb strings.Builder
	writeCols(&sb, q.cols)
	sb.WriteString(" FROM ")
	sb.WriteString(tableIdent(ent))
	conds, err := genWhere(ent, req.Filter, q)
	if err != nil {
		return nil, err
	}
	ords, err := ordCols(ent, req.Ord, req.Page.Keyset)
	if err != nil {
		return nil, err
	}
	var ksDesc bool
	if req.Mode == fetch.ModePage && req.Page.Keyset {
		ksDesc, err = ordDir(req.Ord)
		if err != nil {
			return nil, err
		}
	}
	if ks != nil {
		if ks.after != nil {
			conds = append(conds, rowCmp(ords, ks.after, cmpOp(ksDesc, false), q))
		}
		if ks.before != nil {
			conds = append(conds, rowCmp(ords, ks.before, cmpOp(ksDesc, true), q))
		}
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	if len(ords) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range ords {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(o)
			// the id tie break follows the shared keyset direction
			desc := ksDesc
			if i < len(req.Ord) {
				desc = req.Ord[i].Desc
			}
			if desc {
				sb.WriteString(" DESC")
			}
		}
	}
	switch req.Mode {
	case fetch.ModeOne:
		sb.WriteString(" LIMIT 1")
	case fetch.ModePage:
		pr := req.Page
		if pr.Limit > 0 {
			// one row past the limit probes the has more flag
			fmt.Fprintf(&sb, " LIMIT %d", pr.Limit+1)
		}
		if !pr.Keyset && pr.Offset > 0 {
			fmt.Fprintf(&sb, " OFFSET %d", pr.Offset)
		}
	}
	q.sql = sb.String()
	return q, nil
}

// genSub builds the batched select for a relationship load. A to-many load
// passes the back reference column in ref, a to-one load matches child ids.
func (b *Backend) genSub(ent *dom.Entity, p *plan.Plan, ref string, ids []string) (*query, error) {
	q := &query{}
	need := true
	err := b.planCols(ent, p, q, &need)
	if err != nil {
		return nil, err
	}
	q.cols = append(q.cols, col{fetch.MetaKey, "id::text", false})
	if ref != "" {
		q.cols = append(q.cols, col{refKey, ref + "::text", false})
	}
	var sb strings.Builder
	writeCols(&sb, q.cols)
	sb.WriteString(" FROM ")
	sb.WriteString(tableIdent(ent))
	sb.WriteString(" WHERE ")
	if ref != "" {
		sb.WriteString(ref)
	} else {
		sb.WriteString("id")
	}
	sb.WriteString("::text = ANY(")
	sb.WriteString(q.param(ids))
	sb.WriteString(")")
	if ref != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(ref)
		sb.WriteString("::text, id::text")
	}
	q.sql = sb.String()
	return q, nil
}

// genAggr builds the grouped select resolving an aggregate over the related
// entity. The result has the host reference in _ref and the value in v.
func genAggr(ent *dom.Entity, f *dom.Field, of *dom.Field, ref string, ids []string) (*query, error) {
	q := &query{}
	var sb strings.Builder
	switch f.Aggr {
	case dom.AggrCount, dom.AggrExists:
		q.cols = []col{{refKey, ref + "::text", false}, {"v", "COUNT(*)", false}}
	case dom.AggrSum:
		q.cols = []col{{refKey, ref + "::text", false}, {"v", "SUM(" + of.Name + ")::float8", false}}
	case dom.AggrFirst:
		expr, js := colExpr(of)
		q.cols = []col{{refKey, ref + "::text", false}, {"v", expr, js}}
		sb.WriteString("SELECT DISTINCT ON (")
		sb.WriteString(ref)
		sb.WriteString(") ")
		writeColList(&sb, q.cols)
		sb.WriteString(" FROM ")
		sb.WriteString(tableIdent(ent))
		sb.WriteString(" WHERE ")
		sb.WriteString(ref)
		sb.WriteString("::text = ANY(")
		sb.WriteString(q.param(ids))
		sb.WriteString(") ORDER BY ")
		sb.WriteString(ref)
		sb.WriteString(", id::text")
		q.sql = sb.String()
		return q, nil
	default:
		return nil, errors.Errorf("unsupported aggregate %s", f.Aggr)
	}
	writeCols(&sb, q.cols)
	sb.WriteString(" FROM ")
	sb.WriteString(tableIdent(ent))
	sb.WriteString(" WHERE ")
	sb.WriteString(ref)
	sb.WriteString("::text = ANY(")
	sb.WriteString(q.param(ids))
	sb.WriteString(") GROUP BY ")
	sb.WriteString(ref)
	q.sql = sb.String()
	return q, nil
}

// planCols appends the select columns a plan needs: its selected fields,
// the foreign keys of to-one loads and the columns embedded structures live
// in. Fields denied by policy land in the deny list instead. need is raised
// when a load wants the host ids for batching.
func (b *Backend) planCols(ent *dom.Entity, p *plan.Plan, q *query, need *bool) error {
	for _, key := range p.Select {
		f := ent.Field(key)
		if f == nil {
			return errors.Errorf("no field %s on entity %s", key, ent.Name)
		}
		if !b.visible(ent.Name, key) {
			q.deny = append(q.deny, key)
			continue
		}
		expr, js := colExpr(f)
		q.cols = append(q.cols, col{key, expr, js})
	}
	for _, l := range p.Load {
		f := ent.Field(l.Field)
		if f == nil {
			return errors.Errorf("no field %s on entity %s", l.Field, ent.Name)
		}
		if !b.visible(ent.Name, l.Field) {
			q.deny = append(q.deny, l.Field)
			continue
		}
		switch f.Kind {
		case dom.KindCalc:
			return errors.Errorf("calculation %s.%s not supported by the sql backend",
				ent.Name, f.Name)
		case dom.KindRel:
			if f.Many {
				*need = true
			} else {
				fk := f.Name + "_id"
				q.cols = append(q.cols, col{fk, fk + "::text", false})
			}
		case dom.KindAggr:
			*need = true
		default:
			// embedded structures are read whole from their json column
			expr, js := colExpr(f)
			q.cols = append(q.cols, col{f.Name, expr, js})
		}
	}
	return nil
}

func writeCols(sb *strings.Builder, cols []col) {
	sb.WriteString("SELECT ")
	writeColList(sb, cols)
}

func writeColList(sb *strings.Builder, cols []col) {
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.expr)
		if c.expr != c.name {
			sb.WriteString(" AS ")
			sb.WriteString(c.name)
		}
	}
}

// genWhere renders the equality filter with deterministic condition order.
func genWhere(ent *dom.Entity, f fetch.Filter, q *query) ([]string, error) {
	if len(f) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	conds := make([]string, 0, len(keys))
	for _, k := range keys {
		expr, err := condExpr(ent, k)
		if err != nil {
			return nil, err
		}
		v := f[k]
		if v == nil {
			conds = append(conds, expr+" IS NULL")
			continue
		}
		conds = append(conds, expr+" = "+q.param(v))
	}
	return conds, nil
}

// condExpr resolves a filter or order key to a comparable column
// expression. Plain attributes and the derived foreign keys of to-one
// relationships are allowed.
func condExpr(ent *dom.Entity, key string) (string, error) {
	if f := ent.Field(key); f != nil {
		if f.Kind != dom.KindAttr {
			return "", errors.Errorf("field %s on entity %s is not a stored column",
				key, ent.Name)
		}
		expr, _ := colExpr(f)
		return expr, nil
	}
	if base := strings.TrimSuffix(key, "_id"); base != key {
		if f := ent.Field(base); f != nil && f.Kind == dom.KindRel && !f.Many {
			return key + "::text", nil
		}
	}
	return "", errors.Errorf("no column %s on entity %s", key, ent.Name)
}

// ordCols resolves the order keys to column expressions. Keyset paging
// appends the id tie break so the row comparison is total.
func ordCols(ent *dom.Entity, ords []fetch.Ord, keyset bool) ([]string, error) {
	res := make([]string, 0, len(ords)+1)
	for _, o := range ords {
		expr, err := condExpr(ent, o.Key)
		if err != nil {
			return nil, err
		}
		res = append(res, expr)
	}
	if keyset {
		res = append(res, "id::text")
	}
	return res, nil
}

// ordDir checks that keyset order keys share one direction and returns it.
func ordDir(ords []fetch.Ord) (bool, error) {
	desc := false
	for i, o := range ords {
		if i == 0 {
			desc = o.Desc
		} else if o.Desc != desc {
			return false, errors.New("keyset paging requires a uniform order direction")
		}
	}
	return desc, nil
}

func cmpOp(desc, before bool) string {
	if desc != before {
		return "<"
	}
	return ">"
}

// rowCmp renders a postgres row value comparison against the boundary.
func rowCmp(ords []string, vals []interface{}, op string, q *query) string {
	ps := make([]string, len(vals))
	for i, v := range vals {
		ps[i] = q.param(v)
	}
	return fmt.Sprintf("(%s) %s (%s)",
		strings.Join(ords, ", "), op, strings.Join(ps, ", "))
}

// colExpr renders the select expression for a field column. Custom scalars
// compare and transport as text, composite values live in json columns and
// arrive as text blobs for decoding.
func colExpr(f *dom.Field) (string, bool) {
	switch t := f.Type; t.Kind {
	case typ.KindScalar:
		if t.Scalar == typ.ScalarAny {
			return f.Name + "::text", true
		}
		return f.Name, false
	case typ.KindCustom:
		switch t.Codec.Name() {
		case "date", "datetime":
			return f.Name, false
		}
		return f.Name + "::text", false
	}
	return f.Name + "::text", true
}

func tableIdent(ent *dom.Entity) string {
	return pgx.Identifier{ent.TableName()}.Sanitize()
}

// sqlParam folds the internal forms the driver cannot encode natively into
// their text renditions.
func sqlParam(v interface{}) interface{} {
	switch d := v.(type) {
	case uuid.UUID:
		return d.String()
	case decimal.Decimal:
		return d.String()
	}
	return v
}
