package fetchpgx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/fetch"
	"github.com/lenslib/lens/typ"
)

type DB interface {
	Begin() (*pgx.Tx, error)
}

type C interface {
	Query(string, ...interface{}) (*pgx.Rows, error)
	QueryRow(string, ...interface{}) *pgx.Row
	Exec(string, ...interface{}) (pgx.CommandTag, error)
}

func Open(dsn string, logger pgx.Logger) (*pgx.ConnPool, error) {
	conf, err := pgx.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parsing postgres dsn")
	}
	if logger != nil {
		conf.Logger = logger
		conf.LogLevel = pgx.LogLevelWarn
	}
	db, err := pgx.NewConnPool(pgx.ConnPoolConfig{ConnConfig: conf})
	if err != nil {
		return nil, errors.Wrap(err, "creating pgx connection pool")
	}
	_, err = db.Exec("SELECT 1")
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "opening first pgx connection")
	}
	return db, nil
}

func WithTx(db DB, f func(C) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	err = f(tx)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// CreateSchema creates one table per entity following the storage
// conventions the executor queries by: attributes map to typed columns,
// to-one relationships to <field>_id foreign key columns, and composite
// values to jsonb. Calculations and aggregates have no columns.
func CreateSchema(db *pgx.ConnPool, s *dom.Schema) error {
	rels, err := dom.Relate(s)
	if err != nil {
		return err
	}
	return WithTx(db, func(tx C) error {
		for _, e := range s.Entities {
			var b strings.Builder
			err := writeTable(&b, rels, e)
			if err != nil {
				return err
			}
			if _, err = tx.Exec(b.String()); err != nil {
				return errors.Wrapf(err, "create table %s", e.TableName())
			}
		}
		return nil
	})
}

func DropSchema(db *pgx.ConnPool, s *dom.Schema) error {
	return WithTx(db, func(tx C) error {
		for i := len(s.Entities) - 1; i >= 0; i-- {
			_, err := tx.Exec("DROP TABLE IF EXISTS " + tableIdent(s.Entities[i]) + " CASCADE")
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func writeTable(b *strings.Builder, rels dom.Relations, e *dom.Entity) error {
	b.WriteString("CREATE TABLE ")
	b.WriteString(tableIdent(e))
	b.WriteString(" (")
	cols, err := tableCols(rels, e)
	if err != nil {
		return err
	}
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.name)
		b.WriteByte(' ')
		b.WriteString(c.typ)
		if c.name == "id" {
			b.WriteString(" PRIMARY KEY")
		}
	}
	b.WriteString(")")
	return nil
}

type tableCol struct {
	name string
	typ  string
}

// tableCols lists the storage columns of an entity: its attribute columns,
// the foreign keys of its to-one relationships, and the back reference
// columns of incoming to-many relationships.
func tableCols(rels dom.Relations, e *dom.Entity) ([]tableCol, error) {
	res := make([]tableCol, 0, len(e.Fields))
	seen := make(map[string]bool, len(e.Fields))
	add := func(c tableCol) {
		if !seen[c.name] {
			seen[c.name] = true
			res = append(res, c)
		}
	}
	for _, f := range e.Fields {
		switch f.Kind {
		case dom.KindCalc, dom.KindAggr:
			continue
		case dom.KindRel:
			if f.Many {
				continue
			}
			add(tableCol{f.Name + "_id", "uuid"})
			continue
		}
		ts, err := typString(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "entity %s field %s", e.Name, f.Name)
		}
		add(tableCol{f.Name, ts})
	}
	if er := rels[e.Name]; er != nil {
		for _, r := range er.In {
			if r.Many && !r.Embed {
				add(tableCol{r.A.Entity.Name + "_id", "uuid"})
			}
		}
	}
	return res, nil
}

// typString maps a field type to its postgres column type. Composite
// values including arrays live in jsonb so reads decode along one path.
func typString(t typ.Type) (string, error) {
	switch t.Kind {
	case typ.KindScalar:
		switch t.Scalar {
		case typ.ScalarBool:
			return "bool", nil
		case typ.ScalarInt:
			return "int8", nil
		case typ.ScalarFloat:
			return "float8", nil
		case typ.ScalarString:
			return "text", nil
		}
		return "jsonb", nil
	case typ.KindCustom:
		switch t.Codec.Name() {
		case "date":
			return "date", nil
		case "datetime":
			return "timestamptz", nil
		case "decimal":
			return "numeric", nil
		case "uuid":
			return "uuid", nil
		}
		return "text", nil
	case typ.KindArray, typ.KindUnion, typ.KindStruct, typ.KindMap,
		typ.KindTuple, typ.KindRecord, typ.KindOpaque:
		return "jsonb", nil
	}
	return "", errors.Errorf("unexpected type %s", t)
}

// InsertData loads fixture records into the schema tables. Values use
// their internal forms, composite values are written as json.
func InsertData(db *pgx.ConnPool, s *dom.Schema, data map[string][]fetch.Record) error {
	rels, err := dom.Relate(s)
	if err != nil {
		return err
	}
	return WithTx(db, func(tx C) error {
		for _, e := range s.Entities {
			cols, err := tableCols(rels, e)
			if err != nil {
				return err
			}
			for _, rec := range data[e.Name] {
				sql, args, err := genInsert(e, cols, rec)
				if err != nil {
					return err
				}
				if sql == "" {
					continue
				}
				if _, err = tx.Exec(sql, args...); err != nil {
					return errors.Wrapf(err, "insert into %s", e.TableName())
				}
			}
		}
		return nil
	})
}

func genInsert(e *dom.Entity, cols []tableCol, rec fetch.Record) (string, []interface{}, error) {
	var sb strings.Builder
	var args []interface{}
	sb.WriteString("INSERT INTO ")
	sb.WriteString(tableIdent(e))
	sb.WriteString(" (")
	n := 0
	for _, c := range cols {
		v, ok := rec[c.name]
		if !ok {
			continue
		}
		iv, err := insertVal(v)
		if err != nil {
			return "", nil, errors.Wrapf(err, "column %s", c.name)
		}
		if n > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.name)
		args = append(args, iv)
		n++
	}
	if n == 0 {
		return "", nil, nil
	}
	sb.WriteString(") VALUES (")
	for i := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "$%d", i+1)
	}
	sb.WriteString(")")
	return sb.String(), args, nil
}

func insertVal(v interface{}) (interface{}, error) {
	switch d := v.(type) {
	case nil, string, bool, int, int64, float64:
		return v, nil
	case uuid.UUID:
		return d.String(), nil
	case decimal.Decimal:
		return d.String(), nil
	case map[string]interface{}, []interface{}:
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}
	return v, nil
}
