package dom

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/lenslib/lens/typ"
)

// Relation links two entities a and b through a relationship field or an
// embedded structure reference.
type Relation struct {
	A, B  Ref
	Many  bool
	Embed bool
}

func (r Relation) String() string {
	if r.Embed {
		return fmt.Sprintf("%s>(%s)", r.A, r.B)
	}
	return fmt.Sprintf("%s>>%s", r.A, r.B)
}

// Ref is an entity pointer with an optional field key.
type Ref struct {
	*Entity
	Key string
}

func (r Ref) String() string {
	if r.Key == "" {
		return r.Entity.String()
	}
	return fmt.Sprintf("%s.%s", r.Entity, r.Key)
}

// EntityRels contains outgoing and incoming relationships for an entity.
type EntityRels struct {
	*Entity
	Out, In []Relation
}

func (r EntityRels) String() string {
	return fmt.Sprintf("{out:%v in:%v}", r.Out, r.In)
}

// Relations maps entity names to a collection of all relations for that
// entity.
type Relations map[string]*EntityRels

// Relate collects and returns all relations between the entities in the
// given schema or an error for unresolvable references.
func Relate(s *Schema) (Relations, error) {
	res := make(Relations)
	for _, e := range s.Entities {
		err := res.relate(s, e)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (res Relations) relate(s *Schema, e *Entity) error {
	for _, f := range e.Fields {
		rel := Relation{A: Ref{e, f.Name}}
		switch f.Kind {
		case KindRel:
			rel.B.Entity = s.Entity(f.Entity)
			rel.Many = f.Many
		case KindAttr:
			ref, many := embedRef(f.Type)
			if ref == "" {
				continue
			}
			rel.B.Entity = s.Entity(ref)
			rel.Many = many
			rel.Embed = true
		default:
			continue
		}
		if rel.B.Entity == nil {
			return errors.Errorf("entity ref not found for %s.%s", e.Name, f.Name)
		}
		res.add(rel)
	}
	return nil
}

func (rs Relations) add(r Relation) {
	a := rs.upsert(r.A.Entity)
	a.Out = append(a.Out, r)
	b := rs.upsert(r.B.Entity)
	b.In = append(b.In, r)
}

func (rs Relations) upsert(e *Entity) *EntityRels {
	r := rs[e.Name]
	if r == nil {
		r = &EntityRels{Entity: e}
		rs[e.Name] = r
	}
	return r
}

func embedRef(t typ.Type) (ref string, many bool) {
	if t.Kind == typ.KindArray {
		ref, _ = embedRef(*t.Elem)
		return ref, true
	}
	if t.Kind == typ.KindStruct {
		return t.Ref, false
	}
	return "", false
}
