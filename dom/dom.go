package dom

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/lenslib/lens/naming"
	"github.com/lenslib/lens/typ"
)

// FieldKind tells how a field obtains its value.
type FieldKind uint8

const (
	KindAttr FieldKind = iota // immediately resident attribute
	KindRel                   // relationship to another entity
	KindCalc                  // calculation, optionally with arguments
	KindAggr                  // aggregate over a relationship path
)

func (k FieldKind) String() string {
	switch k {
	case KindRel:
		return "rel"
	case KindCalc:
		return "calc"
	case KindAggr:
		return "aggr"
	}
	return "attr"
}

// AggrKind is the aggregate function of an aggregate field.
type AggrKind uint8

const (
	AggrCount AggrKind = 1 + iota
	AggrExists
	AggrSum
	AggrFirst
)

func (k AggrKind) String() string {
	switch k {
	case AggrCount:
		return "count"
	case AggrExists:
		return "exists"
	case AggrSum:
		return "sum"
	case AggrFirst:
		return "first"
	}
	return "void"
}

// ParseAggr returns the aggregate kind named s or false.
func ParseAggr(s string) (AggrKind, bool) {
	switch s {
	case "count":
		return AggrCount, true
	case "exists":
		return AggrExists, true
	case "sum":
		return AggrSum, true
	case "first":
		return AggrFirst, true
	}
	return 0, false
}

// Arg declares one named calculation argument.
type Arg struct {
	Name     string
	Type     typ.Type
	Required bool
}

// Field declares one named entity field. Name is the canonical internal
// identifier; client-facing names are always derived through the schema
// naming rules and never stored here.
type Field struct {
	Name string
	Kind FieldKind
	Type typ.Type

	Entity string // KindRel: related entity key
	Many   bool   // KindRel: to-many cardinality

	Args []Arg // KindCalc

	Aggr AggrKind // KindAggr
	Path string   // KindAggr: relationship field on the host entity
	Of   string   // KindAggr: aggregated field within the related entity
}

// Attr returns a plain attribute field.
func Attr(name string, t typ.Type) *Field {
	return &Field{Name: name, Kind: KindAttr, Type: t}
}

// ToOne returns a to-one relationship field to entity.
func ToOne(name, entity string) *Field {
	return &Field{Name: name, Kind: KindRel, Entity: entity, Type: typ.Struct(entity)}
}

// ToMany returns a to-many relationship field to entity.
func ToMany(name, entity string) *Field {
	return &Field{Name: name, Kind: KindRel, Entity: entity, Many: true,
		Type: typ.Array(typ.Struct(entity))}
}

// Calc returns a calculation field with result type t and argument specs.
func Calc(name string, t typ.Type, args ...Arg) *Field {
	return &Field{Name: name, Kind: KindCalc, Type: t, Args: args}
}

// Count returns a count aggregate over the relationship field path.
func Count(name, path string) *Field {
	return &Field{Name: name, Kind: KindAggr, Aggr: AggrCount, Path: path, Type: typ.Int}
}

// Exists returns an exists aggregate over the relationship field path.
func Exists(name, path string) *Field {
	return &Field{Name: name, Kind: KindAggr, Aggr: AggrExists, Path: path, Type: typ.Bool}
}

// Sum returns a sum aggregate over field of in the entity related by path.
func Sum(name, path, of string) *Field {
	return &Field{Name: name, Kind: KindAggr, Aggr: AggrSum, Path: path, Of: of}
}

// First returns a first aggregate over field of in the entity related by path.
func First(name, path, of string) *Field {
	return &Field{Name: name, Kind: KindAggr, Aggr: AggrFirst, Path: path, Of: of}
}

// Arg returns the argument spec named key or nil.
func (f *Field) Arg(key string) *Arg {
	if f != nil {
		for i, a := range f.Args {
			if a.Name == key {
				return &f.Args[i]
			}
		}
	}
	return nil
}

// Entity declares a named record shape with its fields and naming overrides.
type Entity struct {
	Name      string
	Table     string // storage table, defaults to Name
	Overrides naming.Overrides
	Fields    []*Field
}

// NewEntity returns an entity with the given fields.
func NewEntity(name string, fields ...*Field) *Entity {
	return &Entity{Name: name, Fields: fields}
}

// Field returns the field named key or nil.
func (e *Entity) Field(key string) *Field {
	if e != nil {
		for _, f := range e.Fields {
			if f.Name == key {
				return f
			}
		}
	}
	return nil
}

// TableName returns the storage table for the entity.
func (e *Entity) TableName() string {
	if e.Table != "" {
		return e.Table
	}
	return e.Name
}

func (e *Entity) String() string { return fmt.Sprintf("@%s", e.Name) }

// Schema is the immutable context threaded through all layers: the entity
// registry, the client naming convention and the codec registry used when
// the schema was constructed.
type Schema struct {
	Name     string
	Naming   naming.Translator
	Codecs   map[string]typ.Codec
	Entities []*Entity
}

// New returns an empty schema using the given naming style and the default
// codec registry.
func New(name string, style naming.Style) *Schema {
	return &Schema{Name: name, Naming: naming.New(style), Codecs: typ.Codecs}
}

// Entity returns the entity for key or nil.
func (s *Schema) Entity(key string) *Entity {
	if s != nil {
		for _, e := range s.Entities {
			if e.Name == key {
				return e
			}
		}
	}
	return nil
}

// Related returns the entity a relationship or embedded structure field
// refers to, or nil for other field kinds.
func (s *Schema) Related(f *Field) *Entity {
	if f == nil {
		return nil
	}
	if f.Kind == KindRel {
		return s.Entity(f.Entity)
	}
	t := f.Type
	if t.Kind == typ.KindArray {
		t = *t.Elem
	}
	if t.Kind == typ.KindStruct {
		return s.Entity(t.Ref)
	}
	return nil
}

// ToClient translates the internal field name to its client form, applying
// the entity overrides first.
func (s *Schema) ToClient(e *Entity, internal string) string {
	var ov naming.Overrides
	if e != nil {
		ov = e.Overrides
	}
	return s.Naming.ToClient(internal, ov)
}

// ToInternal translates the client field name to its internal form, applying
// the entity overrides first.
func (s *Schema) ToInternal(e *Entity, client string) string {
	var ov naming.Overrides
	if e != nil {
		ov = e.Overrides
	}
	return s.Naming.ToInternal(client, ov)
}

// Validate checks the schema declaration and resolves derivable aggregate
// result types. After a successful validation type resolution is total for
// all declared fields.
func (s *Schema) Validate() error {
	seen := make(map[string]bool, len(s.Entities))
	for _, e := range s.Entities {
		if e.Name == "" {
			return errors.New("entity without name")
		}
		if seen[e.Name] {
			return errors.Errorf("duplicate entity %s", e.Name)
		}
		seen[e.Name] = true
	}
	for _, e := range s.Entities {
		err := s.validateEntity(e)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) validateEntity(e *Entity) error {
	names := make(map[string]bool, len(e.Fields))
	for _, f := range e.Fields {
		if f.Name == "" {
			return errors.Errorf("entity %s: field without name", e.Name)
		}
		if names[f.Name] {
			return errors.Errorf("entity %s: duplicate field %s", e.Name, f.Name)
		}
		names[f.Name] = true
		err := s.validateField(e, f)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) validateField(e *Entity, f *Field) error {
	switch f.Kind {
	case KindRel:
		if s.Entity(f.Entity) == nil {
			return errors.Errorf("entity %s field %s: unknown entity %s",
				e.Name, f.Name, f.Entity)
		}
	case KindCalc:
		args := make(map[string]bool, len(f.Args))
		for _, a := range f.Args {
			if args[a.Name] {
				return errors.Errorf("entity %s field %s: duplicate arg %s",
					e.Name, f.Name, a.Name)
			}
			args[a.Name] = true
		}
	case KindAggr:
		rel := e.Field(f.Path)
		if rel == nil || rel.Kind != KindRel {
			return errors.Errorf("entity %s field %s: aggregate path %s is not a relationship",
				e.Name, f.Name, f.Path)
		}
		switch f.Aggr {
		case AggrCount, AggrExists:
		case AggrSum, AggrFirst:
			of := s.Entity(rel.Entity).Field(f.Of)
			if of == nil {
				return errors.Errorf("entity %s field %s: unknown aggregate field %s.%s",
					e.Name, f.Name, rel.Entity, f.Of)
			}
			if f.Type.IsZero() {
				f.Type = of.Type
			}
		default:
			return errors.Errorf("entity %s field %s: unknown aggregate kind",
				e.Name, f.Name)
		}
	}
	return s.validateType(e, f, f.Type)
}

// validateType walks the structural type and checks that every embedded
// entity reference resolves and that union members are unambiguous to
// declare. The visited set guards against reference cycles.
func (s *Schema) validateType(e *Entity, f *Field, t typ.Type) error {
	return s.walkType(e, f, t, make(map[string]bool))
}

func (s *Schema) walkType(e *Entity, f *Field, t typ.Type, visited map[string]bool) error {
	switch t.Kind {
	case typ.KindVoid:
		return errors.Errorf("entity %s field %s: unresolved type", e.Name, f.Name)
	case typ.KindArray:
		return s.walkType(e, f, *t.Elem, visited)
	case typ.KindStruct:
		ref := s.Entity(t.Ref)
		if ref == nil {
			return errors.Errorf("entity %s field %s: unknown entity %s",
				e.Name, f.Name, t.Ref)
		}
		if visited[t.Ref] {
			return nil
		}
		visited[t.Ref] = true
		for _, rf := range ref.Fields {
			err := s.walkType(ref, rf, rf.Type, visited)
			if err != nil {
				return err
			}
		}
	case typ.KindUnion:
		names := make(map[string]bool, len(t.Members))
		for _, m := range t.Members {
			if names[m.Name] {
				return errors.Errorf("entity %s field %s: duplicate union member %s",
					e.Name, f.Name, m.Name)
			}
			names[m.Name] = true
			err := s.walkType(e, f, m.Type, visited)
			if err != nil {
				return err
			}
		}
	case typ.KindMap, typ.KindTuple, typ.KindRecord:
		names := make(map[string]bool, len(t.Fields))
		for _, sub := range t.Fields {
			if names[sub.Name] {
				return errors.Errorf("entity %s field %s: duplicate key %s",
					e.Name, f.Name, sub.Name)
			}
			names[sub.Name] = true
			err := s.walkType(e, f, sub.Type, visited)
			if err != nil {
				return err
			}
		}
	case typ.KindCustom:
		if t.Codec == nil {
			return errors.Errorf("entity %s field %s: custom type without codec",
				e.Name, f.Name)
		}
	}
	return nil
}
