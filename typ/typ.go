// Package typ declares the closed structural type algebra that drives
// selection compilation and value formatting. Every schema field resolves
// to exactly one tag; the zero Type has KindVoid and marks an undefined
// resolution, which schema validation rejects up front.
package typ

import "strings"

// Kind is the structural type tag.
type Kind uint8

const (
	KindVoid   Kind = iota // undefined, never valid in a checked schema
	KindScalar             // plain scalar value
	KindArray              // homogeneous list of Elem
	KindUnion              // exactly one of several named members
	KindStruct             // embedded structure of entity Ref
	KindMap                // typed map with closed field specs
	KindTuple              // ordered fields stored positionally
	KindRecord             // keyword record, typed fields keyed by name
	KindOpaque             // schemaless map, passes through unmodified
	KindCustom             // scalar with a registered codec
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindUnion:
		return "union"
	case KindStruct:
		return "struct"
	case KindMap:
		return "map"
	case KindTuple:
		return "tuple"
	case KindRecord:
		return "record"
	case KindOpaque:
		return "opaque"
	case KindCustom:
		return "custom"
	}
	return "void"
}

// ScalarKind refines KindScalar.
type ScalarKind uint8

const (
	ScalarAny ScalarKind = iota
	ScalarString
	ScalarInt
	ScalarFloat
	ScalarBool
)

func (k ScalarKind) String() string {
	switch k {
	case ScalarString:
		return "string"
	case ScalarInt:
		return "int"
	case ScalarFloat:
		return "float"
	case ScalarBool:
		return "bool"
	}
	return "any"
}

// FieldSpec declares one named child of a map, tuple or record type.
// Names use the internal convention.
type FieldSpec struct {
	Name string
	Type Type
}

// Member declares one union member. Tag and TagValue optionally name a
// discriminator key and its expected value inside map-shaped payloads.
type Member struct {
	Name     string
	Type     Type
	Tag      string
	TagValue string
}

// Type is one node of the structural algebra. Only the fields relevant to
// Kind are populated.
type Type struct {
	Kind    Kind
	Scalar  ScalarKind  // KindScalar
	Elem    *Type       // KindArray
	Members []Member    // KindUnion
	Ref     string      // KindStruct: internal entity name
	Fields  []FieldSpec // KindMap, KindTuple, KindRecord
	Codec   Codec       // KindCustom
}

// Common scalar types.
var (
	Any    = Type{Kind: KindScalar, Scalar: ScalarAny}
	String = Type{Kind: KindScalar, Scalar: ScalarString}
	Int    = Type{Kind: KindScalar, Scalar: ScalarInt}
	Float  = Type{Kind: KindScalar, Scalar: ScalarFloat}
	Bool   = Type{Kind: KindScalar, Scalar: ScalarBool}

	// Opaque passes keys and values through unmodified.
	Opaque = Type{Kind: KindOpaque}
)

// Array returns a list type of el.
func Array(el Type) Type { return Type{Kind: KindArray, Elem: &el} }

// Union returns a union type over the given members.
func Union(members ...Member) Type { return Type{Kind: KindUnion, Members: members} }

// Struct returns an embedded structure type referencing the entity key.
func Struct(entity string) Type { return Type{Kind: KindStruct, Ref: entity} }

// Map returns a typed map with the given field specs.
func Map(fields ...FieldSpec) Type { return Type{Kind: KindMap, Fields: fields} }

// Tuple returns a positional tuple with the given ordered field specs.
func Tuple(fields ...FieldSpec) Type { return Type{Kind: KindTuple, Fields: fields} }

// Record returns a keyword record with the given field specs.
func Record(fields ...FieldSpec) Type { return Type{Kind: KindRecord, Fields: fields} }

// Custom returns a custom scalar type using codec c.
func Custom(c Codec) Type { return Type{Kind: KindCustom, Codec: c} }

// IsZero reports whether t is the undefined zero type.
func (t Type) IsZero() bool { return t.Kind == KindVoid }

// Field returns the field spec named key or nil.
func (t Type) Field(key string) *FieldSpec {
	for i, f := range t.Fields {
		if f.Name == key {
			return &t.Fields[i]
		}
	}
	return nil
}

// FieldIndex returns the positional index of the field named key or -1.
func (t Type) FieldIndex(key string) int {
	for i, f := range t.Fields {
		if f.Name == key {
			return i
		}
	}
	return -1
}

// Member returns the union member named key or nil.
func (t Type) Member(key string) *Member {
	for i, m := range t.Members {
		if m.Name == key {
			return &t.Members[i]
		}
	}
	return nil
}

// String renders a compact type description for diagnostics.
func (t Type) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t Type) write(b *strings.Builder) {
	switch t.Kind {
	case KindScalar:
		b.WriteString(t.Scalar.String())
	case KindArray:
		b.WriteString("array<")
		t.Elem.write(b)
		b.WriteByte('>')
	case KindUnion:
		b.WriteString("union{")
		for i, m := range t.Members {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(m.Name)
		}
		b.WriteByte('}')
	case KindStruct:
		b.WriteByte('@')
		b.WriteString(t.Ref)
	case KindMap, KindTuple, KindRecord:
		b.WriteString(t.Kind.String())
		b.WriteByte('{')
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(f.Name)
		}
		b.WriteByte('}')
	case KindOpaque:
		b.WriteString("opaque")
	case KindCustom:
		b.WriteString("custom:")
		if t.Codec != nil {
			b.WriteString(t.Codec.Name())
		}
	default:
		b.WriteString("void")
	}
}
