// Package sel parses raw client field selections into a normalized tree.
//
// A raw selection is a list of bare strings and single-key maps. The parser
// translates client names to internal identifiers, threads entity contexts
// across relationship and embedded structure boundaries so per-entity naming
// overrides apply, deduplicates entries and orders leaves before nested
// entries. It validates shape only; whether a selected field exists is
// checked during compilation.
package sel

import (
	"fmt"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/typ"
)

// Self is the reserved selector that carries calculation arguments inside a
// nested selection.
const Self = "self"

// MalformedError describes a raw selection value with an invalid shape.
type MalformedError struct {
	Path   string
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed selection: %s", e.Reason)
	}
	return fmt.Sprintf("malformed selection at %s: %s", e.Path, e.Reason)
}

// Sel is one normalized selection entry. Key is the internal identifier,
// Name the client spelling as sent, kept for diagnostics. Nested entries
// carry a sub-selection and optionally calculation arguments taken from the
// reserved self selector; argument keys are internal, values stay raw.
type Sel struct {
	Key    string
	Name   string
	Nested bool
	Sub    Sels
	Args   map[string]interface{}
}

// Sels is a normalized selection: leaves first, nested entries after, each
// group in request order.
type Sels []*Sel

// Sel returns the entry for the internal key or nil.
func (ss Sels) Sel(key string) *Sel {
	for _, s := range ss {
		if s.Key == key {
			return s
		}
	}
	return nil
}

// with merges n into the list. A nested entry absorbs a leaf for the same
// key; two nested entries merge sub-selections and arguments.
func (ss Sels) with(n *Sel) Sels {
	for i, s := range ss {
		if s.Key != n.Key {
			continue
		}
		if !n.Nested {
			return ss
		}
		if !s.Nested {
			ss[i] = n
			return ss
		}
		for _, sub := range n.Sub {
			s.Sub = s.Sub.with(sub)
		}
		for k, v := range n.Args {
			if s.Args == nil {
				s.Args = make(map[string]interface{})
			}
			s.Args[k] = v
		}
		return ss
	}
	return append(ss, n)
}

// Parse normalizes the raw client selection against the entity scope.
func Parse(s *dom.Schema, e *dom.Entity, raw []interface{}) (Sels, error) {
	p := parser{s: s}
	return p.list(scope{ent: e}, "", nil, raw)
}

type parser struct {
	s *dom.Schema
}

// scope is the naming and type context of one selection level. Inside typed
// composites the host entity stays current so its overrides keep applying;
// the entity switches at relationship and embedded structure boundaries.
type scope struct {
	ent *dom.Entity
	typ typ.Type
}

func (p *parser) list(sc scope, path string, owner *Sel, raw []interface{}) (Sels, error) {
	var res Sels
	for _, el := range raw {
		switch v := el.(type) {
		case string:
			res = res.with(&Sel{Key: p.key(sc, v), Name: v})
		case map[string]interface{}:
			if len(v) != 1 {
				return nil, &MalformedError{Path: path,
					Reason: fmt.Sprintf("nested selector must have exactly one key, got %d", len(v))}
			}
			for name, sub := range v {
				if name == Self {
					err := p.selfArgs(sc, path, owner, sub)
					if err != nil {
						return nil, err
					}
					continue
				}
				n, err := p.nested(sc, path, name, sub)
				if err != nil {
					return nil, err
				}
				res = res.with(n)
			}
		default:
			return nil, &MalformedError{Path: path,
				Reason: fmt.Sprintf("selection entry must be a string or a map, got %T", el)}
		}
	}
	return split(res), nil
}

func (p *parser) nested(sc scope, path, name string, raw interface{}) (*Sel, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, &MalformedError{Path: join(path, name),
			Reason: fmt.Sprintf("nested selection must be a list, got %T", raw)}
	}
	key := p.key(sc, name)
	n := &Sel{Key: key, Name: name, Nested: true, Sub: Sels{}}
	sub, err := p.list(p.child(sc, key), join(path, name), n, list)
	if err != nil {
		return nil, err
	}
	n.Sub = sub
	return n, nil
}

func (p *parser) selfArgs(sc scope, path string, owner *Sel, raw interface{}) error {
	if owner == nil {
		return &MalformedError{Path: path, Reason: "self selector outside a nested selection"}
	}
	args, ok := raw.(map[string]interface{})
	if !ok {
		return &MalformedError{Path: join(path, Self),
			Reason: fmt.Sprintf("self arguments must be a map, got %T", raw)}
	}
	if owner.Args == nil {
		owner.Args = make(map[string]interface{}, len(args))
	}
	for k, v := range args {
		owner.Args[p.s.ToInternal(sc.ent, k)] = v
	}
	return nil
}

// key translates a client name to its internal identifier. Keys below an
// opaque map pass through verbatim, their convention is never altered.
func (p *parser) key(sc scope, name string) string {
	if sc.typ.Kind == typ.KindOpaque {
		return name
	}
	return p.s.ToInternal(sc.ent, name)
}

// child resolves the naming context below the entry for key. Unknown keys
// keep the current context; the compiler reports them.
func (p *parser) child(sc scope, key string) scope {
	if sc.typ.Kind == typ.KindOpaque {
		return sc
	}
	if sc.typ.IsZero() {
		f := sc.ent.Field(key)
		if f == nil {
			return scope{ent: sc.ent}
		}
		if f.Kind == dom.KindRel {
			return scope{ent: p.s.Entity(f.Entity)}
		}
		return p.typeScope(sc, f.Type)
	}
	switch sc.typ.Kind {
	case typ.KindUnion:
		if m := sc.typ.Member(key); m != nil {
			return p.typeScope(sc, m.Type)
		}
	case typ.KindMap, typ.KindTuple, typ.KindRecord:
		if f := sc.typ.Field(key); f != nil {
			return p.typeScope(sc, f.Type)
		}
	}
	return scope{ent: sc.ent}
}

func (p *parser) typeScope(sc scope, t typ.Type) scope {
	for t.Kind == typ.KindArray {
		t = *t.Elem
	}
	if t.Kind == typ.KindStruct {
		return scope{ent: p.s.Entity(t.Ref)}
	}
	return scope{ent: sc.ent, typ: t}
}

// split orders leaves before nested entries, keeping request order within
// each group so compiled templates are reproducible.
func split(ss Sels) Sels {
	res := make(Sels, 0, len(ss))
	for _, s := range ss {
		if !s.Nested {
			res = append(res, s)
		}
	}
	for _, s := range ss {
		if s.Nested {
			res = append(res, s)
		}
	}
	return res
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
