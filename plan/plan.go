// Package plan compiles a normalized field selection into the minimal fetch
// plan for the store and an immutable extraction template for the
// projector. Compilation is a pure function of schema and selection, so
// compiled templates can be cached and shared freely.
package plan

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/sel"
	"github.com/lenslib/lens/shape"
	"github.com/lenslib/lens/typ"
)

// FieldError reports a requested field that does not exist or cannot be
// selected the way it was, located by its dotted client-name path.
type FieldError struct {
	Path   string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Path, e.Reason)
}

func fieldErr(path, format string, args ...interface{}) error {
	return &FieldError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Plan is the fetch boundary for one entity selection: the attributes the
// store selects directly and the entries it must load or compute.
type Plan struct {
	Entity string
	Select []string
	Load   []*LoadEntry
}

// LoadEntry names one relationship, embedded structure, calculation or
// aggregate to load. Calculation arguments are converted to internal form;
// entity-valued loads carry a recursively compiled sub-plan.
type LoadEntry struct {
	Field string
	Args  map[string]interface{}
	Sub   *Plan
}

// Entry returns the load entry for the field key or nil.
func (p *Plan) Entry(key string) *LoadEntry {
	if p != nil {
		for _, l := range p.Load {
			if l.Field == key {
				return l
			}
		}
	}
	return nil
}

// Template assembles client output from materialized records. It is
// immutable after compilation; output key order is instruction order.
type Template struct {
	Entity string
	Instrs []Instr
}

// Op selects how an instruction turns its source value into output.
type Op uint8

const (
	OpExtract Op = iota // copy the value as fetched
	OpFormat            // copy and format the value by its type
	OpNested            // apply the sub-template, element-wise over lists
	OpUnion             // dispatch on the active union member
)

// Instr emits one output key. Key is the client name. The source value is
// looked up by Field in record sources; instructions compiled from tuple
// fields set Pos and look up by Index in the positional value instead.
type Instr struct {
	Key   string
	Field string
	Index int
	Pos   bool
	Op    Op

	Type  typ.Type    // OpFormat
	Scope *dom.Entity // OpFormat naming scope

	Sub  *Template // OpNested
	Many bool      // OpNested, OpUnion: apply per element of a list

	Members []MemberInstr // OpUnion
}

// MemberInstr is one selected union member: the instruction runs only when
// the member is active in the projected value.
type MemberInstr struct {
	Name  string
	Instr Instr
}

// Member returns the member instruction for the internal member name.
func (in *Instr) Member(name string) *MemberInstr {
	for i := range in.Members {
		if in.Members[i].Name == name {
			return &in.Members[i]
		}
	}
	return nil
}

// Compile walks the selection against the entity and produces the fetch
// plan and the extraction template. Errors carry the dotted client path of
// the offending entry and abort the whole compilation.
func Compile(s *dom.Schema, e *dom.Entity, ss sel.Sels) (*Plan, *Template, error) {
	c := compiler{s: s, f: shape.Formatter{Schema: s}}
	return c.entity(e, ss, "")
}

type compiler struct {
	s *dom.Schema
	f shape.Formatter
}

func (c *compiler) entity(e *dom.Entity, ss sel.Sels, path string) (*Plan, *Template, error) {
	p := &Plan{Entity: e.Name}
	t := &Template{Entity: e.Name}
	for _, n := range ss {
		f := e.Field(n.Key)
		if f == nil {
			return nil, nil, fieldErr(join(path, n.Name), "unknown field")
		}
		in, err := c.field(p, e, f, n, path)
		if err != nil {
			return nil, nil, err
		}
		t.Instrs = append(t.Instrs, in)
	}
	return p, t, nil
}

func (c *compiler) field(p *Plan, e *dom.Entity, f *dom.Field, n *sel.Sel, path string) (Instr, error) {
	key := c.s.ToClient(e, f.Name)
	fpath := join(path, n.Name)
	switch f.Kind {
	case dom.KindRel:
		if !n.Nested {
			return Instr{}, fieldErr(fpath, "relationship requires a nested selection")
		}
		if err := c.noArgs(n, fpath); err != nil {
			return Instr{}, err
		}
		sub, tmpl, err := c.entity(c.s.Entity(f.Entity), n.Sub, fpath)
		if err != nil {
			return Instr{}, err
		}
		p.Load = append(p.Load, &LoadEntry{Field: f.Name, Sub: sub})
		return Instr{Key: key, Field: f.Name, Op: OpNested, Sub: tmpl, Many: f.Many}, nil
	case dom.KindCalc:
		args, err := c.args(e, f, n, fpath)
		if err != nil {
			return Instr{}, err
		}
		in, subPlan, err := c.loadValue(e, f.Type, n, fpath)
		if err != nil {
			return Instr{}, err
		}
		p.Load = append(p.Load, &LoadEntry{Field: f.Name, Args: args, Sub: subPlan})
		in.Key, in.Field = key, f.Name
		return in, nil
	case dom.KindAggr:
		if err := c.noArgs(n, fpath); err != nil {
			return Instr{}, err
		}
		in, subPlan, err := c.loadValue(e, f.Type, n, fpath)
		if err != nil {
			return Instr{}, err
		}
		p.Load = append(p.Load, &LoadEntry{Field: f.Name, Sub: subPlan})
		in.Key, in.Field = key, f.Name
		return in, nil
	}
	// plain attribute
	if err := c.noArgs(n, fpath); err != nil {
		return Instr{}, err
	}
	if ref, many := entityRef(f.Type); ref != "" {
		// embedded structures always go to the load list, the host store
		// may not materialize them eagerly
		if !n.Nested {
			return Instr{}, fieldErr(fpath, "embedded structure requires a nested selection")
		}
		sub, tmpl, err := c.entity(c.s.Entity(ref), n.Sub, fpath)
		if err != nil {
			return Instr{}, err
		}
		p.Load = append(p.Load, &LoadEntry{Field: f.Name, Sub: sub})
		return Instr{Key: key, Field: f.Name, Op: OpNested, Sub: tmpl, Many: many}, nil
	}
	p.Select = append(p.Select, f.Name)
	in, err := c.value(e, f.Type, n, fpath)
	if err != nil {
		return Instr{}, err
	}
	in.Key, in.Field = key, f.Name
	return in, nil
}

// loadValue compiles the value instruction for a loaded field and, when the
// result type resolves to an entity, its sub-plan.
func (c *compiler) loadValue(e *dom.Entity, t typ.Type, n *sel.Sel, path string) (Instr, *Plan, error) {
	if ref, many := entityRef(t); ref != "" {
		if !n.Nested {
			return Instr{}, nil, fieldErr(path, "requires a nested selection")
		}
		sub, tmpl, err := c.entity(c.s.Entity(ref), n.Sub, path)
		if err != nil {
			return Instr{}, nil, err
		}
		return Instr{Op: OpNested, Sub: tmpl, Many: many}, sub, nil
	}
	in, err := c.value(e, t, n, path)
	return in, nil, err
}

// value compiles the instruction projecting one value of type t. Nested
// selections recurse type-directed; leaves format the value whole when its
// type calls for normalization.
func (c *compiler) value(e *dom.Entity, t typ.Type, n *sel.Sel, path string) (Instr, error) {
	if !n.Nested {
		return c.leaf(e, t), nil
	}
	if !nestable(t) {
		// the nested form over a plain value only carries arguments,
		// as in a calculation invocation
		if len(n.Sub) == 0 {
			return c.leaf(e, t), nil
		}
		return Instr{}, fieldErr(path, "%s does not support a nested selection", t)
	}
	many := false
	if t.Kind == typ.KindArray {
		many = true
		t = *t.Elem
	}
	switch t.Kind {
	case typ.KindUnion:
		// every entry names a member; a leaf entry projects the active
		// member value whole
		in := Instr{Op: OpUnion, Many: many}
		for _, sub := range n.Sub {
			m := t.Member(sub.Key)
			if m == nil {
				return Instr{}, fieldErr(join(path, sub.Name), "unknown union member")
			}
			mi, err := c.value(e, m.Type, sub, join(path, sub.Name))
			if err != nil {
				return Instr{}, err
			}
			mi.Key = c.s.ToClient(e, m.Name)
			in.Members = append(in.Members, MemberInstr{Name: m.Name, Instr: mi})
		}
		return in, nil
	case typ.KindStruct:
		// inline structure value: compile the template against the
		// referenced entity, the data is embedded in the value itself
		_, tmpl, err := c.entity(c.s.Entity(t.Ref), n.Sub, path)
		if err != nil {
			return Instr{}, err
		}
		return Instr{Op: OpNested, Sub: tmpl, Many: many}, nil
	case typ.KindMap, typ.KindRecord:
		tmpl := &Template{}
		for _, sub := range n.Sub {
			spec := t.Field(sub.Key)
			if spec == nil {
				return Instr{}, fieldErr(join(path, sub.Name), "unknown key")
			}
			si, err := c.value(e, spec.Type, sub, join(path, sub.Name))
			if err != nil {
				return Instr{}, err
			}
			si.Key, si.Field = c.s.ToClient(e, spec.Name), spec.Name
			tmpl.Instrs = append(tmpl.Instrs, si)
		}
		return Instr{Op: OpNested, Sub: tmpl, Many: many}, nil
	case typ.KindTuple:
		tmpl := &Template{}
		for _, sub := range n.Sub {
			i := t.FieldIndex(sub.Key)
			if i < 0 {
				return Instr{}, fieldErr(join(path, sub.Name), "unknown key")
			}
			spec := t.Fields[i]
			si, err := c.value(e, spec.Type, sub, join(path, sub.Name))
			if err != nil {
				return Instr{}, err
			}
			si.Key, si.Field, si.Index, si.Pos = c.s.ToClient(e, spec.Name), spec.Name, i, true
			tmpl.Instrs = append(tmpl.Instrs, si)
		}
		return Instr{Op: OpNested, Sub: tmpl, Many: many}, nil
	}
	// opaque keys pass through verbatim and never fail
	return Instr{Op: OpNested, Sub: opaqueTemplate(n.Sub), Many: many}, nil
}

func (c *compiler) leaf(e *dom.Entity, t typ.Type) Instr {
	if needsFormat(t) {
		return Instr{Op: OpFormat, Type: t, Scope: e}
	}
	return Instr{Op: OpExtract}
}

func opaqueTemplate(ss sel.Sels) *Template {
	tmpl := &Template{}
	for _, n := range ss {
		in := Instr{Key: n.Name, Field: n.Name, Op: OpExtract}
		if n.Nested {
			in.Op = OpNested
			in.Sub = opaqueTemplate(n.Sub)
		}
		tmpl.Instrs = append(tmpl.Instrs, in)
	}
	return tmpl
}

// args validates and converts calculation arguments to internal form.
func (c *compiler) args(e *dom.Entity, f *dom.Field, n *sel.Sel, path string) (map[string]interface{}, error) {
	for k := range n.Args {
		if f.Arg(k) == nil {
			return nil, &sel.MalformedError{Path: path,
				Reason: fmt.Sprintf("unknown argument %s", k)}
		}
	}
	var res map[string]interface{}
	for _, spec := range f.Args {
		raw, ok := n.Args[spec.Name]
		if !ok {
			if spec.Required {
				return nil, &sel.MalformedError{Path: path,
					Reason: fmt.Sprintf("missing required argument %s", spec.Name)}
			}
			continue
		}
		val, err := c.f.ToInternal(e, spec.Type, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %s at %s", spec.Name, path)
		}
		if res == nil {
			res = make(map[string]interface{}, len(f.Args))
		}
		res[spec.Name] = val
	}
	return res, nil
}

func (c *compiler) noArgs(n *sel.Sel, path string) error {
	if len(n.Args) > 0 {
		return &sel.MalformedError{Path: path,
			Reason: "arguments on a field that is not a calculation"}
	}
	return nil
}

// entityRef reports the entity an attribute type embeds, if any.
func entityRef(t typ.Type) (ref string, many bool) {
	if t.Kind == typ.KindArray {
		if t.Elem.Kind == typ.KindStruct {
			return t.Elem.Ref, true
		}
		return "", false
	}
	if t.Kind == typ.KindStruct {
		return t.Ref, false
	}
	return "", false
}

// nestable reports whether t admits sub-selections, behind one level of
// array.
func nestable(t typ.Type) bool {
	if t.Kind == typ.KindArray {
		t = *t.Elem
	}
	switch t.Kind {
	case typ.KindUnion, typ.KindStruct, typ.KindMap,
		typ.KindRecord, typ.KindTuple, typ.KindOpaque:
		return true
	}
	return false
}

// needsFormat reports whether leaf values of t require type-directed output
// normalization. Plain scalars copy through as fetched. Opaque values
// format so the key-stringify option can reach them; without it the
// formatter passes them through unmodified.
func needsFormat(t typ.Type) bool {
	switch t.Kind {
	case typ.KindScalar:
		return false
	case typ.KindArray:
		return needsFormat(*t.Elem)
	}
	return true
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
