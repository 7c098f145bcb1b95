// Package shape converts values between their client form and their
// internal form, directed by the structural type. Conversion is recursive
// and self-describing: the type of every child value is passed explicitly
// and never derived from an ambient parent.
package shape

import (
	"fmt"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/typ"
)

// Formatter converts values against one schema. The zero value is not
// usable, Schema must be set.
type Formatter struct {
	Schema *dom.Schema

	// StringifyMapKeys renders non-string opaque map keys as strings on
	// output. Off by default, opaque maps pass through unmodified.
	StringifyMapKeys bool
}

// ValueError describes a value that does not fit its declared type.
type ValueError struct {
	Type   typ.Type
	Val    interface{}
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("value does not fit %s: %s", e.Type, e.Reason)
}

// UnionError describes failed union input discrimination: either no member
// accepts the value or more than one does and no discriminator tag decides.
type UnionError struct {
	Ambiguous  bool
	Candidates []string
}

func (e *UnionError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("ambiguous union input, candidates %v", e.Candidates)
	}
	return "no matching union member"
}

func valErr(t typ.Type, v interface{}, format string, args ...interface{}) error {
	return &ValueError{Type: t, Val: v, Reason: fmt.Sprintf(format, args...)}
}

// ToClient converts an internal value of type t to its client form. The
// entity scopes key translation; it switches at embedded structure
// boundaries and stays put inside typed composites.
func (f Formatter) ToClient(e *dom.Entity, t typ.Type, v interface{}) (interface{}, error) {
	if v == nil || v == dom.NotLoaded || v == dom.Forbidden {
		return v, nil
	}
	switch t.Kind {
	case typ.KindScalar:
		return f.scalar(t, v)
	case typ.KindCustom:
		out, err := t.Codec.Encode(v)
		if err != nil {
			return nil, valErr(t, v, "%s", err)
		}
		return out, nil
	case typ.KindOpaque:
		if f.StringifyMapKeys {
			return stringifyKeys(v), nil
		}
		return v, nil
	case typ.KindArray:
		list, ok := v.([]interface{})
		if !ok {
			return nil, valErr(t, v, "expected a list, got %T", v)
		}
		res := make([]interface{}, len(list))
		for i, el := range list {
			out, err := f.ToClient(e, *t.Elem, el)
			if err != nil {
				return nil, err
			}
			res[i] = out
		}
		return res, nil
	case typ.KindStruct:
		return f.structToClient(t, v)
	case typ.KindUnion:
		return f.unionToClient(e, t, v)
	case typ.KindMap, typ.KindRecord:
		return f.fieldsToClient(e, t, v)
	case typ.KindTuple:
		return f.tupleToClient(e, t, v)
	}
	return nil, valErr(t, v, "unsupported type")
}

// ToInternal converts a client value of type t to its internal form.
func (f Formatter) ToInternal(e *dom.Entity, t typ.Type, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t.Kind {
	case typ.KindScalar:
		return f.scalar(t, v)
	case typ.KindCustom:
		out, err := t.Codec.Decode(v)
		if err != nil {
			return nil, valErr(t, v, "%s", err)
		}
		return out, nil
	case typ.KindOpaque:
		return v, nil
	case typ.KindArray:
		list, ok := v.([]interface{})
		if !ok {
			return nil, valErr(t, v, "expected a list, got %T", v)
		}
		res := make([]interface{}, len(list))
		for i, el := range list {
			in, err := f.ToInternal(e, *t.Elem, el)
			if err != nil {
				return nil, err
			}
			res[i] = in
		}
		return res, nil
	case typ.KindStruct:
		return f.structToInternal(t, v)
	case typ.KindUnion:
		return f.unionToInternal(e, t, v)
	case typ.KindMap, typ.KindRecord:
		return f.fieldsToInternal(e, t, v)
	case typ.KindTuple:
		return f.tupleToInternal(e, t, v)
	}
	return nil, valErr(t, v, "unsupported type")
}

// scalar normalizes plain scalar values the same way in both directions.
func (f Formatter) scalar(t typ.Type, v interface{}) (interface{}, error) {
	switch t.Scalar {
	case typ.ScalarAny:
		return v, nil
	case typ.ScalarString:
		s, ok := v.(string)
		if !ok {
			return nil, valErr(t, v, "expected a string, got %T", v)
		}
		return s, nil
	case typ.ScalarBool:
		b, ok := v.(bool)
		if !ok {
			return nil, valErr(t, v, "expected a bool, got %T", v)
		}
		return b, nil
	case typ.ScalarInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != float64(int64(n)) {
				return nil, valErr(t, v, "expected an integer, got %v", n)
			}
			return int64(n), nil
		}
		return nil, valErr(t, v, "expected an integer, got %T", v)
	case typ.ScalarFloat:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		}
		return nil, valErr(t, v, "expected a number, got %T", v)
	}
	return nil, valErr(t, v, "unsupported scalar")
}

func (f Formatter) structToClient(t typ.Type, v interface{}) (interface{}, error) {
	rec, ok := v.(map[string]interface{})
	if !ok {
		return nil, valErr(t, v, "expected a record, got %T", v)
	}
	ref := f.Schema.Entity(t.Ref)
	if ref == nil {
		return nil, valErr(t, v, "unknown entity %s", t.Ref)
	}
	res := make(map[string]interface{}, len(rec))
	for key, val := range rec {
		rf := ref.Field(key)
		if rf == nil {
			continue
		}
		if val == dom.NotLoaded {
			continue
		}
		out := val
		if val != dom.Forbidden {
			var err error
			out, err = f.ToClient(ref, rf.Type, val)
			if err != nil {
				return nil, err
			}
		} else {
			out = nil
		}
		res[f.Schema.ToClient(ref, key)] = out
	}
	return res, nil
}

func (f Formatter) structToInternal(t typ.Type, v interface{}) (interface{}, error) {
	rec, ok := v.(map[string]interface{})
	if !ok {
		return nil, valErr(t, v, "expected a record, got %T", v)
	}
	ref := f.Schema.Entity(t.Ref)
	if ref == nil {
		return nil, valErr(t, v, "unknown entity %s", t.Ref)
	}
	res := make(map[string]interface{}, len(rec))
	for key, val := range rec {
		ikey := f.Schema.ToInternal(ref, key)
		rf := ref.Field(ikey)
		if rf == nil {
			return nil, valErr(t, v, "unknown key %s", key)
		}
		in, err := f.ToInternal(ref, rf.Type, val)
		if err != nil {
			return nil, err
		}
		res[ikey] = in
	}
	return res, nil
}

func (f Formatter) fieldsToClient(e *dom.Entity, t typ.Type, v interface{}) (interface{}, error) {
	rec, ok := v.(map[string]interface{})
	if !ok {
		return nil, valErr(t, v, "expected a map, got %T", v)
	}
	res := make(map[string]interface{}, len(rec))
	for _, spec := range t.Fields {
		val, ok := rec[spec.Name]
		if !ok {
			continue
		}
		out, err := f.ToClient(e, spec.Type, val)
		if err != nil {
			return nil, err
		}
		res[f.Schema.ToClient(e, spec.Name)] = out
	}
	return res, nil
}

func (f Formatter) fieldsToInternal(e *dom.Entity, t typ.Type, v interface{}) (interface{}, error) {
	rec, ok := v.(map[string]interface{})
	if !ok {
		return nil, valErr(t, v, "expected a map, got %T", v)
	}
	res := make(map[string]interface{}, len(rec))
	for key, val := range rec {
		ikey := f.Schema.ToInternal(e, key)
		spec := t.Field(ikey)
		if spec == nil {
			return nil, valErr(t, v, "unknown key %s", key)
		}
		in, err := f.ToInternal(e, spec.Type, val)
		if err != nil {
			return nil, err
		}
		res[ikey] = in
	}
	return res, nil
}

// tupleToClient renders the positional internal form as a map keyed by the
// client names of the tuple fields.
func (f Formatter) tupleToClient(e *dom.Entity, t typ.Type, v interface{}) (interface{}, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, valErr(t, v, "expected a positional list, got %T", v)
	}
	if len(list) != len(t.Fields) {
		return nil, valErr(t, v, "expected %d elements, got %d", len(t.Fields), len(list))
	}
	res := make(map[string]interface{}, len(list))
	for i, spec := range t.Fields {
		out, err := f.ToClient(e, spec.Type, list[i])
		if err != nil {
			return nil, err
		}
		res[f.Schema.ToClient(e, spec.Name)] = out
	}
	return res, nil
}

// tupleToInternal accepts either the named map form or an already
// positional list and returns the positional internal form.
func (f Formatter) tupleToInternal(e *dom.Entity, t typ.Type, v interface{}) (interface{}, error) {
	if list, ok := v.([]interface{}); ok {
		if len(list) != len(t.Fields) {
			return nil, valErr(t, v, "expected %d elements, got %d", len(t.Fields), len(list))
		}
		res := make([]interface{}, len(list))
		for i, spec := range t.Fields {
			in, err := f.ToInternal(e, spec.Type, list[i])
			if err != nil {
				return nil, err
			}
			res[i] = in
		}
		return res, nil
	}
	rec, ok := v.(map[string]interface{})
	if !ok {
		return nil, valErr(t, v, "expected a map or positional list, got %T", v)
	}
	res := make([]interface{}, len(t.Fields))
	seen := 0
	for key, val := range rec {
		ikey := f.Schema.ToInternal(e, key)
		i := t.FieldIndex(ikey)
		if i < 0 {
			return nil, valErr(t, v, "unknown key %s", key)
		}
		in, err := f.ToInternal(e, t.Fields[i].Type, val)
		if err != nil {
			return nil, err
		}
		res[i] = in
		seen++
	}
	if seen != len(t.Fields) {
		return nil, valErr(t, v, "expected %d elements, got %d", len(t.Fields), seen)
	}
	return res, nil
}

// unionToClient renders the single-key internal form under the client name
// of the active member.
func (f Formatter) unionToClient(e *dom.Entity, t typ.Type, v interface{}) (interface{}, error) {
	rec, ok := v.(map[string]interface{})
	if !ok || len(rec) != 1 {
		return nil, valErr(t, v, "expected a single-key member map, got %T", v)
	}
	for key, val := range rec {
		m := t.Member(key)
		if m == nil {
			return nil, valErr(t, v, "unknown member %s", key)
		}
		out, err := f.ToClient(e, m.Type, val)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{f.Schema.ToClient(e, key): out}, nil
	}
	return nil, valErr(t, v, "empty member map")
}

// unionToInternal discriminates the client value: an explicit tag match
// wins, otherwise exactly one member must structurally accept the value.
func (f Formatter) unionToInternal(e *dom.Entity, t typ.Type, v interface{}) (interface{}, error) {
	if rec, ok := v.(map[string]interface{}); ok {
		m, val, err := f.matchTag(e, t, rec)
		if err != nil {
			return nil, err
		}
		if m != nil {
			in, err := f.ToInternal(e, m.Type, val)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{m.Name: in}, nil
		}
	}
	var winner *typ.Member
	var converted interface{}
	var candidates []string
	for i := range t.Members {
		m := &t.Members[i]
		in, err := f.ToInternal(e, m.Type, v)
		if err != nil {
			continue
		}
		candidates = append(candidates, m.Name)
		winner, converted = m, in
	}
	switch len(candidates) {
	case 0:
		return nil, &UnionError{}
	case 1:
		return map[string]interface{}{winner.Name: converted}, nil
	}
	return nil, &UnionError{Ambiguous: true, Candidates: candidates}
}

// matchTag finds the member whose discriminator tag matches a key of the
// input map. The tag key is removed from the member value unless the member
// type declares it.
func (f Formatter) matchTag(e *dom.Entity, t typ.Type, rec map[string]interface{}) (*typ.Member, interface{}, error) {
	for i := range t.Members {
		m := &t.Members[i]
		if m.Tag == "" {
			continue
		}
		val, ok := tagValue(f, e, rec, m.Tag)
		if !ok {
			continue
		}
		if fmt.Sprintf("%v", val) != m.TagValue {
			continue
		}
		if m.Type.Kind == typ.KindRecord || m.Type.Kind == typ.KindMap {
			if m.Type.Field(m.Tag) != nil {
				return m, rec, nil
			}
			trimmed := make(map[string]interface{}, len(rec))
			for k, v := range rec {
				if f.Schema.ToInternal(e, k) == m.Tag {
					continue
				}
				trimmed[k] = v
			}
			return m, trimmed, nil
		}
		return m, rec, nil
	}
	return nil, nil, nil
}

func tagValue(f Formatter, e *dom.Entity, rec map[string]interface{}, tag string) (interface{}, bool) {
	for k, v := range rec {
		if f.Schema.ToInternal(e, k) == tag {
			return v, true
		}
	}
	return nil, false
}

// stringifyKeys renders non-string map keys as strings, recursively. Only
// used for opaque output when requested.
func stringifyKeys(v interface{}) interface{} {
	switch m := v.(type) {
	case map[string]interface{}:
		res := make(map[string]interface{}, len(m))
		for k, val := range m {
			res[k] = stringifyKeys(val)
		}
		return res
	case map[interface{}]interface{}:
		res := make(map[string]interface{}, len(m))
		for k, val := range m {
			res[fmt.Sprintf("%v", k)] = stringifyKeys(val)
		}
		return res
	case []interface{}:
		res := make([]interface{}, len(m))
		for i, el := range m {
			res[i] = stringifyKeys(el)
		}
		return res
	}
	return v
}
