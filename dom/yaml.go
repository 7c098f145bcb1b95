package dom

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lenslib/lens/naming"
	"github.com/lenslib/lens/typ"
)

// ParseSchema loads a schema from a YAML document using the default codec
// registry and validates it.
func ParseSchema(data []byte) (*Schema, error) {
	return ParseSchemaWith(data, typ.Codecs)
}

// ParseSchemaWith loads a schema from a YAML document resolving custom
// scalar names against the given codec registry.
func ParseSchemaWith(data []byte, codecs map[string]typ.Codec) (*Schema, error) {
	var doc yamlSchema
	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, errors.Wrap(err, "parse schema document")
	}
	style := naming.Camel
	if doc.Naming != "" {
		var ok bool
		style, ok = naming.ParseStyle(doc.Naming)
		if !ok {
			return nil, errors.Errorf("unknown naming style %q", doc.Naming)
		}
	}
	s := &Schema{Name: doc.Name, Naming: naming.New(style), Codecs: codecs}
	for _, ye := range doc.Entities {
		e := &Entity{Name: ye.Name, Table: ye.Table, Overrides: ye.Overrides}
		for _, yf := range ye.Fields {
			f, err := yf.field(codecs)
			if err != nil {
				return nil, errors.Wrapf(err, "entity %s", ye.Name)
			}
			e.Fields = append(e.Fields, f)
		}
		s.Entities = append(s.Entities, e)
	}
	err = s.Validate()
	if err != nil {
		return nil, err
	}
	return s, nil
}

type yamlSchema struct {
	Name     string       `yaml:"name"`
	Naming   string       `yaml:"naming"`
	Entities []yamlEntity `yaml:"entities"`
}

type yamlEntity struct {
	Name      string            `yaml:"name"`
	Table     string            `yaml:"table"`
	Overrides map[string]string `yaml:"overrides"`
	Fields    []yamlField       `yaml:"fields"`
}

type yamlField struct {
	Name string    `yaml:"name"`
	Type *yamlType `yaml:"type"`
	Rel  string    `yaml:"rel"`
	Many bool      `yaml:"many"`
	Calc bool      `yaml:"calc"`
	Args []yamlArg `yaml:"args"`
	Aggr string    `yaml:"aggr"`
	Path string    `yaml:"path"`
	Of   string    `yaml:"of"`
}

type yamlArg struct {
	Name     string    `yaml:"name"`
	Type     *yamlType `yaml:"type"`
	Required bool      `yaml:"required"`
}

func (yf *yamlField) field(codecs map[string]typ.Codec) (*Field, error) {
	switch {
	case yf.Rel != "":
		if yf.Many {
			return ToMany(yf.Name, yf.Rel), nil
		}
		return ToOne(yf.Name, yf.Rel), nil
	case yf.Aggr != "":
		kind, ok := ParseAggr(yf.Aggr)
		if !ok {
			return nil, errors.Errorf("field %s: unknown aggregate %q", yf.Name, yf.Aggr)
		}
		f := &Field{Name: yf.Name, Kind: KindAggr, Aggr: kind, Path: yf.Path, Of: yf.Of}
		switch kind {
		case AggrCount:
			f.Type = typ.Int
		case AggrExists:
			f.Type = typ.Bool
		}
		if yf.Type != nil {
			t, err := yf.Type.resolve(codecs)
			if err != nil {
				return nil, errors.Wrapf(err, "field %s", yf.Name)
			}
			f.Type = t
		}
		return f, nil
	}
	if yf.Type == nil {
		return nil, errors.Errorf("field %s: missing type", yf.Name)
	}
	t, err := yf.Type.resolve(codecs)
	if err != nil {
		return nil, errors.Wrapf(err, "field %s", yf.Name)
	}
	if !yf.Calc {
		if len(yf.Args) > 0 {
			return nil, errors.Errorf("field %s: args on a plain attribute", yf.Name)
		}
		return Attr(yf.Name, t), nil
	}
	f := Calc(yf.Name, t)
	for _, ya := range yf.Args {
		at := typ.Any
		if ya.Type != nil {
			at, err = ya.Type.resolve(codecs)
			if err != nil {
				return nil, errors.Wrapf(err, "field %s arg %s", yf.Name, ya.Name)
			}
		}
		f.Args = append(f.Args, Arg{Name: ya.Name, Type: at, Required: ya.Required})
	}
	return f, nil
}

// yamlType accepts either a plain scalar name or a mapping with exactly one
// of the composite forms. Type resolution happens in a second phase so the
// codec registry does not need to be ambient during decoding.
type yamlType struct {
	name   string
	array  *yamlType
	strct  string
	custom string
	opaque bool
	union  []yamlMember
	fields []yamlSpec
	kind   typ.Kind
}

type yamlMember struct {
	Name     string    `yaml:"name"`
	Type     *yamlType `yaml:"type"`
	Tag      string    `yaml:"tag"`
	TagValue string    `yaml:"tag_value"`
}

type yamlSpec struct {
	Name string    `yaml:"name"`
	Type *yamlType `yaml:"type"`
}

func (t *yamlType) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		return n.Decode(&t.name)
	}
	var m struct {
		Array  *yamlType    `yaml:"array"`
		Union  []yamlMember `yaml:"union"`
		Map    []yamlSpec   `yaml:"map"`
		Tuple  []yamlSpec   `yaml:"tuple"`
		Record []yamlSpec   `yaml:"record"`
		Struct string       `yaml:"struct"`
		Custom string       `yaml:"custom"`
	}
	err := n.Decode(&m)
	if err != nil {
		return err
	}
	switch {
	case m.Array != nil:
		t.kind, t.array = typ.KindArray, m.Array
	case len(m.Union) > 0:
		t.kind, t.union = typ.KindUnion, m.Union
	case len(m.Map) > 0:
		t.kind, t.fields = typ.KindMap, m.Map
	case len(m.Tuple) > 0:
		t.kind, t.fields = typ.KindTuple, m.Tuple
	case len(m.Record) > 0:
		t.kind, t.fields = typ.KindRecord, m.Record
	case m.Struct != "":
		t.kind, t.strct = typ.KindStruct, m.Struct
	case m.Custom != "":
		t.kind, t.custom = typ.KindCustom, m.Custom
	default:
		return errors.New("empty type mapping")
	}
	return nil
}

func (t *yamlType) resolve(codecs map[string]typ.Codec) (typ.Type, error) {
	switch t.kind {
	case typ.KindArray:
		el, err := t.array.resolve(codecs)
		if err != nil {
			return typ.Type{}, err
		}
		return typ.Array(el), nil
	case typ.KindUnion:
		members := make([]typ.Member, 0, len(t.union))
		for _, ym := range t.union {
			mt := typ.Any
			if ym.Type != nil {
				var err error
				mt, err = ym.Type.resolve(codecs)
				if err != nil {
					return typ.Type{}, errors.Wrapf(err, "member %s", ym.Name)
				}
			}
			members = append(members, typ.Member{
				Name: ym.Name, Type: mt, Tag: ym.Tag, TagValue: ym.TagValue,
			})
		}
		return typ.Union(members...), nil
	case typ.KindMap, typ.KindTuple, typ.KindRecord:
		fields := make([]typ.FieldSpec, 0, len(t.fields))
		for _, ys := range t.fields {
			ft := typ.Any
			if ys.Type != nil {
				var err error
				ft, err = ys.Type.resolve(codecs)
				if err != nil {
					return typ.Type{}, errors.Wrapf(err, "key %s", ys.Name)
				}
			}
			fields = append(fields, typ.FieldSpec{Name: ys.Name, Type: ft})
		}
		return typ.Type{Kind: t.kind, Fields: fields}, nil
	case typ.KindStruct:
		return typ.Struct(t.strct), nil
	case typ.KindCustom:
		c, ok := codecs[t.custom]
		if !ok {
			return typ.Type{}, errors.Errorf("unknown codec %q", t.custom)
		}
		return typ.Custom(c), nil
	}
	return resolveName(t.name, codecs)
}

func resolveName(name string, codecs map[string]typ.Codec) (typ.Type, error) {
	switch name {
	case "any":
		return typ.Any, nil
	case "string":
		return typ.String, nil
	case "int":
		return typ.Int, nil
	case "float":
		return typ.Float, nil
	case "bool":
		return typ.Bool, nil
	case "opaque":
		return typ.Opaque, nil
	}
	if c, ok := codecs[name]; ok {
		return typ.Custom(c), nil
	}
	return typ.Type{}, errors.Errorf("unknown type %q", name)
}
