// Package naming converts field identifiers between the client-facing
// convention and the internal snake_case convention. Per-entity override
// tables always win over the mechanical conversion, so fields whose client
// name does not derive from the internal name stay addressable. The
// translator itself never fails; unresolvable names fall through the
// mechanical conversion so callers can report precise field-not-found
// errors against the schema.
package naming

import "github.com/iancoleman/strcase"

// Style selects the client-facing identifier convention. Internal
// identifiers are always snake_case.
type Style int

const (
	Camel  Style = iota // lowerCamelCase, the default
	Snake               // snake_case, client names equal internal names
	Pascal              // UpperCamelCase
	Kebab               // kebab-case
)

func (s Style) String() string {
	switch s {
	case Camel:
		return "camel"
	case Snake:
		return "snake"
	case Pascal:
		return "pascal"
	case Kebab:
		return "kebab"
	}
	return "unknown"
}

// ParseStyle returns the style named by s, or Camel and false when the
// name is not recognized.
func ParseStyle(s string) (Style, bool) {
	switch s {
	case "camel", "":
		return Camel, s == "camel"
	case "snake":
		return Snake, true
	case "pascal":
		return Pascal, true
	case "kebab":
		return Kebab, true
	}
	return Camel, false
}

// Overrides maps internal field names to fixed client names for one entity.
type Overrides map[string]string

// Translator converts identifiers in both directions for one configured
// style. The zero value translates camelCase clients.
type Translator struct {
	style Style
}

// New returns a translator for the given client style.
func New(style Style) Translator { return Translator{style: style} }

// Style reports the configured client style.
func (t Translator) Style() Style { return t.style }

// ToClient converts an internal identifier to its client form. An exact
// override match wins over the mechanical conversion.
func (t Translator) ToClient(internal string, ov Overrides) string {
	if c, ok := ov[internal]; ok {
		return c
	}
	return t.Format(internal)
}

// ToInternal converts a client identifier to its internal form. Override
// tables are consulted in reverse before the mechanical conversion.
func (t Translator) ToInternal(client string, ov Overrides) string {
	for in, c := range ov {
		if c == client {
			return in
		}
	}
	return strcase.ToSnake(client)
}

// Format applies the mechanical conversion only, ignoring overrides.
func (t Translator) Format(internal string) string {
	switch t.style {
	case Snake:
		return internal
	case Pascal:
		return strcase.ToCamel(internal)
	case Kebab:
		return strcase.ToKebab(internal)
	}
	return strcase.ToLowerCamel(internal)
}
