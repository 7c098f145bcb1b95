// Package pol provides a simple field visibility policy for data stores.
// Stores consult the policy while materializing records and replace denied
// fields with the forbidden sentinel, so clients can tell "not visible"
// from "not requested".
package pol

// Policy decides whether a field of an entity is visible to the caller.
type Policy interface {
	Field(entity, field string) bool
}

// Rules implements a list based policy with a default verdict and per
// entity exceptions. Deny wins over allow.
type Rules struct {
	def  bool
	ents map[string]*rules
}

// NewRules returns a policy falling back to the default verdict def.
func NewRules(def bool) *Rules {
	return &Rules{def: def, ents: make(map[string]*rules)}
}

// Allow marks fields of entity visible.
func (p *Rules) Allow(entity string, fields ...string) *Rules {
	r := p.rules(entity)
	r.allow = append(r.allow, fields...)
	return p
}

// Deny marks fields of entity invisible.
func (p *Rules) Deny(entity string, fields ...string) *Rules {
	r := p.rules(entity)
	r.deny = append(r.deny, fields...)
	return p
}

func (p *Rules) Field(entity, field string) bool {
	r := p.ents[entity]
	if r == nil {
		return p.def
	}
	if has(r.deny, field) {
		return false
	}
	if has(r.allow, field) {
		return true
	}
	return p.def
}

func (p *Rules) rules(entity string) (r *rules) {
	if r = p.ents[entity]; r == nil {
		r = &rules{}
		p.ents[entity] = r
	}
	return r
}

type rules struct {
	allow []string
	deny  []string
}

func has(list []string, key string) bool {
	for _, k := range list {
		if k == key {
			return true
		}
	}
	return false
}
