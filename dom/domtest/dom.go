// Package domtest has default schemas and datasets for testing.
package domtest

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/fetch"
)

// Fixture bundles a validated schema with record data per entity.
type Fixture struct {
	Schema *dom.Schema
	Data   map[string][]fetch.Record
}

// New parses the raw schema document and the fixture dataset.
func New(raw, fix string) (*Fixture, error) {
	res := &Fixture{}
	s, err := dom.ParseSchema([]byte(raw))
	if err != nil {
		return nil, errors.Wrap(err, "schema")
	}
	res.Schema = s
	err = yaml.Unmarshal([]byte(fix), &res.Data)
	if err != nil {
		return nil, errors.Wrap(err, "fixture")
	}
	return res, nil
}

func Must(f *Fixture, err error) *Fixture {
	if err != nil {
		panic(err)
	}
	return f
}

// Records returns the dataset for one entity.
func (f *Fixture) Records(entity string) []fetch.Record {
	return f.Data[entity]
}
