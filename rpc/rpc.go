// Package rpc is the outer call layer. It parses one client request,
// compiles and caches the extraction template for its selection shape,
// fetches through an executor and projects the result into the data reply
// envelope. Failures are translated into a small stable error taxonomy
// before they reach the client.
package rpc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/fetch"
	"github.com/lenslib/lens/log"
	"github.com/lenslib/lens/plan"
	"github.com/lenslib/lens/proj"
	"github.com/lenslib/lens/sel"
	"github.com/lenslib/lens/shape"
)

// Ord orders results by a client field key.
type Ord struct {
	Key  string `json:"key"`
	Desc bool   `json:"desc,omitempty"`
}

// Request is one client call. All field identifiers use the client naming
// convention; filter values use client value forms. An empty action means
// one. Cursors imply keyset paging.
type Request struct {
	Entity string                 `json:"entity"`
	Action string                 `json:"action,omitempty"`
	Sel    []interface{}          `json:"sel,omitempty"`
	Filter map[string]interface{} `json:"filter,omitempty"`
	Ord    []Ord                  `json:"ord,omitempty"`
	Limit  int64                  `json:"limit,omitempty"`
	Offset int64                  `json:"offset,omitempty"`
	After  string                 `json:"after,omitempty"`
	Before string                 `json:"before,omitempty"`
	Keyset bool                   `json:"keyset,omitempty"`
}

// Response wraps the projected result of a successful call.
type Response struct {
	Data interface{} `json:"data"`
}

// Engine answers calls against one schema and one executor. Compiled plans
// and templates are cached per selection shape; templates are immutable, so
// one instance serves concurrent calls. A nil Log falls back to log.Root.
type Engine struct {
	Schema *dom.Schema
	Exec   fetch.Executor
	Log    log.Logger

	cache sync.Map
}

// New returns an engine using the root logger.
func New(s *dom.Schema, x fetch.Executor) *Engine {
	return &Engine{Schema: s, Exec: x, Log: log.Root}
}

// Call answers one request. The returned error is always a *Error carrying
// a taxonomy code; internal detail is logged, not returned.
func (e *Engine) Call(ctx context.Context, req *Request) (*Response, error) {
	res, err := e.call(ctx, req)
	if err != nil {
		return nil, e.classify(req, err)
	}
	return res, nil
}

func (e *Engine) call(ctx context.Context, req *Request) (*Response, error) {
	ent := e.Schema.Entity(req.Entity)
	if ent == nil {
		return nil, &Error{Code: CodeInvalidField, Path: req.Entity,
			Msg: "unknown entity"}
	}
	mode, err := parseAction(req.Action)
	if err != nil {
		return nil, err
	}
	c, err := e.compiled(ent, mode.String(), req.Sel)
	if err != nil {
		return nil, err
	}
	fr := &fetch.Request{Entity: ent.Name, Mode: mode, Plan: c.plan}
	fr.Filter, err = e.filter(ent, req.Filter)
	if err != nil {
		return nil, err
	}
	fr.Ord, err = e.ord(ent, req.Ord)
	if err != nil {
		return nil, err
	}
	if mode == fetch.ModePage {
		fr.Page = fetch.PageReq{
			Limit: req.Limit, Offset: req.Offset,
			After: req.After, Before: req.Before,
			Keyset: req.Keyset || req.After != "" || req.Before != "",
		}
	}
	res, err := e.Exec.Exec(ctx, fr)
	if err != nil {
		return nil, err
	}
	pr := proj.New(e.Schema)
	var data interface{}
	switch mode {
	case fetch.ModeOne:
		data, err = pr.Record(c.tmpl, res.One)
	case fetch.ModeList:
		data, err = pr.List(c.tmpl, res.Many)
	case fetch.ModePage:
		data, err = pr.Page(c.tmpl, res.Page)
	}
	if err != nil {
		return nil, err
	}
	return &Response{Data: data}, nil
}

func parseAction(s string) (fetch.Mode, error) {
	switch s {
	case "", "one":
		return fetch.ModeOne, nil
	case "list":
		return fetch.ModeList, nil
	case "page":
		return fetch.ModePage, nil
	}
	return 0, &Error{Code: CodeMalformedSelection,
		Msg: fmt.Sprintf("unknown action %q", s)}
}

type compiled struct {
	plan *plan.Plan
	tmpl *plan.Template
}

// compiled returns the plan and template for the normalized selection
// shape, compiling on first use. Parsing always runs; cache hits skip
// compilation.
func (e *Engine) compiled(ent *dom.Entity, action string, raw []interface{}) (*compiled, error) {
	ss, err := sel.Parse(e.Schema, ent, raw)
	if err != nil {
		return nil, err
	}
	key := sel.Fingerprint(ent.Name, action, ss)
	if v, hit := e.cache.Load(key); hit {
		return v.(*compiled), nil
	}
	p, tmpl, err := plan.Compile(e.Schema, ent, ss)
	if err != nil {
		return nil, err
	}
	c := &compiled{plan: p, tmpl: tmpl}
	e.cache.Store(key, c)
	return c, nil
}

// filter translates client filter keys and values to internal form.
// Attribute values convert by their declared type; foreign key columns of
// to-one relationships pass through as sent.
func (e *Engine) filter(ent *dom.Entity, raw map[string]interface{}) (fetch.Filter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	f := shape.Formatter{Schema: e.Schema}
	out := make(fetch.Filter, len(raw))
	for key, v := range raw {
		name := e.Schema.ToInternal(ent, key)
		fl := ent.Field(name)
		if fl == nil {
			if rel := strings.TrimSuffix(name, "_id"); rel != name {
				if rf := ent.Field(rel); rf != nil && rf.Kind == dom.KindRel && !rf.Many {
					out[name] = v
					continue
				}
			}
			return nil, &Error{Code: CodeInvalidField, Path: key,
				Msg: "unknown filter field"}
		}
		if fl.Kind != dom.KindAttr {
			return nil, &Error{Code: CodeInvalidField, Path: key,
				Msg: "field cannot be filtered"}
		}
		iv, err := f.ToInternal(ent, fl.Type, v)
		if err != nil {
			var ve *shape.ValueError
			if errors.As(err, &ve) {
				return nil, &Error{Code: CodeInvalidField, Path: key,
					Msg: ve.Reason}
			}
			return nil, err
		}
		out[name] = iv
	}
	return out, nil
}

// ord translates client order keys. Only attributes order result sets.
func (e *Engine) ord(ent *dom.Entity, ords []Ord) ([]fetch.Ord, error) {
	if len(ords) == 0 {
		return nil, nil
	}
	out := make([]fetch.Ord, 0, len(ords))
	for _, o := range ords {
		name := e.Schema.ToInternal(ent, o.Key)
		fl := ent.Field(name)
		if fl == nil || fl.Kind != dom.KindAttr {
			return nil, &Error{Code: CodeInvalidField, Path: o.Key,
				Msg: "cannot order by this field"}
		}
		out = append(out, fetch.Ord{Key: name, Desc: o.Desc})
	}
	return out, nil
}

func (e *Engine) log() log.Logger {
	if e.Log != nil {
		return e.Log
	}
	return log.Root
}
