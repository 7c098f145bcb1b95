package rpc

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lenslib/lens/plan"
	"github.com/lenslib/lens/sel"
	"github.com/lenslib/lens/shape"
)

// Error codes returned to clients. Compile and input errors map to one of
// the specific codes; everything else is reported as internal.
const (
	CodeInvalidField       = "invalid_field"
	CodeMalformedSelection = "malformed_selection"
	CodeAmbiguousUnion     = "ambiguous_union_input"
	CodeNoUnionMember      = "no_matching_union_member"
	CodeInternal           = "internal"
)

// Error is the client-facing failure shape. Path locates field errors as a
// dotted path of client names. ID is the correlation id of an internal
// error; the underlying detail is logged server-side and never echoed.
type Error struct {
	Code string `json:"code"`
	Path string `json:"path,omitempty"`
	Msg  string `json:"msg,omitempty"`
	ID   string `json:"id,omitempty"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

// classify translates an engine failure into the client error taxonomy.
// Unclassifiable errors get a fresh correlation id and are logged with it.
func (e *Engine) classify(req *Request, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	var mal *sel.MalformedError
	if errors.As(err, &mal) {
		return &Error{Code: CodeMalformedSelection, Path: mal.Path, Msg: mal.Reason}
	}
	var fe *plan.FieldError
	if errors.As(err, &fe) {
		return &Error{Code: CodeInvalidField, Path: fe.Path, Msg: fe.Reason}
	}
	var ue *shape.UnionError
	if errors.As(err, &ue) {
		if ue.Ambiguous {
			return &Error{Code: CodeAmbiguousUnion, Msg: ue.Error()}
		}
		return &Error{Code: CodeNoUnionMember, Msg: ue.Error()}
	}
	var ve *shape.ValueError
	if errors.As(err, &ve) {
		return &Error{Code: CodeMalformedSelection, Msg: ve.Error()}
	}
	id := uuid.NewString()
	e.log().Error("call failed", "id", id, "entity", req.Entity,
		"action", req.Action, "err", err)
	return &Error{Code: CodeInternal, Msg: "internal error", ID: id}
}
