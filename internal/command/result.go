package command

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ResultKind identifies a CommandResult variant. The result kind for a
// given Kind of command is fixed — see the table in spec.md §4.2 — and
// downcasting is forbidden: callers switch on ResultKind, never on a
// dynamic/opaque payload.
type ResultKind int

const (
	ResultStr ResultKind = iota
	ResultInt
	ResultBool
	ResultNil
	ResultErr
)

// Result is a tagged CommandResult. At most one of the Str/Int/Bool/Err
// fields is meaningful, selected by Kind; a Nil result carries none.
type Result struct {
	Kind ResultKind
	Str  string
	Int  uint64
	Bool bool
	Err  string
}

// StrResult builds a Str(s) result.
func StrResult(s string) Result { return Result{Kind: ResultStr, Str: s} }

// IntResult builds an Int(n) result.
func IntResult(n uint64) Result { return Result{Kind: ResultInt, Int: n} }

// BoolResult builds a Bool(b) result.
func BoolResult(b bool) Result { return Result{Kind: ResultBool, Bool: b} }

// NilResult builds the Nil result.
func NilResult() Result { return Result{Kind: ResultNil} }

// ErrResult builds an Err(message) result.
func ErrResult(message string) Result { return Result{Kind: ResultErr, Err: message} }

// Render renders the result the way the operator shell displays it,
// per the table in spec.md §4.2.
func (r Result) Render() string {
	switch r.Kind {
	case ResultStr:
		return r.Str
	case ResultInt:
		return strconv.FormatUint(r.Int, 10)
	case ResultBool:
		if r.Bool {
			return "true"
		}
		return "false"
	case ResultNil:
		return "nil"
	case ResultErr:
		return "Error: " + r.Err
	default:
		return "Unexpected response"
	}
}

type wireResult struct {
	String *string `json:"String,omitempty"`
	Int    *uint64 `json:"Int,omitempty"`
	Bool   *bool   `json:"Bool,omitempty"`
	Nil    *struct{} `json:"Nil,omitempty"`
	Error  *string `json:"Error,omitempty"`
}

// MarshalJSON renders Result in the same externally-tagged shape used for
// Command, so the two can share one wire format.
func (r Result) MarshalJSON() ([]byte, error) {
	var w wireResult
	switch r.Kind {
	case ResultStr:
		w.String = &r.Str
	case ResultInt:
		w.Int = &r.Int
	case ResultBool:
		w.Bool = &r.Bool
	case ResultNil:
		w.Nil = &struct{}{}
	case ResultErr:
		w.Error = &r.Err
	default:
		return nil, fmt.Errorf("result: unknown kind %v", r.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the externally-tagged result shape.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("result: %w", err)
	}
	switch {
	case w.String != nil:
		*r = Result{Kind: ResultStr, Str: *w.String}
	case w.Int != nil:
		*r = Result{Kind: ResultInt, Int: *w.Int}
	case w.Bool != nil:
		*r = Result{Kind: ResultBool, Bool: *w.Bool}
	case w.Nil != nil:
		*r = Result{Kind: ResultNil}
	case w.Error != nil:
		*r = Result{Kind: ResultErr, Err: *w.Error}
	default:
		return fmt.Errorf("result: unrecognized wire shape %s", string(data))
	}
	return nil
}
