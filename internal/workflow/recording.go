// Package workflow models a recorded browser-automation script: an
// ordered list of condition/action pairs. The browser interpreter that
// executes recordings addresses two slots positionally rather than by
// named fields: the robot's target URL is the first argument of the
// first "goto" action in the last pair, and the extraction limit rides
// in the "limit" key of the first pair's first action's first argument.
// These conventions are imposed by the interpreter's wire format and
// must be preserved exactly.
//
// Recordings are value types. Accessors never fail on malformed input;
// they report absence. Editors return new recordings and leave their
// input untouched.
package workflow

import (
	"encoding/json"
	"fmt"
)

// ActionGoto is the action kind carrying the robot's target URL.
const ActionGoto = "goto"

// Recording is one robot's scripted behavior. Pair order is execution
// order. A recording with zero pairs is valid but inert.
type Recording struct {
	Pairs []Pair `json:"workflow"`
}

// Pair is one scripted step: a condition (where) and the ordered action
// list (what) to execute when it is met.
type Pair struct {
	Where Condition `json:"where"`
	What  []Action  `json:"what"`
}

// Condition is opaque to this package; it is matched by the interpreter
// and only carried through edits. An empty condition serializes as {}.
type Condition json.RawMessage

func (c Condition) MarshalJSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte("{}"), nil
	}
	return json.RawMessage(c).MarshalJSON()
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	*c = Condition(append([]byte(nil), data...))
	return nil
}

// Action is a single automation primitive with positional arguments.
// The wire field for the kind is "action", matching the interpreter.
type Action struct {
	Kind string `json:"action"`
	Args []Arg  `json:"args,omitempty"`
}

// ArgKind tags the variant held by an Arg.
type ArgKind int

const (
	ArgString ArgKind = iota
	ArgNumber
	ArgParams
	// ArgOpaque preserves argument values this package does not edit
	// (booleans, arrays, null) byte-for-byte, so a round-trip through
	// an edit cannot corrupt an action it never touched.
	ArgOpaque
)

// Arg is one positional action argument: a string, a number, a
// structured parameter object, or an opaque passthrough value. Callers
// switch on Kind instead of blind-casting.
type Arg struct {
	Kind   ArgKind
	Str    string
	Num    float64
	Params Params
	Raw    json.RawMessage
}

// Params is a structured parameter object; the interpreter reads the
// optional "limit" key as the extracted-item bound.
type Params map[string]any

func StringArg(s string) Arg  { return Arg{Kind: ArgString, Str: s} }
func NumberArg(n float64) Arg { return Arg{Kind: ArgNumber, Num: n} }
func ParamsArg(p Params) Arg  { return Arg{Kind: ArgParams, Params: p} }

func (a Arg) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case ArgString:
		return json.Marshal(a.Str)
	case ArgNumber:
		return json.Marshal(a.Num)
	case ArgParams:
		if a.Params == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(a.Params)
	case ArgOpaque:
		if len(a.Raw) == 0 {
			return []byte("null"), nil
		}
		return a.Raw, nil
	default:
		return nil, fmt.Errorf("workflow: unknown arg kind %d", a.Kind)
	}
}

func (a *Arg) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("workflow: empty arg")
	}
	switch data[0] {
	case '"':
		a.Kind = ArgString
		return json.Unmarshal(data, &a.Str)
	case '{':
		a.Kind = ArgParams
		return json.Unmarshal(data, &a.Params)
	case 't', 'f', 'n', '[':
		a.Kind = ArgOpaque
		a.Raw = append(json.RawMessage(nil), data...)
		return nil
	default:
		a.Kind = ArgNumber
		return json.Unmarshal(data, &a.Num)
	}
}

// Limit reads the "limit" key. JSON numbers decode as float64; stored
// ints are accepted too for values set through SetExtractionLimit.
func (p Params) Limit() (int, bool) {
	v, ok := p["limit"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// FindTargetAction scans the last pair's action list for the first
// "goto" action. Absent when the recording has no pairs or the last
// pair has no goto step.
func (r Recording) FindTargetAction() (Action, bool) {
	if len(r.Pairs) == 0 {
		return Action{}, false
	}
	for _, a := range r.Pairs[len(r.Pairs)-1].What {
		if a.Kind == ActionGoto {
			return a, true
		}
	}
	return Action{}, false
}

// TargetURL is the first argument of the target action, coerced to a
// string. A recording may legitimately have no navigation step (a
// parameterized robot gets its URL injected at run time), so absence is
// not an error.
func (r Recording) TargetURL() (string, bool) {
	a, ok := r.FindTargetAction()
	if !ok || len(a.Args) == 0 {
		return "", false
	}
	arg := a.Args[0]
	switch arg.Kind {
	case ArgString:
		return arg.Str, true
	case ArgNumber:
		return fmt.Sprintf("%v", arg.Num), true
	default:
		return "", false
	}
}

// ExtractionLimit is first pair -> first action -> first argument, when
// that argument is a parameter object carrying "limit". Any missing
// nesting level means absent, not an error.
func (r Recording) ExtractionLimit() (int, bool) {
	if len(r.Pairs) == 0 {
		return 0, false
	}
	what := r.Pairs[0].What
	if len(what) == 0 || len(what[0].Args) == 0 {
		return 0, false
	}
	arg := what[0].Args[0]
	if arg.Kind != ArgParams || arg.Params == nil {
		return 0, false
	}
	return arg.Params.Limit()
}
