package domain

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// State is a single value held by the external state store.
//
// Ack distinguishes commands (written by an operator, Ack == false) from
// confirmations (written back by the bridge, Ack == true).
type State struct {
	Val  any       `json:"val"`
	Ack  bool      `json:"ack"`
	Ts   time.Time `json:"ts"`
	From string    `json:"from,omitempty"`
}

// NewState creates a state stamped with the current time.
func NewState(val any, ack bool) State {
	return State{
		Val: val,
		Ack: ack,
		Ts:  time.Now().UTC(),
	}
}

// StateChange is delivered to subscribers whenever a key is written.
type StateChange struct {
	Key   string `json:"key"`
	State State  `json:"state"`
}

// Truthy coerces an external value into a boolean.
// nil, false, zero, NaN, empty strings and the strings "false" and "0" are false.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		s := strings.TrimSpace(strings.ToLower(val))
		return s != "" && s != "false" && s != "0"
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return val.String() != ""
		}
		return f != 0 && !math.IsNaN(f)
	}
	if f, ok := Number(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

// Number reports whether v has a numeric type and returns it as float64.
// Strings are never numeric, even when they contain digits.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ParseValue interprets operator input: valid JSON scalars and documents
// (numbers, booleans, null, objects, arrays, quoted strings) are decoded,
// anything else is kept as a plain string.
func ParseValue(s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return v
}

// String returns v when it is a string.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
