package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind identifies the coerced type of a CSV cell
type ValueKind int

// Value kind constants
const (
	KindString ValueKind = iota
	KindNumber
	KindBool
)

// Value is a single coerced CSV cell. Exactly one of Num, Bool or Str is
// meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	Num  float64
	Bool bool
	Str  string
}

// Record is one parsed CSV line keyed by header name
type Record map[string]Value

// Number returns a numeric Value
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Bool returns a boolean Value
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// String returns a string Value
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Float returns the numeric value and whether the cell held a number
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return v.Num, true
}

// String renders the cell back to text. Numbers use the shortest
// representation that round-trips.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// MarshalJSON encodes the cell as its native JSON type
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return json.Marshal(v.Str)
	}
}

// UnmarshalJSON restores a cell from its native JSON type
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case float64:
		*v = Number(t)
	case bool:
		*v = Bool(t)
	case string:
		*v = String(t)
	default:
		return fmt.Errorf("unsupported cell value: %s", string(data))
	}
	return nil
}
