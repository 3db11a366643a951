package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// One incoming data record to be scored.
//
// Payload is the dynamic part of the record: arbitrary keys observed
// from the asset, each holding a primitive value.
type AssetRecord struct {
	AssetTypeId string
	AssetId     string
	Payload     map[string]Value
}

type ValueKind int

const (
	NullValue ValueKind = iota
	NumberValue
	StringValue
	BoolValue
)

// Value is one payload entry: a closed set of primitive variants.
//
// Encoding logic switches on Kind(), and never relies on runtime shape
// inference of raw JSON.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	b    bool
}

func Null() Value {
	return Value{kind: NullValue}
}

func Number(n float64) Value {
	return Value{kind: NumberValue, num: n}
}

func String(s string) Value {
	return Value{kind: StringValue, str: s}
}

func Bool(b bool) Value {
	return Value{kind: BoolValue, b: b}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

// AsNumber maps a value onto a feature vector slot.
//
// Number: the value itself. Bool: 1 or 0.
// String: the parsed number when it reads as one, otherwise no number.
// Null: no number.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case NumberValue:
		return v.num, true
	case BoolValue:
		if v.b {
			return 1, true
		}
		return 0, true
	case StringValue:
		if n, err := strconv.ParseFloat(v.str, 64); err == nil {
			return n, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.kind {
	case NumberValue:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case StringValue:
		return v.str
	case BoolValue:
		return strconv.FormatBool(v.b)
	default:
		return "null"
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch r := raw.(type) {
	case nil:
		*v = Null()
	case float64:
		*v = Number(r)
	case string:
		*v = String(r)
	case bool:
		*v = Bool(r)
	default:
		return fmt.Errorf("payload value should be primitive, but: %s", string(b))
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case NumberValue:
		return json.Marshal(v.num)
	case StringValue:
		return json.Marshal(v.str)
	case BoolValue:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}
