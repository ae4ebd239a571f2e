package measure

import (
	"encoding/json"
	"math"
)

// Value is a reading or a derived number that may be missing. The zero Value
// is missing.
type Value struct {
	v  float64
	ok bool
}

var Missing Value

// Of wraps v. Non-finite numbers are treated as missing.
func Of(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	return Value{v: v, ok: true}
}

func (v Value) Get() (float64, bool) { return v.v, v.ok }

func (v Value) Present() bool { return v.ok }

// MarshalJSON encodes a missing value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Missing
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Of(f)
	return nil
}
