package models

import (
	"bytes"
	"encoding/json"
	"math"
)

// Value is an optional float. The zero Value is missing, which keeps
// "undefined" apart from a true 0.
type Value struct {
	V     float64
	Valid bool
}

// Some wraps a defined value. Non-finite inputs become missing.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{V: v, Valid: true}
}

// Missing is the undefined marker.
var Missing = Value{}

// Get returns the value and whether it is defined.
func (v Value) Get() (float64, bool) { return v.V, v.Valid }

// Or returns the value, or def when missing.
func (v Value) Or(def float64) float64 {
	if !v.Valid {
		return def
	}
	return v.V
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*v = Missing
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}
