// Package model defines the domain types of the vacancy pipeline: the
// long-form Observation table, per-geography-per-year records, the data
// quality report, and the immutable Model bundle handed to consumers.
package model

import (
	"encoding/json"
	"strconv"
)

// Nullable is an explicit optional numeric value. Missing and zero are
// distinct states: a suppressed or unparseable cell stays missing and
// never contributes to a sum, while a structurally absent metric is
// filled with an explicit zero after aggregation.
//
// The zero value is missing.
type Nullable struct {
	Float64 float64
	Valid   bool
}

// Some returns a present value.
func Some(v float64) Nullable {
	return Nullable{Float64: v, Valid: true}
}

// Missing returns the missing value.
func Missing() Nullable {
	return Nullable{}
}

// Or returns the contained value, or def when missing.
func (n Nullable) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Float64
}

// Ptr returns a pointer to the value, or nil when missing. Used for
// database parameters where NULL carries the missing state.
func (n Nullable) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// FromPtr converts a nullable database scan target back to a Nullable.
func FromPtr(p *float64) Nullable {
	if p == nil {
		return Missing()
	}
	return Some(*p)
}

// MarshalJSON encodes a present value as a number and missing as null.
func (n Nullable) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

// UnmarshalJSON decodes null as missing and any number as present.
func (n *Nullable) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = Missing()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Some(v)
	return nil
}

// String reports the value for logs and exports; missing renders empty.
func (n Nullable) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64)
}
