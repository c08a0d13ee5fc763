package model

import "encoding/json"

// OptState distinguishes a field that carries a value from one that was
// explicitly null and one that was missing entirely.
type OptState int

const (
	// OptAbsent means the field did not appear at all.
	OptAbsent OptState = iota
	// OptNull means the field appeared with an explicit null.
	OptNull
	// OptPresent means the field carried a value.
	OptPresent
)

// Opt is a tri-state optional. Upstream extraction output uses missing keys,
// explicit nulls, and values interchangeably; Opt normalizes all handling to
// Get, which treats null and absent identically as unassigned.
type Opt[T any] struct {
	value T
	state OptState
}

// Some wraps a value as present.
func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, state: OptPresent}
}

// Null returns an explicitly-null optional.
func Null[T any]() Opt[T] {
	return Opt[T]{state: OptNull}
}

// Get returns the value and whether one is present. Null and absent both
// return false.
func (o Opt[T]) Get() (T, bool) {
	if o.state == OptPresent {
		return o.value, true
	}
	var zero T
	return zero, false
}

// State reports how the field arrived.
func (o Opt[T]) State() OptState {
	return o.state
}

// OrZero returns the value if present, otherwise the zero value.
func (o Opt[T]) OrZero() T {
	v, _ := o.Get()
	return v
}

// UnmarshalJSON records null as OptNull and any other valid value as
// OptPresent. Absent fields never reach UnmarshalJSON and keep the zero
// state, OptAbsent.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Opt[T]{state: OptNull}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Opt[T]{value: v, state: OptPresent}
	return nil
}

// MarshalJSON emits the value when present and null otherwise.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if o.state == OptPresent {
		return json.Marshal(o.value)
	}
	return []byte("null"), nil
}
