// Package optional provides JSON fields that distinguish an absent key, an
// explicit null, and a value.
package optional

import (
	"bytes"
	"encoding/json"
)

type State uint8

const (
	Unset State = iota
	Null
	Value
)

// String is a tri-state string field for partial updates.
type String struct {
	state State
	value string
}

func Of(v string) String { return String{state: Value, value: v} }

func NullString() String { return String{state: Null} }

func (s String) State() State { return s.state }

func (s String) IsSet() bool { return s.state != Unset }

// Get returns the value and whether one is present.
func (s String) Get() (string, bool) {
	return s.value, s.state == Value
}

// SQLValue returns nil for null and the string for a value.
func (s String) SQLValue() any {
	if s.state == Value {
		return s.value
	}
	return nil
}

func (s *String) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = NullString()
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Of(v)
	return nil
}

func (s String) MarshalJSON() ([]byte, error) {
	if s.state != Value {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}
