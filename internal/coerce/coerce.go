// Package coerce provides JSON field types that sanitize mismatched input
// instead of failing the decode. A payload carrying a number where a string
// belongs, or an object where a list belongs, decodes to the field's zero
// value; validation catches anything that matters afterwards.
package coerce

import (
	"encoding/json"
	"time"
)

// String decodes a JSON string and treats any other value as "".
type String string

func (s *String) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil
	}
	*s = String(v)
	return nil
}

// Number decodes a JSON number and treats any other value as absent.
type Number struct {
	Value float64
	Set   bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*n = Number{}
		return nil
	}
	*n = Number{Value: v, Set: true}
	return nil
}

// Ptr returns the value as a pointer, or nil when the field was absent
// or not a number.
func (n Number) Ptr() *float64 {
	if !n.Set {
		return nil
	}
	v := n.Value
	return &v
}

// StringList decodes a JSON array keeping only its non-empty string
// elements. Any other value, and any non-string element, is discarded.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = nil
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var v string
		if err := json.Unmarshal(item, &v); err != nil || v == "" {
			continue
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// Date decodes a JSON string as a calendar date, accepting "2006-01-02"
// or RFC 3339. Any other value, or an unparseable string, yields a nil
// date.
type Date struct {
	Value *time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		*d = Date{}
		return nil
	}

	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			*d = Date{Value: &t}
			return nil
		}
	}
	*d = Date{}
	return nil
}
