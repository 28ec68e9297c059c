package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Num is a numeric field that may arrive as a JSON number, a numeric string,
// a free-form string (e.g. "中止") or null. The literal text is kept so that a
// value can be echoed exactly as published.
type Num struct {
	Value float64
	Text  string
	Valid bool
}

// NumOf returns a valid Num with no literal text.
func NumOf(v float64) Num {
	return Num{Value: v, Valid: true}
}

// Present reports whether the field carried any value at all.
func (n Num) Present() bool {
	return n.Valid || n.Text != ""
}

// Fixed renders the value with exactly prec decimals. Non-numeric text is
// returned as is and a missing value renders as the placeholder.
func (n Num) Fixed(prec int) string {
	if n.Valid {
		return strconv.FormatFloat(n.Value, 'f', prec, 64)
	}
	if n.Text != "" {
		return n.Text
	}
	return Placeholder
}

// Literal renders the published text when there is one, otherwise the value
// with prec decimals.
func (n Num) Literal(prec int) string {
	if n.Text != "" {
		return n.Text
	}
	return n.Fixed(prec)
}

// String renders the published text or the shortest representation.
func (n Num) String() string {
	return n.Literal(-1)
}

// UnmarshalJSON accepts numbers, strings and null.
func (n *Num) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*n = Num{}
		return nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		*n = Num{Text: s}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			n.Value = v
			n.Valid = true
		}
		return nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", raw, err)
	}
	*n = Num{Value: v, Text: raw, Valid: true}
	return nil
}

// MarshalJSON writes numbers as numbers and everything else as a string.
func (n Num) MarshalJSON() ([]byte, error) {
	switch {
	case n.Valid && n.Text != "":
		if _, err := strconv.ParseFloat(n.Text, 64); err == nil && json.Valid([]byte(n.Text)) {
			return []byte(n.Text), nil
		}
		return json.Marshal(n.Text)
	case n.Valid:
		return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
	case n.Text != "":
		return json.Marshal(n.Text)
	default:
		return []byte("null"), nil
	}
}
