package layer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueType is the declared type of an attribute.
type ValueType int

// Attribute value types.
const (
	TypeMissing ValueType = iota
	TypeNumber
	TypeText
)

func (t ValueType) String() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeText:
		return "text"
	default:
		return "missing"
	}
}

// Value is a typed attribute value.
type Value struct {
	Type ValueType
	Num  float64
	Text string
}

// Number returns a numeric value.
func Number(v float64) Value { return Value{Type: TypeNumber, Num: v} }

// Text returns a text value.
func Text(s string) Value { return Value{Type: TypeText, Text: s} }

// Missing returns an absent value.
func Missing() Value { return Value{} }

// Parse converts raw source text into a Value: blank strings become Missing,
// anything else stays Text. Numeric interpretation is left to the schema.
func Parse(raw string) Value {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if raw == "" {
		return Missing()
	}
	return Text(raw)
}

// Attrs maps attribute keys to typed values.
type Attrs map[string]Value

// AttributeError reports an attribute that does not match its declared type.
type AttributeError struct {
	Kind    Kind
	Feature int
	Key     string
	Want    ValueType
	Got     string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("%s feature %d: attribute %q: want %s, got %q", e.Kind, e.Feature, e.Key, e.Want, e.Got)
}

// Float returns the numeric value for key. ok is false when the key is absent
// or blank. A present value that is not numeric is an error.
func (a Attrs) Float(key string) (v float64, ok bool, err error) {
	val, present := a[key]
	if !present || val.Type == TypeMissing {
		return 0, false, nil
	}
	switch val.Type {
	case TypeNumber:
		return val.Num, true, nil
	default:
		f, perr := parseNumber(val.Text)
		if perr != nil {
			return 0, false, &AttributeError{Key: key, Want: TypeNumber, Got: val.Text}
		}
		return f, true, nil
	}
}

// String returns the text value for key, formatting numbers when needed.
func (a Attrs) String(key string) string {
	return a[key].String()
}

// String renders the value as text; missing values are empty.
func (v Value) String() string {
	switch v.Type {
	case TypeText:
		return v.Text
	case TypeNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// parseNumber accepts a decimal comma, as found in French open data exports.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f, err = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return f, nil
}
