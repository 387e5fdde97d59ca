// Package types provides the wire value model of the libSQL pipeline protocol
// and the codec between wire values and native Go values.
package types

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the wire tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
)

// String returns the wire tag name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a tagged wire value. The zero Value is Null.
//
// Integer values keep the decimal text form they travel in and blobs keep
// their base64 payload; both are parsed on access so a malformed cell only
// fails the column that reads it.
type Value struct {
	kind Kind
	text string
	num  float64
}

// Null returns the null value.
func Null() Value { return Value{} }

// Integer returns an integer value.
func Integer(n int64) Value {
	return Value{kind: KindInteger, text: strconv.FormatInt(n, 10)}
}

// IntegerText returns an integer value from its wire text form without
// validating it.
func IntegerText(s string) Value { return Value{kind: KindInteger, text: s} }

// Float returns a float value.
func Float(f float64) Value { return Value{kind: KindFloat, num: f} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Blob returns a blob value.
func Blob(b []byte) Value {
	return Value{kind: KindBlob, text: base64.StdEncoding.EncodeToString(b)}
}

// BlobBase64 returns a blob value from its base64 payload without validating it.
func BlobBase64(s string) Value { return Value{kind: KindBlob, text: s} }

// Kind returns the wire tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Raw returns the wire text form: the decimal text of an integer, the text of
// a text value or the base64 payload of a blob.
func (v Value) Raw() string { return v.text }

// Int64 parses an integer value.
func (v Value) Int64() (int64, error) {
	if v.kind != KindInteger {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrTypeMismatch, v.kind)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v.text), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: integer %q: %v", ErrInvalidValue, v.text, err)
	}
	return n, nil
}

// Float64 returns a float value, widening integers.
func (v Value) Float64() (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.num, nil
	case KindInteger:
		n, err := v.Int64()
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: %s is not numeric", ErrTypeMismatch, v.kind)
	}
}

// AsText returns the string of a text value.
func (v Value) AsText() (string, error) {
	if v.kind != KindText {
		return "", fmt.Errorf("%w: %s is not text", ErrTypeMismatch, v.kind)
	}
	return v.text, nil
}

// AsBytes decodes the payload of a blob value. Both the standard and the
// URL-safe base64 alphabets are accepted, with or without padding.
func (v Value) AsBytes() ([]byte, error) {
	if v.kind != KindBlob {
		return nil, fmt.Errorf("%w: %s is not a blob", ErrTypeMismatch, v.kind)
	}
	s := strings.NewReplacer("-", "+", "_", "/").Replace(v.text)
	s = strings.TrimRight(s, "=")
	b, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: blob payload: %v", ErrInvalidValue, err)
	}
	return b, nil
}

// Native converts v to the driver-level Go value: nil, int64, float64, string
// or []byte.
func (v Value) Native() (any, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindInteger:
		return v.Int64()
	case KindFloat:
		return v.num, nil
	case KindText:
		return v.text, nil
	case KindBlob:
		return v.AsBytes()
	default:
		return nil, fmt.Errorf("%w: unknown kind %s", ErrInvalidValue, v.kind)
	}
}

// Equal reports whether both values carry the same tag and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindFloat:
		return v.num == o.num
	case KindBlob:
		a, errA := v.AsBytes()
		b, errB := o.AsBytes()
		if errA != nil || errB != nil {
			return v.text == o.text
		}
		return bytes.Equal(a, b)
	default:
		return v.text == o.text
	}
}

// String renders the value for humans.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindFloat:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBlob:
		b, err := v.AsBytes()
		if err != nil {
			return "<invalid blob>"
		}
		return fmt.Sprintf("<blob %d bytes>", len(b))
	default:
		return v.text
	}
}

type wireValue struct {
	Type   string          `json:"type"`
	Value  json.RawMessage `json:"value,omitempty"`
	Base64 *string         `json:"base64,omitempty"`
}

// MarshalJSON encodes the pipeline protocol representation.
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Type: v.kind.String()}
	var err error
	switch v.kind {
	case KindNull:
	case KindInteger, KindText:
		w.Value, err = json.Marshal(v.text)
	case KindFloat:
		w.Value, err = json.Marshal(v.num)
	case KindBlob:
		payload := v.text
		w.Base64 = &payload
	default:
		return nil, fmt.Errorf("%w: unknown kind %s", ErrInvalidValue, v.kind)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal %s value: %w", v.kind, err)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the pipeline protocol representation.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch w.Type {
	case "null":
		*v = Null()
	case "integer":
		// Servers send integers as strings; accept bare numbers too.
		s, err := rawText(w.Value)
		if err != nil {
			return fmt.Errorf("integer value: %w", err)
		}
		*v = IntegerText(s)
	case "float":
		var f float64
		if err := json.Unmarshal(w.Value, &f); err != nil {
			s, serr := rawText(w.Value)
			if serr != nil {
				return fmt.Errorf("float value: %w", err)
			}
			if f, err = strconv.ParseFloat(s, 64); err != nil {
				return fmt.Errorf("float value: %w", err)
			}
		}
		*v = Float(f)
	case "text":
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return fmt.Errorf("text value: %w", err)
		}
		*v = Text(s)
	case "blob":
		switch {
		case w.Base64 != nil:
			*v = BlobBase64(*w.Base64)
		case len(w.Value) > 0:
			var s string
			if err := json.Unmarshal(w.Value, &s); err != nil {
				return fmt.Errorf("blob value: %w", err)
			}
			*v = BlobBase64(s)
		default:
			*v = BlobBase64("")
		}
	default:
		return fmt.Errorf("%w: unknown value type %q", ErrInvalidValue, w.Type)
	}
	return nil
}

func rawText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: missing value", ErrInvalidValue)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}
