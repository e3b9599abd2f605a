// Package emvqr builds and parses EMV merchant-presented QR payloads
// (tag-length-value text terminated by a CRC-16 field), including the
// Pix "BR Code" profile.
package emvqr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrPayloadTooShort  = errors.New("emvqr: payload too short")
	ErrMissingCRCField  = errors.New("emvqr: missing CRC field")
	ErrChecksumMismatch = errors.New("emvqr: checksum mismatch")
	ErrMalformedField   = errors.New("emvqr: malformed field")
	ErrValueTooLong     = errors.New("emvqr: value exceeds 99 characters")
)

const maxValueLength = 99

// Field is one TLV element. ID is always two digits.
type Field struct {
	ID    string
	Value string
}

// F is shorthand for a Field literal.
func F(id, value string) Field {
	return Field{ID: id, Value: value}
}

// Template nests sub-fields inside a parent field (e.g. merchant account
// information, additional data).
func Template(id string, children ...Field) (Field, error) {
	value, err := Encode(children...)
	if err != nil {
		return Field{}, fmt.Errorf("template %s: %w", id, err)
	}
	return Field{ID: id, Value: value}, nil
}

// Encode concatenates fields as id + 2-digit length + value. Empty values
// are skipped.
func Encode(fields ...Field) (string, error) {
	var b strings.Builder
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		if len(f.ID) != 2 {
			return "", fmt.Errorf("%w: id %q", ErrMalformedField, f.ID)
		}
		if len(f.Value) > maxValueLength {
			return "", fmt.Errorf("%w: field %s", ErrValueTooLong, f.ID)
		}
		b.WriteString(f.ID)
		b.WriteString(fmt.Sprintf("%02d", len(f.Value)))
		b.WriteString(f.Value)
	}
	return b.String(), nil
}

// Decode splits a TLV string into its top-level fields.
func Decode(data string) ([]Field, error) {
	var fields []Field
	for pos := 0; pos < len(data); {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated header at %d", ErrMalformedField, pos)
		}
		id := data[pos : pos+2]
		length, err := strconv.Atoi(data[pos+2 : pos+4])
		if err != nil || length < 0 {
			return nil, fmt.Errorf("%w: bad length for field %s", ErrMalformedField, id)
		}
		start := pos + 4
		end := start + length
		if end > len(data) {
			return nil, fmt.Errorf("%w: field %s overruns payload", ErrMalformedField, id)
		}
		fields = append(fields, Field{ID: id, Value: data[start:end]})
		pos = end
	}
	return fields, nil
}

// Lookup returns the value of the first field with the given id.
func Lookup(fields []Field, id string) (string, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f.Value, true
		}
	}
	return "", false
}
