// Package decoder turns fixed-width feed telegrams into typed entities.
//
// Layout positions are written 1-based, as in the feed documentation, and
// address bytes of the cp932 payload.
package decoder

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/japanese"
)

var (
	// ErrNotApplicable means the payload is not a record of the requested kind.
	ErrNotApplicable = errors.New("payload not applicable to record kind")

	// ErrMalformedNumeric marks a numeric sub-field that is neither blank nor digits.
	ErrMalformedNumeric = errors.New("malformed numeric field")

	// ErrInvalidOddsRange marks an odds slot whose minimum exceeds its maximum.
	ErrInvalidOddsRange = errors.New("odds minimum exceeds maximum")
)

// field is a 1-based byte position and length.
type field struct {
	pos    int
	length int
}

func (f field) end() int {
	return f.pos - 1 + f.length
}

func (f field) bytes(b []byte) []byte {
	if f.pos < 1 || f.end() > len(b) {
		return nil
	}
	return b[f.pos-1 : f.end()]
}

// blankChars are filler bytes the feed uses for "no value".
const blankChars = " -*"

// reader slices fields out of one payload and records malformed numerics.
type reader struct {
	payload   []byte
	malformed []string
}

func newReader(payload []byte) *reader {
	return &reader{payload: payload}
}

func (r *reader) has(f field) bool {
	return f.end() <= len(r.payload)
}

// ascii returns the trimmed ASCII value of f.
func (r *reader) ascii(f field) string {
	return strings.TrimSpace(string(f.bytes(r.payload)))
}

// code returns a trimmed code value, nil when blank, all zero or out of range.
func (r *reader) code(f field) *string {
	if !r.has(f) {
		return nil
	}
	v := r.ascii(f)
	if strings.Trim(v, "0") == "" {
		return nil
	}
	return &v
}

// number parses a fixed-width digit field. Blank, all-zero and out of range
// fields are nil; anything else that is not all digits is recorded as malformed.
func (r *reader) number(name string, f field) *int {
	if !r.has(f) {
		return nil
	}
	n, err := parseNumber(f.bytes(r.payload))
	if err != nil {
		r.malformed = append(r.malformed, name)
		return nil
	}
	return n
}

// text decodes a cp932 text field and trims half and full width padding.
func (r *reader) text(f field) *string {
	if !r.has(f) {
		return nil
	}
	v := decodeText(f.bytes(r.payload))
	if v == "" {
		return nil
	}
	return &v
}

func parseNumber(raw []byte) (*int, error) {
	trimmed := bytes.Trim(raw, blankChars)
	if len(trimmed) == 0 {
		return nil, nil
	}
	for _, c := range trimmed {
		if c < '0' || c > '9' {
			return nil, ErrMalformedNumeric
		}
	}
	n, err := strconv.Atoi(string(trimmed))
	if err != nil {
		return nil, ErrMalformedNumeric
	}
	if n == 0 {
		return nil, nil
	}
	return &n, nil
}

var textDecoder = japanese.ShiftJIS

func decodeText(raw []byte) string {
	decoded, err := textDecoder.NewDecoder().Bytes(raw)
	if err != nil {
		decoded = raw
	}
	s := strings.ReplaceAll(string(decoded), "\uFFFD", "")
	return strings.Trim(s, " \u3000\x00")
}

// DecodeText converts a cp932 payload to a string with full width spaces intact.
func DecodeText(payload []byte) string {
	decoded, err := textDecoder.NewDecoder().Bytes(payload)
	if err != nil {
		return string(payload)
	}
	return string(decoded)
}

func hasTag(payload []byte, tag string) bool {
	return len(payload) >= len(tag) && string(payload[:len(tag)]) == tag
}
