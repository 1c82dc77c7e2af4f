package variant

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MaxStringSize is the longest string payload a Value may carry, in bytes.
// It matches the 40 character string field of the channel protocol.
const MaxStringSize = 40

var (
	// ErrVoid is returned when a Void value takes part in a comparison.
	ErrVoid = errors.New("void value is not comparable")

	// ErrStringTooLong is returned when a string exceeds MaxStringSize.
	ErrStringTooLong = errors.New("string exceeds maximum size")
)

// Kind identifies which payload a Value carries.
type Kind int

const (
	KindVoid Kind = iota
	KindString
	KindInteger
	KindFloating
)

// String returns the lower-case kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindFloating:
		return "floating"
	}
	return "unknown var kind"
}

// Value is a sealed interface over the four variant kinds.
type Value interface {
	Kind() Kind
	variant() // Sealed
}

// Void carries no payload.
type Void struct{}

func (Void) Kind() Kind { return KindVoid }
func (Void) variant()   {}

// String is a text payload, at most MaxStringSize bytes when built by NewString.
type String string

func (String) Kind() Kind { return KindString }
func (String) variant()   {}

// Integer is a signed integer payload.
type Integer int64

func (Integer) Kind() Kind { return KindInteger }
func (Integer) variant()   {}

// Floating is a double precision payload.
type Floating float64

func (Floating) Kind() Kind { return KindFloating }
func (Floating) variant()   {}

// NewString NFC-normalises s and checks it against MaxStringSize.
// An over-long string is an error; it is never silently truncated.
func NewString(s string) (String, error) {
	n := norm.NFC.String(s)
	if len(n) > MaxStringSize {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrStringTooLong, len(n), MaxStringSize)
	}
	return String(n), nil
}

// Format renders v as text.
//
// Strings pass through and integers are decimal. Floating values use three
// decimal places when zero or when 0.1 <= |v| <= 1e6, and scientific
// notation with six fraction digits otherwise. Infinities and NaN are
// spelled as C printf spells them. Void renders as "".
func Format(v Value) string {
	switch x := v.(type) {
	case String:
		return string(x)
	case Integer:
		return strconv.FormatInt(int64(x), 10)
	case Floating:
		f := float64(x)
		switch {
		case math.IsNaN(f):
			return "nan"
		case math.IsInf(f, 1):
			return "inf"
		case math.IsInf(f, -1):
			return "-inf"
		}
		a := math.Abs(f)
		if a == 0 || (a >= 0.1 && a <= 1.0e6) {
			return fmt.Sprintf("%.3f", f)
		}
		return fmt.Sprintf("%.6e", f)
	}
	return ""
}
