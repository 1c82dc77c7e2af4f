package variant

import (
	"cmp"
	"fmt"
	"math"
	"strings"
)

// Ordering is the result of Compare.
type Ordering int

const (
	Less Ordering = iota - 1
	Same
	Greater
	// Unordered is reported when a NaN takes part, so that every ordered
	// relation is false, as with C comparison operators.
	Unordered
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Same:
		return "equal"
	case Greater:
		return "greater"
	}
	return "unordered"
}

// Compare orders a against b.
//
// Values of the same kind compare natively; strings compare bytewise over
// at most MaxStringSize+1 bytes. Mixed kinds coerce the string side with
// atof (against Floating) or atol (against Integer); an Integer against a
// Floating is widened to float64. Void on either side returns ErrVoid.
func Compare(a, b Value) (Ordering, error) {
	switch x := a.(type) {
	case String:
		switch y := b.(type) {
		case String:
			return Ordering(strings.Compare(capped(string(x)), capped(string(y)))), nil
		case Floating:
			return compareFloat(atof(string(x)), float64(y)), nil
		case Integer:
			return Ordering(cmp.Compare(atol(string(x)), int64(y))), nil
		}
	case Floating:
		switch y := b.(type) {
		case String:
			return compareFloat(float64(x), atof(string(y))), nil
		case Floating:
			return compareFloat(float64(x), float64(y)), nil
		case Integer:
			return compareFloat(float64(x), float64(y)), nil
		}
	case Integer:
		switch y := b.(type) {
		case String:
			return Ordering(cmp.Compare(int64(x), atol(string(y)))), nil
		case Floating:
			return compareFloat(float64(x), float64(y)), nil
		case Integer:
			return Ordering(cmp.Compare(int64(x), int64(y))), nil
		}
	}
	return Unordered, fmt.Errorf("%w: %s against %s", ErrVoid, kindOf(a), kindOf(b))
}

// Equal reports strict equality: same kind and same payload. It never
// coerces and is false whenever either side is Void.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case String:
		y, ok := b.(String)
		return ok && capped(string(x)) == capped(string(y))
	case Integer:
		y, ok := b.(Integer)
		return ok && x == y
	case Floating:
		y, ok := b.(Floating)
		return ok && x == y
	}
	return false
}

// Lt reports a < b under Compare.
func Lt(a, b Value) (bool, error) {
	o, err := Compare(a, b)
	return o == Less, err
}

// Le reports a <= b under Compare.
func Le(a, b Value) (bool, error) {
	o, err := Compare(a, b)
	return o == Less || o == Same, err
}

// Gt reports a > b under Compare.
func Gt(a, b Value) (bool, error) {
	o, err := Compare(a, b)
	return o == Greater, err
}

// Ge reports a >= b under Compare.
func Ge(a, b Value) (bool, error) {
	o, err := Compare(a, b)
	return o == Greater || o == Same, err
}

// Ne reports that Compare does not find a and b equal.
func Ne(a, b Value) (bool, error) {
	o, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	return o != Same, nil
}

func compareFloat(a, b float64) Ordering {
	if math.IsNaN(a) || math.IsNaN(b) {
		return Unordered
	}
	return Ordering(cmp.Compare(a, b))
}

func capped(s string) string {
	if len(s) > MaxStringSize+1 {
		return s[:MaxStringSize+1]
	}
	return s
}

func kindOf(v Value) Kind {
	if v == nil {
		return KindVoid
	}
	return v.Kind()
}
