package match

import (
	"fmt"

	"github.com/roach88/kryten/internal/callback"
	"github.com/roach88/kryten/internal/variant"
)

// Convert extracts the 1-based element index from u as a Value.
//
// Enum states become their state string when the rules expect a string,
// and stay integers otherwise. An enum index with no state string becomes
// the empty string.
func Convert(u callback.Update, index int, expected variant.Kind) (variant.Value, error) {
	v, ok := u.Element(index)
	if !ok {
		return nil, fmt.Errorf("element %d requested but update has %d", index, len(u.Values))
	}
	if v == nil {
		return variant.Void{}, nil
	}

	if u.FieldType != callback.FieldEnum || expected != variant.KindString {
		return v, nil
	}
	n, ok := v.(variant.Integer)
	if !ok {
		return v, nil
	}
	if n < 0 || int(n) >= len(u.EnumStrings) {
		return variant.String(""), nil
	}
	s, err := variant.NewString(u.EnumStrings[n])
	if err != nil {
		return nil, fmt.Errorf("enum state %d: %w", n, err)
	}
	return s, nil
}
