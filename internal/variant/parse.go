package variant

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Parse classifies a configuration token.
//
// A token opening with a double quote is a String with the quotes removed.
// Otherwise the whole token is tried as a decimal integer, then as a
// hexadecimal integer (optional 0x prefix), then as a floating number.
// Anything else is an unquoted String. Parse never fails; it does not
// enforce MaxStringSize, callers that need the cap use NewString.
func Parse(token string) Value {
	if strings.HasPrefix(token, `"`) {
		s := token[1:]
		s = strings.TrimSuffix(s, `"`)
		return String(norm.NFC.String(s))
	}
	if n, ok := ParseInteger(token); ok {
		return Integer(n)
	}
	if f, ok := parseFloating(token); ok {
		return Floating(f)
	}
	return String(norm.NFC.String(token))
}

// ParseInteger reads s as a whole-token integer, decimal first and then
// hexadecimal. Leading and trailing white space is ignored.
func ParseInteger(s string) (int64, bool) {
	t := strings.TrimFunc(s, unicode.IsSpace)
	if t == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(t, 10, 64); err == nil {
		return n, true
	}

	sign, digits := splitSign(t)
	if len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		digits = digits[2:]
	}
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(sign+digits, 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseFloating reads s as a whole-token floating number.
// Overflow to infinity counts as failure.
func parseFloating(s string) (float64, bool) {
	t := strings.TrimFunc(s, unicode.IsSpace)
	if t == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func splitSign(s string) (string, string) {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		return s[:1], s[1:]
	}
	return "", s
}

// atol mirrors C atol: the longest leading decimal integer, else 0.
func atol(s string) int64 {
	t := strings.TrimLeftFunc(s, unicode.IsSpace)
	sign, rest := splitSign(t)
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	// ParseInt saturates on overflow, as strtol does.
	n, _ := strconv.ParseInt(sign+rest[:end], 10, 64)
	return n
}

// atof mirrors C atof: the longest leading floating literal, else 0.
func atof(s string) float64 {
	t := strings.TrimLeftFunc(s, unicode.IsSpace)
	sign, rest := splitSign(t)

	lower := strings.ToLower(rest)
	for _, word := range []string{"infinity", "inf", "nan"} {
		if strings.HasPrefix(lower, word) {
			f, _ := strconv.ParseFloat(sign+word, 64)
			return f
		}
	}

	end, digits := 0, 0
	for end < len(rest) && isDigit(rest[end]) {
		end++
		digits++
	}
	if end < len(rest) && rest[end] == '.' {
		end++
		for end < len(rest) && isDigit(rest[end]) {
			end++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	if end < len(rest) && (rest[end] == 'e' || rest[end] == 'E') {
		exp := end + 1
		if exp < len(rest) && (rest[exp] == '+' || rest[exp] == '-') {
			exp++
		}
		if exp < len(rest) && isDigit(rest[exp]) {
			for exp < len(rest) && isDigit(rest[exp]) {
				exp++
			}
			end = exp
		}
	}
	// Out of range literals come back as +/-Inf, like strtod's HUGE_VAL.
	f, _ := strconv.ParseFloat(sign+rest[:end], 64)
	return f
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
