package plugins

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const keySeparator = "|"

// Normalize puts s in NFC form, trims it, collapses inner whitespace and
// lowercases it.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

// CompositeKey normalizes each part and joins them with "|".
func CompositeKey(parts ...string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = Normalize(p)
	}
	return strings.Join(out, keySeparator)
}

// field renders a payload value for a natural key. Whole floats print
// without a fraction so 3 and 3.0 agree.
func field(p Plain, name string) string {
	switch v := p[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprint(v)
	default:
		return fmt.Sprint(v)
	}
}
