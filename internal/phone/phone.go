// Package phone holds the pure helpers shared by the number-resolution poller
// and the landing page: display formatting, candidate extraction from
// vendor-owned values, and tel: URI construction.
package phone

import (
	"fmt"
	"strings"
)

// objectKeys are probed in order when a vendor hands us an object instead of
// a plain string.
var objectKeys = []string{"raw", "number", "phone", "phoneNumber", "display", "value"}

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Format renders a number for display. Ten digits become (AAA) BBB-CCCC and
// eleven digits with a leading 1 become +1 (AAA) BBB-CCCC. Anything else is
// returned unchanged.
func Format(raw string) string {
	d := Digits(raw)
	switch {
	case len(d) == 10:
		return fmt.Sprintf("(%s) %s-%s", d[0:3], d[3:6], d[6:10])
	case len(d) == 11 && d[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", d[1:4], d[4:7], d[7:11])
	}
	return raw
}

// national returns the 10-digit NANP form of a number when it has one.
func national(s string) (string, bool) {
	d := Digits(s)
	switch {
	case len(d) == 10:
		return d, true
	case len(d) == 11 && d[0] == '1':
		return d[1:], true
	}
	return "", false
}

// Same reports whether a and b name the same line. "+18554690274",
// "8554690274" and "(855) 469-0274" are all the same number.
func Same(a, b string) bool {
	na, okA := national(a)
	nb, okB := national(b)
	if okA && okB {
		return na == nb
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// TelURI builds the navigation target for a call. The number is passed
// through verbatim, malformed or not.
func TelURI(number string) string {
	return "tel:" + number
}

// Extract turns an arbitrary vendor-supplied value into a candidate number.
func Extract(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case map[string]any:
		for _, key := range objectKeys {
			if s, ok := Extract(v[key]); ok {
				return s, true
			}
		}
		return "", false
	case fmt.Stringer:
		s := strings.TrimSpace(v.String())
		return s, s != ""
	}
	return "", false
}
