package numberpool

import (
	"sort"
	"strings"

	"github.com/seuros/funnel/internal/phone"
)

// Strategy is one detection method. Detect must be pure: it only looks at
// the snapshots it is handed.
type Strategy struct {
	Name   string
	Detect func(globals GlobalState, elements []Element, defaultNumber string) (string, bool)
}

// DefaultStrategies returns the detection methods in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "vendor-object", Detect: detectVendorObject},
		{Name: "known-numbers", Detect: detectKnownNumbers},
		{Name: "dom", Detect: detectDOM},
		{Name: "assigned-global", Detect: detectAssignedGlobal},
	}
}

// differs filters out candidates that are really just the default number.
func differs(candidate, defaultNumber string) (string, bool) {
	if candidate == "" || phone.Same(candidate, defaultNumber) {
		return "", false
	}
	return candidate, true
}

func detectVendorObject(g GlobalState, _ []Element, def string) (string, bool) {
	if len(g.Numbers) > 0 {
		if n, ok := phone.Extract(g.Numbers[0]); ok {
			if n, ok = differs(n, def); ok {
				return n, true
			}
		}
	}
	if n, ok := phone.Extract(g.Data); ok {
		return differs(n, def)
	}
	return "", false
}

func detectKnownNumbers(g GlobalState, _ []Element, def string) (string, bool) {
	if len(g.KnownNumbers) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(g.KnownNumbers))
	for k := range g.KnownNumbers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if n, ok := phone.Extract(g.KnownNumbers[k]); ok {
			if n, ok = differs(n, def); ok {
				return n, true
			}
		}
	}
	return "", false
}

func detectDOM(_ GlobalState, elements []Element, def string) (string, bool) {
	for _, el := range elements {
		var candidate string
		switch {
		case el.HasDataNumber:
			candidate = el.DataNumber
		case strings.EqualFold(el.Tag, "a") && strings.HasPrefix(el.Href, "tel:"):
			candidate = strings.TrimPrefix(el.Href, "tel:")
		default:
			candidate = el.Text
		}
		n, ok := phone.Extract(candidate)
		if !ok {
			continue
		}
		if n, ok = differs(n, def); ok {
			return n, true
		}
	}
	return "", false
}

func detectAssignedGlobal(g GlobalState, _ []Element, def string) (string, bool) {
	n, ok := phone.Extract(g.AssignedNumber)
	if !ok {
		return "", false
	}
	return differs(n, def)
}
