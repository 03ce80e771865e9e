package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
)

// InjectScriptHeader tells the edge to inject the background tracking script.
const InjectScriptHeader = "x-inject-bg-script"

// InjectScript flags responses for paths at or below any of prefixes.
func InjectScript(prefixes []string) fiber.Handler {
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}

	return func(c fiber.Ctx) error {
		if matchesPrefix(c.Path(), cleaned) {
			c.Set(InjectScriptHeader, "true")
		}
		return c.Next()
	}
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
