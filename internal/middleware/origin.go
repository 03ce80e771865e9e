package middleware

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/seuros/funnel/internal/logging"
)

// SameOrigin restricts a route to pages served by this host or by one of the
// trusted origins. Requests carrying neither Origin nor Referer pass: those
// are same-origin navigations or server-to-server calls.
func SameOrigin(trusted []string) fiber.Handler {
	allowed := make(map[string]struct{}, len(trusted))
	for _, origin := range trusted {
		if normalized := normalizeOrigin(origin); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c fiber.Ctx) error {
		origin := requestOrigin(c)
		if origin == "" {
			return c.Next()
		}

		if originMatchesHost(origin, c.Host()) {
			return c.Next()
		}
		if _, ok := allowed[origin]; ok {
			return c.Next()
		}

		logging.L().Warn("rejected cross-origin request",
			zap.String("origin", origin),
			zap.String("host", c.Host()),
			zap.String("path", c.Path()),
		)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "Origin not allowed",
		})
	}
}

// requestOrigin returns the normalized Origin header, falling back to the
// origin of the Referer.
func requestOrigin(c fiber.Ctx) string {
	if origin := c.Get("Origin"); origin != "" && origin != "null" {
		return normalizeOrigin(origin)
	}
	if referer := c.Get("Referer"); referer != "" {
		return normalizeOrigin(referer)
	}
	return ""
}

// normalizeOrigin reduces a URL to lowercase scheme://host[:port].
func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func originMatchesHost(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, host)
}
