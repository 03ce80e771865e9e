package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/seuros/funnel/internal/logging"
	"github.com/seuros/funnel/internal/relay"
)

// pixelGIF is a minimal 1x1 transparent GIF (42 bytes) - GIF89a format
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00,
	0x01, 0x00, 0x80, 0x00, 0x00, 0xFF, 0xFF, 0xFF,
	0x00, 0x00, 0x00, 0x21, 0xF9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
	0x01, 0x00,
}

// HandlePixel relays an event described by query parameters and answers
// with a 1x1 GIF.
// Endpoint: GET /api/track/pixel.gif?event=...&key=value
// Used by noscript fallbacks; the image is served even when relaying fails.
func HandlePixel(tracker Tracker) fiber.Handler {
	return func(c fiber.Ctx) error {
		ev := buildPixelEvent(c)

		if ev.Name == "" {
			logging.L().Debug("pixel: missing event name", zap.String("ip", c.IP()))
			return servePixel(c)
		}

		if _, err := tracker.Track(c.Context(), ev); err != nil {
			logging.L().Debug("pixel: event failed",
				zap.String("event", ev.Name),
				zap.Error(err),
			)
		}

		return servePixel(c)
	}
}

// buildPixelEvent copies every query parameter into the attribute bag and
// fills page context from the Referer header when the query omits it.
func buildPixelEvent(c fiber.Ctx) relay.Event {
	attrs := make(map[string]any)
	for k, v := range c.Queries() {
		attrs[k] = v
	}

	ev := relay.Event{Attributes: attrs}
	if name, ok := attrs["event"].(string); ok {
		ev.Name = strings.TrimSpace(name)
		attrs["event"] = ev.Name
	}

	referer := c.Get("Referer")
	if _, ok := attrs["url"]; !ok && referer != "" {
		attrs["url"] = referer
	}
	if _, ok := attrs["hostname"]; !ok {
		if raw, ok := attrs["url"].(string); ok {
			if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
				attrs["hostname"] = u.Hostname()
			}
		}
	}
	if ua := c.Get("User-Agent"); ua != "" {
		attrs["user_agent"] = ua
	}

	return ev
}

// servePixel returns a 1x1 transparent GIF with appropriate headers
func servePixel(c fiber.Ctx) error {
	// Prevent caching (every pixel request is unique)
	c.Set("Content-Type", "image/gif")
	c.Set("Content-Length", strconv.Itoa(len(pixelGIF)))
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	c.Set("Pragma", "no-cache")
	c.Set("Expires", "0")

	return c.Send(pixelGIF)
}
