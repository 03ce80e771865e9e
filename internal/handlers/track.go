package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/seuros/funnel/internal/logging"
	"github.com/seuros/funnel/internal/relay"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

// Tracker forwards one event. *relay.Relay implements it.
type Tracker interface {
	Track(ctx context.Context, ev relay.Event) (*relay.Result, error)
}

// Error strings returned to the browser.
const (
	msgInvalidJSON   = "Invalid JSON payload"
	msgMissingEvent  = "Event name is required"
	msgPixelIDNotSet = "Tracking pixel ID is not configured"
)

// HandleTrack is POST /api/track.
func HandleTrack(tracker Tracker) fiber.Handler {
	return func(c fiber.Ctx) error {
		ev, err := relay.ParseEvent(c.Body())
		if err != nil {
			logging.L().Debug("track: rejected payload", zap.Error(err), zap.String("ip", c.IP()))
			return c.Status(fiber.StatusBadRequest).JSON(relay.Envelope{
				Success: false,
				Error:   msgInvalidJSON,
			})
		}

		return respondTracked(c, tracker, ev)
	}
}

func respondTracked(c fiber.Ctx, tracker Tracker, ev relay.Event) error {
	result, err := tracker.Track(c.Context(), ev)
	if err != nil {
		logging.L().Warn("track: event failed",
			zap.String("event", ev.Name),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(relay.Envelope{
			Success: false,
			Error:   errorMessage(err),
		})
	}

	return c.JSON(envelopeFor(result))
}

func envelopeFor(result *relay.Result) relay.Envelope {
	env := relay.Envelope{
		Success:   true,
		Event:     result.Event,
		Timestamp: result.Timestamp.UTC().Format(isoMillis),
	}
	if result.Check {
		env.Message = result.Message
		env.PixelID = result.PixelID
		return env
	}
	if data, err := json.Marshal(result.Data); err == nil {
		env.Data = data
	}
	return env
}

// errorMessage converts relay failures to the text shown to callers.
func errorMessage(err error) string {
	var upstream *relay.UpstreamError
	switch {
	case errors.Is(err, relay.ErrMissingEvent):
		return msgMissingEvent
	case errors.Is(err, relay.ErrPixelIDMissing):
		return msgPixelIDNotSet
	case errors.As(err, &upstream):
		return upstream.Error()
	default:
		return err.Error()
	}
}
