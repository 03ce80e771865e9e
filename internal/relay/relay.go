// Package relay forwards browser-originated tracking events to the pixel
// vendor's server-to-server API.
//
// Each Track call is independent: received -> validated -> forwarded ->
// succeeded | failed. Delivery is attempted at most once; retries belong to
// the caller.
package relay

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seuros/funnel/internal/logging"
)

const (
	// DefaultEndpoint is the vendor's event ingestion API.
	DefaultEndpoint = "https://api.topnotchs.site/ad/event"

	// CheckEvent is answered locally so pages can verify configuration
	// without emitting a real conversion.
	CheckEvent = "s2s_check"
	// checkPixelIDEvent is the older name the tracking tester sends.
	checkPixelIDEvent = "check_pixel_id"

	CheckMessage   = "Pixel ID check successful"
	NotConfigured  = "Not configured"
	isoMillis      = "2006-01-02T15:04:05.000Z"
	maxUpstreamLen = 1 << 20
	userAgent      = "funnel-relay"
)

var (
	// ErrMissingEvent rejects payloads without an event name.
	ErrMissingEvent = errors.New("event name is required")
	// ErrPixelIDMissing means the account identifier is not configured.
	ErrPixelIDMissing = errors.New("pixel ID is not configured")
	// ErrInvalidPayload rejects bodies that are not a JSON object.
	ErrInvalidPayload = errors.New("invalid JSON payload")
)

// UpstreamError is a non-success answer from the tracking API.
type UpstreamError struct {
	Status int
	Body   Body
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tracking API responded with status %d: %s", e.Status, strings.TrimSpace(e.Body.Text()))
}

// Event is a tracking event: a name plus an open attribute bag.
type Event struct {
	Name       string
	Attributes map[string]any
}

// ParseEvent decodes a JSON object body. Numbers are kept as json.Number so
// amounts and identifiers are forwarded exactly as the browser sent them.
func ParseEvent(body []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var attrs map[string]any
	if err := dec.Decode(&attrs); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if attrs == nil {
		return Event{}, ErrInvalidPayload
	}

	ev := Event{Attributes: attrs}
	if name, ok := attrs["event"].(string); ok {
		ev.Name = strings.TrimSpace(name)
	}
	return ev, nil
}

// Result is the normalized outcome of a successful Track call.
type Result struct {
	Event     string
	Data      Body
	Timestamp time.Time

	// Set only for configuration checks.
	Check   bool
	Message string
	PixelID string
}

// Config wires a Relay.
type Config struct {
	Endpoint string
	// PixelID is consulted on every request so configuration changes do not
	// need a restart.
	PixelID    func() string
	HTTPClient *http.Client
}

// Relay forwards events. It holds no per-request state and is safe for
// concurrent use.
type Relay struct {
	endpoint string
	pixelID  func() string
	client   *http.Client
	now      func() time.Time
	newID    func(time.Time) string
	logger   *zap.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(fn func(time.Time) string) Option {
	return func(r *Relay) { r.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// New creates a Relay.
func New(cfg Config, opts ...Option) *Relay {
	r := &Relay{
		endpoint: cfg.Endpoint,
		pixelID:  cfg.PixelID,
		client:   cfg.HTTPClient,
		now:      time.Now,
		newID:    NewEventID,
	}
	if r.endpoint == "" {
		r.endpoint = DefaultEndpoint
	}
	if r.pixelID == nil {
		r.pixelID = func() string { return "" }
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: 10 * time.Second}
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Named("relay")
	}
	return r
}

// IsCheckEvent reports whether name is answered locally.
func IsCheckEvent(name string) bool {
	return name == CheckEvent || name == checkPixelIDEvent
}

// Track validates ev, forwards it and normalizes the upstream answer.
func (r *Relay) Track(ctx context.Context, ev Event) (*Result, error) {
	if ev.Name == "" {
		return nil, ErrMissingEvent
	}

	now := r.now()
	pixelID := strings.TrimSpace(r.pixelID())

	if IsCheckEvent(ev.Name) {
		shown := pixelID
		if shown == "" {
			shown = NotConfigured
		}
		return &Result{
			Event:     ev.Name,
			Timestamp: now,
			Check:     true,
			Message:   CheckMessage,
			PixelID:   shown,
		}, nil
	}

	if pixelID == "" {
		return nil, ErrPixelIDMissing
	}

	payload := r.enrich(ev, pixelID, now)
	body, err := r.forward(ctx, pixelID, payload)
	if err != nil {
		return nil, err
	}

	return &Result{
		Event:     ev.Name,
		Data:      body,
		Timestamp: now,
	}, nil
}

// enrich builds the outbound payload. Server-side fields win over anything
// the browser sent under the same key.
func (r *Relay) enrich(ev Event, pixelID string, now time.Time) map[string]any {
	payload := make(map[string]any, len(ev.Attributes)+5)
	for k, v := range ev.Attributes {
		payload[k] = v
	}
	payload["event"] = ev.Name
	payload["timestamp"] = now.UTC().Format(isoMillis)
	payload["event_id"] = r.newID(now)
	payload["server_timestamp"] = now.UnixMilli()
	payload["pixel_id"] = pixelID
	return payload
}

func (r *Relay) forward(ctx context.Context, pixelID string, payload map[string]any) (Body, error) {
	target, err := url.Parse(r.endpoint)
	if err != nil {
		return Body{}, fmt.Errorf("invalid tracking endpoint: %w", err)
	}
	q := target.Query()
	q.Set("pixel_id", pixelID)
	target.RawQuery = q.Encode()

	data, err := json.Marshal(payload)
	if err != nil {
		return Body{}, fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(data))
	if err != nil {
		return Body{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	r.logger.Debug("forwarding tracking event",
		zap.Any("event", payload["event"]),
		zap.Any("event_id", payload["event_id"]))

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("tracking API unreachable", zap.Error(err))
		return Body{}, fmt.Errorf("failed to reach tracking API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamLen))
	if err != nil {
		return Body{}, fmt.Errorf("failed to read tracking API response: %w", err)
	}
	body := DecodeBody(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstreamErr := &UpstreamError{Status: resp.StatusCode, Body: body}
		r.logger.Error("tracking API rejected event",
			zap.Int("status", resp.StatusCode),
			zap.String("body", body.Text()),
			zap.Any("event_id", payload["event_id"]))
		return Body{}, upstreamErr
	}

	if text, isRaw := body.Raw(); isRaw {
		r.logger.Warn("tracking API accepted event with a non-JSON body",
			zap.Int("status", resp.StatusCode),
			zap.Int("bytes", len(text)),
			zap.Any("event_id", payload["event_id"]))
		return body, nil
	}
	r.logger.Debug("tracking API accepted event",
		zap.Int("status", resp.StatusCode),
		zap.Any("event_id", payload["event_id"]))
	return body, nil
}

// NewEventID returns ev_<epoch-ms>_<7 base36 chars>.
func NewEventID(now time.Time) string {
	id := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(id[:8]), 36)
	for len(suffix) < 7 {
		suffix = "0" + suffix
	}
	return fmt.Sprintf("ev_%d_%s", now.UnixMilli(), suffix[:7])
}
