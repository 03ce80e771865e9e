package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TrackPath is where the relay is mounted.
const TrackPath = "/api/track"

// Envelope is the JSON document /api/track answers with.
type Envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Event     string          `json:"event,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Message   string          `json:"message,omitempty"`
	PixelID   string          `json:"pixel_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Beacon posts events to a running relay, the way the landing page does.
type Beacon struct {
	baseURL string
	client  *http.Client
}

// NewBeacon targets the relay served at baseURL.
func NewBeacon(baseURL string, client *http.Client) *Beacon {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Beacon{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Send posts one event and returns the relay's envelope. A failure envelope
// is returned together with a non-nil error.
func (b *Beacon) Send(ctx context.Context, event string, attrs map[string]any) (*Envelope, error) {
	payload := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		payload[k] = v
	}
	payload["event"] = event

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+TrackPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach relay: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamLen))
	if err != nil {
		return nil, fmt.Errorf("failed to read relay response: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("relay responded with status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if !env.Success {
		return &env, fmt.Errorf("relay responded with status %d: %s", resp.StatusCode, env.Error)
	}
	return &env, nil
}

// Track implements numberpool.Tracker.
func (b *Beacon) Track(ctx context.Context, event string, attrs map[string]any) error {
	_, err := b.Send(ctx, event, attrs)
	return err
}
