package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seuros/funnel/internal/config"
	"github.com/seuros/funnel/internal/relay"
)

// Command flags
var (
	trackServer string
	trackFormat string
)

var trackCmd = &cobra.Command{
	Use:   "track <event> [key=value...]",
	Short: "Send a tracking event through a running relay",
	Long: `Post an event to /api/track on a running funnel server, exactly as a
landing page would. Values that parse as JSON (numbers, booleans, objects)
are sent typed; everything else is sent as a string.

Examples:
  funnel track s2s_check
  funnel track page_view page_name=dinomedi
  funnel track conversion value=1 currency=USD --server https://landing.example`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrack(cmd.Context(), args[0], args[1:])
	},
}

// newTrackBeacon builds the relay client (can be replaced in tests)
var newTrackBeacon = func(baseURL string) *relay.Beacon {
	return relay.NewBeacon(baseURL, nil)
}

func runTrack(ctx context.Context, event string, pairs []string) error {
	format, err := resolveFormat(trackFormat)
	if err != nil {
		return err
	}

	attrs, err := parseAttributes(pairs)
	if err != nil {
		return err
	}

	server := trackServer
	if server == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		server = "http://localhost:" + cfg.Port
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	env, err := newTrackBeacon(server).Send(ctx, event, attrs)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return outputJSON(env)
	case "yaml":
		return outputYAML(env)
	default:
		fmt.Printf("Event:     %s\n", env.Event)
		fmt.Printf("Timestamp: %s\n", env.Timestamp)
		if env.Message != "" {
			fmt.Printf("Message:   %s\n", env.Message)
			fmt.Printf("Pixel ID:  %s\n", env.PixelID)
		}
		if len(env.Data) > 0 {
			fmt.Printf("Response:  %s\n", string(env.Data))
		}
		return nil
	}
}

// parseAttributes turns key=value pairs into an attribute bag.
func parseAttributes(pairs []string) (map[string]any, error) {
	attrs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q (expected key=value)", pair)
		}
		if key == "event" {
			return nil, errors.New("event is given as the first argument, not as an attribute")
		}

		var typed any
		if err := json.Unmarshal([]byte(value), &typed); err == nil {
			attrs[key] = typed
		} else {
			attrs[key] = value
		}
	}
	return attrs, nil
}

func init() {
	trackCmd.Flags().StringVarP(&trackServer, "server", "s", "", "Base URL of the funnel server (defaults to http://localhost:PORT)")
	trackCmd.Flags().StringVarP(&trackFormat, "format", "f", "", "Output format (table, json, yaml)")

	RootCmd.AddCommand(trackCmd)
}
