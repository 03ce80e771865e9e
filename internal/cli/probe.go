package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/seuros/funnel/internal/browser"
	"github.com/seuros/funnel/internal/config"
	"github.com/seuros/funnel/internal/logging"
	"github.com/seuros/funnel/internal/relay"
)

// Command flags
var (
	probeStatic        bool
	probeClick         bool
	probeFormat        string
	probeTimeout       time.Duration
	probeControlURL    string
	probeDefaultNumber string
	probeBeaconURL     string
	probeCallDuration  time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Show which phone number a landing page ends up displaying",
	Long: `Load a landing page, wait for the call-tracking vendor to assign a number
and report what a visitor would see and dial.

By default the page is loaded in headless Chrome and polled on the configured
schedule. With --static the HTML is fetched and inspected without running
scripts.

Examples:
  funnel probe https://example.com/dinomedi
  funnel probe https://example.com/dinomedi --click --format json
  funnel probe https://example.com/dinomedi --click --call-duration 15s --report-to http://localhost:3000
  funnel probe http://localhost:3000/ --static`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(cmd.Context(), args[0])
	},
}

// probe functions (can be replaced in tests)
var (
	probeBrowser = browser.Probe
	probeHTML    = browser.ProbeStatic
)

func runProbe(ctx context.Context, url string) error {
	format, err := resolveFormat(probeFormat)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logging.SetLevel(cfg.LogLevel)

	opts := browser.ProbeOptions{
		DefaultNumber:   cfg.DefaultPhoneNumber,
		Schedule:        cfg.Poll,
		MinCallDuration: cfg.MinCallDuration,
		Timeout:         probeTimeout,
		Click:           probeClick,
		CallDuration:    probeCallDuration,
		ControlURL:      probeControlURL,
	}
	if probeDefaultNumber != "" {
		opts.DefaultNumber = probeDefaultNumber
	}
	if probeBeaconURL != "" {
		opts.Tracker = relay.NewBeacon(probeBeaconURL, nil)
	}

	probe := probeBrowser
	if probeStatic {
		probe = probeHTML
	}
	result, err := probe(ctx, url, opts)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}

	switch format {
	case "json":
		return outputJSON(result)
	case "yaml":
		return outputYAML(result)
	default:
		return outputProbeTable(result)
	}
}

func outputProbeTable(r *browser.ProbeResult) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	source := r.Source
	if source == "" {
		source = "-"
	}
	_, _ = fmt.Fprintf(w, "URL:\t%s\n", r.URL)
	_, _ = fmt.Fprintf(w, "Mode:\t%s\n", r.Mode)
	_, _ = fmt.Fprintf(w, "Default:\t%s\n", r.Default)
	_, _ = fmt.Fprintf(w, "Number:\t%s\n", r.Number)
	_, _ = fmt.Fprintf(w, "Display:\t%s\n", r.Display)
	_, _ = fmt.Fprintf(w, "Found:\t%t\n", r.Found)
	_, _ = fmt.Fprintf(w, "Source:\t%s\n", source)
	_, _ = fmt.Fprintf(w, "State:\t%s\n", r.State)
	if r.Dialed != "" {
		_, _ = fmt.Fprintf(w, "Dialed:\t%s\n", r.Dialed)
	}
	if r.Converted {
		_, _ = fmt.Fprintf(w, "Converted:\t%t\n", r.Converted)
	}
	_, _ = fmt.Fprintf(w, "Elapsed:\t%s\n", r.Elapsed.Round(time.Millisecond))
	return w.Flush()
}

func init() {
	probeCmd.Flags().BoolVar(&probeStatic, "static", false, "Inspect the served HTML without a browser")
	probeCmd.Flags().BoolVar(&probeClick, "click", false, "Activate the call button and report the dialed URI")
	probeCmd.Flags().StringVarP(&probeFormat, "format", "f", "", "Output format (table, json, yaml); defaults to table on a terminal")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 45*time.Second, "Give up after this long")
	probeCmd.Flags().StringVar(&probeControlURL, "control-url", "", "DevTools URL of a running Chrome instead of launching one")
	probeCmd.Flags().StringVar(&probeDefaultNumber, "default-number", "", "Static number the page renders (defaults to DEFAULT_PHONE_NUMBER)")
	probeCmd.Flags().DurationVar(&probeCallDuration, "call-duration", 0, "With --click, report the visitor returning after a call this long")
	probeCmd.Flags().StringVar(&probeBeaconURL, "report-to", "", "Send call events from --click to the relay at this base URL")

	RootCmd.AddCommand(probeCmd)
}
