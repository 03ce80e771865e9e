package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/seuros/funnel/internal/dom"
	"github.com/seuros/funnel/internal/logging"
	"github.com/seuros/funnel/internal/numberpool"
)

const (
	defaultProbeTimeout = 45 * time.Second
	maxPageSize         = 5 << 20
)

// ErrNoDefaultNumber means the probe has nothing to compare detections with.
var ErrNoDefaultNumber = errors.New("default phone number is required")

// ProbeOptions configures Probe and ProbeStatic.
type ProbeOptions struct {
	// DefaultNumber is the static number the page renders.
	DefaultNumber string
	Schedule      numberpool.Schedule
	// Timeout bounds the whole probe, page load included.
	Timeout time.Duration
	// Click activates the call control once detection settles.
	Click bool
	// MinCallDuration overrides numberpool.DefaultMinCallDuration.
	MinCallDuration time.Duration
	// CallDuration simulates the visitor returning this long after the
	// click. Zero skips the return.
	CallDuration time.Duration
	// Tracker receives the call-flow events when Click is set.
	Tracker numberpool.Tracker
	// ControlURL attaches to a running Chrome instead of launching one.
	ControlURL string
	// HTTPClient fetches pages for ProbeStatic.
	HTTPClient *http.Client
}

func (o ProbeOptions) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultProbeTimeout
}

// ProbeResult is what a visitor would end up seeing and dialing.
type ProbeResult struct {
	URL       string        `json:"url" yaml:"url"`
	Mode      string        `json:"mode" yaml:"mode"`
	Default   string        `json:"default" yaml:"default"`
	Number    string        `json:"number" yaml:"number"`
	Display   string        `json:"display" yaml:"display"`
	Source    string        `json:"source,omitempty" yaml:"source,omitempty"`
	Found     bool          `json:"found" yaml:"found"`
	State     string        `json:"state" yaml:"state"`
	Dialed    string        `json:"dialed,omitempty" yaml:"dialed,omitempty"`
	Converted bool          `json:"converted,omitempty" yaml:"converted,omitempty"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
}

// connectBrowser launches or attaches to Chrome (can be replaced in tests)
var connectBrowser = func(ctx context.Context, controlURL string) (*rod.Browser, func(), error) {
	cleanup := func() {}
	if controlURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
		cleanup = l.Kill
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("connect to chrome: %w", err)
	}
	return b, func() {
		_ = b.Close()
		cleanup()
	}, nil
}

// Probe loads url in headless Chrome and runs the resolver against the live
// page until a number is found or the timeout elapses.
func Probe(ctx context.Context, url string, opts ProbeOptions) (*ProbeResult, error) {
	if opts.DefaultNumber == "" {
		return nil, ErrNoDefaultNumber
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()
	log := logging.Named("probe")
	started := time.Now()

	b, closeBrowser, err := connectBrowser(ctx, opts.ControlURL)
	if err != nil {
		return nil, err
	}
	defer closeBrowser()

	rp, err := b.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = rp.Close() }()

	if err := rp.Context(ctx).WaitLoad(); err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}
	log.Debug("page loaded", zap.String("url", url))

	page := NewPage(rp)
	r := newResolver(opts, page, page, log)
	r.Start(ctx)
	number, found := numberpool.Until(ctx, r, opts.Schedule)

	// ctx may be spent by now; the page is still open for the final reads
	finalCtx, finalCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer finalCancel()

	result := &ProbeResult{
		URL:     url,
		Mode:    "browser",
		Default: opts.DefaultNumber,
		Number:  number,
		Display: page.DisplayText(finalCtx),
		Source:  r.Source(),
		Found:   found,
	}
	if err := click(finalCtx, r, opts, result); err != nil {
		return nil, err
	}
	result.State = r.State().String()
	result.Elapsed = time.Since(started)
	return result, nil
}

// ProbeStatic fetches url and resolves against the served HTML without
// executing scripts. Only numbers present in the markup or assigned literally
// by inline scripts are visible.
func ProbeStatic(ctx context.Context, url string, opts ProbeOptions) (*ProbeResult, error) {
	if opts.DefaultNumber == "" {
		return nil, ErrNoDefaultNumber
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()
	log := logging.Named("probe")
	started := time.Now()

	doc, err := fetchDocument(ctx, url, opts.HTTPClient)
	if err != nil {
		return nil, err
	}

	r := newResolver(opts, dom.InlineGlobals{Doc: doc}, doc, log)
	found := r.Start(ctx)

	result := &ProbeResult{
		URL:     url,
		Mode:    "static",
		Default: opts.DefaultNumber,
		Number:  r.Current(),
		Display: doc.DisplayText(),
		Source:  r.Source(),
		Found:   found,
	}
	if err := click(ctx, r, opts, result); err != nil {
		return nil, err
	}
	result.State = r.State().String()
	result.Elapsed = time.Since(started)
	return result, nil
}

func newResolver(opts ProbeOptions, g numberpool.GlobalReader, d numberpool.Document, log *zap.Logger) *numberpool.Resolver {
	resolverOpts := []numberpool.Option{numberpool.WithLogger(log)}
	if opts.Tracker != nil {
		resolverOpts = append(resolverOpts, numberpool.WithTracker(opts.Tracker))
	}
	if opts.MinCallDuration > 0 {
		resolverOpts = append(resolverOpts, numberpool.WithMinCallDuration(opts.MinCallDuration))
	}
	return numberpool.New(opts.DefaultNumber, g, d, resolverOpts...)
}

func click(ctx context.Context, r *numberpool.Resolver, opts ProbeOptions, result *ProbeResult) error {
	if !opts.Click {
		return nil
	}
	rec := &Recorder{}
	if err := r.Call(ctx, rec); err != nil {
		return err
	}
	result.Dialed = rec.Last()
	if opts.CallDuration > 0 {
		result.Converted = r.Returned(ctx, opts.CallDuration)
	}
	return nil
}

func fetchDocument(ctx context.Context, url string, client *http.Client) (*dom.Document, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "funnel-probe")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page responded with status %d", resp.StatusCode)
	}

	doc, err := dom.Parse(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}
