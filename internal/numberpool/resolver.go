package numberpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seuros/funnel/internal/logging"
	"github.com/seuros/funnel/internal/phone"
)

// DefaultMinCallDuration is the shortest absence after dialing that counts
// as a completed call.
const DefaultMinCallDuration = 10 * time.Second

// State is the resolver's position in Searching -> Found -> Idle.
type State int

const (
	Searching State = iota
	Found
	Idle
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Found:
		return "found"
	case Idle:
		return "idle"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Resolver tracks which phone number a page should display and dial.
type Resolver struct {
	defaultNumber string
	globals       GlobalReader
	doc           Document
	strategies    []Strategy
	tracker       Tracker
	callAttrs     map[string]any
	minCall       time.Duration
	logger        *zap.Logger

	mu      sync.RWMutex
	state   State
	current string
	source  string
	dialed  string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrategies replaces the detection methods.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) { r.strategies = strategies }
}

// WithTracker notifies t of call-button activations.
func WithTracker(t Tracker) Option {
	return func(r *Resolver) { r.tracker = t }
}

// WithCallAttributes adds attributes to every call-flow event, e.g. the
// allowance amount shown on the page.
func WithCallAttributes(attrs map[string]any) Option {
	return func(r *Resolver) { r.callAttrs = attrs }
}

// WithMinCallDuration sets how long the visitor must be away after dialing
// for Returned to report a conversion.
func WithMinCallDuration(d time.Duration) Option {
	return func(r *Resolver) { r.minCall = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a resolver for a page whose static number is defaultNumber.
func New(defaultNumber string, globals GlobalReader, doc Document, opts ...Option) *Resolver {
	r := &Resolver{
		defaultNumber: defaultNumber,
		globals:       globals,
		doc:           doc,
		strategies:    DefaultStrategies(),
		minCall:       DefaultMinCallDuration,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Named("numberpool")
	}
	return r
}

// State returns the current poll state.
func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Current returns the resolved number, or the default when none was found.
func (r *Resolver) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current != "" {
		return r.current
	}
	return r.defaultNumber
}

// Source names the strategy that produced the current number. Empty while
// the default is in use.
func (r *Resolver) Source() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.source
}

// Start runs the first check and, when nothing is assigned yet, writes the
// default number onto the page.
func (r *Resolver) Start(ctx context.Context) bool {
	if r.Check(ctx) {
		return true
	}
	r.logger.Debug("no assigned number yet, using default",
		zap.String("default", r.defaultNumber))
	r.writeBack(ctx, r.defaultNumber)
	return false
}

// Check runs one detection pass. It reports whether a number has been found,
// either now or on an earlier pass.
func (r *Resolver) Check(ctx context.Context) bool {
	switch r.State() {
	case Found:
		return true
	case Idle:
		return r.Source() != ""
	}

	globals, elements := r.snapshot(ctx)
	for _, s := range r.strategies {
		number, ok := r.detect(s, globals, elements)
		if !ok {
			continue
		}

		r.mu.Lock()
		if r.state != Searching {
			r.mu.Unlock()
			return r.state == Found
		}
		r.current = number
		r.source = s.Name
		r.state = Found
		r.mu.Unlock()

		r.logger.Info("assigned number found",
			zap.String("strategy", s.Name),
			zap.String("number", number))
		r.writeBack(ctx, number)
		return true
	}
	return false
}

// snapshot reads both adapters. A failing adapter yields an empty snapshot
// so the remaining strategies still get a chance.
func (r *Resolver) snapshot(ctx context.Context) (globals GlobalState, elements []Element) {
	if r.globals != nil {
		func() {
			defer r.recoverPanic("read globals")
			g, err := r.globals.ReadGlobals(ctx)
			if err != nil {
				r.logger.Warn("reading vendor globals failed", zap.Error(err))
				return
			}
			globals = g
		}()
	}
	if r.doc != nil {
		func() {
			defer r.recoverPanic("snapshot document")
			els, err := r.doc.Snapshot(ctx)
			if err != nil {
				r.logger.Warn("document snapshot failed", zap.Error(err))
				return
			}
			elements = els
		}()
	}
	return globals, elements
}

func (r *Resolver) detect(s Strategy, globals GlobalState, elements []Element) (number string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("detection strategy panicked",
				zap.String("strategy", s.Name),
				zap.Any("panic", rec))
			number, ok = "", false
		}
	}()
	return s.Detect(globals, elements, r.defaultNumber)
}

// writeBack keeps the display text and the control attribute in step so the
// next poll and the click handler observe the same value.
func (r *Resolver) writeBack(ctx context.Context, number string) {
	if r.doc == nil {
		return
	}
	defer r.recoverPanic("write back")
	if err := r.doc.SetDisplay(ctx, phone.Format(number)); err != nil {
		r.logger.Warn("updating phone display failed", zap.Error(err))
	}
	if err := r.doc.SetControlNumber(ctx, number); err != nil {
		r.logger.Warn("updating call control failed", zap.Error(err))
	}
}

// Call handles activation of the call control: it reports the click and
// dials whichever number is current. Tracking failures never block the call.
func (r *Resolver) Call(ctx context.Context, d Dialer) (err error) {
	number := r.Current()
	uri := phone.TelURI(number)

	r.notify(ctx, "button_click", map[string]any{
		"button_name":  "call_now",
		"phone_number": number,
	})
	r.notify(ctx, "phone_call", map[string]any{
		"phone_number": number,
		"call_type":    "consultation",
	})

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("dialer panicked", zap.String("uri", uri), zap.Any("panic", rec))
			err = fmt.Errorf("dial %s: %v", uri, rec)
		}
	}()

	r.logger.Info("initiating call", zap.String("uri", uri), zap.String("source", r.Source()))
	if err := d.Dial(ctx, uri); err != nil {
		r.logger.Error("call navigation failed", zap.String("uri", uri), zap.Error(err))
		return fmt.Errorf("dial %s: %w", uri, err)
	}

	r.mu.Lock()
	r.dialed = number
	r.mu.Unlock()
	return nil
}

// Returned handles the visitor coming back to the page elapsed after the
// last dial. An absence of at least the minimum call duration is reported as
// a conversion. Only the first return after a dial counts.
func (r *Resolver) Returned(ctx context.Context, elapsed time.Duration) bool {
	r.mu.Lock()
	number := r.dialed
	r.dialed = ""
	r.mu.Unlock()

	if number == "" {
		return false
	}
	if elapsed < r.minCall {
		r.logger.Debug("call too short to count",
			zap.Duration("elapsed", elapsed),
			zap.Duration("min", r.minCall))
		return false
	}

	r.logger.Info("visitor returned from call",
		zap.String("number", number),
		zap.Duration("elapsed", elapsed))
	r.notify(ctx, "conversion", map[string]any{
		"value":         1,
		"currency":      "USD",
		"call_duration": elapsed.Milliseconds(),
		"phone_number":  number,
		"event_type":    "call_completed",
	})
	return true
}

func (r *Resolver) notify(ctx context.Context, event string, attrs map[string]any) {
	if r.tracker == nil {
		return
	}
	for k, v := range r.callAttrs {
		if _, exists := attrs[k]; !exists {
			attrs[k] = v
		}
	}
	defer r.recoverPanic("track " + event)
	if err := r.tracker.Track(ctx, event, attrs); err != nil {
		r.logger.Warn("call tracking failed", zap.String("event", event), zap.Error(err))
	}
}

// stop moves the resolver to Idle. Called on teardown.
func (r *Resolver) stop() {
	r.mu.Lock()
	r.state = Idle
	r.mu.Unlock()
}

func (r *Resolver) recoverPanic(op string) {
	if rec := recover(); rec != nil {
		r.logger.Warn("recovered panic", zap.String("op", op), zap.Any("panic", rec))
	}
}
