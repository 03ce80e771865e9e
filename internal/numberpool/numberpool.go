// Package numberpool reconciles the statically rendered default phone number
// of a landing page with the one a call-tracking vendor assigns at runtime.
//
// The vendor script owns a handful of window globals and may rewrite phone
// elements in the DOM. Nothing pushes a notification when that happens, so a
// Resolver polls read-only snapshots of both through narrow adapters
// (GlobalReader, Document) and writes the winning number back onto the page.
package numberpool

import "context"

// DOM contract shared with the landing template.
const (
	DisplayElementID = "dynamic-phone-number"
	NumberAttribute  = "data-ringba-number"
)

// Selectors are the elements a vendor is known to rewrite.
var Selectors = []string{
	"[" + NumberAttribute + "]",
	".ringba-number",
	".rnum",
	`a[href^="tel:"]`,
}

// GlobalState is a read-only snapshot of the vendor's window globals.
type GlobalState struct {
	// Numbers mirrors window._rgba.numbers.
	Numbers []any `json:"numbers,omitempty"`
	// Data mirrors window._rgba.data.
	Data any `json:"data,omitempty"`
	// KnownNumbers mirrors window.ringba_known_numbers.
	KnownNumbers map[string]any `json:"known_numbers,omitempty"`
	// AssignedNumber mirrors window.defaultRingbaNumber.
	AssignedNumber string `json:"assigned_number,omitempty"`
}

// Element is one DOM node matching Selectors.
type Element struct {
	Tag           string `json:"tag"`
	Href          string `json:"href,omitempty"`
	DataNumber    string `json:"data_number,omitempty"`
	HasDataNumber bool   `json:"has_data_number,omitempty"`
	Text          string `json:"text,omitempty"`
}

// GlobalReader exposes vendor globals without letting callers mutate them.
type GlobalReader interface {
	ReadGlobals(ctx context.Context) (GlobalState, error)
}

// Document is the slice of the page the resolver reads and writes.
type Document interface {
	Snapshot(ctx context.Context) ([]Element, error)
	SetDisplay(ctx context.Context, text string) error
	SetControlNumber(ctx context.Context, number string) error
}

// Dialer places a call by navigating to a tel: URI.
type Dialer interface {
	Dial(ctx context.Context, uri string) error
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, uri string) error

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, uri string) error {
	return f(ctx, uri)
}

// Tracker receives call-flow events. Implementations are best effort.
type Tracker interface {
	Track(ctx context.Context, event string, attrs map[string]any) error
}

// StaticGlobals is a GlobalReader over a fixed snapshot.
type StaticGlobals GlobalState

// ReadGlobals implements GlobalReader.
func (s StaticGlobals) ReadGlobals(context.Context) (GlobalState, error) {
	return GlobalState(s), nil
}
