// Package browser drives a live landing page through the Chrome DevTools
// protocol so the number pool resolver can observe what a visitor would see.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"

	"github.com/seuros/funnel/internal/numberpool"
)

// readGlobalsJS copies the vendor globals into plain JSON. Nothing on the page
// is written.
const readGlobalsJS = `() => {
	try {
		const rgba = window._rgba || {};
		const out = {};
		if (Array.isArray(rgba.numbers)) out.numbers = rgba.numbers;
		if (rgba.data !== undefined && rgba.data !== null) out.data = rgba.data;
		if (window.ringba_known_numbers && typeof window.ringba_known_numbers === "object") {
			out.known_numbers = window.ringba_known_numbers;
		}
		if (typeof window.defaultRingbaNumber === "string") {
			out.assigned_number = window.defaultRingbaNumber;
		}
		return JSON.stringify(out);
	} catch (e) {
		return "{}";
	}
}`

const snapshotJS = `(selector, attr) => {
	try {
		return JSON.stringify(Array.from(document.querySelectorAll(selector)).map((el) => ({
			tag: el.tagName.toLowerCase(),
			href: el.getAttribute("href") || "",
			data_number: el.getAttribute(attr) || "",
			has_data_number: el.hasAttribute(attr),
			text: (el.textContent || "").trim(),
		})));
	} catch (e) {
		return "[]";
	}
}`

const setDisplayJS = `(id, text) => {
	const el = document.getElementById(id);
	if (!el) return false;
	el.textContent = text;
	return true;
}`

const setControlJS = `(attr, number) => {
	const el = document.querySelector("button[" + attr + "]") || document.querySelector("button");
	if (!el) return false;
	el.setAttribute(attr, number);
	return true;
}`

// Page adapts a rod page to numberpool.GlobalReader and numberpool.Document.
type Page struct {
	page *rod.Page
}

// NewPage wraps p.
func NewPage(p *rod.Page) *Page {
	return &Page{page: p}
}

var (
	_ numberpool.GlobalReader = (*Page)(nil)
	_ numberpool.Document     = (*Page)(nil)
)

// ReadGlobals implements numberpool.GlobalReader.
func (p *Page) ReadGlobals(ctx context.Context) (numberpool.GlobalState, error) {
	raw, err := p.eval(ctx, readGlobalsJS)
	if err != nil {
		return numberpool.GlobalState{}, fmt.Errorf("read globals: %w", err)
	}
	return decodeGlobals(raw)
}

// Snapshot implements numberpool.Document.
func (p *Page) Snapshot(ctx context.Context) ([]numberpool.Element, error) {
	raw, err := p.eval(ctx, snapshotJS, strings.Join(numberpool.Selectors, ", "), numberpool.NumberAttribute)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return decodeElements(raw)
}

// SetDisplay implements numberpool.Document.
func (p *Page) SetDisplay(ctx context.Context, text string) error {
	_, err := p.eval(ctx, setDisplayJS, numberpool.DisplayElementID, text)
	return err
}

// SetControlNumber implements numberpool.Document.
func (p *Page) SetControlNumber(ctx context.Context, number string) error {
	_, err := p.eval(ctx, setControlJS, numberpool.NumberAttribute, number)
	return err
}

// DisplayText returns the current text of the display element.
func (p *Page) DisplayText(ctx context.Context) string {
	raw, err := p.eval(ctx, `(id) => { const el = document.getElementById(id); return el ? el.textContent.trim() : ""; }`, numberpool.DisplayElementID)
	if err != nil {
		return ""
	}
	return raw
}

func (p *Page) eval(ctx context.Context, js string, args ...interface{}) (string, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return "", err
	}
	if res == nil || res.Value.Nil() {
		return "", nil
	}
	return res.Value.String(), nil
}

// decodeGlobals keeps numbers as json.Number so they survive extraction
// without float formatting.
func decodeGlobals(raw string) (numberpool.GlobalState, error) {
	var state numberpool.GlobalState
	if strings.TrimSpace(raw) == "" {
		return state, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&state); err != nil {
		return numberpool.GlobalState{}, fmt.Errorf("decode globals: %w", err)
	}
	return state, nil
}

func decodeElements(raw string) ([]numberpool.Element, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var elements []numberpool.Element
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}
	return elements, nil
}

// Recorder is a numberpool.Dialer that records tel: URIs instead of leaving
// the page.
type Recorder struct {
	mu   sync.Mutex
	uris []string
}

// Dial implements numberpool.Dialer.
func (r *Recorder) Dial(_ context.Context, uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uris = append(r.uris, uri)
	return nil
}

// Last returns the most recent URI, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.uris) == 0 {
		return ""
	}
	return r.uris[len(r.uris)-1]
}
