// Package dom adapts a parsed HTML document to the numberpool capability
// interfaces, for pages fetched without a JavaScript runtime.
package dom

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/seuros/funnel/internal/numberpool"
)

var (
	_ numberpool.Document     = (*Document)(nil)
	_ numberpool.GlobalReader = InlineGlobals{}
)

// Document is a mutable HTML tree. It is safe for concurrent use.
type Document struct {
	mu   sync.Mutex
	root *html.Node

	// ControlID is the id of the call-to-action control. When empty the
	// first button carrying the number attribute is used, else the first
	// button.
	ControlID string
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Snapshot implements numberpool.Document.
func (d *Document) Snapshot(context.Context) ([]numberpool.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []numberpool.Element
	walk(d.root, func(n *html.Node) bool {
		if !matchesNumberSelector(n) {
			return true
		}
		dataNumber, hasData := attr(n, numberpool.NumberAttribute)
		href, _ := attr(n, "href")
		out = append(out, numberpool.Element{
			Tag:           n.Data,
			Href:          href,
			DataNumber:    dataNumber,
			HasDataNumber: hasData,
			Text:          strings.TrimSpace(textContent(n)),
		})
		return true
	})
	return out, nil
}

// SetDisplay implements numberpool.Document.
func (d *Document) SetDisplay(_ context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	el := d.byID(numberpool.DisplayElementID)
	if el == nil {
		return nil
	}
	for c := el.FirstChild; c != nil; {
		next := c.NextSibling
		el.RemoveChild(c)
		c = next
	}
	el.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return nil
}

// SetControlNumber implements numberpool.Document.
func (d *Document) SetControlNumber(_ context.Context, number string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	el := d.control()
	if el == nil {
		return nil
	}
	setAttr(el, numberpool.NumberAttribute, number)
	return nil
}

// DisplayText returns the current text of the display element.
func (d *Document) DisplayText() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el := d.byID(numberpool.DisplayElementID); el != nil {
		return strings.TrimSpace(textContent(el))
	}
	return ""
}

// ControlNumber returns the number attribute of the call control.
func (d *Document) ControlNumber() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el := d.control(); el != nil {
		v, _ := attr(el, numberpool.NumberAttribute)
		return v
	}
	return ""
}

// Render serializes the current tree.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// String renders the document, ignoring errors.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

func (d *Document) byID(id string) *html.Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if v, ok := attr(n, "id"); ok && v == id && n.Type == html.ElementNode {
			found = n
			return false
		}
		return true
	})
	return found
}

func (d *Document) control() *html.Node {
	if d.ControlID != "" {
		return d.byID(d.ControlID)
	}
	var withAttr, first *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Button {
			return true
		}
		if first == nil {
			first = n
		}
		if _, ok := attr(n, numberpool.NumberAttribute); ok {
			withAttr = n
			return false
		}
		return true
	})
	if withAttr != nil {
		return withAttr
	}
	return first
}

// matchesNumberSelector mirrors numberpool.Selectors.
func matchesNumberSelector(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if _, ok := attr(n, numberpool.NumberAttribute); ok {
		return true
	}
	if hasClass(n, "ringba-number") || hasClass(n, "rnum") {
		return true
	}
	if n.DataAtom == atom.A {
		if href, ok := attr(n, "href"); ok && strings.HasPrefix(href, "tel:") {
			return true
		}
	}
	return false
}

// walk visits nodes depth first in document order until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

var assignedNumberRe = regexp.MustCompile(`defaultRingbaNumber\s*=\s*["']([^"']+)["']`)

// InlineGlobals reads vendor globals that inline scripts assign literally,
// such as `window.defaultRingbaNumber = "+18554690274"`.
type InlineGlobals struct {
	Doc *Document
}

// ReadGlobals implements numberpool.GlobalReader.
func (g InlineGlobals) ReadGlobals(context.Context) (numberpool.GlobalState, error) {
	var state numberpool.GlobalState
	if g.Doc == nil {
		return state, nil
	}

	g.Doc.mu.Lock()
	defer g.Doc.mu.Unlock()
	walk(g.Doc.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Script {
			return true
		}
		if m := assignedNumberRe.FindStringSubmatch(textContent(n)); m != nil {
			state.AssignedNumber = m[1]
		}
		return true
	})
	return state, nil
}
