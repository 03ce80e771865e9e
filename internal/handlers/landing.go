package handlers

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/template/html/v2"

	"github.com/seuros/funnel/internal/numberpool"
	"github.com/seuros/funnel/internal/phone"
)

//go:embed views/*.html
var viewsFS embed.FS

// LandingView is the name the landing template is registered under.
const LandingView = "landing"

const defaultTitle = "Medicare Grocery Allowance Benefits"

// NewViews returns the template engine serving the embedded landing page.
func NewViews() *html.Engine {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		// embed guarantees the directory exists
		panic(err)
	}
	return html.NewFileSystem(http.FS(sub), ".html")
}

// Landing configures the landing page.
type Landing struct {
	Title         string
	DefaultNumber string
	NumberPoolTag string
	// Poll is the in-page resolver cadence.
	Poll numberpool.Schedule
	// MinCallDuration is the absence after dialing that the page reports
	// as a completed call.
	MinCallDuration time.Duration
}

// HandleLanding renders the landing template for / and /:slug. The number
// shown is always the static default; the page script polls for the vendor's
// assignment and swaps it client side.
func HandleLanding(page Landing) fiber.Handler {
	title := page.Title
	if title == "" {
		title = defaultTitle
	}
	poll := page.Poll.WithDefaults()
	minCall := page.MinCallDuration
	if minCall <= 0 {
		minCall = numberpool.DefaultMinCallDuration
	}

	return func(c fiber.Ctx) error {
		slug := strings.Trim(c.Params("slug"), "/")
		if slug == "" {
			slug = "home"
		}

		return c.Render(LandingView, fiber.Map{
			"Title":         title,
			"Page":          slug,
			"DefaultNumber": page.DefaultNumber,
			"DisplayNumber": phone.Format(page.DefaultNumber),
			// tel: is outside html/template's URL allowlist
			"TelURI":        template.URL(phone.TelURI(page.DefaultNumber)),
			"NumberPoolTag": page.NumberPoolTag,
			"PollFast":      poll.Fast.Milliseconds(),
			"PollWindow":    poll.Window.Milliseconds(),
			"PollSlow":      poll.Slow.Milliseconds(),
			"MinCall":       minCall.Milliseconds(),
		})
	}
}

// HandleHealth is GET /healthz.
func HandleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
