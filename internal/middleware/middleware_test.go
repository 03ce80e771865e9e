package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(c fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

func newOriginTestApp(trusted ...string) *fiber.App {
	app := fiber.New()
	app.Use(SameOrigin(trusted))
	app.Post("/api/track", okHandler)
	return app
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		origin  string
		referer string
		want    int
	}{
		{name: "no headers", want: fiber.StatusOK},
		{name: "same host origin", origin: "http://example.com", want: fiber.StatusOK},
		{name: "same host mixed case", origin: "HTTPS://Example.com", want: fiber.StatusOK},
		{name: "same host referer", referer: "http://example.com/dinomedi?x=1", want: fiber.StatusOK},
		{name: "trusted origin", trusted: []string{"https://ads.partner.example/"}, origin: "https://ads.partner.example", want: fiber.StatusOK},
		{name: "trusted referer", trusted: []string{"https://ads.partner.example"}, referer: "https://ads.partner.example/page", want: fiber.StatusOK},
		{name: "foreign origin", origin: "https://evil.example", want: fiber.StatusForbidden},
		{name: "foreign referer", referer: "https://evil.example/page", want: fiber.StatusForbidden},
		{name: "trusted scheme mismatch", trusted: []string{"https://ads.partner.example"}, origin: "http://ads.partner.example", want: fiber.StatusForbidden},
		{name: "origin wins over referer", origin: "https://evil.example", referer: "http://example.com/", want: fiber.StatusForbidden},
		{name: "null origin falls back to referer", origin: "null", referer: "http://example.com/", want: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newOriginTestApp(tt.trusted...)

			req := httptest.NewRequest(http.MethodPost, "/api/track", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestSameOriginRejectionBody(t *testing.T) {
	app := newOriginTestApp()

	req := httptest.NewRequest(http.MethodPost, "/api/track", nil)
	req.Header.Set("Origin", "https://evil.example")

	resp, err := app.Test(req)
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	assert.JSONEq(t, `{"success":false,"error":"Origin not allowed"}`, string(body))
}

func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "https://Example.com/", want: "https://example.com"},
		{input: "http://localhost:3000/path?q=1", want: "http://localhost:3000"},
		{input: "  https://a.example  ", want: "https://a.example"},
		{input: "example.com", want: ""},
		{input: "", want: ""},
		{input: "://bad", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeOrigin(tt.input))
		})
	}
}

func TestInjectScript(t *testing.T) {
	app := fiber.New()
	app.Use(InjectScript([]string{"/dinomedi", " /promo/ ", ""}))
	app.Get("/*", okHandler)

	tests := []struct {
		path string
		want string
	}{
		{path: "/dinomedi", want: "true"},
		{path: "/dinomedi/step-2", want: "true"},
		{path: "/promo", want: "true"},
		{path: "/dinomedical", want: ""},
		{path: "/", want: ""},
		{path: "/dmedi", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.want, resp.Header.Get(InjectScriptHeader))
		})
	}
}

func TestMatchesPrefix(t *testing.T) {
	assert.True(t, matchesPrefix("/a", []string{"/b", "/a"}))
	assert.False(t, matchesPrefix("/ab", []string{"/a"}))
	assert.False(t, matchesPrefix("/a", nil))
}
