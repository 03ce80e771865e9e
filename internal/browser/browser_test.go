package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rewrittenPage = `<!DOCTYPE html>
<html><head>
<script>window.defaultRingbaNumber = "+18554690274";</script>
</head><body>
<span id="dynamic-phone-number">+1 (855) 469-0274</span>
<a class="rnum" href="tel:+18005550199">1-800-555-0199</a>
<button data-ringba-number="+18554690274">Call Now</button>
</body></html>`

const untouchedPage = `<!DOCTYPE html>
<html><body>
<span id="dynamic-phone-number">+1 (855) 469-0274</span>
<button data-ringba-number="+18554690274">Call Now</button>
</body></html>`

func servePage(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type recordingTracker struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingTracker) Track(_ context.Context, event string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func TestDecodeGlobals(t *testing.T) {
	state, err := decodeGlobals(`{"numbers":[{"number":"+18005550111"}],"data":{"phoneNumber":"8005550122"},"known_numbers":{"a":18005550133},"assigned_number":"+18554690274"}`)
	require.NoError(t, err)

	require.Len(t, state.Numbers, 1)
	assert.Equal(t, map[string]any{"number": "+18005550111"}, state.Numbers[0])
	assert.Equal(t, map[string]any{"phoneNumber": "8005550122"}, state.Data)
	assert.Equal(t, json.Number("18005550133"), state.KnownNumbers["a"])
	assert.Equal(t, "+18554690274", state.AssignedNumber)

	state, err = decodeGlobals("")
	require.NoError(t, err)
	assert.Empty(t, state.Numbers)

	_, err = decodeGlobals("{not json")
	assert.Error(t, err)
}

func TestDecodeElements(t *testing.T) {
	elements, err := decodeElements(`[{"tag":"a","href":"tel:+18005550199","text":"1-800-555-0199"},{"tag":"button","data_number":"+18554690274","has_data_number":true}]`)
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "tel:+18005550199", elements[0].Href)
	assert.True(t, elements[1].HasDataNumber)

	elements, err = decodeElements("")
	require.NoError(t, err)
	assert.Nil(t, elements)

	_, err = decodeElements(`{"tag":"a"}`)
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	assert.Empty(t, rec.Last())
	require.NoError(t, rec.Dial(context.Background(), "tel:+1"))
	require.NoError(t, rec.Dial(context.Background(), "tel:+2"))
	assert.Equal(t, "tel:+2", rec.Last())
}

func TestProbeStaticFindsRewrittenNumber(t *testing.T) {
	srv := servePage(t, http.StatusOK, rewrittenPage)
	tracker := &recordingTracker{}

	result, err := ProbeStatic(context.Background(), srv.URL, ProbeOptions{
		DefaultNumber: "+18554690274",
		Click:         true,
		Tracker:       tracker,
	})
	require.NoError(t, err)

	assert.Equal(t, "static", result.Mode)
	assert.True(t, result.Found)
	assert.Equal(t, "dom", result.Source)
	assert.Equal(t, "+18005550199", result.Number)
	assert.Equal(t, "+1 (800) 555-0199", result.Display)
	assert.Equal(t, "tel:+18005550199", result.Dialed)
	assert.Equal(t, "found", result.State)
	assert.Equal(t, []string{"button_click", "phone_call"}, tracker.events)
}

func TestProbeStaticReportsConversion(t *testing.T) {
	srv := servePage(t, http.StatusOK, rewrittenPage)
	tracker := &recordingTracker{}

	result, err := ProbeStatic(context.Background(), srv.URL, ProbeOptions{
		DefaultNumber: "+18554690274",
		Click:         true,
		CallDuration:  12 * time.Second,
		Tracker:       tracker,
	})
	require.NoError(t, err)

	assert.True(t, result.Converted)
	assert.Equal(t, []string{"button_click", "phone_call", "conversion"}, tracker.events)

	result, err = ProbeStatic(context.Background(), srv.URL, ProbeOptions{
		DefaultNumber: "+18554690274",
		Click:         true,
		CallDuration:  3 * time.Second,
	})
	require.NoError(t, err)
	assert.False(t, result.Converted)

	result, err = ProbeStatic(context.Background(), srv.URL, ProbeOptions{
		DefaultNumber:   "+18554690274",
		Click:           true,
		CallDuration:    3 * time.Second,
		MinCallDuration: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, result.Converted)
}

func TestProbeStaticKeepsDefault(t *testing.T) {
	srv := servePage(t, http.StatusOK, untouchedPage)

	result, err := ProbeStatic(context.Background(), srv.URL, ProbeOptions{
		DefaultNumber: "+18554690274",
		Click:         true,
	})
	require.NoError(t, err)

	assert.False(t, result.Found)
	assert.Empty(t, result.Source)
	assert.Equal(t, "+18554690274", result.Number)
	assert.Equal(t, "+1 (855) 469-0274", result.Display)
	assert.Equal(t, "tel:+18554690274", result.Dialed)
}

func TestProbeStaticErrors(t *testing.T) {
	_, err := ProbeStatic(context.Background(), "http://127.0.0.1:1", ProbeOptions{})
	assert.ErrorIs(t, err, ErrNoDefaultNumber)

	srv := servePage(t, http.StatusNotFound, "missing")
	_, err = ProbeStatic(context.Background(), srv.URL, ProbeOptions{DefaultNumber: "+18554690274"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	_, err = ProbeStatic(context.Background(), "http://127.0.0.1:1", ProbeOptions{
		DefaultNumber: "+18554690274",
		Timeout:       time.Second,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch page")
}

func stubConnectBrowser(t *testing.T, fn func(ctx context.Context, controlURL string) (*rod.Browser, func(), error)) {
	t.Helper()
	original := connectBrowser
	connectBrowser = fn
	t.Cleanup(func() {
		connectBrowser = original
	})
}

func TestProbeRequiresDefaultNumber(t *testing.T) {
	stubConnectBrowser(t, func(context.Context, string) (*rod.Browser, func(), error) {
		t.Fatal("browser must not start without a default number")
		return nil, nil, nil
	})

	_, err := Probe(context.Background(), "http://example.com", ProbeOptions{})
	assert.ErrorIs(t, err, ErrNoDefaultNumber)
}

func TestProbeReportsConnectFailure(t *testing.T) {
	var gotURL string
	stubConnectBrowser(t, func(_ context.Context, controlURL string) (*rod.Browser, func(), error) {
		gotURL = controlURL
		return nil, nil, errors.New("connect to chrome: refused")
	})

	_, err := Probe(context.Background(), "http://example.com", ProbeOptions{
		DefaultNumber: "+18554690274",
		ControlURL:    "ws://127.0.0.1:9222/devtools/browser/x",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/x", gotURL)
}
