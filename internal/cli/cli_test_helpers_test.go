package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fnErr := fn()

	_ = w.Close()
	os.Stdout = originalStdout

	output, readErr := io.ReadAll(r)
	require.NoError(t, readErr)
	_ = r.Close()

	return string(output), fnErr
}

// isolateConfig points config loading at an empty temp home so the
// developer's own funnel.toml and environment never leak into tests.
func isolateConfig(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{"PORT", "TRACKING_API_URL", "DEFAULT_PHONE_NUMBER", "NUMBER_POOL_TAG", "TRUSTED_ORIGINS", "INJECT_SCRIPT_PATHS", "POLL_FAST_INTERVAL", "POLL_WINDOW", "POLL_SLOW_INTERVAL", "MIN_CALL_DURATION", "FUNNEL_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	return home
}

func stubTerminal(t *testing.T, isTTY bool) {
	t.Helper()
	original := stdoutIsTerminal
	stdoutIsTerminal = func() bool { return isTTY }
	t.Cleanup(func() {
		stdoutIsTerminal = original
	})
}

// setFlag assigns a package-level flag variable for the duration of a test.
func setFlag[T any](t *testing.T, target *T, value T) {
	t.Helper()
	original := *target
	*target = value
	t.Cleanup(func() {
		*target = original
	})
}
