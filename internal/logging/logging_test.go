package logging

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func resetLoggerForTest() {
	initOnce = sync.Once{}
	logger = nil
	exitFunc = os.Exit
}

func TestParseLevelMappings(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("unknown"))
}

func TestLoggerSingleton(t *testing.T) {
	resetLoggerForTest()
	first := L()
	second := L()
	assert.Same(t, first, second)
}

func TestLoggerHonoursLevelEnv(t *testing.T) {
	resetLoggerForTest()
	t.Setenv("FUNNEL_LOG_LEVEL", "error")
	t.Setenv("FUNNEL_LOG_FORMAT", "json")

	l := L()
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestSetLevelAdjustsSharedLogger(t *testing.T) {
	resetLoggerForTest()
	t.Setenv("FUNNEL_LOG_LEVEL", "info")
	t.Cleanup(func() { level.SetLevel(zapcore.InfoLevel) })

	l := L()
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	SetLevel("debug")
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, Named("relay").Core().Enabled(zapcore.DebugLevel))

	SetLevel("")
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel), "empty names are ignored")

	SetLevel("error")
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNamedReturnsChildLogger(t *testing.T) {
	resetLoggerForTest()
	assert.NotNil(t, Named("relay"))
}

func TestFatalInvokesExitFunction(t *testing.T) {
	resetLoggerForTest()

	var exitCode int
	exitFunc = func(code int) {
		exitCode = code
	}

	logger = zap.NewNop()
	initOnce = sync.Once{}
	initOnce.Do(func() {})

	Fatal("boom", zap.String("key", "value"))

	require.Equal(t, 1, exitCode)
}

func TestSync(t *testing.T) {
	resetLoggerForTest()

	assert.Nil(t, Sync())

	// Sync on stderr may fail on some platforms; only the nil-logger path is asserted
	L()
	_ = Sync()
}
