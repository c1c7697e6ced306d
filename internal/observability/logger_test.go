// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/duonglaiquang/htmlunit/internal/config"
)

// lockedBuffer is a WriteSyncer safe for the logger's concurrent writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error { return nil }

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func initForTest(t *testing.T, cfg config.LoggerConfig) *lockedBuffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	out := &lockedBuffer{}
	Initialize(cfg, out)
	return out
}

func TestInitialize(t *testing.T) {
	t.Run("console logger with colors", func(t *testing.T) {
		out := initForTest(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "htmlunit",
			Colors:      config.ColorConfig{Info: "green"},
		})
		GetLogger().Named("jsexec").Info("Script error swallowed")
		Sync()

		got := out.String()
		assert.Contains(t, got, colorGreen+"INFO"+colorReset)
		assert.Contains(t, got, "htmlunit.jsexec.")
		assert.Contains(t, got, "Script error swallowed")
	})

	t.Run("json logger", func(t *testing.T) {
		out := initForTest(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"})
		GetLogger().Warn("Failed to apply polyfill", zap.String("name", "fetch"))
		GetLogger().Debug("filtered out")
		Sync()

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(out.String()), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "Failed to apply polyfill", entry["msg"])
		assert.Equal(t, "fetch", entry["name"])
	})

	t.Run("bad level falls back to info", func(t *testing.T) {
		out := initForTest(t, config.LoggerConfig{Level: "loud", Format: "json"})
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		assert.NotContains(t, out.String(), "hidden")
		assert.Contains(t, out.String(), "shown")
	})

	t.Run("file output is rotated json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "htmlunit.log")
		initForTest(t, config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1})
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(content), &entry))
		assert.Equal(t, "This should go to the file.", entry["msg"])
	})

	t.Run("only the first initialization counts", func(t *testing.T) {
		out := initForTest(t, config.LoggerConfig{Level: "info", Format: "console", ServiceName: "First"})
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(&bytes.Buffer{}))

		assert.Same(t, first, GetLogger())
		GetLogger().Info("test")
		assert.Contains(t, out.String(), "First")
		assert.NotContains(t, out.String(), "Second")
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("global logger after initialization", func(t *testing.T) {
		initForTest(t, config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})
		assert.Same(t, globalLogger.Load(), GetLogger())
		assert.Same(t, GetLogger(), zap.L())
	})
}

func TestNewLogger_DoesNotTouchGlobals(t *testing.T) {
	ResetForTest()
	out := &lockedBuffer{}
	l := NewLogger(config.LoggerConfig{Level: "info", Format: "json"}, out)
	l.Info("local")
	assert.Contains(t, out.String(), "local")
	assert.Nil(t, globalLogger.Load())
}
