package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/hackslash/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "production", slog.LevelInfo).Info("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	New(&buf, "development", slog.LevelInfo).Info("hello", "k", 1)
	assert.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	New(&buf, "development", slog.LevelWarn).Info("quiet")
	assert.Empty(t, buf.String())
}

func TestHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "development", slog.LevelInfo)
	WithError(WithSession(l, "abc"), errors.New("boom")).Info("x")
	assert.Contains(t, buf.String(), "session_id=abc")
	assert.Contains(t, buf.String(), "error=boom")
}

func TestSetupLogFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "game.log")
	l, closeFn, err := Setup(&config.Config{LogFile: path, LogLevel: slog.LevelInfo})
	require.NoError(t, err)
	l.Info("to file")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestSetupBadLogFile(t *testing.T) {
	_, _, err := Setup(&config.Config{LogFile: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
