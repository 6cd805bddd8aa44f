package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultLevelIsWarn(t *testing.T) {
	t.Setenv(EnvDebug, "")
	t.Setenv(EnvLogFile, "")

	var buf bytes.Buffer
	logger, closeFn, err := New(&buf, Options{RunID: "r1"})
	require.NoError(t, err)
	defer closeFn()

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown", "path", "a.go")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "path=a.go")
}

func TestNew_DebugFromEnv(t *testing.T) {
	t.Setenv(EnvDebug, "1")
	t.Setenv(EnvLogFile, "")

	var buf bytes.Buffer
	logger, closeFn, err := New(&buf, Options{})
	require.NoError(t, err)
	defer closeFn()

	logger.Debug("details")
	assert.Contains(t, buf.String(), "msg=details")
	assert.Regexp(t, `run_id=[0-9a-f-]{36}`, buf.String())
}

func TestNew_LogFile(t *testing.T) {
	t.Setenv(EnvDebug, "")
	path := filepath.Join(t.TempDir(), "logs", "critic.log")
	t.Setenv(EnvLogFile, path)

	var buf bytes.Buffer
	logger, closeFn, err := New(&buf, Options{RunID: "r2"})
	require.NoError(t, err)

	logger.Debug("file only")
	logger.Warn("both")
	require.NoError(t, closeFn())

	assert.NotContains(t, buf.String(), "file only")
	assert.Contains(t, buf.String(), "both")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "file only", rec["msg"])
	assert.Equal(t, "r2", rec["run_id"])
}

func TestNew_LogFileUnwritable(t *testing.T) {
	t.Setenv(EnvDebug, "")
	dir := t.TempDir()
	_, closeFn, err := New(&bytes.Buffer{}, Options{File: dir})
	assert.ErrorContains(t, err, "opening log file")
	assert.NotNil(t, closeFn)
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(&buf, Options{RunID: "ctx"})
	require.NoError(t, err)

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
