package clog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readEntries 读取 JSON 格式日志文件的全部记录
func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), scanner.Text())
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func newFileLogger(t *testing.T, level string, opts ...Option) (Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := New(context.Background(), &Config{
		Level:     level,
		Format:    "json",
		Output:    path,
		AddSource: true,
	}, opts...)
	require.NoError(t, err)
	return logger, path
}

func TestGetDefaultConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	dev := GetDefaultConfig("development")
	assert.Equal(t, "debug", dev.Level)
	assert.Equal(t, "console", dev.Format)
	assert.True(t, dev.EnableColor)

	prod := GetDefaultConfig("production")
	assert.Equal(t, "info", prod.Level)
	assert.Equal(t, "json", prod.Format)
	assert.False(t, prod.EnableColor)

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, "warn", GetDefaultConfig("production").Level)
}

func TestConfigValidate(t *testing.T) {
	valid := GetDefaultConfig("production")
	assert.NoError(t, valid.Validate())

	cases := map[string]*Config{
		"level":    {Level: "verbose", Format: "json", Output: "stdout"},
		"format":   {Level: "info", Format: "xml", Output: "stdout"},
		"output":   {Level: "info", Format: "json"},
		"rotation": {Level: "info", Format: "json", Output: "a.log", Rotation: &RotationConfig{MaxAge: -1}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}

	_, err := New(context.Background(), cases["level"])
	assert.Error(t, err)
	assert.Error(t, Init(context.Background(), cases["format"]))
}

func TestLevelsAndFields(t *testing.T) {
	logger, path := newFileLogger(t, "info")

	logger.Debug("hidden")
	logger.Info("segment loaded",
		String("name", "order"),
		Int64("min", 101),
		Bool("staged", true),
		Duration("waited", 3*time.Second),
		Err(errors.New("boom")),
	)
	logger.Warn("warn msg")
	require.NoError(t, logger.Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "segment loaded", first["msg"])
	assert.Equal(t, "order", first["name"])
	assert.EqualValues(t, 101, first["min"])
	assert.Equal(t, true, first["staged"])
	assert.Equal(t, "3s", first["waited"])
	assert.Equal(t, "boom", first["error"])
	assert.Contains(t, first["caller"], "clog_test.go")

	assert.Equal(t, "warn", entries[1]["level"])
}

func TestNamespace(t *testing.T) {
	logger, path := newFileLogger(t, "debug", WithNamespace("uid"))

	logger.Info("root")
	logger.Namespace("sequence").Info("child")
	// With 不允许覆盖 namespace
	logger.With(String("namespace", "other"), String("k", "v")).Info("with")
	require.NoError(t, logger.Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 3)
	assert.Equal(t, "uid", entries[0]["namespace"])
	assert.Equal(t, "uid.sequence", entries[1]["namespace"])
	assert.Equal(t, "uid", entries[2]["namespace"])
	assert.Equal(t, "v", entries[2]["k"])
}

func TestContextTraceID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.log")
	require.NoError(t, Init(context.Background(), &Config{Level: "debug", Format: "json", Output: path}))

	ctx := WithTraceID(context.Background(), "trace-123")
	WithContext(ctx).Info("with trace")
	WithContext(context.Background()).Info("without trace")
	Info("package level", String("k", "v"))
	require.NoError(t, Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 3)
	assert.Equal(t, "trace-123", entries[0]["trace_id"])
	assert.NotContains(t, entries[1], "trace_id")
	assert.Equal(t, "v", entries[2]["k"])
}

func TestFatalUsesExitFunc(t *testing.T) {
	logger, path := newFileLogger(t, "info")

	code := -1
	SetExitFunc(func(c int) { code = c })
	defer SetExitFunc(os.Exit)

	logger.Fatal("fatal msg")
	assert.Equal(t, 1, code)

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "fatal", entries[0]["level"])
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotate", "app.log")
	logger, err := New(context.Background(), &Config{
		Level:    "info",
		Format:   "json",
		Output:   path,
		Rotation: &RotationConfig{MaxSize: 1, MaxBackups: 2, MaxAge: 1},
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		logger.Info("rotating", Int("i", i))
	}
	require.NoError(t, logger.Sync())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
