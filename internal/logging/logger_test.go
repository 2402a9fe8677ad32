package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reset(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer

	mutex.Lock()
	loggers = make(map[string]*slog.Logger)
	levels = make(map[string]*slog.LevelVar)
	config = Config{}
	initialized = false
	output = &buf
	mutex.Unlock()

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	return &buf
}

func TestModuleLevelOverride(t *testing.T) {
	reset(t)

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"card":   "debug",
			"stream": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"card", true, true, true},
		{"stream", false, false, true},
		{"device", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			h := GetLogger(tt.module).Handler()
			ctx := context.Background()

			assert.Equal(t, tt.wantDebug, h.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.wantInfo, h.Enabled(ctx, slog.LevelInfo))
			assert.Equal(t, tt.wantWarn, h.Enabled(ctx, slog.LevelWarn))
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	buf := reset(t)

	early := GetLogger("card")
	assert.False(t, early.Handler().Enabled(context.Background(), slog.LevelDebug))

	Initialize(Config{Level: "debug", Format: "json"})

	GetLogger("card").Debug("scan", "slot", "speaker")
	assert.Contains(t, buf.String(), `"msg":"scan"`)
	assert.Contains(t, buf.String(), `"module":"card"`)
	assert.Contains(t, buf.String(), `"slot":"speaker"`)
}

func TestSetLevel(t *testing.T) {
	buf := reset(t)

	Initialize(Config{Level: "warn"})

	logger := GetLogger("stream")
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	SetLevel("stream", "info")
	logger.Info("shown")
	assert.Contains(t, buf.String(), "shown")

	// Unknown level strings keep the current level.
	SetLevel("stream", "loud")
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG", slog.LevelInfo))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning", slog.LevelInfo))
	assert.Equal(t, slog.LevelError, parseLevel("error", slog.LevelInfo))
	assert.Equal(t, slog.LevelInfo, parseLevel("", slog.LevelInfo))
}

func TestJournalFields(t *testing.T) {
	fields := map[string]string{}

	journalFields(fields, slog.Int("card", 1), nil)
	journalFields(fields, slog.Group("route", slog.String("class", "speaker")), []string{"out"})
	journalFields(fields, slog.Attr{}, nil)

	assert.Equal(t, map[string]string{
		"CARD":            "1",
		"OUT_ROUTE_CLASS": "speaker",
	}, fields)
}

func TestMultiHandler(t *testing.T) {
	var a, b bytes.Buffer

	h := NewMultiHandler(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)

	logger := slog.New(h).With("module", "x")
	logger.Debug("low")
	logger.Warn("high")

	assert.Contains(t, a.String(), "low")
	assert.Contains(t, a.String(), "high")
	assert.NotContains(t, b.String(), "low")
	assert.Contains(t, b.String(), "module=x")
}
