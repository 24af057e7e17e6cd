package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gpbackup/pkg/config"
)

func bufferLogger(t *testing.T) (*zerologLogger, *bytes.Buffer) {
	t.Helper()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	return newWithWriter(&buf), &buf
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "gpbackup.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
			if tt.cfg.File != "" {
				_, statErr := os.Stat(tt.cfg.File)
				assert.NoError(t, statErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLoggerWritesAppField(t *testing.T) {
	l, buf := bufferLogger(t)
	l.Info("starting backup")

	out := buf.String()
	assert.Contains(t, out, "starting backup")
	assert.Contains(t, out, `"app":"gpbackup"`)
	assert.Contains(t, out, `"level":"info"`)
}

func TestFieldChaining(t *testing.T) {
	l, buf := bufferLogger(t)

	l.WithField("run_id", "abc").
		WithFields(map[string]interface{}{"photos": 3, "dry_run": true}).
		InfoWithFields("Enumeration complete", map[string]interface{}{"videos": 1})

	out := buf.String()
	assert.Contains(t, out, `"run_id":"abc"`)
	assert.Contains(t, out, `"photos":3`)
	assert.Contains(t, out, `"dry_run":true`)
	assert.Contains(t, out, `"videos":1`)
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	l, buf := bufferLogger(t)

	_ = l.WithField("media_id", "id1")
	l.Info("parent")

	assert.NotContains(t, buf.String(), "media_id")
}

func TestWithError(t *testing.T) {
	l, buf := bufferLogger(t)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("connection reset")).Error("Download failed")
	assert.Contains(t, buf.String(), "connection reset")
}

func TestFieldTypes(t *testing.T) {
	l, buf := bufferLogger(t)

	l.WithFields(map[string]interface{}{
		"int64":    int64(456),
		"float":    1.5,
		"time":     time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"ids":      []string{"a", "b"},
		"cause":    errors.New("boom"),
		"custom":   struct{ Name string }{Name: "x"},
	}).Info("typed")

	out := buf.String()
	assert.Contains(t, out, `"int64":456`)
	assert.Contains(t, out, `"ids":["a","b"]`)
	assert.Contains(t, out, `"cause":"boom"`)
	assert.Contains(t, out, `"Name":"x"`)
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogDownload(tl, "id1", "a.jpg", "photo", nil)
	LogDownload(tl, "id2", "b.mp4", "video", errors.New("status 500"))
	LogRelocation(tl, "a.jpg", "/gpbk", errors.New("permission denied"))
	LogMetrics(tl, "backup", map[string]interface{}{"downloaded": 1})

	errs := tl.GetMessagesByLevel("ERROR")
	require.Len(t, errs, 2)
	assert.Equal(t, "id2", errs[0].Fields["media_id"])
	assert.EqualError(t, errs[0].Error, "status 500")
	assert.Equal(t, "a.jpg", errs[1].Fields["filename"])

	infos := tl.GetMessagesByLevel("INFO")
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].Fields["downloaded"])
	assert.Equal(t, "backup", infos[0].Fields["operation"])
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("component", "downloader").WithError(errors.New("x"))
	child.Warn("child warning")
	tl.Info("parent info")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "downloader", msgs[0].Fields["component"])
	assert.Error(t, msgs[0].Error)
	assert.Nil(t, msgs[1].Fields)
	assert.True(t, tl.HasMessage("parent info"))
	assert.False(t, tl.HasError())
	assert.True(t, strings.Contains(tl.String(), "[WARN] child warning"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "error"}))
	assert.NotNil(t, GetLogger())

	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	GetLogger().WithField("key", "value").Info("with field")
	GetLogger().WithError(errors.New("e")).Error("with error")

	assert.Len(t, tl.GetMessages(), 2)
}
