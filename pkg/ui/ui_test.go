package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gpbackup/internal/downloader"
	"gpbackup/pkg/backup"
	"gpbackup/pkg/config"
	"gpbackup/pkg/photos"
)

type recordingSender struct {
	titles   []string
	messages []string
	err      error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := Output()
	noColor := color.NoColor
	SetOutput(&buf)
	color.NoColor = true
	t.Cleanup(func() {
		SetOutput(previous)
		SetQuietMode(false)
		color.NoColor = noColor
	})
	return &buf
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := captureOutput(t)
	SetQuietMode(true)

	PrintSuccess("done")
	PrintInfo("Staging", "tmp")
	PrintWarning("careful")
	PrintError("broken", errors.New("disk full"))

	assert.NotContains(t, buf.String(), "done")
	assert.NotContains(t, buf.String(), "careful")
	assert.Contains(t, buf.String(), "broken: disk full")
}

func TestPrinters(t *testing.T) {
	buf := captureOutput(t)

	PrintInfo("Destination", "/gpbk")
	PrintWarning("Destination missing", "/gpbk")
	PrintSuccess("Backup complete")

	out := buf.String()
	assert.Contains(t, out, "Destination: /gpbk")
	assert.Contains(t, out, "Destination missing: /gpbk")
	assert.Contains(t, out, "Backup complete")
}

func TestRenderSummary(t *testing.T) {
	captureOutput(t)

	s := &backup.Summary{
		Window:      "2024-02-29..2024-03-31",
		Photos:      3,
		Videos:      1,
		Skipped:     1,
		Downloaded:  2,
		Failed:      1,
		Relocated:   2,
		Unrelocated: 0,
		Bytes:       2048,
		Duration:    1500 * time.Millisecond,
	}

	out := RenderSummary(s)
	assert.Contains(t, out, "Backup complete")
	assert.Contains(t, out, "2024-02-29..2024-03-31")
	assert.Contains(t, out, "3 photos, 1 videos")
	assert.Contains(t, out, "2 (2.0 KB)")
	assert.Contains(t, out, "Failed")
	assert.NotContains(t, out, "In staging")
}

func TestPrintSummaryDryRun(t *testing.T) {
	buf := captureOutput(t)

	PrintSummary(&backup.Summary{
		DryRun:  true,
		Photos:  1,
		Pending: []photos.MediaDescriptor{{ID: "id2", Filename: "b.jpg"}},
	})

	out := buf.String()
	assert.Contains(t, out, "Dry run")
	assert.Contains(t, out, "b.jpg")
	assert.NotContains(t, out, "Downloaded")
}

func TestPrintSummaryListsFailures(t *testing.T) {
	buf := captureOutput(t)

	PrintSummary(&backup.Summary{
		Failed: 1,
		Failures: []downloader.Failure{
			{Item: photos.MediaDescriptor{ID: "id9", Filename: "broken.jpg"}, Err: errors.New("unexpected status 404")},
		},
	})

	assert.Contains(t, buf.String(), "broken.jpg")
	assert.Contains(t, buf.String(), "unexpected status 404")
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 MB", FormatBytes(1536*1024))
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}

func TestNotifyRun(t *testing.T) {
	enabled := config.NotificationConfig{Enabled: true, OnComplete: true, OnError: true}
	summary := &backup.Summary{Downloaded: 2, Skipped: 5, Failed: 1}

	t.Run("completion", func(t *testing.T) {
		sender := &recordingSender{}
		require.NoError(t, NewNotifierWithSender(enabled, sender).NotifyRun(summary, nil))
		require.Len(t, sender.titles, 1)
		assert.Equal(t, "Photo backup complete", sender.titles[0])
		assert.Equal(t, "2 downloaded, 5 skipped, 1 failed", sender.messages[0])
	})

	t.Run("failure", func(t *testing.T) {
		sender := &recordingSender{}
		require.NoError(t, NewNotifierWithSender(enabled, sender).NotifyRun(nil, errors.New("auth error")))
		require.Len(t, sender.titles, 1)
		assert.Equal(t, "Photo backup failed", sender.titles[0])
		assert.Equal(t, "auth error", sender.messages[0])
	})

	t.Run("disabled", func(t *testing.T) {
		sender := &recordingSender{}
		cfg := enabled
		cfg.Enabled = false
		require.NoError(t, NewNotifierWithSender(cfg, sender).NotifyRun(summary, nil))
		assert.Empty(t, sender.titles)
	})

	t.Run("completion muted", func(t *testing.T) {
		sender := &recordingSender{}
		cfg := enabled
		cfg.OnComplete = false
		require.NoError(t, NewNotifierWithSender(cfg, sender).NotifyRun(summary, nil))
		assert.Empty(t, sender.titles)
	})

	t.Run("send error surfaces", func(t *testing.T) {
		sender := &recordingSender{err: errors.New("notify-send missing")}
		assert.Error(t, NewNotifierWithSender(enabled, sender).NotifyRun(summary, nil))
	})

	t.Run("no sender", func(t *testing.T) {
		assert.NoError(t, NewNotifierWithSender(enabled, nil).NotifyRun(summary, nil))
	})
}
