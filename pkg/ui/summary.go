package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gpbackup/pkg/backup"
)

var (
	accent = lipgloss.Color("#4285F4")
	good   = lipgloss.Color("#34A853")
	warn   = lipgloss.Color("#FBBC05")
	bad    = lipgloss.Color("#EA4335")
	muted  = lipgloss.Color("#9AA0A6")

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(muted).
			Width(13)

	valueStyle = lipgloss.NewStyle().Bold(true)
)

// RenderSummary renders a run summary as a bordered box
func RenderSummary(s *backup.Summary) string {
	title := "Backup complete"
	if s.DryRun {
		title = "Dry run"
	}

	rows := []string{titleStyle.Render(title), ""}
	add := func(label, value string, style lipgloss.Style) {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), style.Render(value)))
	}

	if s.Window != "" {
		add("Window", s.Window, valueStyle)
	}
	add("Found", fmt.Sprintf("%d photos, %d videos", s.Photos, s.Videos), valueStyle)
	add("Skipped", fmt.Sprintf("%d already backed up", s.Skipped), valueStyle)

	if s.DryRun {
		add("Would fetch", fmt.Sprintf("%d", len(s.Pending)), valueStyle.Foreground(warn))
	} else {
		add("Downloaded", fmt.Sprintf("%d (%s)", s.Downloaded, FormatBytes(s.Bytes)), valueStyle.Foreground(good))
		if s.Failed > 0 {
			add("Failed", fmt.Sprintf("%d", s.Failed), valueStyle.Foreground(bad))
		}
		add("Moved", fmt.Sprintf("%d", s.Relocated), valueStyle)
		if s.Unrelocated > 0 {
			add("In staging", fmt.Sprintf("%d", s.Unrelocated), valueStyle.Foreground(warn))
		}
	}
	add("Duration", FormatDuration(s.Duration), valueStyle)

	return boxStyle.Render(strings.Join(rows, "\n"))
}

// PrintSummary prints the summary box followed by any download failures
func PrintSummary(s *backup.Summary) {
	printf("\n%s\n", RenderSummary(s))

	for _, f := range s.Failures {
		printf("  %s %s %s\n", Red("✗"), f.Item.Filename, Dim(f.Err.Error()))
	}
	if s.DryRun {
		for _, item := range s.Pending {
			printf("  %s %s %s\n", Yellow("•"), item.Filename, Dim(item.ID))
		}
	}
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
