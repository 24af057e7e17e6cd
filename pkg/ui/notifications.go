package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"gpbackup/pkg/backup"
	"gpbackup/pkg/config"
)

const appName = "gpbackup"

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name", appName, title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	escape := func(s string) string { return strings.ReplaceAll(s, "'", "''") }
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
		$texts = $template.GetElementsByTagName('text')
		$texts.Item(0).AppendChild($template.CreateTextNode('%s')) | Out-Null
		$texts.Item(1).AppendChild($template.CreateTextNode('%s')) | Out-Null
		$toast = [Windows.UI.Notifications.ToastNotification]::new($template)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('%s').Show($toast)
	`, escape(title), escape(message), appName)

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// Notifier sends desktop notifications at the end of a run
type Notifier struct {
	sender NotificationSender
	cfg    config.NotificationConfig
}

// NewNotifier creates a Notifier for the current platform. Unsupported
// platforms get a Notifier that only respects the config and sends nothing.
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}

	return NewNotifierWithSender(cfg, sender)
}

// NewNotifierWithSender creates a Notifier around an explicit sender
func NewNotifierWithSender(cfg config.NotificationConfig, sender NotificationSender) *Notifier {
	return &Notifier{sender: sender, cfg: cfg}
}

// NotifyRun reports the outcome of a backup run. Send errors are returned
// so callers can log them; they never affect the run itself.
func (n *Notifier) NotifyRun(summary *backup.Summary, runErr error) error {
	if n.sender == nil || !n.cfg.Enabled {
		return nil
	}

	if runErr != nil {
		if !n.cfg.OnError {
			return nil
		}
		return n.sender.Send("Photo backup failed", runErr.Error())
	}

	if !n.cfg.OnComplete || summary == nil {
		return nil
	}
	return n.sender.Send("Photo backup complete", completionMessage(summary))
}

func completionMessage(s *backup.Summary) string {
	if s.DryRun {
		return fmt.Sprintf("%d new items would be downloaded", len(s.Pending))
	}
	msg := fmt.Sprintf("%d downloaded, %d skipped", s.Downloaded, s.Skipped)
	if s.Failed > 0 {
		msg += fmt.Sprintf(", %d failed", s.Failed)
	}
	if s.Unrelocated > 0 {
		msg += fmt.Sprintf(", %d left in staging", s.Unrelocated)
	}
	return msg
}
