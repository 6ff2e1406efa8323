package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"photosync/pkg/config"
	"photosync/pkg/syncer"
)

// NotificationSender sends a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=photosync", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
	return exec.Command("osascript", "-e", script).Run()
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("photosync").Show($toast)
	`, xmlEscape(title), xmlEscape(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;").Replace(s)
}

// Notifier reports run outcomes on the console and, when enabled, on the desktop
type Notifier struct {
	sender NotificationSender
	out    io.Writer
	cfg    config.NotificationConfig
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier(cfg config.NotificationConfig, out io.Writer) *Notifier {
	var sender NotificationSender
	if cfg.Enabled {
		switch runtime.GOOS {
		case "linux":
			sender = &LinuxNotificationSender{}
		case "darwin":
			sender = &MacOSNotificationSender{}
		case "windows":
			sender = &WindowsNotificationSender{}
		}
	}
	return NewNotifierWithSender(cfg, out, sender)
}

// NewNotifierWithSender creates a Notifier with an explicit sender
func NewNotifierWithSender(cfg config.NotificationConfig, out io.Writer, sender NotificationSender) *Notifier {
	return &Notifier{sender: sender, out: out, cfg: cfg}
}

func (n *Notifier) send(title, message string) {
	if n.sender != nil && n.cfg.Enabled {
		// desktop notifications are best effort
		_ = n.sender.Send(title, message)
	}
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) {
	fmt.Fprintf(n.out, "%s %s\n", Green(title+":"), message)
	if n.cfg.OnComplete {
		n.send(title, message)
	}
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(n.out, "%s %s\n", Red(title+":"), Red(message))
	if n.cfg.OnError {
		n.send(title, message)
	}
}

// NotifyRun reports the outcome of a sync run
func (n *Notifier) NotifyRun(s *syncer.Summary, err error) {
	if err != nil {
		msg := err.Error()
		if s != nil {
			msg = fmt.Sprintf("%d downloaded before failure: %v", s.Downloaded, err)
		}
		n.SendError("Sync failed", msg)
		return
	}
	if s == nil {
		return
	}
	n.SendSuccess("Sync complete", fmt.Sprintf("%d new item(s) from %s, %d skipped", s.Downloaded, s.Album, s.Skipped))
}
