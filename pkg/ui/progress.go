package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"photosync/pkg/syncer"
	"photosync/pkg/timeutil"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
)

// Bar renders a fixed-width bar for done out of total
func Bar(done, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	return barFilledStyle.Render(strings.Repeat(ProgressBar, filled)) +
		barEmptyStyle.Render(strings.Repeat(ProgressEmpty, width-filled))
}

// RenderSummary renders the end-of-run report as a bordered panel
func RenderSummary(s *syncer.Summary, norm *timeutil.Normalizer) string {
	if s == nil {
		return ""
	}

	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Width(14).Render(label),
			valueStyle.Render(value),
		)
	}
	checkpoint := func(t time.Time) string {
		if t.IsZero() || (norm != nil && t.Equal(norm.Min())) {
			return dimStyle.Render("none")
		}
		if norm != nil {
			return norm.Format(t)
		}
		return t.Format(timeutil.Layout)
	}

	after := checkpoint(s.CheckpointAfter)
	if !s.CheckpointWritten {
		after += dimStyle.Render(" (unchanged)")
	}

	rows := []string{
		Title(s.Album),
		"",
		row("Observed", fmt.Sprint(s.Observed)),
		row("Downloaded", fmt.Sprintf("%d (%s)", s.Downloaded, FormatBytes(s.Bytes))),
		row("Skipped", fmt.Sprint(s.Skipped)),
	}
	if s.Failed > 0 || s.NotStarted > 0 {
		rows = append(rows,
			row("Failed", errorStyle.Render(fmt.Sprint(s.Failed))),
			row("Not started", fmt.Sprint(s.NotStarted)),
		)
	}
	rows = append(rows,
		row("Checkpoint", checkpoint(s.CheckpointBefore)+" → "+after),
		row("Output", s.OutputDir),
		row("Elapsed", FormatDuration(s.Duration)),
	)

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
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
