package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorCyan    = lipgloss.Color("#00D7FF")
	colorMagenta = lipgloss.Color("#D75FD7")
	colorGreen   = lipgloss.Color("#5FD75F")
	colorYellow  = lipgloss.Color("#FFD75F")
	colorOrange  = lipgloss.Color("#FF8700")
	colorRed     = lipgloss.Color("#FF5F5F")
	colorDim     = lipgloss.Color("#808080")

	labelStyle   = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	successStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorOrange).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)

	barFilledStyle = lipgloss.NewStyle().Foreground(colorGreen)
	barEmptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3A3A"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1C1C1C")).
			Background(colorCyan).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMagenta).
			Padding(0, 2)
)

// Out is where the Print helpers write
var Out io.Writer = os.Stdout

func Cyan(s string) string   { return labelStyle.Render(s) }
func Yellow(s string) string { return valueStyle.Render(s) }
func Green(s string) string  { return successStyle.Render(s) }
func Red(s string) string    { return errorStyle.Render(s) }
func Orange(s string) string { return warningStyle.Render(s) }
func Dim(s string) string    { return dimStyle.Render(s) }

// Title renders a short heading badge
func Title(s string) string { return titleStyle.Render(s) }

// PrintError prints an error message in red
func PrintError(msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	fmt.Fprintln(Out, Red("✗ "+msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Out, Green("✓ "+msg))
}

// PrintInfo prints a label and value
func PrintInfo(label, value string) {
	fmt.Fprintf(Out, "%s %s\n", Cyan(label+":"), Yellow(value))
}

// PrintWarning prints a warning message
func PrintWarning(msg string) {
	fmt.Fprintln(Out, Orange("⚠ "+msg))
}
