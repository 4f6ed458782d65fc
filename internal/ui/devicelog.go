package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DeviceLog represents a box for displaying the raw USB transfer transcript.
// Used in verbose mode to show the control and bulk transfers a command ran.
type DeviceLog struct {
	Title    string   // e.g., "USB Transfer Log"
	Lines    []string // Transfer lines, newest last
	Width    int      // Terminal width
	MaxLines int      // Maximum lines to display (0 = unlimited)
}

// NewDeviceLog creates a new transfer log box
func NewDeviceLog(lines []string) *DeviceLog {
	return &DeviceLog{
		Title:    "USB Transfer Log",
		Lines:    lines,
		Width:    GetTerminalWidth(),
		MaxLines: 0,
	}
}

// SetWidth sets the terminal width for responsive rendering
func (d *DeviceLog) SetWidth(width int) *DeviceLog {
	d.Width = width
	return d
}

// SetTitle sets a custom title for the box
func (d *DeviceLog) SetTitle(title string) *DeviceLog {
	d.Title = title
	return d
}

// SetMaxLines limits the number of lines displayed
func (d *DeviceLog) SetMaxLines(max int) *DeviceLog {
	d.MaxLines = max
	return d
}

// Filter keeps only lines containing one of the given substrings.
// Useful for isolating a single request type in a long transcript.
func (d *DeviceLog) Filter(patterns ...string) *DeviceLog {
	var filtered []string
	for _, line := range d.Lines {
		for _, pattern := range patterns {
			if strings.Contains(line, pattern) {
				filtered = append(filtered, line)
				break
			}
		}
	}
	d.Lines = filtered
	return d
}

// Render returns the styled transfer log box as a string
func (d *DeviceLog) Render() string {
	width := d.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	// Apply max lines limit
	lines := d.Lines
	if d.MaxLines > 0 && len(lines) > d.MaxLines {
		lines = lines[:d.MaxLines]
		lines = append(lines, "... (output truncated)")
	}

	titleStyled := DeviceLogTitleStyle.Render(d.Title)

	// Content styled (preserve monospace formatting)
	contentStyled := DeviceLogContentStyle.Render(strings.Join(lines, "\n"))

	inner := lipgloss.JoinVertical(lipgloss.Left, titleStyled, "", contentStyled)

	boxWidth := width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(boxWidth).
		Padding(0, 1).
		MarginLeft(2).
		Render(inner)
}

// String implements fmt.Stringer
func (d *DeviceLog) String() string {
	return d.Render()
}

// RenderDeviceLog renders a transfer log box with the given lines
func RenderDeviceLog(lines []string) string {
	return NewDeviceLog(lines).Render()
}
