package observer

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/dcshock/speechpipe/pipeline"
)

// Theme defines the colors used for terminal output.
type Theme struct {
	Primary lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the default green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Success: lipgloss.Color("#3fb950"),
	Warning: lipgloss.Color("#d29922"),
	Error:   lipgloss.Color("#f85149"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Banner  lipgloss.Style
	Label   lipgloss.Style
	Done    lipgloss.Style
	Skipped lipgloss.Style
	Failed  lipgloss.Style
	Dim     lipgloss.Style
}

// NewStyles creates styles from a theme for output written to w. Color is
// dropped when w is not a terminal.
func NewStyles(w io.Writer, t Theme) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Banner: r.NewStyle().Bold(true).Foreground(t.Primary).
			Border(lipgloss.NormalBorder(), true, false).BorderForeground(t.Primary).
			Padding(0, 1),
		Label:   r.NewStyle().Bold(true).Foreground(t.Primary),
		Done:    r.NewStyle().Foreground(t.Success),
		Skipped: r.NewStyle().Foreground(t.Dim),
		Failed:  r.NewStyle().Bold(true).Foreground(t.Error),
		Dim:     r.NewStyle().Foreground(t.Dim),
	}
}

// Status returns the style for a stage status.
func (s Styles) Status(status pipeline.Status) lipgloss.Style {
	switch status {
	case pipeline.StatusDone:
		return s.Done
	case pipeline.StatusFailed:
		return s.Failed
	default:
		return s.Skipped
	}
}
