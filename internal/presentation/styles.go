package presentation

import "github.com/charmbracelet/lipgloss"

var (
	successColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#696969"}
	accentColor  = lipgloss.AdaptiveColor{Light: "#5F5FD7", Dark: "#8787FF"}
)

// styles are bound to the renderer of one writer so color is only emitted
// for terminals.
type styles struct {
	title    lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	failure  lipgloss.Style
	muted    lipgloss.Style
	accent   lipgloss.Style
	addition lipgloss.Style
	deletion lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:    r.NewStyle().Bold(true),
		success:  r.NewStyle().Foreground(successColor),
		warning:  r.NewStyle().Foreground(warningColor),
		failure:  r.NewStyle().Foreground(errorColor).Bold(true),
		muted:    r.NewStyle().Foreground(mutedColor),
		accent:   r.NewStyle().Foreground(accentColor),
		addition: r.NewStyle().Foreground(successColor),
		deletion: r.NewStyle().Foreground(errorColor),
	}
}

func (s styles) outcome(o FileOutcome) lipgloss.Style {
	switch o {
	case OutcomeRewritten:
		return s.success
	case OutcomeSkipped:
		return s.warning
	case OutcomeFailed:
		return s.failure
	default:
		return s.muted
	}
}
