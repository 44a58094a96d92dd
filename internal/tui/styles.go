package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E31837"))

	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	primaryPanelStyle = panelStyle.
				BorderForeground(lipgloss.Color("#E31837"))

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))

	changeUpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	changeDownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	statusStyles = map[string]lipgloss.Style{
		"En curso":    lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")),
		"Planificado": lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")),
		"Completado":  lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
	}
)

func statusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return subtleStyle
}
