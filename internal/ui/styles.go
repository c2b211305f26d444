package ui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	notice    lipgloss.Style
	help      lipgloss.Style
	status    lipgloss.Style
	editor    lipgloss.Style
}

func defaultStyles() styles {
	bubble := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)

	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#2D2D2D")).
			Padding(0, 1),
		user:      bubble.BorderForeground(lipgloss.Color("#5A5A5A")).Background(lipgloss.Color("#383838")),
		assistant: bubble.BorderForeground(lipgloss.Color("#3C6E9F")).Background(lipgloss.Color("#2D2D2D")),
		notice:    bubble.BorderForeground(lipgloss.Color("#B58900")).Foreground(lipgloss.Color("#E0C97F")),
		help:      lipgloss.NewStyle().Foreground(lipgloss.Color("#7A7A7A")),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("#3C6E9F")),
		editor: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#3C6E9F")).
			Padding(0, 1),
	}
}
