package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"stocksense/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	commentaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Width(76)

	buyStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	sellStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	holdStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
)

func signalStyle(s domain.SignalAction) lipgloss.Style {
	switch s {
	case domain.SignalBuy:
		return buyStyle
	case domain.SignalSell:
		return sellStyle
	default:
		return holdStyle
	}
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	return s
}
