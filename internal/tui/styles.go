package tui

import "github.com/charmbracelet/lipgloss"

// Colors of the terminal desk.
var (
	ColorTitle    = lipgloss.Color("39")
	ColorHeader   = lipgloss.Color("252")
	ColorMuted    = lipgloss.Color("241")
	ColorSelected = lipgloss.Color("57")
	ColorWarning  = lipgloss.Color("214")
	ColorError    = lipgloss.Color("196")
	ColorSuccess  = lipgloss.Color("42")
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(ColorTitle).Bold(true)
	headerStyle   = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true).Underline(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	selectedStyle = lipgloss.NewStyle().Background(ColorSelected).Bold(true)
	currentStyle  = lipgloss.NewStyle().Foreground(ColorTitle).Bold(true)
	dropdownStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(ColorMuted).Padding(0, 1)
)

const maxColumnWidth = 32
