package demo

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor   = lipgloss.Color("#A78BFA") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	mutedColor     = lipgloss.Color("#9CA3AF") // Gray
	blueColor      = lipgloss.Color("#60A5FA") // Blue
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	subtitleStyle = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	warningStyle  = lipgloss.NewStyle().Foreground(warningColor)
	idStyle       = lipgloss.NewStyle().Bold(true).Foreground(blueColor)
	incomingStyle = lipgloss.NewStyle().Foreground(secondaryColor)
	outgoingStyle = lipgloss.NewStyle().Foreground(primaryColor)
	helpStyle     = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)
	helpKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(secondaryColor)
)
