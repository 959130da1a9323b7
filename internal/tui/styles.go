package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all meet WCAG AA contrast (4.5:1) on black and dark surfaces
	primaryColor   = lipgloss.Color("#A78BFA") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#F87171") // Red
	mutedColor     = lipgloss.Color("#9CA3AF") // Gray
	textColor      = lipgloss.Color("#F9FAFB") // Light text
	borderColor    = lipgloss.Color("#6B7280") // Gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(borderColor)

	phaseStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	goalStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	summaryStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	logStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	approvalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(warningColor).
			Foreground(textColor).
			Padding(0, 1)

	approvalTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(warningColor)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	helpKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor)

	noticeStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// Checklist status colors
	itemCompletedStyle  = lipgloss.NewStyle().Foreground(secondaryColor)
	itemInProgressStyle = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	itemFailedStyle     = lipgloss.NewStyle().Foreground(errorColor)
	itemSkippedStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	itemPendingStyle    = lipgloss.NewStyle().Foreground(textColor)
)
