// Package tui provides Bubble Tea TUI components for the mirabel CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag)
//   - TUI is read-only (replay views)
//   - TUI uses the same payloads as non-TUI rendering
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// SuccessStyle for success states.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for warning states.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for error states.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// BoxStyle for bordered containers.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// StatBoxStyle for stat display boxes.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)

	// StatLabelStyle for stat labels.
	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	// StatValueStyle for stat values.
	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)
)

// Transcript styles.
var (
	// UserStyle labels locally authored entries.
	UserStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlightColor)

	// AgentStyle labels agent entries.
	AgentStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// PendingStyle renders entries whose stream is still open.
	PendingStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	// TopicStyle renders an attached detail annotation.
	TopicStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			PaddingLeft(2)
)

// StateStyle returns a style for an agent state or status line value.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "ask", "listening", "idle":
		return SuccessStyle
	case "thinking", "searching", "speaking", "connecting":
		return WarningStyle
	case "muted", "error":
		return ErrorStyle
	default:
		return ValueStyle
	}
}

// SpeakerStyle returns the label style for an entry author.
func SpeakerStyle(isUser bool) lipgloss.Style {
	if isUser {
		return UserStyle
	}
	return AgentStyle
}
