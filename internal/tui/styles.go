// Package tui holds lipgloss styling shared by the Lists/Feed/Patch
// screens the Bubble Tea program switches between.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	colorPrimary   = lipgloss.Color("39")  // blue
	colorSuccess   = lipgloss.Color("76")  // green
	colorWarning   = lipgloss.Color("214") // orange
	colorError     = lipgloss.Color("196") // red
	colorMuted     = lipgloss.Color("242") // gray
	colorWhite     = lipgloss.Color("15")
	colorHighlight = lipgloss.Color("236") // dark gray for selection background
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginBottom(1)

	RowStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	SelectedRowStyle = lipgloss.NewStyle().
				Background(colorHighlight).
				Foreground(colorWhite).
				Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	HelpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(1, 2)
)
