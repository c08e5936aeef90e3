package report

import "github.com/charmbracelet/lipgloss"

// Semantic color palette.
var (
	colorPrimary    = lipgloss.Color("#00BFFF") // Cyan: headers
	colorAccent     = lipgloss.Color("#FFD700") // Gold: top-ranked rows
	colorMuted      = lipgloss.Color("#636363") // Gray: borders, ranks
	colorMutedLight = lipgloss.Color("#8C8C8C") // Lighter gray: normal text
	colorWhite      = lipgloss.Color("#EEEEEE") // Off-white: values
	colorBlue       = lipgloss.Color("#5B8DEF") // Blue: histogram bars
)

var (
	styleHeader = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			Padding(0, 1)

	styleCell = lipgloss.NewStyle().
			Foreground(colorMutedLight).
			Padding(0, 1)

	styleTopCell = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true).
			Padding(0, 1)

	styleNumber = lipgloss.NewStyle().
			Foreground(colorWhite).
			Padding(0, 1).
			Align(lipgloss.Right)

	styleBorder = lipgloss.NewStyle().
			Foreground(colorMuted)
)

var (
	styleTitle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleLabel = lipgloss.NewStyle().
			Foreground(colorMutedLight).
			Width(10)

	styleValue = lipgloss.NewStyle().
			Foreground(colorWhite)

	styleBar = lipgloss.NewStyle().
			Foreground(colorBlue)
)
