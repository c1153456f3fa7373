package cli

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPrimary = lipgloss.Color("#3B82F6") // Blue
	ColorSuccess = lipgloss.Color("#22C55E") // Green
	ColorWarning = lipgloss.Color("#F59E0B") // Amber
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorSubtle  = lipgloss.Color("#6B7280") // Gray
)

const (
	SymbolMounted   = "●"
	SymbolUnmounted = "○"
	SymbolFailed    = "✗"
	SymbolDisabled  = "-"
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	DimStyle     = lipgloss.NewStyle().Foreground(ColorSubtle)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
)
