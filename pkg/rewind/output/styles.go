package output

import "github.com/charmbracelet/lipgloss"

// Color constants using the ANSI 256-color palette, consistent across
// formatters.
const (
	// ColorPrimary is used for primary elements like headers (bright blue).
	ColorPrimary = lipgloss.Color("39")

	// ColorSuccess is used for promoted and restored files (green).
	ColorSuccess = lipgloss.Color("42")

	// ColorWarning is used for skipped and unrecoverable files (orange).
	ColorWarning = lipgloss.Color("214")

	// ColorDanger is used for failed files (red).
	ColorDanger = lipgloss.Color("196")

	// ColorMuted is used for secondary text (gray).
	ColorMuted = lipgloss.Color("245")
)

// Box styles for grouped content.
var (
	// HeaderBox contains the run metadata.
	HeaderBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)

	// FooterBox contains the summary counts.
	FooterBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1).
			MarginTop(1)
)

// Text styles.
var (
	// LabelStyle is used for field labels (e.g. "Actor:", "Window:").
	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// ValueStyle is used for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	// PromotedStyle marks promoted files.
	PromotedStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// SkippedStyle marks skipped and unrecoverable files.
	SkippedStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// FailedStyle marks failed files.
	FailedStyle = lipgloss.NewStyle().
			Foreground(ColorDanger).
			Bold(true)

	// MutedStyle is used for de-emphasized detail.
	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)
)
