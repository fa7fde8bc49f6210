// Package styles holds the lipgloss palette shared by the watch TUI and the
// plain line output.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	BlueColor      = lipgloss.Color("#60A5FA") // Blue

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	// Phase colors
	PhaseUploading  = lipgloss.Color("#60A5FA") // Blue
	PhaseProcessing = lipgloss.Color("#10B981") // Green
	PhaseInput      = lipgloss.Color("#F59E0B") // Amber
	PhaseComplete   = lipgloss.Color("#A78BFA") // Purple
	PhaseReview     = lipgloss.Color("#FB923C") // Orange
	PhaseError      = lipgloss.Color("#F87171") // Red
	PhaseGone       = lipgloss.Color("#6B7280") // Gray

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	StatusBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(SurfaceColor).
			Padding(0, 1)

	ContentBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	QuestionBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(WarningColor).
			Padding(0, 1)

	SectionTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor)

	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	SuccessMsg = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	WarningMsg = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	ConfirmBanner = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(ErrorColor).
			Bold(true).
			Padding(0, 1)

	Timestamp = lipgloss.NewStyle().
			Foreground(MutedColor)
)

// PhaseColor returns the color for a lifecycle phase name.
func PhaseColor(phase string) lipgloss.Color {
	switch phase {
	case "uploading":
		return PhaseUploading
	case "processing":
		return PhaseProcessing
	case "waiting_for_input":
		return PhaseInput
	case "completed":
		return PhaseComplete
	case "requires_review":
		return PhaseReview
	case "error":
		return PhaseError
	case "deleted":
		return PhaseGone
	default:
		return MutedColor
	}
}

// PhaseIcon returns an icon for a lifecycle phase name.
func PhaseIcon(phase string) string {
	switch phase {
	case "uploading":
		return "↑"
	case "processing":
		return "●"
	case "waiting_for_input":
		return "?"
	case "completed":
		return "✓"
	case "requires_review":
		return "!"
	case "error":
		return "✗"
	case "deleted":
		return "⌫"
	default:
		return "○"
	}
}

// PhaseLabel returns the human name of a lifecycle phase.
func PhaseLabel(phase string) string {
	switch phase {
	case "uploading":
		return "Uploading"
	case "processing":
		return "Processing"
	case "waiting_for_input":
		return "Waiting for input"
	case "completed":
		return "Completed"
	case "requires_review":
		return "Requires review"
	case "error":
		return "Failed"
	case "deleted":
		return "Deleted"
	case "":
		return "Connecting"
	default:
		return "Unknown"
	}
}

// Badge renders a colored phase badge such as " ● Processing ".
func Badge(phase string) string {
	return StatusBadge.Background(PhaseColor(phase)).Render(PhaseIcon(phase) + " " + PhaseLabel(phase))
}
