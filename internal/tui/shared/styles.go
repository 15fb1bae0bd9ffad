package shared

import "github.com/charmbracelet/lipgloss"

// Exported constants organized by category for clarity.
const (
	// ============================================================================
	// UI Layout & Display
	// ============================================================================

	// DefaultPadding is the default padding for UI elements
	DefaultPadding = 2
	// DetailPaneWidth is the width of the detail pane next to the save list
	DetailPaneWidth = 44
	// ThumbnailWidth is the width of the screenshot preview in terminal cells
	ThumbnailWidth = 36
	// NotificationDetailLimit is how many failing files a notification lists
	NotificationDetailLimit = 5

	// ============================================================================
	// Keys & Symbols
	// ============================================================================

	// KeyCtrlC is the key binding for quitting
	KeyCtrlC = "ctrl+c"
	// KeyDelete starts deleting the selected save
	KeyDelete = "d"
	// KeyDetail reads the selected save's header
	KeyDetail = "enter"
	// KeyPlugins checks the selected save's plugins
	KeyPlugins = "p"
	// KeyQuit quits
	KeyQuit = "q"
	// KeyRefresh re-scans the save directory
	KeyRefresh = "r"
	// KeyYes confirms a deletion
	KeyYes = "y"
)

func AccentColor() lipgloss.Color { return lipgloss.Color(accentColorCode) }

// ============================================================================
// Box and Container Styles
// ============================================================================

// BoxStyle returns the style for boxes with padding
func BoxStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(AccentColor()).
		Padding(0, 1)
}

func DimColor() lipgloss.Color { return lipgloss.Color(dimColorCode) }

// DimStyle returns the style for dimmed text
func DimStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(DimColor())
}

func ErrorColor() lipgloss.Color { return lipgloss.Color(errorColorCode) }

// ErrorStyle returns the style for error messages
func ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(ErrorColor()).
		Bold(true)
}

// ErrorSymbol returns the marker printed before a failed file
func ErrorSymbol() string {
	return ErrorStyle().Render("✗")
}

func HighlightColor() lipgloss.Color { return lipgloss.Color(highlightColorCode) }

// LabelStyle returns the style for labels
func LabelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(HighlightColor()).
		Bold(true)
}

func NormalColor() lipgloss.Color { return lipgloss.Color(normalColorCode) }

// PrimaryColor returns the primary color for the UI
func PrimaryColor() lipgloss.Color { return lipgloss.Color(primaryColorCode) }

// RenderBox renders content in a box with consistent styling
func RenderBox(content string) string {
	return BoxStyle().Render(content)
}

// RenderDim renders dimmed text with consistent styling
func RenderDim(text string) string {
	return DimStyle().Render(text)
}

// RenderError renders an error message with consistent styling
func RenderError(text string) string {
	return ErrorStyle().Render(text)
}

// RenderLabel renders a label with consistent styling
func RenderLabel(text string) string {
	return LabelStyle().Render(text)
}

// RenderSuccess renders a success message with consistent styling
func RenderSuccess(text string) string {
	return SuccessStyle().Render(text)
}

// ============================================================================
// Helper Functions
// ============================================================================

// RenderTitle renders a title with consistent styling
func RenderTitle(text string) string {
	return TitleStyle().Render(text)
}

// RenderWarning renders a warning message with consistent styling
func RenderWarning(text string) string {
	return WarningStyle().Render(text)
}

// SelectedStyle returns the style of the selected table row
func SelectedStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(normalColorCode)).
		Background(AccentColor()).
		Bold(true)
}

func SubtleColor() lipgloss.Color { return lipgloss.Color(subtleColorCode) }

func SuccessColor() lipgloss.Color { return lipgloss.Color(successColorCode) }

// SuccessStyle returns the style for success messages
func SuccessStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(SuccessColor()).
		Bold(true)
}

// ============================================================================
// Text Styles
// ============================================================================

// TitleStyle returns the style for titles
func TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor())
}

func WarningColor() lipgloss.Color { return lipgloss.Color(warningColorCode) }

// WarningStyle returns the style for warning messages
func WarningStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(WarningColor()).
		Bold(true)
}

// unexported constants.
const (
	accentColorCode    = "62"  // Blue
	dimColorCode       = "240" // Dark gray
	errorColorCode     = "196" // Red
	highlightColorCode = "86"  // Cyan
	normalColorCode    = "252" // Light gray
	// Primary colors
	primaryColorCode = "205" // Pink/purple
	subtleColorCode  = "241" // Medium gray
	successColorCode = "42"  // Green
	warningColorCode = "226"
)
