package shared

import (
	"fmt"
	"time"
)

// ============================================================================
// Formatting Functions
// These are used by the save list and the detail pane for consistent display
// ============================================================================

// FormatBytes formats bytes into human-readable format (e.g., "1.5 MB")
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatTime formats a save timestamp, or "-" when it is unknown.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Local().Format("2006-01-02 15:04")
}

// Truncate shortens text to width runes, marking the cut with an ellipsis.
func Truncate(text string, width int) string {
	runes := []rune(text)
	if width <= 0 || len(runes) <= width {
		return text
	}

	if width == 1 {
		return "…"
	}

	return string(runes[:width-1]) + "…"
}
