package shared

import (
	"fmt"
	"strings"

	"github.com/joe/savegames/internal/syncengine"
	"github.com/joe/savegames/pkg/errors"
)

// NotificationConfig holds configuration for rendering a notification.
type NotificationConfig struct {
	Notification syncengine.Notification

	// Limit caps the number of detail lines; zero means NotificationDetailLimit.
	Limit int

	// MaxWidth is the maximum width for a detail line. Zero disables truncation.
	MaxWidth int
}

// RenderNotification renders one engine notification: a title line, its
// details up to the limit, and any suggestions the error enricher has for
// the underlying error.
func RenderNotification(config NotificationConfig) string {
	note := config.Notification

	limit := config.Limit
	if limit <= 0 {
		limit = NotificationDetailLimit
	}

	var builder strings.Builder

	fmt.Fprintf(&builder, "%s %s\n", ErrorSymbol(), ErrorStyle().Render(note.Title))

	for i, detail := range note.Details {
		if i >= limit {
			fmt.Fprintf(&builder, "  ... and %d more\n", len(note.Details)-limit)

			break
		}

		fmt.Fprintf(&builder, "  %s\n", Truncate(detail, config.MaxWidth))
	}

	enriched := errors.NewEnricher().Enrich(note.Err, "")
	if suggestions := errors.FormatSuggestions(enriched); suggestions != "" {
		fmt.Fprintf(&builder, "%s\n", suggestions)
	}

	if note.AllowReport {
		fmt.Fprintf(&builder, "  %s\n", RenderDim("This looks unexpected. Check the log file for details."))
	}

	return builder.String()
}

// RenderNotifications renders the most recent notifications, newest last.
func RenderNotifications(notes []syncengine.Notification, maxWidth int) string {
	if len(notes) == 0 {
		return ""
	}

	parts := make([]string, 0, len(notes))
	for _, note := range notes {
		parts = append(parts, RenderNotification(NotificationConfig{Notification: note, MaxWidth: maxWidth}))
	}

	return strings.Join(parts, "\n")
}
