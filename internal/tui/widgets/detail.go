package widgets

import (
	"fmt"
	"strings"

	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/tui/shared"
)

const (
	maxVisiblePlugins = 8
	labelWidth        = 11
)

// NewDetailWidget creates a widget that displays the selected save.
// Returns a closure that formats the save's stub fields and, once its header
// has been read, the character and the thumbnail.
func NewDetailWidget(getSave func() *savegame.Savegame, width int) func() string {
	return func() string {
		save := getSave()
		if save == nil {
			return shared.RenderDim("No save selected")
		}

		var builder strings.Builder

		builder.WriteString(shared.RenderTitle(shared.Truncate(save.Name, width)))
		builder.WriteString("\n\n")
		writeField(&builder, "Modified", shared.FormatTime(save.ModTime))
		writeField(&builder, "Size", shared.FormatBytes(save.Size))

		detail := save.Detail
		if detail == nil {
			builder.WriteString("\n")
			builder.WriteString(shared.RenderDim("Press enter to read the save header"))

			return builder.String()
		}

		writeField(&builder, "Character", detail.CharacterName)
		writeField(&builder, "Level", fmt.Sprintf("%d", detail.Level))
		writeField(&builder, "Location", shared.Truncate(detail.Location, width-labelWidth))
		writeField(&builder, "Save #", fmt.Sprintf("%d", detail.SaveNumber))
		writeField(&builder, "Created", shared.FormatTime(detail.CreationTime))

		if thumb := NewThumbnailWidget(func() *savegame.Screenshot { return detail.Screenshot }, width)(); thumb != "" {
			builder.WriteString("\n")
			builder.WriteString(thumb)
			builder.WriteString("\n")
		}

		writePlugins(&builder, detail.Plugins, width)

		return builder.String()
	}
}

func writeField(builder *strings.Builder, label, value string) {
	fmt.Fprintf(builder, "%s %s\n", shared.LabelStyle().Width(labelWidth).Render(label+":"), value)
}

func writePlugins(builder *strings.Builder, plugins []string, width int) {
	fmt.Fprintf(builder, "\n%s\n", shared.RenderLabel(fmt.Sprintf("Plugins (%d)", len(plugins))))

	for i, plugin := range plugins {
		if i >= maxVisiblePlugins {
			fmt.Fprintf(builder, "  ... and %d more\n", len(plugins)-maxVisiblePlugins)

			break
		}

		fmt.Fprintf(builder, "  %s\n", shared.Truncate(plugin, width-2))
	}
}
