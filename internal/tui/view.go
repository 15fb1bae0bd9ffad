package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/tui/shared"
	"github.com/joe/savegames/internal/tui/widgets"
)

// footerLines is the space kept below the list for notifications and prompts.
const footerLines = 8

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.renderHeader(),
		shared.RenderListDetailLayout(m.list.View(), m.renderDetail(), m.width, m.listHeight()),
		m.renderFooter(),
		m.renderHelp(),
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) footerHeight() int {
	return footerLines
}

func (m *Model) renderDetail() string {
	width := shared.DetailPaneWidth - shared.DefaultPadding

	return widgets.NewDetailWidget(m.selectedSave, width)()
}

func (m *Model) renderFooter() string {
	if save, ok := m.ConfirmingDelete(); ok {
		return shared.RenderWarning(fmt.Sprintf("Delete %s and its sidecar files? (y/N)", save.ID))
	}

	var builder strings.Builder

	if m.status != "" {
		builder.WriteString(shared.RenderSuccess(m.status))
		builder.WriteString("\n")
	}

	builder.WriteString(shared.RenderNotifications(m.notifications, max(m.width-shared.DefaultPadding, 0)))

	return lipgloss.NewStyle().MaxHeight(footerLines).Render(builder.String())
}

func (m *Model) renderHeader() string {
	name := m.profile.Name
	if name == "" {
		name = "no profile"
	}

	header := shared.RenderTitle("Savegames") + "  " + shared.RenderLabel(name)
	if m.dir != "" {
		header += "  " + shared.RenderDim(m.dir)
	}

	if busy := m.Busy(); len(busy) > 0 {
		header += "  " + m.spinner.View() + " " + strings.Join(busy, ", ")
	}

	return header + "\n" + shared.RenderDim(saveCount(m.catalog))
}

func (m *Model) renderHelp() string {
	return shared.RenderDim("↑/↓ select • enter details • p plugins • r refresh • d delete • q quit")
}

func saveCount(catalog savegame.Catalog) string {
	if catalog.Truncated() {
		return fmt.Sprintf("%d saves (more on disk)", catalog.Len())
	}

	return fmt.Sprintf("%d saves", catalog.Len())
}
