package shared

import "github.com/charmbracelet/lipgloss"

// ListWidth returns the width left for the save list beside the detail pane.
// Narrow terminals hide the detail pane and give the list the full width.
func ListWidth(width int) int {
	if !ShowDetailPane(width) {
		return width
	}

	return width - DetailPaneWidth
}

// RenderListDetailLayout renders the save list and the detail pane side by side.
// The detail pane keeps a fixed width; the list takes the rest.
func RenderListDetailLayout(listContent, detailContent string, width, height int) string {
	if !ShowDetailPane(width) {
		return lipgloss.NewStyle().Width(width).MaxHeight(height).Render(listContent)
	}

	leftStyle := lipgloss.NewStyle().Width(ListWidth(width)).Height(height).MaxHeight(height)
	rightStyle := lipgloss.NewStyle().Width(DetailPaneWidth).Height(height).MaxHeight(height)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftStyle.Render(listContent),
		rightStyle.Render(detailContent),
	)
}

// RenderWidgetBox renders content in a titled box with borders.
// Width accounts for padding (width - 4 for borders and padding).
func RenderWidgetBox(title, content string, width int) string {
	const widthOverhead = 4 // Account for borders (2) and padding (2)

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor())

	boxStyle := BoxStyle().Width(max(width-widthOverhead, 1))

	return boxStyle.Render(titleStyle.Render(title) + "\n" + content)
}

// ShowDetailPane reports whether the terminal is wide enough for the detail pane.
func ShowDetailPane(width int) bool {
	return width >= 2*DetailPaneWidth
}
