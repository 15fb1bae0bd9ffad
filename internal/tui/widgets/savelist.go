package widgets

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/tui/shared"
)

// Fixed column widths. The name column takes whatever is left.
const (
	characterColumnWidth = 16
	levelColumnWidth     = 5
	modifiedColumnWidth  = 16
	sizeColumnWidth      = 9
	minNameColumnWidth   = 12
	columnPadding        = 10 // two cells of cell padding per column
)

// SaveList is a table of saves, newest first. The selection follows the
// selected save's ID across catalog replacements.
type SaveList struct {
	table table.Model
	saves []*savegame.Savegame
	width int
}

// NewSaveList creates an empty, focused save list.
func NewSaveList() *SaveList {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(shared.AccentColor()).
		BorderBottom(true).
		Bold(true)
	styles.Selected = shared.SelectedStyle()

	list := &SaveList{
		table: table.New(
			table.WithFocused(true),
			table.WithStyles(styles),
		),
	}
	list.SetSize(80, 10) //nolint:mnd // Replaced by the first WindowSizeMsg

	return list
}

// Len returns the number of saves shown.
func (l *SaveList) Len() int {
	return len(l.saves)
}

// Selected returns the save under the cursor.
func (l *SaveList) Selected() (*savegame.Savegame, bool) {
	cursor := l.table.Cursor()
	if cursor < 0 || cursor >= len(l.saves) {
		return nil, false
	}

	return l.saves[cursor], true
}

// SetCatalog replaces the rows. The cursor stays on the previously selected
// save when it is still present, and is clamped otherwise.
func (l *SaveList) SetCatalog(catalog savegame.Catalog) {
	var selectedID string
	if save, ok := l.Selected(); ok {
		selectedID = save.ID
	}

	cursor := l.table.Cursor()

	l.saves = catalog.Newest()
	l.table.SetRows(l.rows())

	for i, save := range l.saves {
		if save.ID == selectedID {
			cursor = i

			break
		}
	}

	l.table.SetCursor(min(max(cursor, 0), max(len(l.saves)-1, 0)))
}

// SetSize fits the table to the given width and height.
func (l *SaveList) SetSize(width, height int) {
	l.width = width
	l.table.SetColumns(l.columns())
	l.table.SetRows(l.rows())
	l.table.SetWidth(width)
	l.table.SetHeight(max(height, 1))
}

// Update forwards navigation keys to the table.
func (l *SaveList) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	l.table, cmd = l.table.Update(msg)

	return cmd
}

// View renders the table.
func (l *SaveList) View() string {
	if len(l.saves) == 0 {
		return shared.RenderDim("No saves found")
	}

	return l.table.View()
}

func (l *SaveList) columns() []table.Column {
	fixed := characterColumnWidth + levelColumnWidth + modifiedColumnWidth + sizeColumnWidth + columnPadding

	return []table.Column{
		{Title: "Save", Width: max(l.width-fixed, minNameColumnWidth)},
		{Title: "Character", Width: characterColumnWidth},
		{Title: "Lvl", Width: levelColumnWidth},
		{Title: "Modified", Width: modifiedColumnWidth},
		{Title: "Size", Width: sizeColumnWidth},
	}
}

func (l *SaveList) rows() []table.Row {
	rows := make([]table.Row, 0, len(l.saves))

	for _, save := range l.saves {
		character, level := "", ""
		if save.Detail != nil {
			character = save.Detail.CharacterName
			level = fmt.Sprintf("%d", save.Detail.Level)
		}

		rows = append(rows, table.Row{
			save.ID,
			character,
			level,
			shared.FormatTime(save.ModTime),
			shared.FormatBytes(save.Size),
		})
	}

	return rows
}
