// Package tui is the interactive save browser: a table of the active
// profile's saves, a detail pane for the selection, and the engine's
// notifications underneath.
package tui

import (
	"context"
	"sort"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/savegames/internal/games"
	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/syncengine"
	"github.com/joe/savegames/internal/tui/shared"
	"github.com/joe/savegames/internal/tui/widgets"
)

// maxNotifications is how many notifications stay on screen.
const maxNotifications = 3

// Engine is the part of the sync engine the browser drives.
type Engine interface {
	Delete(ctx context.Context, ids []string) (*savegame.TransferResult, error)
	LoadDetail(ctx context.Context, id string) (*savegame.Savegame, error)
	Refresh(ctx context.Context) error
	RestorePlugins(ctx context.Context, req syncengine.PluginRequest) (*savegame.PluginReport, error)
	SetFocused(focused bool)
}

// Model represents the browser state
type Model struct {
	ctx    context.Context
	engine Engine
	bridge *shared.EventBridge

	list    *widgets.SaveList
	catalog savegame.Catalog
	spinner spinner.Model

	profile games.Profile
	dir     string

	busy          map[string]bool
	notifications []syncengine.Notification
	status        string
	confirmDelete *savegame.Savegame

	width    int
	height   int
	quitting bool
}

// NewModel creates a browser for engine. Catalogs and events arrive through
// bridge, which must be the engine's publisher and emitter.
func NewModel(ctx context.Context, engine Engine, bridge *shared.EventBridge) *Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = shared.SelectedStyle().UnsetBackground()

	return &Model{
		ctx:     ctx,
		engine:  engine,
		bridge:  bridge,
		list:    widgets.NewSaveList(),
		spinner: spin,
		busy:    make(map[string]bool),
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.bridge.ListenCmd(), m.spinner.Tick)
}

// Busy returns the names of the running activities, sorted.
func (m *Model) Busy() []string {
	names := make([]string, 0, len(m.busy))
	for name := range m.busy {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Catalog returns the catalog currently shown.
func (m *Model) Catalog() savegame.Catalog {
	return m.catalog
}

// ConfirmingDelete returns the save awaiting delete confirmation, if any.
func (m *Model) ConfirmingDelete() (*savegame.Savegame, bool) {
	return m.confirmDelete, m.confirmDelete != nil
}

// Notifications returns the notifications on screen, oldest first.
func (m *Model) Notifications() []syncengine.Notification {
	return m.notifications
}

// Quitting reports whether the user asked to leave.
func (m *Model) Quitting() bool {
	return m.quitting
}

// Selected returns the save under the cursor.
func (m *Model) Selected() (*savegame.Savegame, bool) {
	return m.list.Selected()
}

// Status returns the last success message.
func (m *Model) Status() string {
	return m.status
}

func (m *Model) notify(note syncengine.Notification) {
	m.notifications = append(m.notifications, note)
	if len(m.notifications) > maxNotifications {
		m.notifications = m.notifications[len(m.notifications)-maxNotifications:]
	}
}

// selectedSave returns the freshest record for the selection, so the detail
// pane sees detail loaded after the row was drawn.
func (m *Model) selectedSave() *savegame.Savegame {
	save, ok := m.list.Selected()
	if !ok {
		return nil
	}

	if latest, ok := m.catalog.Get(save.ID); ok {
		return latest
	}

	return save
}
