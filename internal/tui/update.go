package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/syncengine"
	"github.com/joe/savegames/internal/tui/shared"
)

// chromeHeight is the number of lines taken by the header and the help line.
const chromeHeight = 4

// Update handles messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(shared.ListWidth(msg.Width), m.listHeight())

		return m, nil

	case tea.FocusMsg:
		m.engine.SetFocused(true)

		return m, nil

	case tea.BlurMsg:
		m.engine.SetFocused(false)

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case shared.CatalogMsg:
		m.catalog = msg.Catalog
		m.list.SetCatalog(msg.Catalog)

		return m, m.bridge.ListenCmd()

	case shared.CatalogClearedMsg:
		m.catalog = savegame.Catalog{}
		m.list.SetCatalog(m.catalog)
		m.confirmDelete = nil

		return m, m.bridge.ListenCmd()

	case shared.EngineEventMsg:
		m.handleEvent(msg.Event)

		return m, m.bridge.ListenCmd()

	case shared.DetailMsg:
		if msg.Err != nil && !errors.Is(msg.Err, syncengine.ErrUnknownSave) {
			m.notify(syncengine.Notification{
				Key:     "detail",
				Title:   "save header could not be read",
				Details: []string{msg.Err.Error()},
				Err:     msg.Err,
			})
		}

		return m, nil

	case shared.PluginsMsg:
		m.handlePlugins(msg)

		return m, nil

	case shared.DeleteMsg, shared.RefreshMsg:
		m.handleCommandError(msg)

		return m, nil
	}

	return m, nil
}

func (m *Model) handleEvent(event syncengine.Event) {
	switch event := event.(type) {
	case syncengine.ActivityStarted:
		m.busy[event.Name] = true
	case syncengine.ActivityStopped:
		delete(m.busy, event.Name)
	case syncengine.ProfileChanged:
		m.profile = event.Profile
		m.dir = event.Dir
		m.status = ""
	case syncengine.CatalogReplaced:
		if event.Truncated {
			m.status = fmt.Sprintf("showing the newest %d saves", event.Count)
		}
	case syncengine.Succeeded:
		m.status = fmt.Sprintf("%s: %d file(s)", event.Operation, len(event.Files))
	case syncengine.Notification:
		m.notify(event)
	}
}

// handleCommandError surfaces errors the engine has not already notified.
// Scan and transfer failures arrive as Notification events instead.
func (m *Model) handleCommandError(msg tea.Msg) {
	var err error

	switch msg := msg.(type) {
	case shared.DeleteMsg:
		err = msg.Err
	case shared.RefreshMsg:
		err = msg.Err
	}

	if errors.Is(err, syncengine.ErrNoProfile) {
		m.notify(syncengine.Notification{Title: "no profile is active", Err: err})
	}
}

// handlePlugins reports a plugin check. Missing plugins arrive as an engine
// notification, so only the summary and errors are handled here.
func (m *Model) handlePlugins(msg shared.PluginsMsg) {
	switch {
	case msg.Err == nil && msg.Report.Complete():
		m.status = fmt.Sprintf("all %d plugins of %s are installed", len(msg.Report.Plugins), msg.ID)
	case msg.Err == nil:
		m.status = fmt.Sprintf("%s: %d of %d plugins missing", msg.ID, len(msg.Report.Missing), len(msg.Report.Plugins))
	case errors.Is(msg.Err, syncengine.ErrUnknownSave):
	case errors.Is(msg.Err, syncengine.ErrNoProfile):
		m.notify(syncengine.Notification{Title: "no profile is active", Err: msg.Err})
	case errors.Is(msg.Err, savegame.ErrNoDataDir):
		m.notify(syncengine.Notification{
			Key:     syncengine.ActivityPlugins,
			Title:   "game data directory unknown",
			Details: []string{"set install_path in the config file"},
			Err:     msg.Err,
		})
	default:
		m.notify(syncengine.Notification{
			Key:     syncengine.ActivityPlugins,
			Title:   "plugins could not be checked",
			Details: []string{msg.Err.Error()},
			Err:     msg.Err,
		})
	}
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmDelete != nil {
		return m.handleConfirmKey(msg)
	}

	switch msg.String() {
	case shared.KeyCtrlC, shared.KeyQuit:
		m.quitting = true

		return m, tea.Quit

	case shared.KeyRefresh:
		return m, m.refreshCmd()

	case shared.KeyDetail:
		save, ok := m.list.Selected()
		if !ok {
			return m, nil
		}

		return m, m.loadDetailCmd(save.ID)

	case shared.KeyPlugins:
		save, ok := m.list.Selected()
		if !ok {
			return m, nil
		}

		return m, m.pluginsCmd(save.ID)

	case shared.KeyDelete:
		if save, ok := m.list.Selected(); ok {
			m.confirmDelete = save
		}

		return m, nil
	}

	return m, m.list.Update(msg)
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	save := m.confirmDelete
	m.confirmDelete = nil

	switch msg.String() {
	case shared.KeyCtrlC:
		m.quitting = true

		return m, tea.Quit
	case shared.KeyYes:
		return m, m.deleteCmd(save.ID)
	}

	return m, nil
}

func (m *Model) deleteCmd(id string) tea.Cmd {
	engine, ctx := m.engine, m.ctx

	return func() tea.Msg {
		result, err := engine.Delete(ctx, []string{id})

		return shared.DeleteMsg{Result: result, Err: err}
	}
}

func (m *Model) loadDetailCmd(id string) tea.Cmd {
	engine, ctx := m.engine, m.ctx

	return func() tea.Msg {
		save, err := engine.LoadDetail(ctx, id)

		return shared.DetailMsg{Save: save, Err: err}
	}
}

func (m *Model) pluginsCmd(id string) tea.Cmd {
	engine, ctx := m.engine, m.ctx

	return func() tea.Msg {
		report, err := engine.RestorePlugins(ctx, syncengine.PluginRequest{ID: id})

		return shared.PluginsMsg{ID: id, Report: report, Err: err}
	}
}

func (m *Model) listHeight() int {
	return max(m.height-chromeHeight-m.footerHeight(), 1)
}

func (m *Model) refreshCmd() tea.Cmd {
	engine, ctx := m.engine, m.ctx

	return func() tea.Msg {
		return shared.RefreshMsg{Err: engine.Refresh(ctx)}
	}
}
