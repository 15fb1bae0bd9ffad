package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joe/savegames/internal/games"
	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/syncengine"
	"github.com/joe/savegames/internal/tui/shared"
)

type fakeEngine struct {
	deleted    [][]string
	loaded     []string
	refreshes  int
	focus      []bool
	refreshErr error
	loadErr    error
	checked    []string
	pluginErr  error
	missing    []string
}

func (f *fakeEngine) Delete(_ context.Context, ids []string) (*savegame.TransferResult, error) {
	f.deleted = append(f.deleted, ids)

	return &savegame.TransferResult{Done: ids}, nil
}

func (f *fakeEngine) LoadDetail(_ context.Context, id string) (*savegame.Savegame, error) {
	f.loaded = append(f.loaded, id)
	if f.loadErr != nil {
		return nil, f.loadErr
	}

	return &savegame.Savegame{ID: id, Detail: &savegame.Detail{CharacterName: "Lydia"}}, nil
}

func (f *fakeEngine) Refresh(context.Context) error {
	f.refreshes++

	return f.refreshErr
}

func (f *fakeEngine) RestorePlugins(_ context.Context, req syncengine.PluginRequest) (*savegame.PluginReport, error) {
	f.checked = append(f.checked, req.ID)
	if f.pluginErr != nil {
		return nil, f.pluginErr
	}

	return &savegame.PluginReport{Plugins: []string{"Skyrim.esm", "Mod.esp"}, Missing: f.missing}, nil
}

func (f *fakeEngine) SetFocused(focused bool) {
	f.focus = append(f.focus, focused)
}

func runeKey(key string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func catalogOf(ids ...string) savegame.Catalog {
	now := time.Now()
	saves := make([]*savegame.Savegame, 0, len(ids))

	for i, id := range ids {
		saves = append(saves, &savegame.Savegame{ID: id, Name: id, ModTime: now.Add(-time.Duration(i) * time.Minute)})
	}

	return savegame.NewCatalog(saves, false)
}

var _ = Describe("Model", func() {
	var (
		engine *fakeEngine
		bridge *shared.EventBridge
		model  *Model
	)

	send := func(msg tea.Msg) tea.Cmd {
		_, cmd := model.Update(msg)

		return cmd
	}

	BeforeEach(func() {
		engine = &fakeEngine{}
		bridge = shared.NewEventBridge()
		DeferCleanup(bridge.Close)

		model = NewModel(context.Background(), engine, bridge)
		send(tea.WindowSizeMsg{Width: 120, Height: 40})
	})

	Describe("Catalog updates", func() {
		It("shows a published catalog and keeps listening", func() {
			cmd := send(shared.CatalogMsg{Catalog: catalogOf("quicksave.ess", "autosave1.ess")})

			Expect(cmd).ToNot(BeNil())
			Expect(model.Catalog().Len()).To(Equal(2))

			selected, ok := model.Selected()
			Expect(ok).To(BeTrue())
			Expect(selected.ID).To(Equal("quicksave.ess"))
			Expect(model.View()).To(ContainSubstring("autosave1.ess"))
		})

		It("empties the list when the catalog is cleared", func() {
			send(shared.CatalogMsg{Catalog: catalogOf("quicksave.ess")})
			send(shared.CatalogClearedMsg{})

			Expect(model.Catalog().Len()).To(BeZero())
			Expect(model.View()).To(ContainSubstring("No saves found"))
		})

		It("shows detail loaded after the row was drawn", func() {
			send(shared.CatalogMsg{Catalog: catalogOf("quicksave.ess")})

			loaded := &savegame.Savegame{ID: "quicksave.ess", Name: "quicksave.ess", Detail: &savegame.Detail{
				CharacterName: "Lydia",
				Location:      "Breezehome",
			}}
			send(shared.CatalogMsg{Catalog: model.Catalog().With(loaded)})

			Expect(model.View()).To(ContainSubstring("Breezehome"))
		})
	})

	Describe("Engine events", func() {
		It("tracks running activities", func() {
			send(shared.EngineEventMsg{Event: syncengine.ActivityStarted{Name: syncengine.RefreshKey}})
			send(shared.EngineEventMsg{Event: syncengine.ActivityStarted{Name: syncengine.ActivityDelete}})

			Expect(model.Busy()).To(Equal([]string{syncengine.ActivityDelete, syncengine.RefreshKey}))
			Expect(model.View()).To(ContainSubstring(syncengine.RefreshKey))

			send(shared.EngineEventMsg{Event: syncengine.ActivityStopped{Name: syncengine.RefreshKey}})

			Expect(model.Busy()).To(Equal([]string{syncengine.ActivityDelete}))
		})

		It("shows the active profile", func() {
			send(shared.EngineEventMsg{Event: syncengine.ProfileChanged{
				Profile: games.Profile{ID: "main", Name: "Main", GameID: "skyrimse"},
				Dir:     "/saves/skyrim",
			}})

			view := model.View()
			Expect(view).To(ContainSubstring("Main"))
			Expect(view).To(ContainSubstring("/saves/skyrim"))
		})

		It("keeps only the most recent notifications", func() {
			for i := range maxNotifications + 2 {
				send(shared.EngineEventMsg{Event: syncengine.Notification{Title: fmt.Sprintf("failure %d", i)}})
			}

			notes := model.Notifications()
			Expect(notes).To(HaveLen(maxNotifications))
			Expect(notes[0].Title).To(Equal("failure 2"))
			Expect(model.View()).To(ContainSubstring("failure 4"))
		})

		It("reports successful operations", func() {
			send(shared.EngineEventMsg{Event: syncengine.Succeeded{
				Operation: savegame.OpDelete,
				Files:     []string{"a.ess", "a.skse"},
			}})

			Expect(model.Status()).To(Equal("delete: 2 file(s)"))
		})

		It("notes a truncated catalog", func() {
			send(shared.EngineEventMsg{Event: syncengine.CatalogReplaced{Count: 50, Truncated: true}})

			Expect(model.Status()).To(ContainSubstring("newest 50"))
		})
	})

	Describe("Keys", func() {
		BeforeEach(func() {
			send(shared.CatalogMsg{Catalog: catalogOf("quicksave.ess", "autosave1.ess")})
		})

		It("refreshes on r", func() {
			cmd := send(runeKey(shared.KeyRefresh))
			Expect(cmd).ToNot(BeNil())

			msg := cmd()
			Expect(msg).To(Equal(shared.RefreshMsg{}))
			Expect(engine.refreshes).To(Equal(1))
		})

		It("loads the selected save's detail on enter", func() {
			send(tea.KeyMsg{Type: tea.KeyDown})

			cmd := send(tea.KeyMsg{Type: tea.KeyEnter})
			msg, ok := cmd().(shared.DetailMsg)

			Expect(ok).To(BeTrue())
			Expect(msg.Err).ToNot(HaveOccurred())
			Expect(engine.loaded).To(Equal([]string{"autosave1.ess"}))
		})

		It("asks before deleting and deletes on y", func() {
			send(runeKey(shared.KeyDelete))

			pending, ok := model.ConfirmingDelete()
			Expect(ok).To(BeTrue())
			Expect(pending.ID).To(Equal("quicksave.ess"))
			Expect(model.View()).To(ContainSubstring("Delete quicksave.ess"))
			Expect(engine.deleted).To(BeEmpty())

			cmd := send(runeKey(shared.KeyYes))
			msg, ok := cmd().(shared.DeleteMsg)

			Expect(ok).To(BeTrue())
			Expect(msg.Result.Done).To(Equal([]string{"quicksave.ess"}))
			Expect(engine.deleted).To(Equal([][]string{{"quicksave.ess"}}))

			_, ok = model.ConfirmingDelete()
			Expect(ok).To(BeFalse())
		})

		It("cancels a delete on any other key", func() {
			send(runeKey(shared.KeyDelete))

			cmd := send(runeKey("n"))

			Expect(cmd).To(BeNil())
			Expect(engine.deleted).To(BeEmpty())

			_, ok := model.ConfirmingDelete()
			Expect(ok).To(BeFalse())
		})

		It("checks the selected save's plugins on p", func() {
			cmd := send(runeKey(shared.KeyPlugins))
			msg, ok := cmd().(shared.PluginsMsg)

			Expect(ok).To(BeTrue())
			Expect(engine.checked).To(Equal([]string{"quicksave.ess"}))

			send(msg)
			Expect(model.Status()).To(Equal("all 2 plugins of quicksave.ess are installed"))
		})

		It("summarizes missing plugins", func() {
			engine.missing = []string{"Mod.esp"}

			send(send(runeKey(shared.KeyPlugins))())

			Expect(model.Status()).To(Equal("quicksave.ess: 1 of 2 plugins missing"))
		})

		It("quits on q", func() {
			cmd := send(runeKey(shared.KeyQuit))

			Expect(model.Quitting()).To(BeTrue())
			Expect(cmd()).To(Equal(tea.Quit()))
			Expect(model.View()).To(BeEmpty())
		})
	})

	Describe("Focus", func() {
		It("forwards focus changes to the engine", func() {
			send(tea.BlurMsg{})
			send(tea.FocusMsg{})

			Expect(engine.focus).To(Equal([]bool{false, true}))
		})
	})

	Describe("Command results", func() {
		It("notifies when no profile is active", func() {
			send(shared.RefreshMsg{Err: syncengine.ErrNoProfile})

			Expect(model.Notifications()).To(HaveLen(1))
		})

		It("leaves scan failures to the engine's notifications", func() {
			send(shared.RefreshMsg{Err: errors.New("listing failed")})

			Expect(model.Notifications()).To(BeEmpty())
		})

		It("notifies when a header cannot be read", func() {
			send(shared.DetailMsg{Err: errors.New("unsupported save format")})

			Expect(model.Notifications()).To(HaveLen(1))
			Expect(model.View()).To(ContainSubstring("save header could not be read"))
		})

		It("explains an unknown data directory", func() {
			send(shared.PluginsMsg{ID: "quicksave.ess", Err: savegame.ErrNoDataDir})

			Expect(model.Notifications()).To(HaveLen(1))
			Expect(model.View()).To(ContainSubstring("game data directory unknown"))
		})

		It("notifies when plugins cannot be checked", func() {
			send(shared.PluginsMsg{ID: "quicksave.ess", Err: errors.New("failed to list data directory")})

			Expect(model.Notifications()).To(HaveLen(1))
			Expect(model.View()).To(ContainSubstring("plugins could not be checked"))
		})

		It("ignores detail requests for saves that vanished", func() {
			send(shared.DetailMsg{Err: syncengine.ErrUnknownSave})

			Expect(model.Notifications()).To(BeEmpty())
		})
	})
})
