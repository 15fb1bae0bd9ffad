package shared_test

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/syncengine"
	"github.com/joe/savegames/internal/tui/shared"
)

// TestEventBridge_ImplementsEngineInterfaces verifies the bridge can be handed to the engine.
func TestEventBridge_ImplementsEngineInterfaces(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	bridge := shared.NewEventBridge()
	defer bridge.Close()

	var (
		emitter   syncengine.EventEmitter = bridge
		publisher syncengine.Publisher    = bridge
	)

	g.Expect(emitter).ToNot(BeNil())
	g.Expect(publisher).ToNot(BeNil())
}

// TestEventBridge_MessagesArriveInOrder verifies events and catalogs share one ordered channel.
func TestEventBridge_MessagesArriveInOrder(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	bridge := shared.NewEventBridge()
	defer bridge.Close()

	catalog := savegame.NewCatalog([]*savegame.Savegame{{ID: "quicksave.ess"}}, false)

	bridge.ClearCatalog()
	bridge.Emit(syncengine.ActivityStarted{Name: syncengine.RefreshKey})
	bridge.ReplaceCatalog(catalog)

	eventChan := bridge.Subscribe()

	g.Expect(<-eventChan).To(Equal(shared.CatalogClearedMsg{}))
	g.Expect(<-eventChan).To(Equal(shared.EngineEventMsg{Event: syncengine.ActivityStarted{Name: syncengine.RefreshKey}}))

	msg, ok := (<-eventChan).(shared.CatalogMsg)
	g.Expect(ok).To(BeTrue())
	g.Expect(msg.Catalog.IDs()).To(Equal([]string{"quicksave.ess"}))
}

// TestEventBridge_DropsEventsWhenFull verifies a full buffer never blocks Emit
// of ordinary events.
func TestEventBridge_DropsEventsWhenFull(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	bridge := shared.NewEventBridge()
	defer bridge.Close()

	for range shared.EventBufferSize + 10 {
		bridge.Emit(syncengine.DetailLoaded{ID: "quicksave.ess"})
	}

	g.Expect(bridge.Subscribe()).To(HaveLen(shared.EventBufferSize))
}

// TestEventBridge_ActivityStopIsNeverDropped verifies the end of an activity
// waits for room instead of leaving the spinner running.
func TestEventBridge_ActivityStopIsNeverDropped(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	bridge := shared.NewEventBridge()
	defer bridge.Close()

	for range shared.EventBufferSize {
		bridge.Emit(syncengine.DetailLoaded{ID: "quicksave.ess"})
	}

	done := make(chan struct{})

	go func() {
		bridge.Emit(syncengine.ActivityStopped{Name: syncengine.RefreshKey})
		close(done)
	}()

	g.Consistently(done, 20*time.Millisecond).ShouldNot(BeClosed())

	eventChan := bridge.Subscribe()
	<-eventChan

	g.Eventually(done).Should(BeClosed())

	var last tea.Msg
	for range shared.EventBufferSize {
		last = <-eventChan
	}

	g.Expect(last).To(Equal(shared.EngineEventMsg{Event: syncengine.ActivityStopped{Name: syncengine.RefreshKey}}))
}

// TestEventBridge_CloseReleasesBlockedPublisher verifies Close unblocks a waiting catalog publish.
func TestEventBridge_CloseReleasesBlockedPublisher(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	bridge := shared.NewEventBridge()

	for range shared.EventBufferSize {
		bridge.ClearCatalog()
	}

	done := make(chan struct{})

	go func() {
		bridge.ReplaceCatalog(savegame.Catalog{})
		close(done)
	}()

	g.Consistently(done, 20*time.Millisecond).ShouldNot(BeClosed())

	bridge.Close()

	g.Eventually(done).Should(BeClosed())
	g.Expect(bridge.ListenCmd()()).To(Or(BeNil(), Equal(shared.CatalogClearedMsg{})))
}

// TestEventBridge_ListenCmd verifies the listen command works with bubble tea.
func TestEventBridge_ListenCmd(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	bridge := shared.NewEventBridge()
	defer bridge.Close()

	cmd := bridge.ListenCmd()
	g.Expect(cmd).ToNot(BeNil())

	go func() {
		time.Sleep(10 * time.Millisecond)
		bridge.Emit(syncengine.DetailLoaded{ID: "quicksave.ess"})
	}()

	// Blocks until the event arrives
	msg := cmd()

	eventMsg, ok := msg.(shared.EngineEventMsg)
	g.Expect(ok).To(BeTrue())
	g.Expect(eventMsg.Event).To(Equal(syncengine.DetailLoaded{ID: "quicksave.ess"}))
}
