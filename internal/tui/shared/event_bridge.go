package shared

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/syncengine"
)

// EventBufferSize is the number of messages the bridge holds before it drops events.
const EventBufferSize = 100

// EngineEventMsg wraps a syncengine.Event for use as a tea.Msg.
type EngineEventMsg struct {
	Event syncengine.Event
}

// EventBridge adapts engine output to bubble tea messages.
// It implements syncengine.EventEmitter and syncengine.Publisher and provides
// a channel for TUI consumption.
type EventBridge struct {
	eventChan chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once
}

// NewEventBridge creates a new event bridge.
func NewEventBridge() *EventBridge {
	return &EventBridge{
		eventChan: make(chan tea.Msg, EventBufferSize),
		done:      make(chan struct{}),
	}
}

// ClearCatalog implements syncengine.Publisher.
func (b *EventBridge) ClearCatalog() {
	b.deliver(CatalogClearedMsg{})
}

// Close stops the bridge. Pending and later messages are discarded and
// ListenCmd returns nil.
func (b *EventBridge) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Emit implements syncengine.EventEmitter.
// It wraps the event in EngineEventMsg and sends to the channel. Activity
// start and stop events wait for room like catalogs do, so the spinner always
// sees both ends; other events are dropped when the channel is full.
func (b *EventBridge) Emit(event syncengine.Event) {
	switch event.(type) {
	case syncengine.ActivityStarted, syncengine.ActivityStopped:
		b.deliver(EngineEventMsg{Event: event})

		return
	}

	select {
	case <-b.done:
	case b.eventChan <- EngineEventMsg{Event: event}:
	default:
		// Channel full, event dropped
	}
}

// ListenCmd returns a tea.Cmd that blocks until an event is received.
// Use this in Init() or after processing an event to continue listening.
func (b *EventBridge) ListenCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-b.done:
			return nil
		case msg := <-b.eventChan:
			return msg
		}
	}
}

// ReplaceCatalog implements syncengine.Publisher. Catalogs are never dropped;
// the call waits for room until the bridge is closed.
func (b *EventBridge) ReplaceCatalog(catalog savegame.Catalog) {
	b.deliver(CatalogMsg{Catalog: catalog})
}

// Subscribe returns the event channel for receiving events.
func (b *EventBridge) Subscribe() <-chan tea.Msg {
	return b.eventChan
}

func (b *EventBridge) deliver(msg tea.Msg) {
	select {
	case <-b.done:
	case b.eventChan <- msg:
	}
}
