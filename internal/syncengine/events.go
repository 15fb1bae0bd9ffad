package syncengine

import (
	"github.com/joe/savegames/internal/games"
	"github.com/joe/savegames/internal/savegame"
)

// Event is the interface implemented by all engine events.
type Event interface {
	isEvent()
}

// EventEmitter is the interface for emitting events.
type EventEmitter interface {
	Emit(event Event)
}

// Publisher receives the catalog. It is the engine's only externally
// observable write.
type Publisher interface {
	ReplaceCatalog(catalog savegame.Catalog)
	ClearCatalog()
}

// Activity events

// ActivityStarted is emitted when a named activity, such as a refresh, begins.
type ActivityStarted struct {
	Name string
}

func (ActivityStarted) isEvent() {}

// ActivityStopped is emitted when a named activity ends, on every exit path.
type ActivityStopped struct {
	Name string
}

func (ActivityStopped) isEvent() {}

// Catalog events

// ProfileChanged is emitted when the engine switches to another profile.
type ProfileChanged struct {
	Profile games.Profile
	Dir     string
}

func (ProfileChanged) isEvent() {}

// CatalogReplaced is emitted after a new catalog was published.
type CatalogReplaced struct {
	Count     int
	Truncated bool
}

func (CatalogReplaced) isEvent() {}

// DetailLoaded is emitted when a save's header was read on demand.
type DetailLoaded struct {
	ID string
}

func (DetailLoaded) isEvent() {}

// ImportScanned is emitted when a directory outside the active profile was
// scanned, for example the source of an import.
type ImportScanned struct {
	Dir    string
	Result *savegame.ScanResult
}

func (ImportScanned) isEvent() {}

// Outcome events

// Succeeded is emitted when a user-initiated operation finished without failures.
type Succeeded struct {
	Operation string
	Files     []string
}

func (Succeeded) isEvent() {}

// Notification is a single aggregated report of one or more failures.
type Notification struct {
	// Key names the activity that failed, e.g. "savegames" or "transfer".
	Key     string
	Title   string
	Details []string
	// AllowReport is false when the failure is something the user can fix
	// alone, so it should not be reported as a bug.
	AllowReport bool
	Err         error
}

func (Notification) isEvent() {}
