package shared

import (
	"github.com/joe/savegames/internal/savegame"
)

// ============================================================================
// Engine Messages
// These messages carry what the engine publishes into the program
// ============================================================================

// CatalogMsg carries a newly published catalog.
type CatalogMsg struct {
	Catalog savegame.Catalog
}

// CatalogClearedMsg is sent when the engine drops the catalog, for example
// on a profile change.
type CatalogClearedMsg struct{}

// ============================================================================
// Command Results
// These messages report the outcome of commands started by a key press
// ============================================================================

// DetailMsg is sent when a save's header was read.
type DetailMsg struct {
	Save *savegame.Savegame
	Err  error
}

// DeleteMsg is sent when a deletion finished.
type DeleteMsg struct {
	Result *savegame.TransferResult
	Err    error
}

// RefreshMsg is sent when a requested refresh returned.
type RefreshMsg struct {
	Err error
}

// PluginsMsg is sent when a save's plugins were checked.
type PluginsMsg struct {
	ID     string
	Report *savegame.PluginReport
	Err    error
}
