package syncengine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/joe/savegames/internal/games"
	"github.com/joe/savegames/internal/savegame"
)

// ActivityPlugins is the activity name of a plugin check.
const ActivityPlugins = "plugins"

// PluginRequest asks for the plugins of one save to be checked and,
// optionally, restored as the game's load order.
type PluginRequest struct {
	ID string
	// DataDir overrides the data directory the engine was configured with.
	DataDir string
	// LoadOrderPath is the plugins.txt to rewrite. Empty only checks.
	LoadOrderPath string
	// Force writes the load order even when plugins are missing.
	Force bool
}

// RestorePlugins checks which of the save's plugins are installed. Missing
// plugins are reported in a notification; errors are only returned. With a
// LoadOrderPath the save's plugin list then replaces that file, unless
// plugins are missing and Force is unset, in which case a
// *savegame.MissingPluginsError is returned and nothing is written.
func (e *Engine) RestorePlugins(ctx context.Context, req PluginRequest) (*savegame.PluginReport, error) {
	profile, dir := e.active()
	if dir == "" {
		return nil, ErrNoProfile
	}

	dataDir := req.DataDir
	if dataDir == "" {
		dataDir = e.dataDir
	}

	if dataDir == "" {
		return nil, savegame.ErrNoDataDir
	}

	save, err := e.LoadDetail(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	e.StartActivity(ActivityPlugins)
	defer e.StopActivity(ActivityPlugins)

	report, err := savegame.CheckPlugins(e.fs, dataDir, save.Detail.Plugins)
	if err != nil {
		return nil, err
	}

	if !report.Complete() {
		e.logger.Info("save needs missing plugins",
			zap.String("save", req.ID),
			zap.Strings("missing", report.Missing))

		e.emit(Notification{
			Key:     ActivityPlugins,
			Title:   fmt.Sprintf("%d plugin(s) of %s are not installed", len(report.Missing), req.ID),
			Details: report.Missing,
			Err:     &savegame.MissingPluginsError{Missing: report.Missing},
		})
	}

	if req.LoadOrderPath == "" {
		return report, nil
	}

	if !report.Complete() && !req.Force {
		return report, &savegame.MissingPluginsError{Missing: report.Missing}
	}

	game, _ := games.Lookup(profile.GameID)

	err = savegame.WriteLoadOrder(e.fs, req.LoadOrderPath, report.Plugins, game.StarredLoadOrder)
	if err != nil {
		return report, err
	}

	e.logger.Info("load order restored",
		zap.String("save", req.ID),
		zap.String("path", req.LoadOrderPath),
		zap.Int("plugins", len(report.Plugins)))

	e.emit(Succeeded{Operation: "restore plugins", Files: []string{req.LoadOrderPath}})

	return report, nil
}
