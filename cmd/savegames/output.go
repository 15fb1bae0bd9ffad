package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/joe/savegames/internal/games"
	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/syncengine"
	"github.com/joe/savegames/internal/tui/shared"
)

// logEmitter writes engine events to the log.
type logEmitter struct {
	logger *zap.Logger
}

func (e *logEmitter) Emit(event syncengine.Event) {
	switch event := event.(type) {
	case syncengine.ActivityStarted:
		e.logger.Debug("activity started", zap.String("activity", event.Name))
	case syncengine.ActivityStopped:
		e.logger.Debug("activity stopped", zap.String("activity", event.Name))
	case syncengine.ProfileChanged:
		e.logger.Info("profile changed", zap.String("profile", event.Profile.ID), zap.String("dir", event.Dir))
	case syncengine.CatalogReplaced:
		e.logger.Debug("catalog replaced", zap.Int("saves", event.Count), zap.Bool("truncated", event.Truncated))
	case syncengine.DetailLoaded:
		e.logger.Debug("detail loaded", zap.String("save", event.ID))
	case syncengine.ImportScanned:
		e.logger.Info("import scanned",
			zap.String("dir", event.Dir),
			zap.Int("saves", len(event.Result.Savegames)),
			zap.Int("failed", len(event.Result.FailedReads)))
	case syncengine.Succeeded:
		e.logger.Info("operation succeeded", zap.String("operation", event.Operation), zap.Strings("files", event.Files))
	case syncengine.Notification:
		e.logger.Warn(event.Title,
			zap.String("activity", event.Key),
			zap.Strings("details", event.Details),
			zap.Bool("unexpected", event.AllowReport),
			zap.Error(event.Err))
	}
}

// teeEmitter forwards every event to each emitter in turn.
type teeEmitter []syncengine.EventEmitter

func (t teeEmitter) Emit(event syncengine.Event) {
	for _, emitter := range t {
		emitter.Emit(event)
	}
}

// logPublisher logs each published catalog for headless watching.
type logPublisher struct {
	logger *zap.Logger
}

func (p *logPublisher) ClearCatalog() {
	p.logger.Debug("catalog cleared")
}

func (p *logPublisher) ReplaceCatalog(catalog savegame.Catalog) {
	fields := []zap.Field{zap.Int("saves", catalog.Len()), zap.Bool("truncated", catalog.Truncated())}

	if newest := catalog.Newest(); len(newest) > 0 {
		fields = append(fields, zap.String("newest", newest[0].ID), zap.Time("modified", newest[0].ModTime))
	}

	p.logger.Info("catalog updated", fields...)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(shared.AccentColor())).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return shared.LabelStyle().Padding(0, 1)
			}

			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

// renderProfileTable lists each profile with its save directory. The
// active profile is marked with an asterisk.
func renderProfileTable(profiles []games.Profile, resolver syncengine.SaveDirResolver, active string) string {
	t := newTable("", "Profile", "Name", "Save directory")

	for i, profile := range profiles {
		marker := ""
		if profile.ID == active || (active == "" && i == 0) {
			marker = "*"
		}

		dir, err := resolver.SaveDirectory(profile)
		if err != nil {
			dir = shared.RenderError(err.Error())
		}

		t.Row(marker, profile.ID, profile.Name, dir)
	}

	return t.String()
}

// renderPluginTable lists a save's plugins in load order with their install state.
func renderPluginTable(report *savegame.PluginReport) string {
	missing := make(map[string]bool, len(report.Missing))
	for _, plugin := range report.Missing {
		missing[plugin] = true
	}

	t := newTable("#", "Plugin", "Status")

	for i, plugin := range report.Plugins {
		status := shared.RenderSuccess("installed")
		if missing[plugin] {
			status = shared.RenderError("missing")
		}

		t.Row(strconv.Itoa(i), plugin, status)
	}

	summary := fmt.Sprintf("%d plugins, %d missing", len(report.Plugins), len(report.Missing))

	return t.String() + "\n" + shared.RenderDim(summary)
}

// renderSaveTable lists the saves of catalog, newest first.
func renderSaveTable(catalog savegame.Catalog, detail bool) string {
	headers := []string{"Save", "Modified", "Size"}
	if detail {
		headers = append(headers, "Character", "Level", "Location")
	}

	t := newTable(headers...)

	for _, save := range catalog.Newest() {
		row := []string{save.ID, shared.FormatTime(save.ModTime), shared.FormatBytes(save.Size)}

		if detail {
			if save.Detail != nil {
				row = append(row, save.Detail.CharacterName, strconv.FormatUint(uint64(save.Detail.Level), 10), save.Detail.Location)
			} else {
				row = append(row, shared.RenderError("unreadable"), "", "")
			}
		}

		t.Row(row...)
	}

	summary := fmt.Sprintf("%d saves", catalog.Len())
	if catalog.Truncated() {
		summary = fmt.Sprintf("newest %d saves shown", catalog.Len())
	}

	return t.String() + "\n" + shared.RenderDim(summary)
}
