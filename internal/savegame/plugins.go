package savegame

import (
	"bufio"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joe/savegames/pkg/fileops"
	"github.com/joe/savegames/pkg/filesystem"
)

// ErrNoDataDir is returned when the game's data directory is not known.
var ErrNoDataDir = errors.New("game data directory unknown")

// MissingPluginsError lists the plugins a save was made with that the data
// directory does not hold.
type MissingPluginsError struct {
	Missing []string
}

func (e *MissingPluginsError) Error() string {
	return fmt.Sprintf("%d plugin(s) missing: %s", len(e.Missing), strings.Join(e.Missing, ", "))
}

// PluginReport is the outcome of checking a save's plugins against a data
// directory.
type PluginReport struct {
	// Plugins is the save's load order.
	Plugins []string
	// Missing keeps load order.
	Missing []string
}

// Complete reports whether every plugin is installed.
func (r *PluginReport) Complete() bool {
	return len(r.Missing) == 0
}

// CheckPlugins looks up every plugin in dataDir. Names are matched without
// regard to case, as the game does.
func CheckPlugins(fsys filesystem.FileSystem, dataDir string, plugins []string) (*PluginReport, error) {
	if dataDir == "" {
		return nil, ErrNoDataDir
	}

	iter := fsys.List(dataDir)
	installed := make(map[string]bool)

	for info := range filesystem.Entries(iter) {
		if !info.IsDir {
			installed[strings.ToLower(info.Name())] = true
		}
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list data directory %s: %w", dataDir, err)
	}

	report := &PluginReport{Plugins: plugins, Missing: []string{}}

	for _, plugin := range plugins {
		if !installed[strings.ToLower(plugin)] {
			report.Missing = append(report.Missing, plugin)
		}
	}

	return report, nil
}

// WriteLoadOrder replaces the plugins file at path with plugins, one per
// line. With starred set every line carries the "*" active marker newer games
// expect.
func WriteLoadOrder(fsys filesystem.FileSystem, path string, plugins []string, starred bool) error {
	err := fsys.MkdirAll(filepath.Dir(path), fileops.DefaultDirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	file, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	writer := bufio.NewWriter(file)

	for _, plugin := range plugins {
		if starred {
			plugin = "*" + plugin
		}

		_, err = writer.WriteString(plugin + "\r\n")
		if err != nil {
			_ = file.Close()

			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	err = writer.Flush()
	if err != nil {
		_ = file.Close()

		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	return nil
}
