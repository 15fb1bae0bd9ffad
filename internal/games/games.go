// Package games describes the supported games: where their saves live and
// which script-extender co-saves travel with each save.
package games

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedGame is returned for game ids without save support.
var ErrUnsupportedGame = errors.New("unsupported game")

// Store identifies the storefront a game was installed from. Some stores
// use their own My Games folder.
type Store string

// Known stores. The empty store behaves like Steam.
const (
	StoreSteam Store = "steam"
	StoreGOG   Store = "gog"
	StoreEpic  Store = "epic"
	StoreXbox  Store = "xbox"
)

// Game is the save-related metadata of one game.
type Game struct {
	ID   string
	Name string
	// MyGamesDir is the folder below "Documents/My Games".
	MyGamesDir string
	// ScriptExtender is the co-save extension, without the dot.
	ScriptExtender string
	// StarredLoadOrder marks games whose plugins.txt prefixes active plugins with "*".
	StarredLoadOrder bool
}

// Profile is a named set of saves for one game.
type Profile struct {
	ID     string
	Name   string
	GameID string
	// LocalSaves keeps the profile's saves in a subdirectory of its own.
	LocalSaves bool
}

//nolint:gochecknoglobals // Immutable lookup table
var supported = map[string]Game{
	"skyrim":                {ID: "skyrim", Name: "Skyrim", MyGamesDir: "skyrim", ScriptExtender: "skse"},
	"enderal":               {ID: "enderal", Name: "Enderal", MyGamesDir: "enderal", ScriptExtender: "skse"},
	"skyrimse":              {ID: "skyrimse", Name: "Skyrim Special Edition", MyGamesDir: "Skyrim Special Edition", ScriptExtender: "skse", StarredLoadOrder: true},
	"skyrimvr":              {ID: "skyrimvr", Name: "Skyrim VR", MyGamesDir: "Skyrim VR", ScriptExtender: "skse", StarredLoadOrder: true},
	"enderalspecialedition": {ID: "enderalspecialedition", Name: "Enderal Special Edition", MyGamesDir: "Enderal Special Edition", ScriptExtender: "skse", StarredLoadOrder: true},
	"fallout3":              {ID: "fallout3", Name: "Fallout 3", MyGamesDir: "Fallout3", ScriptExtender: "fose"},
	"falloutnv":             {ID: "falloutnv", Name: "Fallout: New Vegas", MyGamesDir: "FalloutNV", ScriptExtender: "nvse"},
	"fallout4":              {ID: "fallout4", Name: "Fallout 4", MyGamesDir: "Fallout4", ScriptExtender: "f4se", StarredLoadOrder: true},
	"fallout4vr":            {ID: "fallout4vr", Name: "Fallout 4 VR", MyGamesDir: "Fallout4VR", ScriptExtender: "f4se", StarredLoadOrder: true},
	"oblivion":              {ID: "oblivion", Name: "Oblivion", MyGamesDir: "Oblivion", ScriptExtender: "obse"},
}

//nolint:gochecknoglobals // Immutable lookup table
var storeMyGamesDirs = map[Store]map[string]string{
	StoreXbox: {
		"skyrimse": "Skyrim Special Edition MS",
		"fallout4": "Fallout4 MS",
	},
	StoreGOG: {
		"skyrimse": "Skyrim Special Edition GOG",
	},
	StoreEpic: {
		"skyrimse": "Skyrim Special Edition EPIC",
	},
}

// xboxPathMarkers identify a Game Pass install from its path, lower case.
//
//nolint:gochecknoglobals // Immutable lookup table
var xboxPathMarkers = []string{"modifiablewindowsapps", "3275kfvn8vcwc"}

// Supported reports whether saves of gameID can be managed.
func Supported(gameID string) bool {
	_, ok := supported[gameID]

	return ok
}

// Lookup returns the metadata of gameID.
func Lookup(gameID string) (Game, bool) {
	game, ok := supported[gameID]

	return game, ok
}

// IDs returns every supported game id in lexical order.
func IDs() []string {
	ids := make([]string, 0, len(supported))
	for id := range supported {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// SaveFiles returns name followed by the script-extender co-save that has
// to travel with it. Unsupported games have no co-saves.
func SaveFiles(gameID, name string) []string {
	game, ok := supported[gameID]
	if !ok {
		return []string{name}
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))

	return []string{name, base + "." + game.ScriptExtender}
}

// Resolver computes save directories on this machine.
type Resolver struct {
	// DocumentsDir is the user's documents folder.
	DocumentsDir string
	Store        Store
	// InstallPath is where the game is installed. It refines the My Games
	// folder for Game Pass installs and for Enderal SE installed over Skyrim SE.
	InstallPath string
}

// DefaultDocumentsDir returns the documents folder of the current user.
func DefaultDocumentsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}

	return filepath.Join(home, "Documents"), nil
}

// MyGamesPath returns the game's folder below "Documents/My Games".
func (r Resolver) MyGamesPath(gameID string) (string, error) {
	game, ok := supported[gameID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedGame, gameID)
	}

	return filepath.Join(r.DocumentsDir, "My Games", r.myGamesDir(game)), nil
}

// DataDirectory returns the game's Data folder, or "" when the install path
// is not configured.
func (r Resolver) DataDirectory() string {
	if r.InstallPath == "" {
		return ""
	}

	return filepath.Join(r.InstallPath, "Data")
}

// SaveDirectory returns the directory holding the profile's saves.
func (r Resolver) SaveDirectory(profile Profile) (string, error) {
	return r.saveDirectory(profile, false)
}

// SaveDirectoryGlobal returns the shared save directory of the profile's
// game, ignoring the profile's local saves setting.
func (r Resolver) SaveDirectoryGlobal(profile Profile) (string, error) {
	return r.saveDirectory(profile, true)
}

func (r Resolver) saveDirectory(profile Profile, global bool) (string, error) {
	myGames, err := r.MyGamesPath(profile.GameID)
	if err != nil {
		return "", err
	}

	saves := filepath.Join(myGames, "Saves")
	if profile.GameID == "enderal" {
		saves = filepath.Join(myGames, "..", "Enderal", "Saves")
	}

	if profile.LocalSaves && !global {
		return filepath.Join(saves, profile.ID), nil
	}

	return saves, nil
}

func (r Resolver) myGamesDir(game Game) string {
	store := r.Store
	if r.isXboxInstall() {
		store = StoreXbox
	}

	if dir, ok := storeMyGamesDirs[store][game.ID]; ok {
		return dir
	}

	if game.ID == "enderalspecialedition" && strings.Contains(strings.ToLower(r.InstallPath), "skyrim") {
		return supported["skyrimse"].MyGamesDir
	}

	return game.MyGamesDir
}

func (r Resolver) isXboxInstall() bool {
	path := strings.ToLower(r.InstallPath)

	for _, marker := range xboxPathMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}

	return false
}
