// Package config handles application configuration and command-line argument parsing.
//
// Settings come from an optional TOML file; flags given on the command line
// override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/joe/savegames/internal/games"
	"github.com/joe/savegames/internal/logging"
	"github.com/joe/savegames/internal/refresh"
	"github.com/joe/savegames/internal/savegame"
)

// Exported variables.
var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrUnknownProfile = errors.New("unknown profile")
)

// Duration is a time.Duration written as a string such as "1s" or "250ms".
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}

	d.Duration = parsed

	return nil
}

// ProfileConfig is one profile entry of the config file.
type ProfileConfig struct {
	ID         string `toml:"id"`
	Name       string `toml:"name"`
	LocalSaves bool   `toml:"local_saves"`
}

// EngineConfig tunes scanning and refreshing.
type EngineConfig struct {
	QuietPeriod Duration `toml:"quiet_period"`
	MaxSaves    int      `toml:"max_saves"`
	ReadRetries int      `toml:"read_retries"`
	RetryDelay  Duration `toml:"retry_delay"`
	DirectOnly  bool     `toml:"direct_only"`
	// LoadDetail reads every save header during a refresh instead of on demand.
	LoadDetail bool `toml:"load_detail"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address to serve /metrics on. Empty disables the endpoint.
	Listen string `toml:"listen"`
}

// File is the content of the config file.
type File struct {
	Game          string          `toml:"game"`
	DocumentsDir  string          `toml:"documents_dir"`
	Store         string          `toml:"store"`
	InstallPath   string          `toml:"install_path"`
	ActiveProfile string          `toml:"active_profile"`
	Profiles      []ProfileConfig `toml:"profiles"`
	Engine        EngineConfig    `toml:"engine"`
	Log           logging.Config  `toml:"log"`
	Metrics       MetricsConfig   `toml:"metrics"`
}

// Defaults returns the settings used when no config file exists.
func Defaults() File {
	return File{
		Game: "skyrimse",
		Engine: EngineConfig{
			QuietPeriod: Duration{refresh.DefaultQuietPeriod},
			MaxSaves:    savegame.DefaultMaxSaves,
			ReadRetries: savegame.DefaultRetryPolicy().Retries,
			RetryDelay:  Duration{savegame.DefaultRetryPolicy().Delay},
			DirectOnly:  true,
			LoadDetail:  true,
		},
		Log: logging.Config{Level: "info", Format: "console"},
	}
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}

		dir = filepath.Join(home, ".config")
	}

	return filepath.Join(dir, "savegames", "config.toml")
}

// Load reads the config file at path on top of the defaults. A missing file
// yields the defaults.
func Load(path string) (File, error) {
	file := Defaults()
	if path == "" {
		return file, nil
	}

	_, err := toml.DecodeFile(path, &file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}

		return File{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return file, nil
}

// Config is the effective configuration: the file merged with the flags.
type Config struct {
	File

	Args *Args
}

// Resolve loads the config file named by args (or the default path) and
// applies the flag overrides.
func Resolve(args *Args) (*Config, error) {
	path := args.ConfigPath
	if path == "" {
		path = Path()
	}

	file, err := Load(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{File: file, Args: args}

	if args.Game != "" {
		cfg.Game = args.Game
	}

	if args.Profile != "" {
		cfg.ActiveProfile = args.Profile
	}

	if args.LogLevel != "" {
		cfg.Log.Level = args.LogLevel
	}

	if args.LogFile != "" {
		cfg.Log.OutputPath = args.LogFile
	}

	if args.DocumentsDir != "" {
		cfg.DocumentsDir = args.DocumentsDir
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the engine cannot work with.
func (cfg *Config) Validate() error {
	if !games.Supported(cfg.Game) {
		return fmt.Errorf("%w: %w %q (supported: %s)",
			ErrInvalidConfig, games.ErrUnsupportedGame, cfg.Game, strings.Join(games.IDs(), ", "))
	}

	switch games.Store(cfg.Store) {
	case "", games.StoreSteam, games.StoreGOG, games.StoreEpic, games.StoreXbox:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, cfg.Store)
	}

	seen := make(map[string]bool, len(cfg.Profiles))

	for _, profile := range cfg.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("%w: profile without id", ErrInvalidConfig)
		}

		if seen[profile.ID] {
			return fmt.Errorf("%w: duplicate profile id %q", ErrInvalidConfig, profile.ID)
		}

		seen[profile.ID] = true
	}

	if cfg.ActiveProfile != "" && len(cfg.Profiles) > 0 && !seen[cfg.ActiveProfile] {
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownProfile, cfg.ActiveProfile)
	}

	if cfg.Engine.MaxSaves <= 0 {
		return fmt.Errorf("%w: max_saves must be positive, got %d", ErrInvalidConfig, cfg.Engine.MaxSaves)
	}

	if cfg.Engine.QuietPeriod.Duration <= 0 {
		return fmt.Errorf("%w: quiet_period must be positive", ErrInvalidConfig)
	}

	if cfg.Engine.ReadRetries < 0 {
		return fmt.Errorf("%w: read_retries must not be negative", ErrInvalidConfig)
	}

	if cfg.Args != nil && cfg.Args.List != nil {
		return ValidateFilePattern(cfg.Args.List.Filter)
	}

	return nil
}

// ValidateFilePattern reports an error when pattern is not a valid glob.
func ValidateFilePattern(pattern string) error {
	if pattern == "" {
		return nil
	}

	if !savegame.ValidatePattern(pattern) {
		return fmt.Errorf("%w: invalid filter pattern %q", ErrInvalidConfig, pattern)
	}

	return nil
}

// Profile returns the profile with the given id. Without configured profiles
// every id names a profile sharing the game's global save directory.
func (cfg *Config) Profile(id string) (games.Profile, error) {
	if len(cfg.Profiles) == 0 {
		if id == "" {
			id = "default"
		}

		return games.Profile{ID: id, Name: id, GameID: cfg.Game}, nil
	}

	if id == "" {
		id = cfg.Profiles[0].ID
	}

	for _, profile := range cfg.Profiles {
		if profile.ID == id {
			name := profile.Name
			if name == "" {
				name = profile.ID
			}

			return games.Profile{ID: profile.ID, Name: name, GameID: cfg.Game, LocalSaves: profile.LocalSaves}, nil
		}
	}

	return games.Profile{}, fmt.Errorf("%w %q", ErrUnknownProfile, id)
}

// Active returns the active profile.
func (cfg *Config) Active() (games.Profile, error) {
	return cfg.Profile(cfg.ActiveProfile)
}

// AllProfiles returns every configured profile, or the default one.
func (cfg *Config) AllProfiles() []games.Profile {
	if len(cfg.Profiles) == 0 {
		profile, _ := cfg.Profile("")

		return []games.Profile{profile}
	}

	profiles := make([]games.Profile, 0, len(cfg.Profiles))

	for _, entry := range cfg.Profiles {
		profile, _ := cfg.Profile(entry.ID)
		profiles = append(profiles, profile)
	}

	return profiles
}

// Resolver returns the save directory resolver for this machine.
func (cfg *Config) Resolver() (games.Resolver, error) {
	docs := cfg.DocumentsDir
	if docs == "" {
		var err error

		docs, err = games.DefaultDocumentsDir()
		if err != nil {
			return games.Resolver{}, err
		}
	}

	return games.Resolver{
		DocumentsDir: docs,
		Store:        games.Store(cfg.Store),
		InstallPath:  cfg.InstallPath,
	}, nil
}

// RetryPolicy returns the header read retry policy.
func (cfg *Config) RetryPolicy() savegame.RetryPolicy {
	policy := savegame.DefaultRetryPolicy()
	policy.Retries = cfg.Engine.ReadRetries

	if cfg.Engine.RetryDelay.Duration > 0 {
		policy.Delay = cfg.Engine.RetryDelay.Duration
	}

	return policy
}
