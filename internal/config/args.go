package config

import (
	"fmt"

	"github.com/alexflint/go-arg"
)

// ListCmd prints the saves of a profile.
type ListCmd struct {
	Detail bool   `arg:"--detail" help:"Read save headers and show character, level and location"`
	Filter string `arg:"--filter" help:"Only list saves whose name matches this glob (e.g. 'quicksave*')"`
	Global bool   `arg:"--global" help:"List the game's shared save directory instead of the profile's"`
}

// WatchCmd opens the interactive view and keeps it in step with the save directory.
type WatchCmd struct {
	Plain bool `arg:"--plain" help:"Log catalog updates instead of opening the terminal UI"`
}

// TransferCmd copies or moves saves between profiles.
type TransferCmd struct {
	From  string   `arg:"--from,required" help:"Source profile id"`
	To    string   `arg:"--to,required" help:"Destination profile id"`
	Copy  bool     `arg:"--copy" help:"Copy instead of move"`
	Files []string `arg:"positional" help:"Save file names; all saves when omitted"`
}

// DeleteCmd removes saves from the active profile.
type DeleteCmd struct {
	Files []string `arg:"positional,required" help:"Save file names"`
	Yes   bool     `arg:"-y,--yes" help:"Do not ask for confirmation"`
}

// ScreenshotCmd exports the thumbnail of a save as PNG.
type ScreenshotCmd struct {
	File  string `arg:"positional,required" help:"Save file name"`
	Out   string `arg:"-o,--out" help:"Output PNG path (default: <save>.png)"`
	Width int    `arg:"--width" default:"320" help:"Width of the exported image; 0 keeps the original size"`
}

// PluginsCmd checks a save's plugins against the game's Data folder and can
// restore them as the load order.
type PluginsCmd struct {
	File  string `arg:"positional,required" help:"Save file name"`
	Data  string `arg:"--data" help:"Game Data folder (default: <install_path>/Data)"`
	Write string `arg:"--write" help:"Write the save's load order to this plugins.txt"`
	Yes   bool   `arg:"-y,--yes" help:"Write the load order even when plugins are missing"`
}

// ProfilesCmd lists the configured profiles and their save directories.
type ProfilesCmd struct{}

// Args holds the command-line arguments.
type Args struct {
	ConfigPath   string `arg:"-c,--config" help:"Config file (default: $XDG_CONFIG_HOME/savegames/config.toml)"`
	Game         string `arg:"-g,--game" help:"Game id, e.g. skyrimse or fallout4"`
	Profile      string `arg:"-p,--profile" help:"Active profile id"`
	DocumentsDir string `arg:"--documents" help:"Documents folder holding 'My Games'"`
	LogLevel     string `arg:"--log-level" help:"Log level: debug|info|warn|error"`
	LogFile      string `arg:"--log-file" help:"Write logs to this file"`

	List       *ListCmd       `arg:"subcommand:list" help:"List saves"`
	Watch      *WatchCmd      `arg:"subcommand:watch" help:"Watch the save directory (default)"`
	Transfer   *TransferCmd   `arg:"subcommand:transfer" help:"Copy or move saves between profiles"`
	Delete     *DeleteCmd     `arg:"subcommand:delete" help:"Delete saves"`
	Screenshot *ScreenshotCmd `arg:"subcommand:screenshot" help:"Export a save's screenshot"`
	Plugins    *PluginsCmd    `arg:"subcommand:plugins" help:"Check or restore a save's plugins"`
	Profiles   *ProfilesCmd   `arg:"subcommand:profiles" help:"List profiles"`
}

// Description returns the program description for go-arg
func (Args) Description() string {
	return "Keeps track of Gamebryo and Creation engine savegames and moves them between profiles"
}

// Version returns the version string for go-arg
func (Args) Version() string {
	return "savegames 1.0.0"
}

// ParseFlags parses os.Args, exiting on --help or a usage error.
func ParseFlags() *Args {
	args := &Args{}
	arg.MustParse(args)

	return PostProcessArgs(args)
}

// ParseArgs parses the given command line without touching os.Args.
func ParseArgs(argv []string) (*Args, error) {
	args := &Args{}

	parser, err := arg.NewParser(arg.Config{Program: "savegames"}, args)
	if err != nil {
		return nil, fmt.Errorf("failed to build argument parser: %w", err)
	}

	err = parser.Parse(argv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return PostProcessArgs(args), nil
}

// PostProcessArgs applies post-processing logic to parsed arguments.
// Without a subcommand the program watches.
func PostProcessArgs(args *Args) *Args {
	if args.List == nil && args.Watch == nil && args.Transfer == nil &&
		args.Delete == nil && args.Screenshot == nil && args.Plugins == nil && args.Profiles == nil {
		args.Watch = &WatchCmd{}
	}

	return args
}
