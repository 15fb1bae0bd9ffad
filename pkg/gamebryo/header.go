// Package gamebryo reads the metadata stored at the front of Gamebryo and
// Creation engine save files: the character summary, the plugin list, the
// screenshot dimensions and the time the save was written.
//
// Screenshot pixels are not read by Parse. The header records where they
// live so callers can fetch them later with ReadScreenshot.
package gamebryo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Format identifies the save file layout.
type Format int

// Exported constants.
const (
	FormatUnknown Format = iota
	FormatSkyrim
	FormatSkyrimSE
	FormatFallout4
	FormatFallout3
	FormatFalloutNV
	FormatOblivion
)

// Exported variables.
var (
	// ErrUnsupportedFormat is returned for files that do not start with a known magic string.
	ErrUnsupportedFormat = errors.New("unsupported save format")
	// ErrMalformed is returned when a save is truncated or its fields are inconsistent.
	ErrMalformed = errors.New("malformed save")
)

// Header is the metadata read from the front of a save file.
type Header struct {
	Format        Format
	Version       uint32
	SaveNumber    uint32
	CharacterName string
	Level         uint32
	Location      string
	// CreationTime is zero for formats that do not store one; Open fills it
	// from the file's modification time.
	CreationTime time.Time
	// Plugins lists the regular plugins followed by any light plugins, in load order.
	Plugins []string

	ScreenshotWidth  uint32
	ScreenshotHeight uint32
	ScreenshotOffset int64
	BytesPerPixel    int
}

// String returns a readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatSkyrim:
		return "Skyrim"
	case FormatSkyrimSE:
		return "Skyrim Special Edition"
	case FormatFallout4:
		return "Fallout 4"
	case FormatFallout3:
		return "Fallout 3"
	case FormatFalloutNV:
		return "Fallout: New Vegas"
	case FormatOblivion:
		return "Oblivion"
	case FormatUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Open parses the save at path.
func Open(path string) (*Header, error) {
	file, err := os.Open(path) //nolint:gosec // Path comes from a directory listing
	if err != nil {
		return nil, fmt.Errorf("failed to open save %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	header, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse save %s: %w", path, err)
	}

	if header.CreationTime.IsZero() {
		info, err := file.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat save %s: %w", path, err)
		}

		header.CreationTime = info.ModTime()
	}

	return header, nil
}

// Parse reads a save header from r. r must be positioned at the start of the file.
func Parse(r io.ReadSeeker) (*Header, error) {
	magic := make([]byte, longestMagic)

	n, err := io.ReadFull(r, magic)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return nil, ErrUnsupportedFormat
		}

		return nil, fmt.Errorf("failed to read magic: %w", err)
	}

	magic = magic[:n]

	for _, candidate := range magics {
		if !bytes.HasPrefix(magic, []byte(candidate.magic)) {
			continue
		}

		rd := newReader(r)
		rd.seek(int64(len(candidate.magic)))

		header := candidate.parse(rd)
		if rd.err != nil {
			return nil, rd.err
		}

		return header, nil
	}

	return nil, ErrUnsupportedFormat
}

const longestMagic = 13

// unexported variables.
var (
	//nolint:gochecknoglobals // Immutable table of recognized magic strings
	magics = []struct {
		magic string
		parse func(*reader) *Header
	}{
		{"TESV_SAVEGAME", parseSkyrim},
		{"FO4_SAVEGAME", parseFallout4},
		{"FO3SAVEGAME", parseFallout3},
		{"TES4SAVEGAME", parseOblivion},
	}
)
