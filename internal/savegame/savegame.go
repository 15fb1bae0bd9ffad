// Package savegame holds the savegame catalog and the operations that keep it
// in step with a save directory: listing, header loading, change detection,
// transfer and deletion.
package savegame

import (
	"encoding/hex"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/joe/savegames/pkg/gamebryo"
)

// Savegame is one save file. Stub fields come from the directory listing;
// Detail is nil until the header has been read.
//
// Records are never mutated once published. Loading detail produces a new record.
type Savegame struct {
	ID       string
	FilePath string
	Name     string
	ModTime  time.Time
	Size     int64
	Detail   *Detail
}

// Detail is the metadata read from a save header.
type Detail struct {
	SaveNumber    uint32
	CharacterName string
	Level         uint32
	Location      string
	FileName      string
	Plugins       []string
	Screenshot    *Screenshot
	CreationTime  time.Time
}

// Screenshot is the thumbnail stored in a save. Dimensions are known up front;
// pixels are read from disk on first use. A failed read is not cached.
type Screenshot struct {
	Width  int
	Height int

	mu     sync.Mutex
	load   func() ([]byte, error)
	pixels []byte
	loaded bool
}

// NewScreenshot creates a screenshot whose RGBA pixels are produced by load on first demand.
func NewScreenshot(width, height int, load func() ([]byte, error)) *Screenshot {
	return &Screenshot{Width: width, Height: height, load: load}
}

// Hex returns the pixel buffer hex encoded.
func (s *Screenshot) Hex() (string, error) {
	pixels, err := s.Pixels()
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(pixels), nil
}

// Image returns the screenshot as an image.
func (s *Screenshot) Image() (*image.RGBA, error) {
	pixels, err := s.Pixels()
	if err != nil {
		return nil, err
	}

	return gamebryo.ToImage(s.Width, s.Height, pixels), nil
}

// Thumbnail returns the screenshot scaled to width, keeping its aspect
// ratio. A width of zero, or one at least the original width, returns the
// screenshot unscaled.
func (s *Screenshot) Thumbnail(width int) (*image.RGBA, error) {
	img, err := s.Image()
	if err != nil {
		return nil, err
	}

	if width <= 0 || width >= s.Width {
		return img, nil
	}

	height := max(1, s.Height*width/s.Width)
	thumb := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(thumb, thumb.Bounds(), img, img.Bounds(), draw.Src, nil)

	return thumb, nil
}

// Loaded reports whether the pixels have been read.
func (s *Screenshot) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loaded
}

// Pixels returns the raw RGBA buffer, reading it on the first call.
func (s *Screenshot) Pixels() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.pixels, nil
	}

	if s.load == nil {
		return nil, fmt.Errorf("%w: screenshot has no source", gamebryo.ErrMalformed)
	}

	pixels, err := s.load()
	if err != nil {
		return nil, err
	}

	s.pixels = pixels
	s.loaded = true

	return s.pixels, nil
}

// WithDetail returns a copy of the record carrying detail.
func (s *Savegame) WithDetail(detail *Detail) *Savegame {
	clone := *s
	clone.Detail = detail

	return &clone
}

// recognizedExtensions are the save file extensions, lower case.
//
//nolint:gochecknoglobals // Immutable lookup table
var recognizedExtensions = map[string]bool{
	".ess": true,
	".fos": true,
}

// IsSaveFile reports whether name has a recognized save extension.
func IsSaveFile(name string) bool {
	return recognizedExtensions[strings.ToLower(filepath.Ext(name))]
}

// newStub creates a listing-only record. relPath is relative to dir and doubles as the ID.
func newStub(dir string, relPath string, size int64, modTime time.Time) *Savegame {
	return &Savegame{
		ID:       relPath,
		FilePath: filepath.Join(dir, relPath),
		Name:     filepath.Base(relPath),
		ModTime:  modTime,
		Size:     size,
	}
}
