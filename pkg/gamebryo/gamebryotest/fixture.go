// Package gamebryotest writes synthetic save files for tests.
package gamebryotest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"

	"github.com/joe/savegames/pkg/gamebryo"
)

// Compression types understood by Skyrim Special Edition saves.
const (
	CompressionNone uint16 = 0
	CompressionZlib uint16 = 1
	CompressionLZ4  uint16 = 2
)

// Save describes a synthetic save file.
type Save struct {
	Format        gamebryo.Format
	Version       uint32
	SaveNumber    uint32
	CharacterName string
	Level         uint32
	Location      string
	CreationTime  time.Time
	Plugins       []string
	LightPlugins  []string
	Width         uint32
	Height        uint32
	// Fill is the colour of every screenshot pixel; the alpha byte is only
	// written by formats that store RGBA.
	Fill        [4]byte
	Compression uint16
	// Language is the New Vegas language field.
	Language string
}

// Bytes encodes the save.
func (s Save) Bytes() []byte {
	w := &writer{}

	switch s.Format {
	case gamebryo.FormatSkyrim, gamebryo.FormatSkyrimSE:
		s.writeSkyrim(w)
	case gamebryo.FormatFallout4:
		s.writeFallout4(w)
	case gamebryo.FormatFallout3, gamebryo.FormatFalloutNV:
		s.writeFallout3(w)
	case gamebryo.FormatOblivion:
		s.writeOblivion(w)
	case gamebryo.FormatUnknown:
		w.raw([]byte("NOT_A_SAVEGAME"))
	}

	return w.buf.Bytes()
}

// Write encodes the save to path.
func Write(t testing.TB, path string, save Save) {
	t.Helper()

	if err := os.WriteFile(path, save.Bytes(), 0o600); err != nil {
		t.Fatalf("failed to write save fixture %s: %v", path, err)
	}
}

func (s Save) raster(w *writer, bpp int) {
	for range int(s.Width) * int(s.Height) {
		w.raw(s.Fill[:bpp])
	}
}

func (s Save) version(fallback uint32) uint32 {
	if s.Version != 0 {
		return s.Version
	}

	return fallback
}

func (s Save) writeFallout3(w *writer) {
	w.raw([]byte("FO3SAVEGAME"))
	w.u32(0)
	w.u32(s.version(0x30)) //nolint:mnd // Fallout 3 save version
	w.u8('|')

	if s.Format == gamebryo.FormatFalloutNV {
		lang := make([]byte, 64) //nolint:mnd // Fixed-width language field
		copy(lang, s.Language)
		w.raw(lang)
		w.u8('|')
	}

	for _, v := range []uint32{s.Width, s.Height, s.SaveNumber} {
		w.u32(v)
		w.u8('|')
	}

	w.pipeString(s.CharacterName)
	w.pipeString("Wanderer")
	w.u32(s.Level)
	w.u8('|')
	w.pipeString(s.Location)
	w.pipeString("001.02.03")
	s.raster(w, 3)
	w.raw(make([]byte, 5)) //nolint:mnd // Unidentified gap before the plugin count
	w.u8(uint8(len(s.Plugins)))
	w.u8('|')

	for _, plugin := range s.Plugins {
		w.pipeString(plugin)
	}
}

func (s Save) writeFallout4(w *writer) {
	w.raw([]byte("FO4_SAVEGAME"))
	w.u32(0)
	w.u32(s.version(15)) //nolint:mnd // Fallout 4 save version
	w.u32(s.SaveNumber)
	w.str16(s.CharacterName)
	w.u32(s.Level)
	w.str16(s.Location)
	w.str16("0.0.12")
	w.str16("HumanRace")
	w.u16(0)
	w.f32(0)
	w.f32(100) //nolint:mnd // Arbitrary experience
	w.filetime(s.CreationTime)
	w.u32(s.Width)
	w.u32(s.Height)
	s.raster(w, 4)
	w.u8(68) //nolint:mnd // Form version with light plugins
	w.str16("1.10.163.0")
	w.u32(0)
	w.plugins(s.Plugins)
	w.u16(uint16(len(s.LightPlugins)))

	for _, plugin := range s.LightPlugins {
		w.str16(plugin)
	}
}

func (s Save) writeOblivion(w *writer) {
	w.raw([]byte("TES4SAVEGAME"))
	w.u8(0)
	w.u8(125) //nolint:mnd // Oblivion minor version
	w.systemtime(s.CreationTime)
	w.u32(s.version(125)) //nolint:mnd // Oblivion header version
	w.u32(0)
	w.u32(s.SaveNumber)
	w.str8(s.CharacterName, true)
	w.u16(uint16(s.Level))
	w.str8(s.Location, true)
	w.f32(12.5) //nolint:mnd // Arbitrary game days
	w.u32(0)
	w.systemtime(s.CreationTime)
	w.u32(8 + s.Width*s.Height*3) //nolint:mnd // Width and height precede the raster
	w.u32(s.Width)
	w.u32(s.Height)
	s.raster(w, 3)
	w.u8(uint8(len(s.Plugins)))

	for _, plugin := range s.Plugins {
		w.str8(plugin, false)
	}
}

func (s Save) writeSkyrim(w *writer) {
	special := s.Format == gamebryo.FormatSkyrimSE

	version := s.version(9) //nolint:mnd // Skyrim LE save version
	if special {
		version = s.version(12) //nolint:mnd // Skyrim SE save version
	}

	w.raw([]byte("TESV_SAVEGAME"))
	w.u32(0)
	w.u32(version)
	w.u32(s.SaveNumber)
	w.str16(s.CharacterName)
	w.u32(s.Level)
	w.str16(s.Location)
	w.str16("Morndas, 17th of Last Seed, 4E 201")
	w.str16("NordRace")
	w.u16(0)
	w.f32(0)
	w.f32(100) //nolint:mnd // Arbitrary experience
	w.filetime(s.CreationTime)
	w.u32(s.Width)
	w.u32(s.Height)

	if !special {
		s.raster(w, 3)
		w.u8(74) //nolint:mnd // Skyrim LE form version
		w.u32(0)
		w.plugins(s.Plugins)

		return
	}

	w.u16(s.Compression)
	s.raster(w, 4)

	body := &writer{}
	body.u8(78) //nolint:mnd // Form version with light plugins
	body.u32(0)
	body.plugins(s.Plugins)
	body.u16(uint16(len(s.LightPlugins)))

	for _, plugin := range s.LightPlugins {
		body.str16(plugin)
	}

	body.raw(make([]byte, 256)) //nolint:mnd // Filler standing in for the change forms
	plain := body.buf.Bytes()

	switch s.Compression {
	case CompressionZlib:
		var compressed bytes.Buffer

		zw := zlib.NewWriter(&compressed)
		_, _ = zw.Write(plain)
		_ = zw.Close()

		w.u32(uint32(len(plain)))
		w.u32(uint32(compressed.Len()))
		w.raw(compressed.Bytes())
	case CompressionLZ4:
		compressed := make([]byte, lz4.CompressBlockBound(len(plain)))
		n, _ := lz4.CompressBlock(plain, compressed, nil)

		w.u32(uint32(len(plain)))
		w.u32(uint32(n))
		w.raw(compressed[:n])
	default:
		w.u32(uint32(len(plain)))
		w.u32(0)
		w.raw(plain)
	}
}

type writer struct {
	buf bytes.Buffer
}

func (w *writer) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *writer) filetime(t time.Time) {
	if t.IsZero() {
		w.u64(0)

		return
	}

	w.u64(uint64(t.UnixNano()/100) + 116444736000000000) //nolint:gosec,mnd // FILETIME epoch offset
}

func (w *writer) pipeString(s string) {
	w.u16(uint16(len(s)))
	w.u8('|')
	w.raw([]byte(s))
	w.u8('|')
}

func (w *writer) plugins(names []string) {
	w.u8(uint8(len(names)))

	for _, name := range names {
		w.str16(name)
	}
}

func (w *writer) raw(b []byte) {
	w.buf.Write(b)
}

func (w *writer) str16(s string) {
	w.u16(uint16(len(s)))
	w.raw([]byte(s))
}

func (w *writer) str8(s string, terminated bool) {
	data := []byte(s)
	if terminated {
		data = append(data, 0)
	}

	w.u8(uint8(len(data)))
	w.raw(data)
}

func (w *writer) systemtime(t time.Time) {
	if t.IsZero() {
		w.raw(make([]byte, 16)) //nolint:mnd // SYSTEMTIME size

		return
	}

	local := t.In(time.Local)
	for _, v := range []int{
		local.Year(), int(local.Month()), int(local.Weekday()), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond() / int(time.Millisecond),
	} {
		w.u16(uint16(v)) //nolint:gosec // SYSTEMTIME fields fit in 16 bits
	}
}

func (w *writer) u8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *writer) u16(v uint16) {
	w.buf.Write(binary.LittleEndian.AppendUint16(nil, v))
}

func (w *writer) u32(v uint32) {
	w.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
}

func (w *writer) u64(v uint64) {
	w.buf.Write(binary.LittleEndian.AppendUint64(nil, v))
}
