package gamebryo

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
)

// Body compression used by Skyrim Special Edition saves.
const (
	compressionNone uint16 = 0
	compressionZlib uint16 = 1
	compressionLZ4  uint16 = 2
)

const (
	skyrimSEVersion = 12
	// Form versions from which the light plugin list is present.
	skyrimLightPluginsForm   = 78
	fallout4LightPluginsForm = 68
	maxBodyLen               = 1 << 28
)

func parseFallout4(r *reader) *Header {
	_ = r.u32() // header size

	header := &Header{Format: FormatFallout4, BytesPerPixel: 4}
	header.Version = r.u32()
	header.SaveNumber = r.u32()
	header.CharacterName = r.str16()
	header.Level = r.u32()
	header.Location = r.str16()
	_ = r.str16() // play time
	_ = r.str16() // race
	_ = r.u16()   // sex
	_ = r.f32()   // current experience
	_ = r.f32()   // experience for next level
	header.CreationTime = r.filetime()
	header.ScreenshotWidth = r.u32()
	header.ScreenshotHeight = r.u32()
	skipScreenshot(r, header)

	formVersion := r.u8()
	_ = r.str16() // game version
	_ = r.u32()   // plugin info size
	header.Plugins = readPlugins(r, int(r.u8()))

	if formVersion >= fallout4LightPluginsForm {
		header.Plugins = append(header.Plugins, readPlugins(r, int(r.u16()))...)
	}

	return header
}

func parseSkyrim(r *reader) *Header {
	_ = r.u32() // header size

	header := &Header{Format: FormatSkyrim, BytesPerPixel: 3}
	header.Version = r.u32()

	switch header.Version {
	case 7, 8, 9: //nolint:mnd // Known Skyrim LE save versions
	case skyrimSEVersion:
		header.Format = FormatSkyrimSE
		header.BytesPerPixel = 4
	default:
		if r.err == nil {
			r.err = fmt.Errorf("%w: TESV version %d", ErrUnsupportedFormat, header.Version)
		}

		return nil
	}

	header.SaveNumber = r.u32()
	header.CharacterName = r.str16()
	header.Level = r.u32()
	header.Location = r.str16()
	_ = r.str16() // in-game date
	_ = r.str16() // race
	_ = r.u16()   // sex
	_ = r.f32()   // current experience
	_ = r.f32()   // experience for next level
	header.CreationTime = r.filetime()
	header.ScreenshotWidth = r.u32()
	header.ScreenshotHeight = r.u32()

	compression := compressionNone
	if header.Format == FormatSkyrimSE {
		compression = r.u16()
	}

	skipScreenshot(r, header)

	body := r
	if header.Format == FormatSkyrimSE {
		body = decompressBody(r, compression)
	}

	formVersion := body.u8()
	_ = body.u32() // plugin info size
	header.Plugins = readPlugins(body, int(body.u8()))

	if header.Format == FormatSkyrimSE && formVersion >= skyrimLightPluginsForm {
		header.Plugins = append(header.Plugins, readPlugins(body, int(body.u16()))...)
	}

	if body.err != nil && r.err == nil {
		r.err = body.err
	}

	return header
}

// decompressBody reads the length-prefixed body that follows the screenshot
// and returns a reader over its uncompressed bytes.
func decompressBody(r *reader, compression uint16) *reader {
	uncompressedLen := r.u32()
	compressedLen := r.u32()

	if r.err != nil {
		return r
	}

	if compression == compressionNone {
		return r
	}

	if uncompressedLen > maxBodyLen || compressedLen > maxBodyLen {
		r.fail(fmt.Errorf("body length %d/%d exceeds limit", uncompressedLen, compressedLen))

		return r
	}

	compressed := r.bytes(int(compressedLen))
	if r.err != nil {
		return r
	}

	var (
		plain []byte
		err   error
	)

	switch compression {
	case compressionZlib:
		plain, err = inflateZlib(compressed, int64(uncompressedLen))
	case compressionLZ4:
		plain = make([]byte, uncompressedLen)

		var n int

		n, err = lz4.UncompressBlock(compressed, plain)
		plain = plain[:max(n, 0)]
	default:
		err = fmt.Errorf("unknown compression type %d", compression)
	}

	if err != nil {
		r.fail(err)

		return r
	}

	return newReader(bytes.NewReader(plain))
}

func inflateZlib(compressed []byte, limit int64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}

	defer func() {
		_ = zr.Close()
	}()

	plain, err := io.ReadAll(io.LimitReader(zr, limit))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}

	return plain, nil
}

func readPlugins(r *reader, count int) []string {
	plugins := make([]string, 0, count)

	for range count {
		name := r.str16()
		if r.err != nil {
			return plugins
		}

		plugins = append(plugins, name)
	}

	return plugins
}
