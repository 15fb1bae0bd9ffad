package gamebryo

import (
	"fmt"
	"image"
	"io"
	"os"
)

// maxScreenshotDim bounds either screenshot side.
const maxScreenshotDim = 4096

// ScreenshotSize returns the number of bytes the raster occupies on disk.
func (h *Header) ScreenshotSize() int64 {
	return int64(h.ScreenshotWidth) * int64(h.ScreenshotHeight) * int64(h.BytesPerPixel)
}

// ReadScreenshot reads the screenshot raster of the save at path and returns
// it as tightly packed RGBA, four bytes per pixel.
func ReadScreenshot(path string, header *Header) ([]byte, error) {
	file, err := os.Open(path) //nolint:gosec // Path comes from a directory listing
	if err != nil {
		return nil, fmt.Errorf("failed to open save %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	_, err = file.Seek(header.ScreenshotOffset, io.SeekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to seek screenshot in %s: %w", path, err)
	}

	raw := make([]byte, header.ScreenshotSize())

	_, err = io.ReadFull(file, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot in %s: %w", ErrMalformed, path, err)
	}

	if header.BytesPerPixel == 3 { //nolint:mnd // RGB
		return expandRGB(raw), nil
	}

	return raw, nil
}

// ToImage wraps an RGBA buffer returned by ReadScreenshot.
func ToImage(width, height int, pix []byte) *image.RGBA {
	return &image.RGBA{
		Pix:    pix,
		Stride: width * 4, //nolint:mnd // RGBA
		Rect:   image.Rect(0, 0, width, height),
	}
}

// expandRGB converts packed RGB to RGBA with an opaque alpha channel.
func expandRGB(raw []byte) []byte {
	pixels := len(raw) / 3 //nolint:mnd // RGB
	out := make([]byte, pixels*4)

	for i := range pixels {
		out[i*4] = raw[i*3]
		out[i*4+1] = raw[i*3+1]
		out[i*4+2] = raw[i*3+2]
		out[i*4+3] = 0xff
	}

	return out
}

// skipScreenshot records where the raster starts and moves past it.
func skipScreenshot(r *reader, header *Header) {
	if r.err != nil {
		return
	}

	if header.ScreenshotWidth > maxScreenshotDim || header.ScreenshotHeight > maxScreenshotDim {
		r.fail(fmt.Errorf("screenshot %dx%d exceeds limit", header.ScreenshotWidth, header.ScreenshotHeight))

		return
	}

	header.ScreenshotOffset = r.offset()
	r.skip(header.ScreenshotSize())
}
