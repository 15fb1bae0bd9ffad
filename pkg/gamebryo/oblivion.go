package gamebryo

import "fmt"

const oblivionShotPrefix = 8

func parseOblivion(r *reader) *Header {
	header := &Header{Format: FormatOblivion, BytesPerPixel: 3}

	_ = r.u8()         // major version
	_ = r.u8()         // minor version
	_ = r.systemtime() // executable time
	header.Version = r.u32()
	_ = r.u32() // save header size
	header.SaveNumber = r.u32()
	header.CharacterName = r.str8(true)
	header.Level = uint32(r.u16())
	header.Location = r.str8(true)
	_ = r.f32() // game days
	_ = r.u32() // game ticks
	header.CreationTime = r.systemtime()

	shotSize := r.u32()
	header.ScreenshotWidth = r.u32()
	header.ScreenshotHeight = r.u32()

	if r.err == nil && int64(shotSize) != oblivionShotPrefix+int64(header.ScreenshotWidth)*int64(header.ScreenshotHeight)*3 {
		r.fail(fmt.Errorf("screenshot size %d does not match %dx%d",
			shotSize, header.ScreenshotWidth, header.ScreenshotHeight))

		return header
	}

	skipScreenshot(r, header)

	count := int(r.u8())
	header.Plugins = make([]string, 0, count)

	for range count {
		name := r.str8(false)
		if r.err != nil {
			break
		}

		header.Plugins = append(header.Plugins, name)
	}

	return header
}
