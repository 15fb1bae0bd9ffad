package gamebryo

const (
	delimiter = '|'
	// Fallout: New Vegas inserts a fixed-width language field after the version.
	languageFieldLen = 64
	// Unidentified bytes between the screenshot and the plugin count.
	fallout3PluginGap = 5
)

// parseFallout3 reads the '|'-delimited header shared by Fallout 3 and New Vegas.
// Neither format stores a creation time.
func parseFallout3(r *reader) *Header {
	_ = r.u32() // header size

	header := &Header{Format: FormatFallout3, BytesPerPixel: 3}
	header.Version = r.u32()
	r.expect(delimiter)

	// Fallout 3 follows the version with the screenshot width and a delimiter.
	fieldStart := r.offset()
	_ = r.u32()

	if r.u8() != delimiter {
		header.Format = FormatFalloutNV
		r.seek(fieldStart)
		r.skip(languageFieldLen)
		r.expect(delimiter)
	} else {
		r.seek(fieldStart)
	}

	header.ScreenshotWidth = delimitedU32(r)
	header.ScreenshotHeight = delimitedU32(r)
	header.SaveNumber = delimitedU32(r)
	header.CharacterName = delimitedString(r)
	_ = delimitedString(r) // karma title
	header.Level = delimitedU32(r)
	header.Location = delimitedString(r)
	_ = delimitedString(r) // play time

	skipScreenshot(r, header)
	r.skip(fallout3PluginGap)

	count := int(r.u8())
	r.expect(delimiter)

	header.Plugins = make([]string, 0, count)

	for range count {
		name := delimitedString(r)
		if r.err != nil {
			break
		}

		header.Plugins = append(header.Plugins, name)
	}

	return header
}

func delimitedString(r *reader) string {
	n := r.u16()
	r.expect(delimiter)

	if int(n) > maxStringLen {
		r.fail(errStringTooLong(int(n)))

		return ""
	}

	value := decodeString(r.bytes(int(n)))
	r.expect(delimiter)

	return value
}

func delimitedU32(r *reader) uint32 {
	value := r.u32()
	r.expect(delimiter)

	return value
}
