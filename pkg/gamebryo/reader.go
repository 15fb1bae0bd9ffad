package gamebryo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// maxStringLen bounds any length-prefixed string read from a save.
const maxStringLen = 1 << 12

// reader is a little-endian field reader with a sticky error.
// Once a read fails every later read is a no-op returning zero values.
type reader struct {
	r   io.ReadSeeker
	err error
}

func newReader(r io.ReadSeeker) *reader {
	return &reader{r: r}
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}

	if n < 0 {
		r.fail(fmt.Errorf("negative length %d", n))

		return nil
	}

	buf := make([]byte, n)

	_, err := io.ReadFull(r.r, buf)
	if err != nil {
		r.fail(err)

		return nil
	}

	return buf
}

func (r *reader) expect(b byte) {
	got := r.u8()
	if r.err == nil && got != b {
		r.fail(fmt.Errorf("expected delimiter %q, got %q", b, got))
	}
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) fail(err error) {
	if r.err != nil {
		return
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		r.err = fmt.Errorf("%w: truncated data", ErrMalformed)

		return
	}

	r.err = fmt.Errorf("%w: %w", ErrMalformed, err)
}

// filetime reads a Windows FILETIME (100ns ticks since 1601-01-01 UTC).
func (r *reader) filetime() time.Time {
	ticks := r.u64()
	if r.err != nil || ticks == 0 {
		return time.Time{}
	}

	const ticksToUnixEpoch = 116444736000000000

	if ticks < ticksToUnixEpoch {
		return time.Time{}
	}

	unix100ns := ticks - ticksToUnixEpoch

	return time.Unix(int64(unix100ns/1e7), int64(unix100ns%1e7)*100).UTC() //nolint:gosec // Bounded by uint64 range / 1e7
}

func (r *reader) offset() int64 {
	if r.err != nil {
		return 0
	}

	pos, err := r.r.Seek(0, io.SeekCurrent)
	if err != nil {
		r.fail(err)

		return 0
	}

	return pos
}

func (r *reader) seek(pos int64) {
	if r.err != nil {
		return
	}

	if _, err := r.r.Seek(pos, io.SeekStart); err != nil {
		r.fail(err)
	}
}

func (r *reader) skip(n int64) {
	if r.err != nil {
		return
	}

	if _, err := r.r.Seek(n, io.SeekCurrent); err != nil {
		r.fail(err)
	}
}

// str8 reads a string prefixed by a one byte length.
// When terminated is set the length includes a trailing NUL, which is dropped.
func (r *reader) str8(terminated bool) string {
	n := int(r.u8())

	raw := r.bytes(n)
	if terminated && len(raw) > 0 && raw[len(raw)-1] == 0 {
		raw = raw[:len(raw)-1]
	}

	return decodeString(raw)
}

// str16 reads a string prefixed by a two byte length.
func (r *reader) str16() string {
	n := int(r.u16())
	if n > maxStringLen {
		r.fail(errStringTooLong(n))

		return ""
	}

	return decodeString(r.bytes(n))
}

// systemtime reads a Windows SYSTEMTIME structure as a local wall-clock time.
func (r *reader) systemtime() time.Time {
	year := int(r.u16())
	month := time.Month(r.u16())
	_ = r.u16() // day of week
	day := int(r.u16())
	hour := int(r.u16())
	minute := int(r.u16())
	second := int(r.u16())
	millis := int(r.u16())

	if r.err != nil || year == 0 {
		return time.Time{}
	}

	return time.Date(year, month, day, hour, minute, second, millis*int(time.Millisecond), time.Local)
}

func (r *reader) u8() uint8 {
	buf := r.bytes(1)
	if buf == nil {
		return 0
	}

	return buf[0]
}

func (r *reader) u16() uint16 {
	buf := r.bytes(2)
	if buf == nil {
		return 0
	}

	return binary.LittleEndian.Uint16(buf)
}

func (r *reader) u32() uint32 {
	buf := r.bytes(4)
	if buf == nil {
		return 0
	}

	return binary.LittleEndian.Uint32(buf)
}

func (r *reader) u64() uint64 {
	buf := r.bytes(8)
	if buf == nil {
		return 0
	}

	return binary.LittleEndian.Uint64(buf)
}

// decodeString converts Windows-1252 text, the encoding these games write, to UTF-8.
func decodeString(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}

	return string(decoded)
}

func errStringTooLong(n int) error {
	return fmt.Errorf("string length %d exceeds limit", n)
}
