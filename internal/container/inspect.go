package container

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/example/go-dspstream/internal/binio"
	"github.com/example/go-dspstream/internal/encoder"
)

// Inspect parses the headers of an RSTM, CSTM or CWAV image. It follows every
// reference, so a successful Inspect also means the reference tables are
// consistent. Images with more than one track are rejected.
func Inspect(buf []byte) (*Info, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for a container", ErrUnsupportedFormat, len(buf))
	}
	switch tag := string(buf[:4]); tag {
	case "RSTM":
		return parseRSTM(buf)
	case "CSTM":
		return parseCSTM(buf)
	case "CWAV":
		return parseCWAV(buf)
	default:
		return nil, fmt.Errorf("%w: unknown magic %q", ErrUnsupportedFormat, tag)
	}
}

func readStreamInfo(r *reader, off int, in *Info) {
	in.Encoding = r.u8(off)
	in.Looping = r.u8(off+1) != 0
	in.Channels = int(r.u8(off + 2))
}

// checkBlocks rejects block layouts this package would not have written and
// payloads too short for them.
func checkBlocks(in *Info) error {
	if in.Channels < 1 {
		return fmt.Errorf("%w: no channels", ErrUnsupportedFormat)
	}
	if want := encoder.Layout(in.Blocks.TotalSamples); in.Blocks != want {
		return fmt.Errorf("%w: block layout %+v does not match %d samples", ErrUnsupportedFormat, in.Blocks, in.Blocks.TotalSamples)
	}
	n := in.Blocks.ChannelBytes()
	if in.channelOffsets == nil {
		if len(in.Data) < n*in.Channels {
			return fmt.Errorf("%w: data payload is %d bytes, want %d", ErrUnsupportedFormat, len(in.Data), n*in.Channels)
		}
		return nil
	}
	for c, off := range in.channelOffsets {
		if off < 0 || off+n > len(in.Data) {
			return fmt.Errorf("%w: channel %d samples at %#x overrun the data payload", ErrUnsupportedFormat, c, off)
		}
	}
	return nil
}

// reader wraps a View with a sticky error so that a parser can read a run of
// fields and check once.
type reader struct {
	v   binio.View
	err error
}

func newReader(buf []byte, order binary.ByteOrder) *reader {
	return &reader{v: binio.NewView(buf, order)}
}

func (r *reader) setErr(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) u8(off int) uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.v.U8(off)
	r.setErr(err)
	return v
}

func (r *reader) u16(off int) uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.v.U16(off)
	r.setErr(err)
	return v
}

func (r *reader) u32(off int) uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.v.U32(off)
	r.setErr(err)
	return v
}

func (r *reader) u32LE(off int) uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.v.WithOrder(binary.LittleEndian).U32(off)
	r.setErr(err)
	return v
}

func (r *reader) i16(off int) int16 { return int16(r.u16(off)) }

func (r *reader) bytes(off, n int) []byte {
	if r.err != nil {
		return nil
	}
	b, err := r.v.Slice(off, n)
	r.setErr(err)
	return b
}

// ruint reads the offset of an RSTM reference at off.
func (r *reader) ruint(off int) int {
	if typ := r.u8(off); r.err == nil && typ != ruintOffset {
		r.setErr(fmt.Errorf("%w: address reference at %#x", ErrUnsupportedFormat, off))
	}
	v := int(r.u32(off + 4))
	if r.err == nil && v == 0 {
		r.setErr(fmt.Errorf("%w: reference at %#x", ErrNotPopulated, off))
	}
	return v
}

// ref reads the offset of a CSTM/CWAV reference at off.
func (r *reader) ref(off int) int {
	v := int(int32(r.u32(off + 4)))
	if r.err == nil && v <= 0 {
		r.setErr(fmt.Errorf("%w: reference at %#x", ErrNotPopulated, off))
	}
	return v
}

// section checks that reg lies inside the image and starts with its tag.
func (r *reader) section(reg Region) {
	if tag := r.bytes(reg.Offset, 4); r.err == nil && string(tag) != reg.Name {
		r.setErr(fmt.Errorf("%w: expected %s section at %#x, found %q", ErrUnsupportedFormat, reg.Name, reg.Offset, tag))
	}
	r.bytes(reg.Offset, reg.Size)
}

func (r *reader) fail() error {
	if errors.Is(r.err, ErrUnsupportedFormat) {
		return r.err
	}
	return fmt.Errorf("%w: %w", ErrUnsupportedFormat, r.err)
}
