package container

import (
	"fmt"

	"github.com/example/go-dspstream/internal/binio"
	"github.com/example/go-dspstream/internal/encoder"
)

const (
	headerSize   = 0x40
	sectionAlign = 0x20

	// MaxChannels is the most channels any of the containers can describe.
	MaxChannels = 255

	// Sample rates are stored as 16 bits plus a high byte in RSTM.
	maxSampleRate = 0xFFFFFF

	encodingADPCM = 2
	bitsPerSample = 4
)

// Info is the decoded header of a container image.
type Info struct {
	Format   Format
	Version  uint32
	Length   int
	Sections []Region

	Encoding   uint8
	Looping    bool
	Channels   int
	SampleRate int
	LoopStart  int
	Blocks     encoder.Blocks
	Channel    []encoder.ChannelInfo

	// Seek is the raw seek-table payload including trailing padding. CWAV
	// files have none.
	Seek []byte
	// Data is the raw sample payload.
	Data []byte

	// channelOffsets locate non-interleaved channels in Data.
	channelOffsets []int
}

// Samples returns the per-channel sample count.
func (in *Info) Samples() int { return in.Blocks.TotalSamples }

// ChannelData returns the encoded frames of channel c, padded blocks
// concatenated.
func (in *Info) ChannelData(c int) []byte {
	n := in.Blocks.ChannelBytes()
	if in.channelOffsets != nil {
		off := in.channelOffsets[c]
		return in.Data[off : off+n]
	}
	out := make([]byte, 0, n)
	base := 0
	for i := range in.Blocks.Count {
		size := in.Blocks.Size(i)
		off := base + c*size
		out = append(out, in.Data[off:off+size]...)
		base += size * in.Channels
	}
	return out
}

// CheckStream reports whether a stream with the given shape fits in every
// container. Callers can run it before encoding.
func CheckStream(channels, sampleRate int) error {
	switch {
	case channels < 1:
		return fmt.Errorf("%w: stream has no channels", ErrUnsupportedFormat)
	case channels > MaxChannels:
		return fmt.Errorf("%w: %d channels, containers hold at most %d", ErrUnsupportedFormat, channels, MaxChannels)
	case sampleRate <= 0 || sampleRate > maxSampleRate:
		return fmt.Errorf("%w: sample rate %d out of range", ErrUnsupportedFormat, sampleRate)
	}
	return nil
}

// infoFromStream describes an encoded stream the way the writers need it.
func infoFromStream(s *encoder.Stream) (*Info, error) {
	if err := CheckStream(s.Channels, s.SampleRate); err != nil {
		return nil, err
	}
	return &Info{
		Encoding:   encodingADPCM,
		Looping:    s.Looping,
		Channels:   s.Channels,
		SampleRate: s.SampleRate,
		LoopStart:  s.LoopStart,
		Blocks:     s.Blocks,
		Channel:    s.Channel,
	}, nil
}

// putFormat writes the four-byte encoding/loop/channels/rate-high field.
func putFormat(sec binio.Section, off int, in *Info) {
	sec.PutU8(off, in.Encoding)
	if in.Looping {
		sec.PutU8(off+1, 1)
	}
	sec.PutU8(off+2, uint8(in.Channels))
	sec.PutU8(off+3, uint8(in.SampleRate>>16))
}

// ADPCM info records. RSTM carries a gain word after the coefficients that
// the little-endian formats drop.
const (
	adpcmInfoRSTM = 0x30
	adpcmInfoCSTM = 0x2E
	adpcmInfoCWAV = 0x2C
)

func putChannelInfo(sec binio.Section, ci encoder.ChannelInfo, withGain bool) {
	for i, c := range ci.Coefs.Flat() {
		sec.PutI16(2*i, c)
	}
	off := 0x20
	if withGain {
		off += 2 // gain is always zero
	}
	sec.PutU16(off, uint16(ci.PS))
	sec.PutI16(off+2, ci.YN1)
	sec.PutI16(off+4, ci.YN2)
	sec.PutU16(off+6, uint16(ci.LPS))
	sec.PutI16(off+8, ci.LYN1)
	sec.PutI16(off+10, ci.LYN2)
}

func readChannelInfo(r *reader, off int, withGain bool) encoder.ChannelInfo {
	var ci encoder.ChannelInfo
	for p := range ci.Coefs {
		ci.Coefs[p][0] = r.i16(off + 4*p)
		ci.Coefs[p][1] = r.i16(off + 4*p + 2)
	}
	off += 0x20
	if withGain {
		off += 2
	}
	ci.PS = uint8(r.u16(off))
	ci.YN1 = r.i16(off + 2)
	ci.YN2 = r.i16(off + 4)
	ci.LPS = uint8(r.u16(off + 6))
	ci.LYN1 = r.i16(off + 8)
	ci.LYN2 = r.i16(off + 10)
	return ci
}

// putSectionRef writes a top-level (type, offset) reference followed by the
// section size, as used by the CSTM and CWAV file headers.
func putSectionRef(refs *refWriter, sec binio.Section, off int, typ uint16, r Region) {
	refs.ref(r.Name, sec, off, typ, r.Offset)
	sec.PutU32(off+refSize, uint32(r.Size))
}
