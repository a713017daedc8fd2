package container

import (
	"encoding/binary"
	"fmt"

	"github.com/example/go-dspstream/internal/binio"
	"github.com/example/go-dspstream/internal/encoder"
)

const (
	cwavVersion = 0x02010000

	// INFO layout, relative to INFO.
	cwavChannelTable = 0x1C
	cwavChannelInfo  = 2*refSize + 4 + adpcmInfoCWAV
)

func cwavInfoSize(channels int) int {
	return cwavChannelTable + 4 + (refSize+cwavChannelInfo)*channels
}

// BuildCWAV serialises s as a little-endian CWAV (.bcwav) image. Channels are
// stored one after another rather than interleaved by block, and there is no
// seek table.
func BuildCWAV(s *encoder.Stream) ([]byte, error) {
	in, err := infoFromStream(s)
	if err != nil {
		return nil, err
	}
	ch := s.Channels
	chBytes := s.Blocks.ChannelBytes()

	var p Plan
	p.Add("header", headerSize, sectionAlign)
	p.Add("INFO", cwavInfoSize(ch), sectionAlign)
	p.Add("DATA", 0x20+chBytes*ch, sectionAlign)
	total := p.Resolve()

	img := binio.NewImage(total, binary.LittleEndian)
	var refs refWriter

	info, data := p.Region("INFO"), p.Region("DATA")
	h := img.At(0)
	h.PutTag(0, "CWAV")
	h.PutU16(4, 0xFEFF)
	h.PutU16(6, headerSize)
	h.PutU32(8, cwavVersion)
	h.PutU32(0x0C, uint32(total))
	h.PutU16(0x10, 2)
	putSectionRef(&refs, h, 0x14, refCWAVInfo, info)
	putSectionRef(&refs, h, 0x20, refCWAVData, data)

	sec := img.At(info.Offset)
	sec.PutTag(0, "INFO")
	sec.PutU32(4, uint32(info.Size))
	putFormat(sec, 8, in)
	sec.PutU32(0x0C, uint32(in.SampleRate))
	sec.PutU32(0x10, uint32(in.LoopStart))
	sec.PutU32(0x14, uint32(in.Blocks.TotalSamples))

	ct := sec.At(cwavChannelTable)
	ct.PutU32(0, uint32(ch))
	for i, ci := range in.Channel {
		off := 4 + refSize*ch + cwavChannelInfo*i
		refs.ref(fmt.Sprintf("channel %d", i), ct, 4+refSize*i, refCWAVChannelTable, off)

		// Sample references are relative to DATA+8.
		c := ct.At(off)
		refs.ref(fmt.Sprintf("channel %d samples", i), c, 0, refSampleData, 0x18+i*chBytes)
		refs.ref(fmt.Sprintf("channel %d info", i), c, refSize, refDSPADPCMInfo, 2*refSize+4)
		putChannelInfo(c.At(2*refSize+4), ci, false)
	}

	d := img.At(data.Offset)
	d.PutTag(0, "DATA")
	d.PutU32(4, uint32(data.Size))
	for c := range ch {
		d.Copy(0x20+c*chBytes, s.ChannelData(c))
	}

	if err := refs.verify(img.Bytes()); err != nil {
		return nil, err
	}
	return img.Bytes(), nil
}

func parseCWAV(buf []byte) (*Info, error) {
	r := newReader(buf, binary.LittleEndian)
	if bom := r.u16(4); r.err == nil && bom != 0xFEFF {
		return nil, fmt.Errorf("%w: CWAV byte order mark %#04x", ErrUnsupportedFormat, bom)
	}
	in := &Info{
		Format:  BCWAV,
		Version: r.u32(8),
		Length:  int(r.u32(0x0C)),
	}
	if n := r.u16(0x10); r.err == nil && n != 2 {
		return nil, fmt.Errorf("%w: CWAV with %d blocks", ErrUnsupportedFormat, n)
	}
	for i, name := range []string{"INFO", "DATA"} {
		reg := Region{Name: name, Offset: r.ref(0x14 + 12*i), Size: int(r.u32(0x1C + 12*i))}
		r.section(reg)
		in.Sections = append(in.Sections, reg)
	}
	if r.err != nil {
		return nil, r.fail()
	}
	info, data := in.Sections[0], in.Sections[1]

	readStreamInfo(r, info.Offset+8, in)
	in.SampleRate = int(r.u32(info.Offset + 0x0C))
	in.LoopStart = int(r.u32(info.Offset + 0x10))
	in.Blocks = encoder.Layout(int(r.u32(info.Offset + 0x14)))

	ct := info.Offset + cwavChannelTable
	if n := int(r.u32(ct)); r.err == nil && n != in.Channels {
		return nil, fmt.Errorf("%w: channel table lists %d channels, stream info %d", ErrUnsupportedFormat, n, in.Channels)
	}
	payload := data.Offset + 0x20
	for i := range in.Channels {
		c := ct + r.ref(ct+4+refSize*i)
		in.channelOffsets = append(in.channelOffsets, data.Offset+8+r.ref(c)-payload)
		in.Channel = append(in.Channel, readChannelInfo(r, c+r.ref(c+refSize), false))
	}

	in.Data = r.bytes(payload, data.End()-payload)
	if r.err != nil {
		return nil, r.fail()
	}
	return in, checkBlocks(in)
}
