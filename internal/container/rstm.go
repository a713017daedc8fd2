package container

import (
	"encoding/binary"
	"fmt"

	"github.com/example/go-dspstream/internal/binio"
	"github.com/example/go-dspstream/internal/encoder"
)

// HEAD layout, relative to HEAD+8 where every HEAD reference is based.
const (
	rstmStreamInfo   = 0x18
	rstmTrackTable   = 0x4C
	rstmTrackDesc    = 0x58
	rstmChannelTable = 0x5C
	rstmChannelRefs  = 0x60

	// Each channel is an embedded reference followed by its ADPCM info.
	rstmChannelStride = refSize + adpcmInfoRSTM
)

func rstmHeadSize(channels int) int { return 0x68 + 0x40*channels }

// BuildRSTM serialises s as a big-endian RSTM (.brstm) image.
func BuildRSTM(s *encoder.Stream) ([]byte, error) {
	in, err := infoFromStream(s)
	if err != nil {
		return nil, err
	}
	ch := s.Channels

	var p Plan
	p.Add("header", headerSize, sectionAlign)
	p.Add("HEAD", rstmHeadSize(ch), sectionAlign)
	p.Add("ADPC", s.Blocks.SeekEntries()*4*ch+0x10, sectionAlign)
	p.Add("DATA", s.Blocks.ChannelBytes()*ch+0x20, sectionAlign)
	total := p.Resolve()

	img := binio.NewImage(total, binary.BigEndian)
	var refs refWriter

	head, adpc, data := p.Region("HEAD"), p.Region("ADPC"), p.Region("DATA")
	writeRSTMHeader(img.At(0), total, head, adpc, data)
	writeRSTMHead(&refs, img.At(head.Offset), head.Size, in, data.Offset+0x20)

	a := img.At(adpc.Offset)
	a.PutTag(0, "ADPC")
	a.PutU32(4, uint32(adpc.Size))
	for i, h := range s.Seek {
		a.PutI16(0x10+4*i, h.YN1)
		a.PutI16(0x12+4*i, h.YN2)
	}

	d := img.At(data.Offset)
	d.PutTag(0, "DATA")
	d.PutU32(4, uint32(data.Size))
	d.PutU32(8, 0x18)
	d.Copy(0x20, s.Data)

	if err := refs.verify(img.Bytes()); err != nil {
		return nil, err
	}
	return img.Bytes(), nil
}

func writeRSTMHeader(h binio.Section, total int, head, adpc, data Region) {
	h.PutTag(0, "RSTM")
	h.PutU16(4, 0xFEFF)
	h.PutU16(6, 0x0100)
	h.PutU32(8, uint32(total))
	h.PutU16(0x0C, headerSize)
	h.PutU16(0x0E, 2)
	for i, r := range []Region{head, adpc, data} {
		h.PutU32(0x10+8*i, uint32(r.Offset))
		h.PutU32(0x14+8*i, uint32(r.Size))
	}
}

func writeRSTMHead(refs *refWriter, h binio.Section, size int, in *Info, dataOffset int) {
	h.PutTag(0, "HEAD")
	h.PutU32(4, uint32(size))

	base := h.At(8)
	refs.ruint("stream info", base, 0x00, rstmStreamInfo)
	refs.ruint("track table", base, 0x08, rstmTrackTable)
	refs.ruint("channel table", base, 0x10, rstmChannelTable)

	si := base.At(rstmStreamInfo)
	putFormat(si, 0, in)
	si.PutU16(0x04, uint16(in.SampleRate))
	si.PutU32(0x08, uint32(in.LoopStart))
	si.PutU32(0x0C, uint32(in.Blocks.TotalSamples))
	si.PutU32(0x10, uint32(dataOffset))
	si.PutU32(0x14, uint32(in.Blocks.Count))
	si.PutU32(0x18, encoder.BytesPerBlock)
	si.PutU32(0x1C, encoder.SamplesPerBlock)
	si.PutU32(0x20, uint32(in.Blocks.LastSize))
	si.PutU32(0x24, uint32(in.Blocks.LastSamples))
	si.PutU32(0x28, uint32(in.Blocks.LastPaddedSize))
	si.PutU32(0x2C, encoder.SamplesPerBlock)
	si.PutU32(0x30, bitsPerSample)

	// Table counts are little-endian even in RSTM.
	le := base.WithOrder(binary.LittleEndian)
	le.PutU32(rstmTrackTable, 1)
	refs.ruint("track 0", base, rstmTrackTable+4, rstmTrackDesc)
	base.Copy(rstmTrackDesc, []byte{0x02, 0x00, 0x01, 0x00})

	le.PutU32(rstmChannelTable, uint32(in.Channels))
	for i, ci := range in.Channel {
		entry := rstmChannelRefs + 8*i
		target := rstmChannelRefs + 8*in.Channels + rstmChannelStride*i
		refs.ruint(fmt.Sprintf("channel %d", i), base, entry, target)
		refs.ruint(fmt.Sprintf("channel %d info", i), base, target, target+refSize)
		putChannelInfo(base.At(target+refSize), ci, true)
	}
}

// parseRSTM reads an RSTM image produced by BuildRSTM.
func parseRSTM(buf []byte) (*Info, error) {
	r := newReader(buf, binary.BigEndian)
	if bom := r.u16(4); r.err == nil && bom != 0xFEFF {
		return nil, fmt.Errorf("%w: RSTM byte order mark %#04x", ErrUnsupportedFormat, bom)
	}
	in := &Info{
		Format:  BRSTM,
		Version: uint32(r.u16(6)),
		Length:  int(r.u32(8)),
	}
	if n := r.u16(0x0E); r.err == nil && n != 2 {
		return nil, fmt.Errorf("%w: RSTM with %d sections", ErrUnsupportedFormat, n)
	}
	for i, name := range []string{"HEAD", "ADPC", "DATA"} {
		reg := Region{Name: name, Offset: int(r.u32(0x10 + 8*i)), Size: int(r.u32(0x14 + 8*i))}
		r.section(reg)
		in.Sections = append(in.Sections, reg)
	}
	if r.err != nil {
		return nil, r.fail()
	}
	head, adpc, data := in.Sections[0], in.Sections[1], in.Sections[2]

	base := head.Offset + 8
	si := base + r.ruint(base)
	tracks := base + r.ruint(base+8)
	chans := base + r.ruint(base+0x10)

	readStreamInfo(r, si, in)
	in.SampleRate = int(r.u16(si+4)) | int(r.u8(si+3))<<16
	in.LoopStart = int(r.u32(si + 8))
	in.Blocks = encoder.Blocks{
		TotalSamples:    int(r.u32(si + 0x0C)),
		Count:           int(r.u32(si + 0x14)),
		BytesPerBlock:   int(r.u32(si + 0x18)),
		SamplesPerBlock: int(r.u32(si + 0x1C)),
		LastSize:        int(r.u32(si + 0x20)),
		LastSamples:     int(r.u32(si + 0x24)),
		LastPaddedSize:  int(r.u32(si + 0x28)),
	}
	payload := int(r.u32(si + 0x10))

	if n := r.u32LE(tracks); r.err == nil && n != 1 {
		return nil, fmt.Errorf("%w: %d tracks, only single-track streams are supported", ErrUnsupportedFormat, n)
	}
	if n := int(r.u32LE(chans)); r.err == nil && n != in.Channels {
		return nil, fmt.Errorf("%w: channel table lists %d channels, stream info %d", ErrUnsupportedFormat, n, in.Channels)
	}
	for i := range in.Channels {
		entry := base + r.ruint(chans+4+8*i)
		in.Channel = append(in.Channel, readChannelInfo(r, base+r.ruint(entry), true))
	}

	in.Seek = r.bytes(adpc.Offset+0x10, adpc.Size-0x10)
	in.Data = r.bytes(payload, data.End()-payload)
	if r.err != nil {
		return nil, r.fail()
	}
	return in, checkBlocks(in)
}
