package container

import (
	"encoding/binary"
	"fmt"

	"github.com/example/go-dspstream/internal/binio"
	"github.com/example/go-dspstream/internal/encoder"
)

const cstmVersion = 0x02000000

// INFO layout, relative to INFO+8.
const (
	cstmStreamInfo   = 0x18
	cstmTrackTable   = 0x50
	cstmChannelTable = 0x5C
	cstmTrackInfo    = 0x60 // plus 8 per channel table entry
	cstmTrackInfoLen = 0x14
)

func cstmInfoSize(channels int) int {
	return 8 + cstmTrackInfo + cstmTrackInfoLen + (refSize+adpcmInfoCSTM)*channels + refSize*channels
}

// BuildCSTM serialises s as a little-endian CSTM (.bcstm) image. The stream
// is laid out as RSTM first and transcoded, so the SEEK and DATA payloads are
// the RSTM ones byte for byte.
func BuildCSTM(s *encoder.Stream) ([]byte, error) {
	rstm, err := BuildRSTM(s)
	if err != nil {
		return nil, err
	}
	return TranscodeRSTM(rstm)
}

// TranscodeRSTM rewrites an RSTM image as CSTM without re-encoding. Only
// single-track DSP-ADPCM sources are accepted.
func TranscodeRSTM(rstm []byte) ([]byte, error) {
	if len(rstm) < 4 || string(rstm[:4]) != "RSTM" {
		return nil, fmt.Errorf("%w: source is not an RSTM image", ErrUnsupportedFormat)
	}
	in, err := parseRSTM(rstm)
	if err != nil {
		return nil, err
	}
	if in.Encoding != encodingADPCM {
		return nil, fmt.Errorf("%w: CSTM export only supports DSP-ADPCM, source encoding is %d", ErrUnsupportedFormat, in.Encoding)
	}
	return writeCSTM(in)
}

func writeCSTM(in *Info) ([]byte, error) {
	ch := in.Channels

	var p Plan
	p.Add("header", headerSize, sectionAlign)
	p.Add("INFO", cstmInfoSize(ch), sectionAlign)
	p.Add("SEEK", len(in.Seek)+0x10, sectionAlign)
	p.Add("DATA", len(in.Data)+0x20, sectionAlign)
	total := p.Resolve()

	img := binio.NewImage(total, binary.LittleEndian)
	var refs refWriter

	info, seek, data := p.Region("INFO"), p.Region("SEEK"), p.Region("DATA")
	h := img.At(0)
	h.PutTag(0, "CSTM")
	h.PutU16(4, 0xFEFF)
	h.PutU16(6, headerSize)
	h.PutU32(8, cstmVersion)
	h.PutU32(0x0C, uint32(total))
	h.PutU16(0x10, 3)
	putSectionRef(&refs, h, 0x14, refCSTMInfo, info)
	putSectionRef(&refs, h, 0x20, refCSTMSeek, seek)
	putSectionRef(&refs, h, 0x2C, refCSTMData, data)

	writeCSTMInfo(&refs, img.At(info.Offset), info.Size, in)

	sk := img.At(seek.Offset)
	sk.PutTag(0, "SEEK")
	sk.PutU32(4, uint32(seek.Size))
	sk.Copy(0x10, in.Seek)

	d := img.At(data.Offset)
	d.PutTag(0, "DATA")
	d.PutU32(4, uint32(data.Size))
	d.PutU32(8, 0x18)
	d.Copy(0x20, in.Data)

	if err := refs.verify(img.Bytes()); err != nil {
		return nil, err
	}
	return img.Bytes(), nil
}

func writeCSTMInfo(refs *refWriter, sec binio.Section, size int, in *Info) {
	ch := in.Channels
	sec.PutTag(0, "INFO")
	sec.PutU32(4, uint32(size))

	base := sec.At(8)
	refs.ref("stream info", base, 0x00, refCSTMStreamInfo, cstmStreamInfo)
	refs.ref("track table", base, 0x08, refReferenceTable, cstmTrackTable)
	refs.ref("channel table", base, 0x10, refReferenceTable, cstmChannelTable)

	si := base.At(cstmStreamInfo)
	putFormat(si, 0, in)
	for i, v := range []int{
		in.SampleRate,
		in.LoopStart,
		in.Blocks.TotalSamples,
		in.Blocks.Count,
		encoder.BytesPerBlock,
		encoder.SamplesPerBlock,
		in.Blocks.LastSize,
		in.Blocks.LastSamples,
		in.Blocks.LastPaddedSize,
		bitsPerSample,
		encoder.SamplesPerBlock,
	} {
		si.PutU32(4+4*i, uint32(v))
	}
	refs.ref("sample data", si, 0x30, refSampleData, 0x18)

	trackInfo := cstmTrackInfo + refSize*ch
	channelInfos := trackInfo + cstmTrackInfoLen
	records := channelInfos + refSize*ch

	tt := base.At(cstmTrackTable)
	tt.PutU32(0, 1)
	refs.ref("track 0", tt, 4, refCSTMTrackInfo, trackInfo-cstmTrackTable)

	ti := base.At(trackInfo)
	ti.PutU8(0, 0x7F) // volume
	ti.PutU8(1, 0x40) // pan
	refs.ref("track 0 byte table", ti, 4, refByteTable, 12)
	ti.PutU32(12, 2)
	ti.Copy(16, []byte{0x00, 0x01, 0x00, 0x00})

	ct := base.At(cstmChannelTable)
	ct.PutU32(0, uint32(ch))
	for i, info := range in.Channel {
		entry := channelInfos + refSize*i
		record := records + adpcmInfoCSTM*i
		refs.ref(fmt.Sprintf("channel %d", i), ct, 4+refSize*i, refCSTMChannelInfo, entry-cstmChannelTable)
		refs.ref(fmt.Sprintf("channel %d info", i), base, entry, refDSPADPCMInfo, record-entry)
		putChannelInfo(base.At(record), info, false)
	}
}

func parseCSTM(buf []byte) (*Info, error) {
	r := newReader(buf, binary.LittleEndian)
	if bom := r.u16(4); r.err == nil && bom != 0xFEFF {
		return nil, fmt.Errorf("%w: CSTM byte order mark %#04x", ErrUnsupportedFormat, bom)
	}
	in := &Info{
		Format:  BCSTM,
		Version: r.u32(8),
		Length:  int(r.u32(0x0C)),
	}
	if n := r.u16(0x10); r.err == nil && n != 3 {
		return nil, fmt.Errorf("%w: CSTM with %d blocks", ErrUnsupportedFormat, n)
	}
	for i, name := range []string{"INFO", "SEEK", "DATA"} {
		reg := Region{Name: name, Offset: r.ref(0x14 + 12*i), Size: int(r.u32(0x1C + 12*i))}
		r.section(reg)
		in.Sections = append(in.Sections, reg)
	}
	if r.err != nil {
		return nil, r.fail()
	}
	info, seek, data := in.Sections[0], in.Sections[1], in.Sections[2]

	base := info.Offset + 8
	si := base + r.ref(base)
	tracks := base + r.ref(base+8)
	chans := base + r.ref(base+0x10)

	readStreamInfo(r, si, in)
	in.SampleRate = int(r.u32(si + 4))
	in.LoopStart = int(r.u32(si + 8))
	in.Blocks = encoder.Blocks{
		TotalSamples:    int(r.u32(si + 0x0C)),
		Count:           int(r.u32(si + 0x10)),
		BytesPerBlock:   int(r.u32(si + 0x14)),
		SamplesPerBlock: int(r.u32(si + 0x18)),
		LastSize:        int(r.u32(si + 0x1C)),
		LastSamples:     int(r.u32(si + 0x20)),
		LastPaddedSize:  int(r.u32(si + 0x24)),
	}
	payload := data.Offset + 8 + r.ref(si+0x30)

	if n := r.u32(tracks); r.err == nil && n != 1 {
		return nil, fmt.Errorf("%w: %d tracks, only single-track streams are supported", ErrUnsupportedFormat, n)
	}
	if n := int(r.u32(chans)); r.err == nil && n != in.Channels {
		return nil, fmt.Errorf("%w: channel table lists %d channels, stream info %d", ErrUnsupportedFormat, n, in.Channels)
	}
	for i := range in.Channels {
		entry := chans + r.ref(chans+4+refSize*i)
		in.Channel = append(in.Channel, readChannelInfo(r, entry+r.ref(entry), false))
	}

	in.Seek = r.bytes(seek.Offset+0x10, seek.Size-0x10)
	in.Data = r.bytes(payload, data.End()-payload)
	if r.err != nil {
		return nil, r.fail()
	}
	return in, checkBlocks(in)
}
