package encoder

import (
	"github.com/example/go-dspstream/internal/binio"
	"github.com/example/go-dspstream/internal/dspadpcm"
)

const (
	SamplesPerBlock = 0x3800
	BytesPerBlock   = 0x2000

	// BlockAlign is the alignment of the final, short block of each channel.
	BlockAlign = 0x20
)

// Blocks describes how a channel of TotalSamples samples divides into blocks.
// All channels share the same layout.
type Blocks struct {
	Count           int
	LastSamples     int
	LastSize        int // encoded bytes of the last block
	LastPaddedSize  int // LastSize rounded up to BlockAlign
	TotalSamples    int
	SamplesPerBlock int
	BytesPerBlock   int
}

// Layout computes the block layout for a channel of total samples.
func Layout(total int) Blocks {
	b := Blocks{
		Count:           (total + SamplesPerBlock - 1) / SamplesPerBlock,
		TotalSamples:    total,
		SamplesPerBlock: SamplesPerBlock,
		BytesPerBlock:   BytesPerBlock,
	}
	b.LastSamples = total % SamplesPerBlock
	if b.LastSamples == 0 && total > 0 {
		b.LastSamples = SamplesPerBlock
	}
	b.LastSize = dspadpcm.EncodedSize(b.LastSamples)
	b.LastPaddedSize = binio.RoundUp(b.LastSize, BlockAlign)
	return b
}

// Samples returns the number of samples in block i.
func (b Blocks) Samples(i int) int {
	if i == b.Count-1 {
		return b.LastSamples
	}
	return SamplesPerBlock
}

// Size returns the padded per-channel byte size of block i.
func (b Blocks) Size(i int) int {
	if i == b.Count-1 {
		return b.LastPaddedSize
	}
	return BytesPerBlock
}

// ChannelBytes returns the padded encoded size of one channel.
func (b Blocks) ChannelBytes() int {
	if b.Count == 0 {
		return 0
	}
	return (b.Count-1)*BytesPerBlock + b.LastPaddedSize
}

// SeekEntries returns the number of seek-table entries per channel. The
// history after the last block is never needed, so it is not recorded.
func (b Blocks) SeekEntries() int {
	return max(0, b.Count-1)
}
