// Package encoder turns a PCM stream into block-interleaved DSP-ADPCM data
// ready for a stream container: per-channel predictor tables, encoded blocks,
// the seek table of per-block decoder history and the loop-point snapshot.
package encoder

import (
	"context"
	"fmt"

	"github.com/example/go-dspstream/internal/dspadpcm"
	"github.com/example/go-dspstream/internal/pcm"
	"github.com/example/go-dspstream/internal/progress"
	"github.com/sourcegraph/conc/iter"
)

// ChannelInfo is the per-channel decoder setup stored in container headers.
type ChannelInfo struct {
	Coefs dspadpcm.Coefs

	// Initial decoder state. YN1 and YN2 are always zero because every
	// stream starts from silence.
	PS       uint8
	YN1, YN2 int16

	// Decoder state at the loop start.
	LPS        uint8
	LYN1, LYN2 int16
}

// History is the reconstructed decoder history at a block boundary.
type History struct {
	YN1, YN2 int16
}

// Stream is an encoded stream. Block i of channel c starts at
// BlockOffset(i) + c*Blocks.Size(i) in Data.
type Stream struct {
	Channels   int
	SampleRate int

	Looping bool
	// LoopStart is the block-aligned loop start, including LoopPadding
	// frames of silence inserted at the head of the stream.
	LoopStart   int
	LoopPadding int

	Blocks  Blocks
	Channel []ChannelInfo

	// Seek holds Blocks.SeekEntries() entries per channel, block major:
	// Seek[i*Channels+c] is channel c's history after block i.
	Seek []History
	Data []byte
}

// TotalSamples returns the per-channel sample count including loop padding.
func (s *Stream) TotalSamples() int { return s.Blocks.TotalSamples }

// BlockOffset returns the offset in Data of block i of channel 0.
func (s *Stream) BlockOffset(i int) int {
	return i * BytesPerBlock * s.Channels
}

// ChannelData returns channel c's blocks concatenated, as stored by
// non-interleaved containers.
func (s *Stream) ChannelData(c int) []byte {
	out := make([]byte, 0, s.Blocks.ChannelBytes())
	for i := range s.Blocks.Count {
		size := s.Blocks.Size(i)
		off := s.BlockOffset(i) + c*size
		out = append(out, s.Data[off:off+size]...)
	}
	return out
}

type options struct {
	workers  int
	reporter progress.Reporter
}

// Option configures Encode.
type Option func(*options)

// WithWorkers caps the goroutines used for per-channel work. Zero uses
// GOMAXPROCS; one encodes channels sequentially. Output is identical for any
// value.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithProgress sets the reporter receiving progress ticks.
func WithProgress(r progress.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// Encode encodes s. Looping streams are cut at the loop end and padded with
// leading silence so that the loop starts on a block boundary.
//
// Progress counts samples times channels over three passes (fill, table
// design, block encoding). ctx is checked between blocks; on cancellation the
// reporter's Cancel is called and the context error is returned.
func Encode(ctx context.Context, s *pcm.Stream, optFns ...Option) (*Stream, error) {
	opts := options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	rep := progress.OrNop(opts.reporter)

	if err := s.Validate(); err != nil {
		return nil, err
	}

	frames := s.Frames()
	padding, loopStart := 0, 0
	if s.Looping {
		frames = s.LoopEnd
		if r := s.LoopStart % SamplesPerBlock; r != 0 {
			padding = SamplesPerBlock - r
		}
		loopStart = s.LoopStart + padding
	}
	total := padding + frames

	out := &Stream{
		Channels:    s.Channels,
		SampleRate:  s.SampleRate,
		Looping:     s.Looping,
		LoopStart:   loopStart,
		LoopPadding: padding,
		Blocks:      Layout(total),
		Channel:     make([]ChannelInfo, s.Channels),
	}
	out.Seek = make([]History, out.Blocks.SeekEntries()*s.Channels)
	out.Data = make([]byte, out.Blocks.ChannelBytes()*s.Channels)

	perPass := float64(total) * float64(s.Channels)
	done := 0.0
	rep.Begin(0, 3*perPass, 0)

	chans := make([]channel, s.Channels)
	for c, samples := range s.Deinterleave(0, frames) {
		buf := make([]int16, total)
		copy(buf[padding:], samples)
		chans[c].samples = buf
	}
	done += perPass
	rep.Update(done)

	if err := ctx.Err(); err != nil {
		rep.Cancel()
		return nil, fmt.Errorf("encode cancelled: %w", err)
	}

	it := iter.Iterator[channel]{MaxGoroutines: opts.workers}
	it.ForEachIdx(chans, func(c int, ch *channel) {
		ch.coefs = dspadpcm.Correlate(ch.samples)
		out.Channel[c].Coefs = ch.coefs
	})
	for range chans {
		done += float64(total)
		rep.Update(done)
	}

	for b := range out.Blocks.Count {
		if err := ctx.Err(); err != nil {
			rep.Cancel()
			return nil, fmt.Errorf("encode cancelled at block %d of %d: %w", b, out.Blocks.Count, err)
		}

		start := b * SamplesPerBlock
		n := out.Blocks.Samples(b)
		size := out.Blocks.Size(b)
		base := out.BlockOffset(b)
		atLoop := out.Looping && start == loopStart

		it.ForEachIdx(chans, func(c int, ch *channel) {
			info := &out.Channel[c]
			if atLoop {
				info.LYN1, info.LYN2 = ch.state.YN1, ch.state.YN2
			}

			dst := out.Data[base+c*size : base+(c+1)*size]
			dspadpcm.EncodeSamples(&ch.state, ch.samples[start:start+n], &ch.coefs, dst)

			if b == 0 {
				info.PS = dst[0]
			}
			if atLoop {
				info.LPS = dst[0]
			}
			if b < out.Blocks.SeekEntries() {
				out.Seek[b*out.Channels+c] = History{YN1: ch.state.YN1, YN2: ch.state.YN2}
			}
		})

		done += float64(n) * float64(s.Channels)
		rep.Update(done)
	}

	rep.Finish()
	return out, nil
}

// channel is the working state of one channel during an encode.
type channel struct {
	samples []int16
	coefs   dspadpcm.Coefs
	state   dspadpcm.State
}
