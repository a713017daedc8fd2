// Package pcm holds the in-memory 16-bit PCM stream that the encoder consumes.
package pcm

import (
	"errors"
	"fmt"
)

// MaxChannels is the largest channel count a stream may declare.
const MaxChannels = 65535

// ErrInvalidInput is returned when a stream's parameters cannot describe
// playable audio.
var ErrInvalidInput = errors.New("invalid input")

// Stream is interleaved 16-bit PCM with an optional loop range. Frames
// [LoopStart, LoopEnd) repeat when Looping is set. A Stream is not modified
// by the encoder.
type Stream struct {
	Channels   int
	SampleRate int
	Samples    []int16

	Looping   bool
	LoopStart int
	LoopEnd   int
}

// New builds a non-looping stream.
func New(channels, sampleRate int, samples []int16) *Stream {
	return &Stream{Channels: channels, SampleRate: sampleRate, Samples: samples}
}

// SetLoop marks frames [start, end) as the loop. An end of 0 loops to the end
// of the stream.
func (s *Stream) SetLoop(start, end int) {
	if end == 0 {
		end = s.Frames()
	}
	s.Looping = true
	s.LoopStart = start
	s.LoopEnd = end
}

// ClearLoop disables looping.
func (s *Stream) ClearLoop() {
	s.Looping = false
	s.LoopStart = 0
	s.LoopEnd = 0
}

// Frames returns the number of samples per channel.
func (s *Stream) Frames() int {
	if s.Channels <= 0 {
		return 0
	}
	return len(s.Samples) / s.Channels
}

// Validate checks the stream before any encoding work is done.
func (s *Stream) Validate() error {
	switch {
	case s.Channels > MaxChannels:
		return fmt.Errorf("%w: streams of more than %d channels not supported", ErrInvalidInput, MaxChannels)
	case s.Channels <= 0:
		return fmt.Errorf("%w: number of channels must be a positive integer, got %d", ErrInvalidInput, s.Channels)
	case s.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be a positive integer, got %d", ErrInvalidInput, s.SampleRate)
	case len(s.Samples) == 0:
		return fmt.Errorf("%w: stream has no samples", ErrInvalidInput)
	case len(s.Samples)%s.Channels != 0:
		return fmt.Errorf("%w: %d samples do not divide into %d channels", ErrInvalidInput, len(s.Samples), s.Channels)
	}

	if !s.Looping {
		return nil
	}
	frames := s.Frames()
	switch {
	case s.LoopEnd > frames:
		return fmt.Errorf("%w: loop end %d is past the end of the stream (%d frames)", ErrInvalidInput, s.LoopEnd, frames)
	case s.LoopStart < 0:
		return fmt.Errorf("%w: negative loop start %d", ErrInvalidInput, s.LoopStart)
	case s.LoopStart >= s.LoopEnd:
		return fmt.Errorf("%w: loop start %d is not before loop end %d", ErrInvalidInput, s.LoopStart, s.LoopEnd)
	}
	return nil
}

// Deinterleave returns one slice per channel covering frames [from, to).
func (s *Stream) Deinterleave(from, to int) [][]int16 {
	out := make([][]int16, s.Channels)
	for c := range out {
		ch := make([]int16, to-from)
		for i := range ch {
			ch[i] = s.Samples[(from+i)*s.Channels+c]
		}
		out[c] = ch
	}
	return out
}

// PreLoop returns the frames before the loop start as a non-looping stream.
// A stream that does not loop is returned whole.
func (s *Stream) PreLoop() *Stream {
	if !s.Looping {
		return s.slice(0, s.Frames())
	}
	return s.slice(0, s.LoopStart)
}

// Loop returns the looped frames as a stream that loops over its whole
// length, or nil when the stream does not loop.
func (s *Stream) Loop() *Stream {
	if !s.Looping {
		return nil
	}
	seg := s.slice(s.LoopStart, s.LoopEnd)
	seg.SetLoop(0, 0)
	return seg
}

func (s *Stream) slice(from, to int) *Stream {
	samples := make([]int16, (to-from)*s.Channels)
	copy(samples, s.Samples[from*s.Channels:to*s.Channels])
	return New(s.Channels, s.SampleRate, samples)
}
