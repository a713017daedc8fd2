// Package convert runs the full WAV to stream container pipeline shared by
// the CLI, the HTTP service and the benchmark.
package convert

import (
	"context"
	"fmt"

	"github.com/example/go-dspstream/internal/audio"
	"github.com/example/go-dspstream/internal/container"
	"github.com/example/go-dspstream/internal/encoder"
	"github.com/example/go-dspstream/internal/pcm"
	"github.com/example/go-dspstream/internal/progress"
)

// Loop overrides the loop read from the input.
type Loop struct {
	Disable    bool
	Start, End int // End 0 loops to the end of the input
}

// Apply sets or clears the loop on s.
func (l Loop) Apply(s *pcm.Stream) {
	if l.Disable {
		s.ClearLoop()
		return
	}
	s.SetLoop(l.Start, l.End)
}

type Options struct {
	Format   container.Format
	Workers  int
	Progress progress.Reporter
	// Loop, when set, replaces the loop found in the input.
	Loop *Loop
}

// Result is a built container with the stream it was built from.
type Result struct {
	Container []byte
	Stream    *encoder.Stream
}

// WAV decodes a WAV file and encodes it into opts.Format.
func WAV(ctx context.Context, data []byte, opts Options) (*Result, error) {
	s, err := audio.Load(data)
	if err != nil {
		return nil, err
	}
	return Stream(ctx, s, opts)
}

// Stream encodes s into opts.Format. s is not modified.
func Stream(ctx context.Context, s *pcm.Stream, opts Options) (*Result, error) {
	if opts.Loop != nil {
		cp := *s
		opts.Loop.Apply(&cp)
		s = &cp
	}
	// Container limits are checked before any channel is encoded.
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if opts.Format.Tag() == "" {
		return nil, fmt.Errorf("%w: %s", container.ErrUnsupportedFormat, opts.Format)
	}
	if err := container.CheckStream(s.Channels, s.SampleRate); err != nil {
		return nil, err
	}

	enc, err := encoder.Encode(ctx, s,
		encoder.WithWorkers(opts.Workers),
		encoder.WithProgress(opts.Progress),
	)
	if err != nil {
		return nil, err
	}
	buf, err := container.Build(opts.Format, enc)
	if err != nil {
		return nil, err
	}
	return &Result{Container: buf, Stream: enc}, nil
}
