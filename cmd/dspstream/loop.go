package main

import (
	"errors"

	"github.com/example/go-dspstream/internal/convert"
	"github.com/example/go-dspstream/internal/pcm"
	"github.com/spf13/cobra"
)

// loopFlags holds --loop and --no-loop. A bare --loop loops the whole input.
type loopFlags struct {
	spec   string
	noLoop bool
}

func (l *loopFlags) register(cmd *cobra.Command, withNoLoop bool) {
	cmd.Flags().StringVar(&l.spec, "loop", "", "Loop points as start[-end] in samples; bare --loop loops the whole file")
	cmd.Flags().Lookup("loop").NoOptDefVal = "0"
	if withNoLoop {
		cmd.Flags().BoolVar(&l.noLoop, "no-loop", false, "Ignore loop points stored in the WAV file")
	}
}

// override returns the loop override, or nil to keep the input's own loop.
func (l *loopFlags) override(cmd *cobra.Command) (*convert.Loop, error) {
	loopSet := cmd.Flags().Changed("loop")
	switch {
	case loopSet && l.noLoop:
		return nil, errors.New("--loop and --no-loop are mutually exclusive")
	case l.noLoop:
		return &convert.Loop{Disable: true}, nil
	case loopSet:
		start, end, err := pcm.ParseLoop(l.spec)
		if err != nil {
			return nil, err
		}
		return &convert.Loop{Start: start, End: end}, nil
	}
	return nil, nil
}
