package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/go-dspstream/internal/audio"
	"github.com/example/go-dspstream/internal/pcm"
	"github.com/spf13/cobra"
)

func newSplitCmd() *cobra.Command {
	var loop loopFlags

	cmd := &cobra.Command{
		Use:   "split <in.wav> <dir>",
		Short: "Write the pre-loop and loop sections of a WAV file as separate WAV files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireConfig(); err != nil {
				return err
			}
			loopOverride, err := loop.override(cmd)
			if err != nil {
				return err
			}

			wav, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, err := audio.Load(wav)
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			if loopOverride != nil {
				loopOverride.Apply(s)
			}

			written, err := splitStream(s, args[1], baseName(args[0]))
			if err != nil {
				return err
			}
			for _, p := range written {
				_, _ = fmt.Fprintln(os.Stdout, p)
			}
			return nil
		},
	}

	loop.register(cmd, false)

	return cmd
}

var errNoLoop = errors.New("input has no loop; pass --loop to set one")

// splitStream writes <base>_preloop.wav, when the loop does not start at
// the first frame, and <base>_loop.wav into dir.
func splitStream(s *pcm.Stream, dir, base string) ([]string, error) {
	if !s.Looping {
		return nil, errNoLoop
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	if s.LoopStart > 0 {
		p := filepath.Join(dir, base+"_preloop.wav")
		if err := writeWAV(p, s.PreLoop()); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	p := filepath.Join(dir, base+"_loop.wav")
	if err := writeWAV(p, s.Loop()); err != nil {
		return written, err
	}
	written = append(written, p)

	slog.Info("split complete",
		slog.Int("channels", s.Channels),
		slog.Int("loop_start", s.LoopStart),
		slog.Int("loop_end", s.LoopEnd),
		slog.Int("files", len(written)),
	)
	return written, nil
}

func writeWAV(path string, s *pcm.Stream) error {
	data, err := audio.EncodeWAV(s)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
