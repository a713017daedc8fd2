package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/go-dspstream/internal/config"
	"github.com/example/go-dspstream/internal/container"
	"github.com/example/go-dspstream/internal/convert"
	"github.com/example/go-dspstream/internal/progress"
	"github.com/spf13/cobra"
)

func newEncodeCmd() *cobra.Command {
	var loop loopFlags

	cmd := &cobra.Command{
		Use:   "encode <in.wav> [out]",
		Short: "Encode a WAV file into a BRSTM, BCSTM or BCWAV container",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := ""
			if len(args) == 2 {
				out = args[1]
			}
			outPath, format, err := resolveOutput(args[0], out, cfg.Encode.Format, cmd.Flags().Changed("format"))
			if err != nil {
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

			opts := convert.Options{
				Format:  format,
				Workers: cfg.Encode.Workers,
				Loop:    loopOverride,
			}
			if cfg.Encode.Progress {
				opts.Progress = progress.NewBar(os.Stderr)
			}

			start := time.Now()
			res, err := convert.WAV(cmd.Context(), wav, opts)
			if err != nil {
				return fmt.Errorf("encode %s: %w", args[0], err)
			}
			slog.Info("encode complete",
				slog.String("format", format.String()),
				slog.Int("channels", res.Stream.Channels),
				slog.Int("samples", res.Stream.TotalSamples()),
				slog.Bool("looping", res.Stream.Looping),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("out", outPath),
			)

			return writeOutput(outPath, res.Container, os.Stdout)
		},
	}

	config.RegisterEncodeFlags(cmd.Flags(), config.DefaultConfig())
	loop.register(cmd, true)

	return cmd
}

// resolveOutput picks the output path and container format. Without an
// explicit --format, a recognised output extension selects the format; a
// missing output path is the input path with the format's extension.
func resolveOutput(in, out, cfgFormat string, formatSet bool) (string, container.Format, error) {
	format, err := container.ParseFormat(cfgFormat)
	if err != nil {
		return "", 0, err
	}
	if out == "" {
		return strings.TrimSuffix(in, filepath.Ext(in)) + format.Extension(), format, nil
	}
	if !formatSet && out != "-" {
		if f, err := container.FormatFromPath(out); err == nil {
			format = f
		}
	}
	return out, format, nil
}

func writeOutput(outPath string, data []byte, stdout io.Writer) error {
	if outPath == "-" {
		if stdout == nil {
			return fmt.Errorf("stdout writer is nil")
		}
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}
