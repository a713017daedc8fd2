package main

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/example/go-dspstream/internal/audio"
	"github.com/example/go-dspstream/internal/bench"
	"github.com/example/go-dspstream/internal/config"
	"github.com/example/go-dspstream/internal/container"
	"github.com/example/go-dspstream/internal/convert"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		loop         loopFlags
		runs         int
		report       string
		rtfThreshold float64
		cpuprofile   string
		allFormats   bool
	)

	cmd := &cobra.Command{
		Use:   "bench <in.wav>",
		Short: "Time repeated encodes of a WAV file per container format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if report != "table" && report != "json" {
				return fmt.Errorf("--report must be 'table' or 'json'")
			}
			formats := container.Formats
			if !allFormats {
				f, err := container.ParseFormat(cfg.Encode.Format)
				if err != nil {
					return err
				}
				formats = []container.Format{f}
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

			if cpuprofile != "" {
				f, err := os.Create(cpuprofile)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := pprof.StartCPUProfile(f); err != nil {
					return err
				}
				defer pprof.StopCPUProfile()
			}

			opts := convert.Options{Workers: cfg.Encode.Workers, Loop: loopOverride}
			stream := bench.StreamDuration(s.Frames(), s.SampleRate)
			samples, err := bench.Run(cmd.Context(), runs, formats, stream,
				func(ctx context.Context, f container.Format) (int, error) {
					opts.Format = f
					res, err := convert.Stream(ctx, s, opts)
					if err != nil {
						return 0, err
					}
					return len(res.Container), nil
				})
			if err != nil {
				return err
			}

			sums := bench.Summarize(samples)
			out := cmd.OutOrStdout()
			if report == "json" {
				err = bench.WriteJSON(out, samples, sums)
			} else {
				err = bench.WriteTable(out, samples, sums)
			}
			if err != nil {
				return err
			}
			return bench.CheckRTF(sums, rtfThreshold)
		},
	}

	config.RegisterEncodeFlags(cmd.Flags(), config.DefaultConfig())
	loop.register(cmd, true)
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of encode rounds")
	cmd.Flags().BoolVar(&allFormats, "all-formats", false, "Encode every container format in each round, ignoring --format")
	cmd.Flags().StringVar(&report, "report", "table", "Report format: table|json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Exit non-zero if any format's mean RTF (encode time / stream duration) exceeds this value (0 = disabled)")
	cmd.Flags().StringVar(&cpuprofile, "cpuprofile", "", "Write a CPU profile of the runs to this file")

	return cmd
}
