// Package bench times repeated encodes of one input for the dspstream bench
// command and reports them per container format.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/example/go-dspstream/internal/container"
)

// Sample is one timed encode.
type Sample struct {
	Run            int // 1-based round number
	Format         container.Format
	Cold           bool // first encode of this format
	Elapsed        time.Duration
	StreamDuration time.Duration
	ContainerBytes int
	RTF            float64
}

// EncodeFunc encodes the benchmark input into f and returns the size of the
// built container.
type EncodeFunc func(ctx context.Context, f container.Format) (int, error)

// StreamDuration returns the playback time of frames samples per channel.
func StreamDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(sampleRate))
}

// RTF is the encode time divided by the playback time of the stream. Below
// 1 the encoder is faster than realtime. A zero stream duration gives 0.
func RTF(elapsed, stream time.Duration) float64 {
	if stream <= 0 {
		return 0
	}
	return float64(elapsed) / float64(stream)
}

// Run performs runs rounds. Each round encodes every format in formats once,
// in order. The first error or cancellation stops the benchmark.
func Run(ctx context.Context, runs int, formats []container.Format, stream time.Duration, fn EncodeFunc) ([]Sample, error) {
	if len(formats) == 0 {
		return nil, fmt.Errorf("%w: no formats to benchmark", container.ErrUnsupportedFormat)
	}
	samples := make([]Sample, 0, runs*len(formats))
	for run := 1; run <= runs; run++ {
		for _, f := range formats {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			start := time.Now()
			n, err := fn(ctx, f)
			if err != nil {
				return nil, fmt.Errorf("run %d (%s): %w", run, f, err)
			}
			elapsed := time.Since(start)
			samples = append(samples, Sample{
				Run:            run,
				Format:         f,
				Cold:           run == 1,
				Elapsed:        elapsed,
				StreamDuration: stream,
				ContainerBytes: n,
				RTF:            RTF(elapsed, stream),
			})
		}
	}
	return samples, nil
}

// Summary aggregates the samples of one format.
type Summary struct {
	Format         container.Format
	Runs           int
	Min, Mean, Max time.Duration
	MeanRTF        float64
	ContainerBytes int
}

// Summarize groups samples by format, in the order formats first appear.
func Summarize(samples []Sample) []Summary {
	var out []Summary
	index := make(map[container.Format]int)
	for _, s := range samples {
		i, ok := index[s.Format]
		if !ok {
			i = len(out)
			index[s.Format] = i
			out = append(out, Summary{Format: s.Format, Min: s.Elapsed, Max: s.Elapsed})
		}
		sum := &out[i]
		sum.Runs++
		sum.Min = min(sum.Min, s.Elapsed)
		sum.Max = max(sum.Max, s.Elapsed)
		// Mean and MeanRTF hold running totals until the loop below.
		sum.Mean += s.Elapsed
		sum.MeanRTF += s.RTF
		sum.ContainerBytes = s.ContainerBytes
	}
	for i := range out {
		out[i].Mean /= time.Duration(out[i].Runs)
		out[i].MeanRTF /= float64(out[i].Runs)
	}
	return out
}

// CheckRTF fails on the first format whose mean RTF is above threshold.
// A threshold of 0 or less disables the check.
func CheckRTF(sums []Summary, threshold float64) error {
	if threshold <= 0 {
		return nil
	}
	for _, s := range sums {
		if s.MeanRTF > threshold {
			return fmt.Errorf("%s: mean RTF %.3f exceeds threshold %.3f", s.Format, s.MeanRTF, threshold)
		}
	}
	return nil
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// WriteTable writes one row per encode followed by a per-format summary.
func WriteTable(w io.Writer, samples []Sample, sums []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "run\tformat\tcold\tencode ms\tstream ms\tbytes\trtf\t")
	for _, s := range samples {
		cold := ""
		if s.Cold {
			cold = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.1f\t%d\t%.4f\t\n",
			s.Run, s.Format, cold, ms(s.Elapsed), ms(s.StreamDuration), s.ContainerBytes, s.RTF)
	}
	fmt.Fprintln(tw, "\t\t\t\t\t\t\t")
	fmt.Fprintln(tw, "format\truns\tmin ms\tmean ms\tmax ms\tbytes\tmean rtf\t")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%d\t%.4f\t\n",
			s.Format, s.Runs, ms(s.Min), ms(s.Mean), ms(s.Max), s.ContainerBytes, s.MeanRTF)
	}
	return tw.Flush()
}

type jsonSample struct {
	Run            int     `json:"run"`
	Format         string  `json:"format"`
	Cold           bool    `json:"cold"`
	EncodeMS       float64 `json:"encode_ms"`
	StreamMS       float64 `json:"stream_ms"`
	ContainerBytes int     `json:"container_bytes"`
	RTF            float64 `json:"rtf"`
}

type jsonSummary struct {
	Format         string  `json:"format"`
	Runs           int     `json:"runs"`
	MinMS          float64 `json:"min_ms"`
	MeanMS         float64 `json:"mean_ms"`
	MaxMS          float64 `json:"max_ms"`
	ContainerBytes int     `json:"container_bytes"`
	MeanRTF        float64 `json:"mean_rtf"`
}

// WriteJSON writes the samples and summaries as one indented JSON document.
func WriteJSON(w io.Writer, samples []Sample, sums []Summary) error {
	doc := struct {
		Runs    []jsonSample  `json:"runs"`
		Formats []jsonSummary `json:"formats"`
	}{
		Runs:    make([]jsonSample, len(samples)),
		Formats: make([]jsonSummary, len(sums)),
	}
	for i, s := range samples {
		doc.Runs[i] = jsonSample{
			Run:            s.Run,
			Format:         s.Format.String(),
			Cold:           s.Cold,
			EncodeMS:       ms(s.Elapsed),
			StreamMS:       ms(s.StreamDuration),
			ContainerBytes: s.ContainerBytes,
			RTF:            s.RTF,
		}
	}
	for i, s := range sums {
		doc.Formats[i] = jsonSummary{
			Format:         s.Format.String(),
			Runs:           s.Runs,
			MinMS:          ms(s.Min),
			MeanMS:         ms(s.Mean),
			MaxMS:          ms(s.Max),
			ContainerBytes: s.ContainerBytes,
			MeanRTF:        s.MeanRTF,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
