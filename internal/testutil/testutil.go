// Package testutil provides shared fixtures and helpers for tests: synthetic
// PCM generators, a WAV file builder, a reference DSP-ADPCM decoder used for
// round-trip checks, and container assertions.
//
// Typical usage:
//
//	func TestRoundTrip(t *testing.T) {
//	    pcm := testutil.Tone(2, 32000, 5000, 440, 8000)
//	    wav := testutil.BuildWAV(testutil.WAVSpec{Channels: 2, SampleRate: 32000, BitDepth: 16}, pcm)
//	    ...
//	}
package testutil

import (
	"math"
)

// Tone returns frames of interleaved 16-bit PCM. Channel c carries a sine of
// freq*(c+1) Hz at the given amplitude so channels are distinguishable.
func Tone(channels, sampleRate, frames int, freq, amplitude float64) []int16 {
	out := make([]int16, channels*frames)
	for i := range frames {
		for c := range channels {
			phase := 2 * math.Pi * freq * float64(c+1) * float64(i) / float64(sampleRate)
			out[i*channels+c] = int16(amplitude * math.Sin(phase))
		}
	}
	return out
}

// Noise returns deterministic pseudo-random interleaved PCM in
// [-amplitude, amplitude]. The same seed always yields the same samples.
func Noise(channels, frames int, amplitude int, seed uint32) []int16 {
	out := make([]int16, channels*frames)
	x := seed | 1
	for i := range out {
		// xorshift32
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = int16(int(x%uint32(2*amplitude+1)) - amplitude)
	}
	return out
}

// Channel extracts one channel from interleaved samples.
func Channel(samples []int16, channels, c int) []int16 {
	out := make([]int16, 0, len(samples)/channels)
	for i := c; i < len(samples); i += channels {
		out = append(out, samples[i])
	}
	return out
}
