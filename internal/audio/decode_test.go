package audio

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/example/go-dspstream/internal/pcm"
	"github.com/example/go-dspstream/internal/testutil"
)

func TestLoad(t *testing.T) {
	t.Run("16-bit stereo", func(t *testing.T) {
		samples := testutil.Tone(2, 32000, 500, 440, 12000)
		s, err := Load(testutil.BuildWAV(testutil.WAVSpec{Channels: 2, SampleRate: 32000, BitDepth: 16}, samples))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if s.Channels != 2 || s.SampleRate != 32000 || s.Frames() != 500 {
			t.Fatalf("stream = %d ch, %d Hz, %d frames", s.Channels, s.SampleRate, s.Frames())
		}
		for i := range samples {
			if s.Samples[i] != samples[i] {
				t.Fatalf("sample %d = %d; want %d", i, s.Samples[i], samples[i])
			}
		}
		if s.Looping {
			t.Error("file without smpl chunk loaded as looping")
		}
	})

	t.Run("8-bit widened", func(t *testing.T) {
		samples := []int16{-32768, -256, 0, 256, 32512, 4096}
		s, err := Load(testutil.BuildWAV(testutil.WAVSpec{Channels: 1, SampleRate: 8000, BitDepth: 8}, samples))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		for i, want := range samples {
			if s.Samples[i] != want {
				t.Errorf("sample %d = %d; want %d", i, s.Samples[i], want)
			}
		}
	})

	t.Run("smpl loop", func(t *testing.T) {
		spec := testutil.WAVSpec{Channels: 2, SampleRate: 22050, BitDepth: 16, Loops: [][2]int{{100, 400}}}
		s, err := Load(testutil.BuildWAV(spec, testutil.Tone(2, 22050, 500, 300, 8000)))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !s.Looping || s.LoopStart != 100 || s.LoopEnd != 400 {
			t.Errorf("loop = %v [%d, %d); want true [100, 400)", s.Looping, s.LoopStart, s.LoopEnd)
		}
	})
}

func TestLoadErrors(t *testing.T) {
	tone := testutil.Tone(1, 16000, 200, 440, 8000)
	pcm24 := testutil.BuildWAV(testutil.WAVSpec{Channels: 1, SampleRate: 16000, BitDepth: 16}, tone)
	binary.LittleEndian.PutUint16(pcm24[34:], 24)
	float := testutil.BuildWAV(testutil.WAVSpec{Channels: 1, SampleRate: 16000, BitDepth: 16}, tone)
	binary.LittleEndian.PutUint16(float[20:], 3)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidWAV},
		{"not riff", []byte("this is not a wave file at all, just text"), ErrInvalidWAV},
		{"24-bit", pcm24, ErrFormatMismatch},
		{"float", float, ErrFormatMismatch},
		{"two loops", testutil.BuildWAV(testutil.WAVSpec{
			Channels: 1, SampleRate: 16000, BitDepth: 16, Loops: [][2]int{{0, 10}, {20, 30}},
		}, tone), ErrUnsupportedLoop},
		{"ping-pong loop", testutil.BuildWAV(testutil.WAVSpec{
			Channels: 1, SampleRate: 16000, BitDepth: 16, Loops: [][2]int{{0, 10}}, LoopType: 1,
		}, tone), ErrUnsupportedLoop},
		{"loop past end", testutil.BuildWAV(testutil.WAVSpec{
			Channels: 1, SampleRate: 16000, BitDepth: 16, Loops: [][2]int{{10, 201}},
		}, tone), pcm.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(tt.data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Load() error = %v; want %v", err, tt.want)
			}
			if s != nil {
				t.Error("Load returned a stream alongside an error")
			}
		})
	}
}
