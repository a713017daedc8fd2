package encoder

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/example/go-dspstream/internal/pcm"
	"github.com/example/go-dspstream/internal/progress"
	"github.com/example/go-dspstream/internal/testutil"
)

func TestLayout(t *testing.T) {
	tests := []struct {
		name                                  string
		total                                 int
		count, lastSamples, lastSize, lastPad int
	}{
		{"100 samples", 100, 1, 100, 64, 64},
		{"one frame", 1, 1, 1, 8, 0x20},
		{"exact block", SamplesPerBlock, 1, SamplesPerBlock, BytesPerBlock, BytesPerBlock},
		{"block plus one", SamplesPerBlock + 1, 2, 1, 8, 0x20},
		{"two blocks and a bit", 2*SamplesPerBlock + 50, 3, 50, 32, 32},
		{"unaligned tail", 3*14 + 1, 1, 43, 32, 32},
		{"tail needs padding", 5 * 14, 1, 70, 40, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Layout(tt.total)
			if b.Count != tt.count || b.LastSamples != tt.lastSamples || b.LastSize != tt.lastSize || b.LastPaddedSize != tt.lastPad {
				t.Errorf("Layout(%d) = %+v; want count=%d lastSamples=%d lastSize=%d lastPad=%d",
					tt.total, b, tt.count, tt.lastSamples, tt.lastSize, tt.lastPad)
			}
			if want := (tt.count-1)*BytesPerBlock + tt.lastPad; b.ChannelBytes() != want {
				t.Errorf("ChannelBytes = %d; want %d", b.ChannelBytes(), want)
			}
		})
	}
}

func TestEncodeMonoShortScenario(t *testing.T) {
	s := pcm.New(1, 16000, testutil.Tone(1, 16000, 100, 500, 6000))
	enc, err := Encode(context.Background(), s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if enc.Blocks.Count != 1 || enc.Blocks.LastSamples != 100 || enc.Blocks.LastPaddedSize != 64 {
		t.Errorf("blocks = %+v; want 1 block of 100 samples, 64 bytes", enc.Blocks)
	}
	if len(enc.Data) != 64 {
		t.Errorf("data = %d bytes; want 64", len(enc.Data))
	}
	if len(enc.Seek) != 0 {
		t.Errorf("seek entries = %d; want 0", len(enc.Seek))
	}
	if enc.Looping || enc.LoopStart != 0 || enc.LoopPadding != 0 {
		t.Errorf("unexpected loop state %+v", enc)
	}
	assertRoundTrip(t, enc, s.Samples, 1)
}

func TestEncodeLoopPadding(t *testing.T) {
	const frames = 10000
	samples := testutil.Tone(2, 32000, frames, 300, 7000)
	s := pcm.New(2, 32000, samples)
	s.SetLoop(5000, 0)

	enc, err := Encode(context.Background(), s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// 5000 rounds up to the first block boundary.
	if enc.LoopStart != SamplesPerBlock || enc.LoopPadding != SamplesPerBlock-5000 {
		t.Fatalf("loop start/padding = %d/%d; want %d/%d", enc.LoopStart, enc.LoopPadding, SamplesPerBlock, SamplesPerBlock-5000)
	}
	if enc.LoopStart%SamplesPerBlock != 0 || enc.LoopStart < s.LoopStart {
		t.Errorf("loop start %d not block aligned or before requested %d", enc.LoopStart, s.LoopStart)
	}
	if enc.TotalSamples() != frames+enc.LoopPadding {
		t.Errorf("total samples = %d; want %d", enc.TotalSamples(), frames+enc.LoopPadding)
	}

	for c := range 2 {
		decoded := decodeChannel(enc, c)
		for i := range enc.LoopPadding {
			if decoded[i] != 0 {
				t.Fatalf("channel %d padding sample %d = %d; want silence", c, i, decoded[i])
			}
		}
	}

	padded := make([]int16, 2*enc.LoopPadding, 2*enc.TotalSamples())
	padded = append(padded, samples...)
	assertRoundTrip(t, enc, padded, 2)
}

func TestEncodeCutsAtLoopEnd(t *testing.T) {
	s := pcm.New(1, 22050, testutil.Tone(1, 22050, 4000, 440, 5000))
	s.SetLoop(0, 3000)

	enc, err := Encode(context.Background(), s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if enc.TotalSamples() != 3000 || enc.LoopPadding != 0 || enc.LoopStart != 0 {
		t.Errorf("total=%d padding=%d start=%d; want 3000/0/0", enc.TotalSamples(), enc.LoopPadding, enc.LoopStart)
	}
	info := enc.Channel[0]
	if info.LPS != info.PS || info.LYN1 != 0 || info.LYN2 != 0 {
		t.Errorf("loop at stream start should mirror initial state: %+v", info)
	}
}

func TestEncodeSeekTableAndLoopSnapshot(t *testing.T) {
	const frames = 2*SamplesPerBlock + 700
	samples := testutil.Tone(2, 32000, frames, 220, 9000)
	s := pcm.New(2, 32000, samples)
	s.SetLoop(SamplesPerBlock, 0)

	enc, err := Encode(context.Background(), s, WithWorkers(2))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if enc.LoopPadding != 0 || enc.LoopStart != SamplesPerBlock {
		t.Fatalf("aligned loop start was padded: %+v", enc)
	}
	if enc.Blocks.Count != 3 || len(enc.Seek) != 2*2 {
		t.Fatalf("blocks=%d seek=%d; want 3 blocks and 4 seek entries", enc.Blocks.Count, len(enc.Seek))
	}

	for c := range 2 {
		decoded := decodeChannel(enc, c)
		for b := range enc.Blocks.SeekEntries() {
			end := (b + 1) * SamplesPerBlock
			got := enc.Seek[b*enc.Channels+c]
			if got.YN1 != decoded[end-1] || got.YN2 != decoded[end-2] {
				t.Errorf("channel %d seek %d = %+v; want (%d, %d)", c, b, got, decoded[end-1], decoded[end-2])
			}
		}

		info := enc.Channel[c]
		if info.LYN1 != decoded[SamplesPerBlock-1] || info.LYN2 != decoded[SamplesPerBlock-2] {
			t.Errorf("channel %d loop history (%d, %d); want (%d, %d)",
				c, info.LYN1, info.LYN2, decoded[SamplesPerBlock-1], decoded[SamplesPerBlock-2])
		}
		if want := enc.ChannelData(c)[BytesPerBlock]; info.LPS != want {
			t.Errorf("channel %d LPS = %#x; want %#x", c, info.LPS, want)
		}
		if want := enc.ChannelData(c)[0]; info.PS != want {
			t.Errorf("channel %d PS = %#x; want %#x", c, info.PS, want)
		}
	}
}

func TestEncodeDeterministicAcrossWorkers(t *testing.T) {
	samples := testutil.Tone(4, 48000, SamplesPerBlock+333, 180, 8000)
	s := pcm.New(4, 48000, samples)

	a, err := Encode(context.Background(), s, WithWorkers(1))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := Encode(context.Background(), s, WithWorkers(8))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Error("data differs between sequential and parallel encodes")
	}
	for c := range a.Channel {
		if a.Channel[c] != b.Channel[c] {
			t.Errorf("channel %d info differs: %+v vs %+v", c, a.Channel[c], b.Channel[c])
		}
	}
	for i := range a.Seek {
		if a.Seek[i] != b.Seek[i] {
			t.Errorf("seek %d differs", i)
		}
	}
}

func TestEncodeProgress(t *testing.T) {
	const frames = SamplesPerBlock + 10
	s := pcm.New(2, 32000, testutil.Tone(2, 32000, frames, 440, 4000))
	rec := &progress.Recorder{}

	if _, err := Encode(context.Background(), s, WithProgress(rec)); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	ev := rec.Events()
	want := float64(frames * 2 * 3)
	if ev[0].Kind != "begin" || ev[0].Max != want {
		t.Fatalf("first event = %+v; want begin with max %v", ev[0], want)
	}
	last := 0.0
	for _, e := range ev[1 : len(ev)-1] {
		if e.Kind != "update" || e.Value < last {
			t.Fatalf("non-monotonic or unexpected event %+v after %v", e, last)
		}
		last = e.Value
	}
	if last != want {
		t.Errorf("final update = %v; want %v", last, want)
	}
	if ev[len(ev)-1].Kind != "finish" {
		t.Errorf("last event = %+v; want finish", ev[len(ev)-1])
	}
}

func TestEncodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &progress.Recorder{}
	s := pcm.New(1, 32000, testutil.Tone(1, 32000, 3*SamplesPerBlock, 440, 4000))
	enc, err := Encode(ctx, s, WithProgress(rec))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if enc != nil {
		t.Error("cancelled encode returned a stream")
	}
	ev := rec.Events()
	if ev[len(ev)-1].Kind != "cancel" {
		t.Errorf("last event = %+v; want cancel", ev[len(ev)-1])
	}
}

func TestEncodeInvalidInput(t *testing.T) {
	rec := &progress.Recorder{}
	_, err := Encode(context.Background(), pcm.New(0, 32000, make([]int16, 10)), WithProgress(rec))
	if !errors.Is(err, pcm.ErrInvalidInput) {
		t.Fatalf("err = %v; want ErrInvalidInput", err)
	}
	if len(rec.Events()) != 0 {
		t.Errorf("progress reported for invalid input: %+v", rec.Events())
	}
}

func decodeChannel(enc *Stream, c int) []int16 {
	return testutil.DecodeADPCM(enc.ChannelData(c), enc.Channel[c].Coefs.Flat(), 0, 0, enc.TotalSamples())
}

// assertRoundTrip checks every decoded sample against the interleaved input
// with the error bound implied by its frame's scale.
func assertRoundTrip(t *testing.T, enc *Stream, interleaved []int16, channels int) {
	t.Helper()
	for c := range channels {
		data := enc.ChannelData(c)
		decoded := decodeChannel(enc, c)
		input := testutil.Channel(interleaved, channels, c)
		for i := range input {
			scale := int(data[(i/14)*8] & 0xF)
			bound := 1<<scale + (1<<scale)/2 + 1
			d := int(decoded[i]) - int(input[i])
			if d < -bound || d > bound {
				t.Fatalf("channel %d sample %d: decoded %d, input %d, bound %d", c, i, decoded[i], input[i], bound)
			}
		}
	}
}
