package audio

import (
	"bytes"
	"io"
	"testing"

	"github.com/example/go-dspstream/internal/pcm"
	"github.com/example/go-dspstream/internal/testutil"
)

func TestEncodeWAV(t *testing.T) {
	samples := testutil.Tone(2, 32000, 1000, 440, 20000)
	// Full-scale edges, interleaved so both channels see them.
	copy(samples, []int16{-32768, -32767, -1, 0, 1, 12345, 32766, 32767})
	data, err := EncodeWAV(pcm.New(2, 32000, samples))
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if frames := testutil.AssertWAVFormat(t, data, 2, 32000, 16); frames != 1000 {
		t.Fatalf("frames = %d; want 1000", frames)
	}

	s, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i := range samples {
		if s.Samples[i] != samples[i] {
			t.Fatalf("sample %d = %d; want %d", i, s.Samples[i], samples[i])
		}
	}
}

func TestEncodeWAVKeepsLoop(t *testing.T) {
	s := pcm.New(1, 44100, testutil.Tone(1, 44100, 800, 200, 5000))
	s.SetLoop(120, 700)

	data, err := EncodeWAV(s)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if !bytes.Contains(data, []byte("smpl")) {
		t.Fatal("looping stream written without smpl chunk")
	}
	testutil.AssertWAVFormat(t, data, 1, 44100, 16)

	back, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !back.Looping || back.LoopStart != 120 || back.LoopEnd != 700 {
		t.Errorf("loop = %v [%d, %d); want true [120, 700)", back.Looping, back.LoopStart, back.LoopEnd)
	}
}

func TestEncodeWAVRejectsInvalidStream(t *testing.T) {
	if _, err := EncodeWAV(pcm.New(0, 44100, nil)); err == nil {
		t.Fatal("expected error for empty stream")
	}
}

func TestSeekBuffer(t *testing.T) {
	var buf bytes.Buffer
	sw := &seekBuffer{buf: &buf}

	_, _ = sw.Write([]byte("hello world"))
	if _, err := sw.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	_, _ = sw.Write([]byte("HELLO"))
	if _, err := sw.Seek(-5, io.SeekEnd); err != nil {
		t.Fatal(err)
	}
	_, _ = sw.Write([]byte("WORLD!!"))

	if got := buf.String(); got != "HELLO WORLD!!" {
		t.Errorf("buffer = %q", got)
	}
	if _, err := sw.Seek(-1, io.SeekStart); err == nil {
		t.Error("seek before start accepted")
	}
}
