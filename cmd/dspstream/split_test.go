package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-dspstream/internal/audio"
	"github.com/example/go-dspstream/internal/pcm"
	"github.com/example/go-dspstream/internal/testutil"
)

func TestSplitStream(t *testing.T) {
	s := pcm.New(2, 22050, testutil.Tone(2, 22050, 3000, 300, 5000))
	s.SetLoop(1000, 2500)
	dir := filepath.Join(t.TempDir(), "parts")

	written, err := splitStream(s, dir, "song")
	if err != nil {
		t.Fatalf("splitStream: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("written = %v; want 2 files", written)
	}

	pre := loadWAV(t, filepath.Join(dir, "song_preloop.wav"))
	if pre.Frames() != 1000 || pre.Looping {
		t.Errorf("preloop: %d frames looping=%v; want 1000, false", pre.Frames(), pre.Looping)
	}
	loop := loadWAV(t, filepath.Join(dir, "song_loop.wav"))
	if loop.Frames() != 1500 || !loop.Looping || loop.LoopStart != 0 || loop.LoopEnd != 1500 {
		t.Errorf("loop: %d frames [%d, %d) looping=%v", loop.Frames(), loop.LoopStart, loop.LoopEnd, loop.Looping)
	}
}

func TestSplitStream_LoopAtStartWritesOneFile(t *testing.T) {
	s := pcm.New(1, 8000, testutil.Tone(1, 8000, 400, 200, 3000))
	s.SetLoop(0, 0)

	written, err := splitStream(s, t.TempDir(), "x")
	if err != nil {
		t.Fatalf("splitStream: %v", err)
	}
	if len(written) != 1 || filepath.Base(written[0]) != "x_loop.wav" {
		t.Errorf("written = %v; want only x_loop.wav", written)
	}
}

func TestSplitStream_NoLoop(t *testing.T) {
	s := pcm.New(1, 8000, make([]int16, 100))
	if _, err := splitStream(s, t.TempDir(), "x"); !errors.Is(err, errNoLoop) {
		t.Errorf("err = %v; want errNoLoop", err)
	}
}

func TestSplitCmd(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir, testutil.WAVSpec{Channels: 1, SampleRate: 16000, BitDepth: 16}, 2000)
	out := filepath.Join(dir, "out")

	if err := runCLI(t, "split", in, out, "--loop=500-1500"); err != nil {
		t.Fatalf("split: %v", err)
	}
	for _, name := range []string{"in_preloop.wav", "in_loop.wav"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	if err := runCLI(t, "split", in, out); !errors.Is(err, errNoLoop) {
		t.Errorf("split without loop: err = %v; want errNoLoop", err)
	}
}

func TestBaseName(t *testing.T) {
	if got := baseName("/a/b/track.01.wav"); got != "track.01" {
		t.Errorf("baseName = %q; want track.01", got)
	}
}

func loadWAV(t *testing.T, path string) *pcm.Stream {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	s, err := audio.Load(data)
	if err != nil {
		t.Fatalf("Load %s: %v", path, err)
	}
	return s
}
