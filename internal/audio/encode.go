package audio

import (
	"bytes"
	"fmt"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"

	"github.com/example/go-dspstream/internal/pcm"
)

const bitDepth = 16

// EncodeWAV encodes s as a 16-bit PCM WAV byte slice. A looping stream also
// gets a smpl chunk describing its loop, so Load returns the same loop.
func EncodeWAV(s *pcm.Stream) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	// wav.NewEncoder requires an io.WriteSeeker; bytes.Buffer is not one.
	sw := &seekBuffer{buf: &buf}

	enc := wav.NewEncoder(sw, s.SampleRate, bitDepth, s.Channels, formatPCM)

	data := make([]float32, len(s.Samples))
	for i, v := range s.Samples {
		data[i] = float32(v) / 32768
	}
	pcmBuf := &goaudio.Float32Buffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: s.SampleRate, NumChannels: s.Channels},
		SourceBitDepth: bitDepth,
	}

	if err := enc.Write(pcmBuf); err != nil {
		return nil, fmt.Errorf("writing PCM: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}

	out := buf.Bytes()
	if s.Looping {
		out = appendSmpl(out, s.SampleRate, s.LoopStart, s.LoopEnd)
	}
	return out, nil
}

// seekBuffer wraps a bytes.Buffer to satisfy io.WriteSeeker.
type seekBuffer struct {
	buf *bytes.Buffer
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	// If writing at the end, just append.
	if s.pos == s.buf.Len() {
		n, err := s.buf.Write(p)
		s.pos += n
		return n, err
	}
	// Writing in the middle: overwrite existing bytes.
	data := s.buf.Bytes()
	n := copy(data[s.pos:], p)
	if n < len(p) {
		data = append(data, p[n:]...)
		s.buf.Reset()
		s.buf.Write(data)
		n = len(p)
	}
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int
	switch whence {
	case 0: // io.SeekStart
		newPos = int(offset)
	case 1: // io.SeekCurrent
		newPos = s.pos + int(offset)
	case 2: // io.SeekEnd
		newPos = s.buf.Len() + int(offset)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("seek before start")
	}
	s.pos = newPos
	return int64(newPos), nil
}
