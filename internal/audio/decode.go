// Package audio converts between WAV files and in-memory PCM streams.
package audio

import (
	"bytes"
	"errors"
	"fmt"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/example/go-dspstream/internal/pcm"
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

var (
	// ErrInvalidWAV is returned for input that is not a readable RIFF WAVE file.
	ErrInvalidWAV = errors.New("invalid WAV file")

	// ErrFormatMismatch is returned for WAV files that are not 8- or 16-bit
	// integer PCM.
	ErrFormatMismatch = errors.New("WAV format mismatch")

	// ErrUnsupportedLoop is returned for smpl chunks with several loops or a
	// loop that does not play forward.
	ErrUnsupportedLoop = errors.New("unsupported WAV loop")
)

// Load decodes WAV bytes into a validated stream. 8-bit samples are widened
// to 16 bits. The loop of a smpl chunk, if present, becomes the stream loop.
func Load(data []byte) (*pcm.Stream, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidWAV)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return nil, ErrInvalidWAV
	}

	if dec.WavAudioFormat != formatPCM && dec.WavAudioFormat != formatExtensible {
		return nil, fmt.Errorf("%w: only uncompressed PCM is supported, format tag %#x", ErrFormatMismatch, dec.WavAudioFormat)
	}
	if dec.BitDepth != 8 && dec.BitDepth != 16 {
		return nil, fmt.Errorf("%w: only 8-bit and 16-bit files are supported, got %d-bit", ErrFormatMismatch, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	s := pcm.New(int(dec.NumChans), int(dec.SampleRate), toInt16(buf))

	loop, err := readLoop(data)
	if err != nil {
		return nil, err
	}
	if loop != nil {
		s.SetLoop(int(loop.Start), int(loop.End))
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// toInt16 converts decoded samples to 16 bits, dropping a trailing partial
// frame.
func toInt16(buf *goaudio.IntBuffer) []int16 {
	ch := buf.Format.NumChannels
	n := len(buf.Data) - len(buf.Data)%ch
	out := make([]int16, n)
	if buf.SourceBitDepth == 8 {
		for i, v := range buf.Data[:n] {
			out[i] = int16((v - 0x80) << 8)
		}
		return out
	}
	for i, v := range buf.Data[:n] {
		out[i] = int16(v)
	}
	return out
}

// readLoop returns the single forward loop of the file's smpl chunk, or nil.
// Metadata parsing consumes the whole reader, so it uses its own decoder.
func readLoop(data []byte) (*wav.SampleLoop, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadMetadata()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading metadata: %v", ErrInvalidWAV, err)
	}
	if dec.Metadata == nil || dec.Metadata.SamplerInfo == nil {
		return nil, nil
	}

	info := dec.Metadata.SamplerInfo
	switch {
	case len(info.Loops) == 0:
		return nil, nil
	case len(info.Loops) > 1:
		return nil, fmt.Errorf("%w: %d loops, at most one is supported", ErrUnsupportedLoop, len(info.Loops))
	case info.Loops[0].Type != 0:
		return nil, fmt.Errorf("%w: loop type %d, only forward loops are supported", ErrUnsupportedLoop, info.Loops[0].Type)
	}
	return info.Loops[0], nil
}
