package testutil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// WAVSpec describes a WAV fixture.
type WAVSpec struct {
	Channels   int
	SampleRate int
	BitDepth   int // 8 or 16

	// Loops are written as a smpl chunk after the data chunk when non-empty.
	Loops    [][2]int
	LoopType uint32
}

// BuildWAV builds a PCM WAV file from interleaved 16-bit samples. 8-bit
// fixtures store the high byte of each sample as unsigned.
func BuildWAV(spec WAVSpec, samples []int16) []byte {
	blockAlign := spec.Channels * spec.BitDepth / 8
	dataSize := len(samples) * spec.BitDepth / 8

	var data bytes.Buffer
	for _, s := range samples {
		if spec.BitDepth == 8 {
			data.WriteByte(byte(s>>8) + 0x80)
			continue
		}
		_ = binary.Write(&data, binary.LittleEndian, s)
	}
	if dataSize%2 != 0 {
		data.WriteByte(0)
	}

	var smpl bytes.Buffer
	if len(spec.Loops) > 0 {
		hdr := [9]uint32{}
		hdr[2] = uint32(1e9 / spec.SampleRate) // sample period in ns
		hdr[3] = 60                            // MIDI unity note
		hdr[7] = uint32(len(spec.Loops))
		_ = binary.Write(&smpl, binary.LittleEndian, hdr)
		for i, l := range spec.Loops {
			loop := [6]uint32{uint32(i), spec.LoopType, uint32(l[0]), uint32(l[1]), 0, 0}
			_ = binary.Write(&smpl, binary.LittleEndian, loop)
		}
	}

	var buf bytes.Buffer
	riffSize := 4 + (8 + 16) + (8 + data.Len())
	if smpl.Len() > 0 {
		riffSize += 8 + smpl.Len()
	}
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(riffSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(spec.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(spec.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(spec.SampleRate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(spec.BitDepth))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(data.Bytes())

	if smpl.Len() > 0 {
		buf.WriteString("smpl")
		_ = binary.Write(&buf, binary.LittleEndian, uint32(smpl.Len()))
		buf.Write(smpl.Bytes())
	}
	return buf.Bytes()
}

// AssertWAVFormat checks the RIFF framing and fmt fields of a PCM WAV file
// and returns the number of sample frames in its data chunk.
func AssertWAVFormat(tb testing.TB, data []byte, channels, sampleRate, bitDepth int) int {
	tb.Helper()

	if len(data) < 44 {
		tb.Fatalf("WAV data too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" {
		tb.Fatalf("WAV: missing RIFF header (got %q)", string(data[0:4]))
	}
	if string(data[8:12]) != "WAVE" {
		tb.Fatalf("WAV: missing WAVE marker (got %q)", string(data[8:12]))
	}
	if string(data[12:16]) != "fmt " {
		tb.Fatalf("WAV: missing fmt chunk (got %q)", string(data[12:16]))
	}

	if got := binary.LittleEndian.Uint16(data[20:22]); got != 1 {
		tb.Fatalf("WAV: expected PCM format (1), got %d", got)
	}
	if got := int(binary.LittleEndian.Uint16(data[22:24])); got != channels {
		tb.Fatalf("WAV: channels = %d, want %d", got, channels)
	}
	if got := int(binary.LittleEndian.Uint32(data[24:28])); got != sampleRate {
		tb.Fatalf("WAV: sample rate = %d, want %d", got, sampleRate)
	}
	if got := int(binary.LittleEndian.Uint16(data[34:36])); got != bitDepth {
		tb.Fatalf("WAV: bit depth = %d, want %d", got, bitDepth)
	}

	dataSize, err := findDataChunkSize(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}
	return int(dataSize) / (channels * bitDepth / 8)
}

// findDataChunkSize walks the WAV chunk list to locate the "data" sub-chunk
// and returns its size in bytes.
func findDataChunkSize(data []byte) (uint32, error) {
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		if id == "data" {
			return size, nil
		}

		offset += 8 + int(size)
		if size%2 != 0 {
			offset++
		}
	}

	return 0, errors.New("data chunk not found in WAV")
}
