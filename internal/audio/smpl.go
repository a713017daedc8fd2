package audio

import (
	"encoding/binary"
)

const (
	smplHeaderSize = 36
	smplLoopSize   = 24
	midiUnityNote  = 60
)

// appendSmpl appends a smpl chunk with one forward loop over frames
// [start, end) to a complete RIFF WAVE file and fixes up the RIFF size.
func appendSmpl(file []byte, sampleRate, start, end int) []byte {
	le := binary.LittleEndian
	size := smplHeaderSize + smplLoopSize

	out := make([]byte, len(file), len(file)+8+size)
	copy(out, file)
	out = append(out, "smpl"...)
	out = le.AppendUint32(out, uint32(size))

	var hdr [smplHeaderSize]byte
	le.PutUint32(hdr[8:], uint32(1e9/sampleRate)) // sample period, ns
	le.PutUint32(hdr[12:], midiUnityNote)
	le.PutUint32(hdr[28:], 1) // loop count
	out = append(out, hdr[:]...)

	var loop [smplLoopSize]byte
	le.PutUint32(loop[8:], uint32(start))
	le.PutUint32(loop[12:], uint32(end))
	out = append(out, loop[:]...)

	le.PutUint32(out[4:], uint32(len(out)-8))
	return out
}
