// Package dspadpcm implements the 4-bit DSP-ADPCM codec used by GameCube,
// Wii and 3DS stream containers: predictor table design and closed-loop
// frame encoding.
//
// A frame packs 14 samples into 8 bytes. The first byte holds the predictor
// index in its high nibble and the scale exponent in its low nibble; the
// remaining seven bytes hold 14 signed residual nibbles, high nibble first.
package dspadpcm

const (
	SamplesPerFrame = 14
	BytesPerFrame   = 8
	NumPredictors   = 8
)

// Coefs is a channel's predictor table: eight (a1, a2) pairs in 2^11 fixed
// point. a1 weights the most recent sample.
type Coefs [NumPredictors][2]int16

// Flat returns the table in container order: a1 and a2 of predictor 0, then
// predictor 1, and so on.
func (c *Coefs) Flat() [2 * NumPredictors]int16 {
	var out [2 * NumPredictors]int16
	for i, pair := range c {
		out[2*i] = pair[0]
		out[2*i+1] = pair[1]
	}
	return out
}

// Frame is one encoded 8-byte unit.
type Frame [BytesPerFrame]byte

// Header returns the predictor/scale byte.
func (f Frame) Header() uint8 { return f[0] }

// Nibble returns residual i (0..13) sign extended.
func (f Frame) Nibble(i int) int {
	b := f[1+i/2]
	if i%2 == 0 {
		return int(int8(b) >> 4)
	}
	return int(int8(b<<4) >> 4)
}

// State is the decoder history carried between frames of one channel. It
// starts zeroed at the head of the stream.
type State struct {
	YN1 int16 // last reconstructed sample
	YN2 int16 // sample before YN1
	PS  uint8 // header byte of the last frame
}

// Predictor returns the predictor index of the last frame.
func (s State) Predictor() int { return int(s.PS >> 4) }

// Scale returns the scale exponent of the last frame.
func (s State) Scale() int { return int(s.PS & 0xF) }

// FrameCount returns the number of frames needed for n samples.
func FrameCount(n int) int {
	return (n + SamplesPerFrame - 1) / SamplesPerFrame
}

// EncodedSize returns the unpadded encoded size of n samples in bytes.
func EncodedSize(n int) int {
	return FrameCount(n) * BytesPerFrame
}

func clamp16(v int) int {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}
