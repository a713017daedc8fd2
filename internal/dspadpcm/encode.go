package dspadpcm

import (
	"fmt"
	"math"
)

// roundBias is the rounding offset used when quantizing residuals: 0.4999999
// at single precision.
const roundBias = float64(float32(0.4999999))

// EncodeFrame encodes between 1 and 14 samples against coefs, starting from
// the history in st, and advances st to the reconstructed history after the
// frame. Unused residual slots of a short frame are zero.
//
// Every predictor is tried. For each, the scale starts at the smallest
// exponent that fits the open-loop residual and grows until no more than one
// quantisation step is clipped; the residuals are quantised closed loop so the
// history always matches what a decoder reconstructs. The predictor with the
// least squared reconstruction error wins, ties going to the lower index.
func EncodeFrame(st *State, samples []int16, coefs *Coefs) Frame {
	n := len(samples)
	if n == 0 || n > SamplesPerFrame {
		panic(fmt.Sprintf("dspadpcm: frame of %d samples", n))
	}

	var pcm [SamplesPerFrame + 2]int
	pcm[0], pcm[1] = int(st.YN2), int(st.YN1)
	for i, s := range samples {
		pcm[i+2] = int(s)
	}

	var (
		recon [NumPredictors][SamplesPerFrame + 2]int
		resid [NumPredictors][SamplesPerFrame]int
		scale [NumPredictors]int
		dist  [NumPredictors]float64
	)

	for p := range NumPredictors {
		c1, c2 := int(coefs[p][0]), int(coefs[p][1])
		recon[p][0], recon[p][1] = pcm[0], pcm[1]

		peak := 0
		for s := range n {
			pred := (pcm[s]*c2 + pcm[s+1]*c1) / 2048
			d := clamp16(pcm[s+2] - pred)
			if abs(d) > abs(peak) {
				peak = d
			}
		}

		sc := 0
		for sc <= 12 && (peak > 7 || peak < -8) {
			sc++
			peak /= 2
		}
		if sc <= 1 {
			sc = -1
		} else {
			sc -= 2
		}

		for {
			sc++
			dist[p] = 0
			clipped := 0
			step := float64(int(1) << sc)

			for s := range n {
				pred := recon[p][s]*c2 + recon[p][s+1]*c1
				diff := pcm[s+2]<<11 - pred

				var q int
				if diff > 0 {
					q = int(float64(diff)/step/2048 + roundBias)
				} else {
					q = int(float64(diff)/step/2048 - roundBias)
				}
				if q < -8 {
					clipped = max(clipped, -8-q)
					q = -8
				} else if q > 7 {
					clipped = max(clipped, q-7)
					q = 7
				}
				resid[p][s] = q

				r := clamp16((pred + (q*(1<<sc))<<11 + 1024) >> 11)
				recon[p][s+2] = r
				e := float64(pcm[s+2] - r)
				dist[p] += e * e
			}

			for x := clipped + 8; x > 256; x >>= 1 {
				sc++
				if sc >= 12 {
					sc = 11
				}
			}
			if sc >= 12 || clipped <= 1 {
				break
			}
		}
		scale[p] = sc
	}

	best, bestDist := 0, math.MaxFloat64
	for p, d := range dist {
		if d < bestDist {
			best, bestDist = p, d
		}
	}

	var f Frame
	f[0] = byte(best<<4 | scale[best]&0xF)
	for i := range SamplesPerFrame / 2 {
		hi, lo := resid[best][2*i], resid[best][2*i+1]
		f[i+1] = byte(hi<<4 | lo&0xF)
	}

	st.YN1 = int16(recon[best][n+1])
	st.YN2 = int16(recon[best][n])
	st.PS = f[0]
	return f
}

// EncodeSamples encodes samples frame by frame into dst, which must hold
// EncodedSize(len(samples)) bytes, continuing from st.
func EncodeSamples(st *State, samples []int16, coefs *Coefs, dst []byte) {
	for i, off := 0, 0; i < len(samples); i, off = i+SamplesPerFrame, off+BytesPerFrame {
		f := EncodeFrame(st, samples[i:min(i+SamplesPerFrame, len(samples))], coefs)
		copy(dst[off:off+BytesPerFrame], f[:])
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
