package dspadpcm

import "math"

// Table design works on order-2 linear prediction. Vectors and matrices are
// indexed from 1 like the textbook formulation; element 0 of a vector is the
// implicit leading 1 of the prediction polynomial.
type (
	vec3 [3]float64
	mat3 [3]vec3
)

const (
	// Windows with less energy than this carry no useful prediction data.
	energyThreshold = 10.0

	splitDelta  = 0.01
	splitRounds = 3
	refineIters = 2

	// float64 machine epsilon
	epsilon = 2.220446049250313e-16
)

// Correlate designs a predictor table for one channel of 16-bit PCM.
//
// Every 14-sample window is solved for its own order-2 predictor; the
// averaged predictor is then split three times and refined against the
// window predictors, giving eight predictors. Inputs shorter than two samples,
// or with no window above the energy threshold, give an all-zero table.
func Correlate(samples []int16) Coefs {
	var coefs Coefs
	if len(samples) < 2 {
		return coefs
	}

	records := make([]vec3, 0, FrameCount(len(samples)))
	var hist [2 * SamplesPerFrame]int16
	for start := 0; start < len(samples); start += SamplesPerFrame {
		copy(hist[:SamplesPerFrame], hist[SamplesPerFrame:])
		n := copy(hist[SamplesPerFrame:], samples[start:min(start+SamplesPerFrame, len(samples))])
		clear(hist[SamplesPerFrame+n:])

		var vec vec3
		acVect(&hist, &vec)
		if math.Abs(vec[0]) <= energyThreshold {
			continue
		}

		var mat mat3
		var indx [3]int
		acMat(&hist, &mat)
		if luDecomp(&mat, &indx) {
			continue
		}
		luBackSub(&mat, &indx, &vec)
		vec[0] = 1.0
		if kfroma(&vec) {
			continue
		}
		records = append(records, afromk(vec))
	}
	if len(records) == 0 {
		return coefs
	}

	avg := vec3{1.0, 0, 0}
	for _, rec := range records {
		r := rfroma(rec)
		avg[1] += r[1]
		avg[2] += r[2]
	}
	avg[1] /= float64(len(records))
	avg[2] /= float64(len(records))

	var table [NumPredictors]vec3
	table[0] = durbin(avg)

	n := 1
	for range splitRounds {
		for i := range n {
			table[n+i] = vec3{table[i][0], table[i][1] - splitDelta, table[i][2]}
		}
		n <<= 1
		refine(&table, n, records)
	}

	for i, a := range table {
		coefs[i][0] = quantize(-a[1] * 2048.0)
		coefs[i][1] = quantize(-a[2] * 2048.0)
	}
	return coefs
}

// acVect computes the negated autocorrelation of the current window (the
// second half of hist) against itself shifted back by 0..2 samples.
func acVect(hist *[2 * SamplesPerFrame]int16, out *vec3) {
	for i := 0; i <= 2; i++ {
		out[i] = 0
		for j := range SamplesPerFrame {
			out[i] -= float64(hist[SamplesPerFrame+j-i]) * float64(hist[SamplesPerFrame+j])
		}
	}
}

func acMat(hist *[2 * SamplesPerFrame]int16, out *mat3) {
	for i := 1; i <= 2; i++ {
		for j := 1; j <= 2; j++ {
			out[i][j] = 0
			for k := range SamplesPerFrame {
				out[i][j] += float64(hist[SamplesPerFrame+k-i]) * float64(hist[SamplesPerFrame+k-j])
			}
		}
	}
}

// luDecomp factors a in place with partial pivoting. It reports true when the
// system is singular or too badly conditioned to solve.
func luDecomp(a *mat3, indx *[3]int) bool {
	var scale [3]float64
	for i := 1; i <= 2; i++ {
		big := math.Max(math.Abs(a[i][1]), math.Abs(a[i][2]))
		if big < epsilon {
			return true
		}
		scale[i] = 1.0 / big
	}

	imax := 0
	for j := 1; j <= 2; j++ {
		for i := 1; i < j; i++ {
			sum := a[i][j]
			for k := 1; k < i; k++ {
				sum -= a[i][k] * a[k][j]
			}
			a[i][j] = sum
		}

		big := 0.0
		for i := j; i <= 2; i++ {
			sum := a[i][j]
			for k := 1; k < j; k++ {
				sum -= a[i][k] * a[k][j]
			}
			a[i][j] = sum
			if dum := scale[i] * math.Abs(sum); dum >= big {
				big = dum
				imax = i
			}
		}

		if imax != j {
			a[imax], a[j] = a[j], a[imax]
			scale[imax] = scale[j]
		}
		indx[j] = imax
		if a[j][j] == 0.0 {
			return true
		}
		if j != 2 {
			dum := 1.0 / a[j][j]
			for i := j + 1; i <= 2; i++ {
				a[i][j] *= dum
			}
		}
	}

	lo, hi := 1e10, 0.0
	for i := 1; i <= 2; i++ {
		d := math.Abs(a[i][i])
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo/hi < 1e-10
}

func luBackSub(a *mat3, indx *[3]int, b *vec3) {
	ii := 0
	for i := 1; i <= 2; i++ {
		ip := indx[i]
		sum := b[ip]
		b[ip] = b[i]
		if ii != 0 {
			for j := ii; j <= i-1; j++ {
				sum -= a[i][j] * b[j]
			}
		} else if sum != 0.0 {
			ii = i
		}
		b[i] = sum
	}

	for i := 2; i > 0; i-- {
		sum := b[i]
		for j := i + 1; j <= 2; j++ {
			sum -= a[i][j] * b[j]
		}
		b[i] = sum / a[i][i]
	}
}

// kfroma converts predictor coefficients to reflection coefficients in place.
// It reports true when the resulting filter would be unstable.
func kfroma(v *vec3) bool {
	k2 := v[2]
	div := 1.0 - k2*k2
	if div == 0.0 {
		return true
	}
	v0 := (v[0] - k2*k2) / div
	v1 := (v[1] - v[1]*k2) / div
	v[0], v[1] = v0, v1
	return math.Abs(v1) > 1.0
}

// afromk clamps reflection coefficients into the stable range and converts
// them back to predictor coefficients.
func afromk(k vec3) vec3 {
	for i := 1; i <= 2; i++ {
		if k[i] >= 1.0 {
			k[i] = 0.9999999999
		} else if k[i] <= -1.0 {
			k[i] = -0.9999999999
		}
	}
	return vec3{1.0, k[2]*k[1] + k[1], k[2]}
}

// rfroma returns the normalised autocorrelation implied by predictor a.
func rfroma(a vec3) vec3 {
	m21, m22 := -a[1], -a[2]
	m11 := (m22*m21 + m21) / (1.0 - m22*m22)

	var r vec3
	r[0] = 1.0
	r[1] = m11 * r[0]
	r[2] = m21*r[1] + m22*r[0]
	return r
}

// durbin runs Levinson-Durbin on autocorrelation r and returns the stabilised
// predictor.
func durbin(r vec3) vec3 {
	var a, k vec3
	a[0] = 1.0
	errv := r[0]
	for i := 1; i <= 2; i++ {
		sum := 0.0
		for j := 1; j < i; j++ {
			sum += a[j] * r[i-j]
		}
		if errv > 0.0 {
			a[i] = -(sum + r[i]) / errv
		} else {
			a[i] = 0.0
		}
		k[i] = a[i]
		for j := 1; j < i; j++ {
			a[j] += a[i] * a[i-j]
		}
		errv *= 1.0 - a[i]*a[i]
	}
	return afromk(k)
}

// modelDist measures how well predictor a fits the signal that produced the
// window predictor rec.
func modelDist(a, rec vec3) float64 {
	r := rfroma(rec)
	ac0 := a[0]*a[0] + a[1]*a[1] + a[2]*a[2]
	ac1 := a[0]*a[1] + a[1]*a[2]
	ac2 := a[0] * a[2]
	return ac0 + 2.0*r[1]*ac1 + 2.0*r[2]*ac2
}

// refine assigns every window to its closest predictor and re-derives each of
// the first n predictors from the windows assigned to it.
func refine(table *[NumPredictors]vec3, n int, records []vec3) {
	for range refineIters {
		var (
			counts [NumPredictors]int
			sums   [NumPredictors]vec3
		)
		for _, rec := range records {
			best, bestDist := 0, 1e30
			for i := range n {
				if d := modelDist(table[i], rec); d < bestDist {
					best, bestDist = i, d
				}
			}
			counts[best]++
			r := rfroma(rec)
			for j := range r {
				sums[best][j] += r[j]
			}
		}

		for i := range n {
			if counts[i] > 0 {
				for j := range sums[i] {
					sums[i][j] /= float64(counts[i])
				}
			}
		}
		for i := range n {
			table[i] = durbin(sums[i])
		}
	}
}

func quantize(d float64) int16 {
	if d > 0.0 {
		if d > 32767.0 {
			return 32767
		}
		return int16(math.Round(d))
	}
	if d < -32768.0 {
		return -32768
	}
	return int16(math.Round(d))
}
