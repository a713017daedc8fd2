package testutil

// DecodeADPCM is a reference DSP-ADPCM decoder. It decodes n samples from
// consecutive 8-byte frames in data using the flat 16-entry coefficient table
// and the starting history (yn1, yn2).
func DecodeADPCM(data []byte, coefs [16]int16, yn1, yn2 int16, n int) []int16 {
	out := make([]int16, 0, n)
	h1, h2 := int(yn1), int(yn2)
	for off := 0; len(out) < n; off += 8 {
		header := data[off]
		scale := 1 << (header & 0xF)
		pred := int(header >> 4)
		c1, c2 := int(coefs[2*pred]), int(coefs[2*pred+1])

		for i := 0; i < 14 && len(out) < n; i++ {
			b := data[off+1+i/2]
			var nib int
			if i%2 == 0 {
				nib = int(int8(b) >> 4)
			} else {
				nib = int(int8(b<<4) >> 4)
			}
			s := (c1*h1 + c2*h2 + (nib*scale)<<11 + 1024) >> 11
			s = max(-32768, min(32767, s))
			out = append(out, int16(s))
			h2, h1 = h1, s
		}
	}
	return out
}
