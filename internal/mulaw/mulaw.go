// Package mulaw decodes G.711 mu-law audio, the 8 kHz telephony encoding
// carried by Twilio media streams, into 16-bit linear PCM.
package mulaw

import "math"

const bias = 0x84

// DecodeSample expands one mu-law byte to a linear PCM sample.
func DecodeSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F

	magnitude := ((int32(mantissa)<<3 + bias) << exponent) - bias
	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// Decode expands a mu-law buffer to linear PCM samples.
func Decode(data []byte) []int16 {
	samples := make([]int16, len(data))
	for i, b := range data {
		samples[i] = DecodeSample(b)
	}
	return samples
}

// DecodeToPCM expands a mu-law buffer to 16-bit little-endian PCM bytes,
// ready for a WAV container.
func DecodeToPCM(data []byte) []byte {
	out := make([]byte, len(data)*2)
	for i, s := range Decode(data) {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// RMS returns the root-mean-square energy of a mu-law buffer in linear PCM
// units. Zero-length input has zero energy.
func RMS(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, s := range Decode(data) {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(data)))
}
