package audio

import (
	"encoding/binary"
	"math"
)

// AppendPCM16 appends samples to dst as signed 16-bit little-endian PCM.
// Samples are clamped to [-1, 1] and scaled by 32767.
func AppendPCM16(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(toInt16(s)))
	}
	return dst
}

// PCM16 converts samples to signed 16-bit little-endian PCM.
func PCM16(samples []float32) []byte {
	return AppendPCM16(make([]byte, 0, len(samples)*2), samples)
}

func toInt16(s float32) int16 {
	switch {
	case math.IsNaN(float64(s)):
		return 0
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}
	return int16(s * 32767)
}

// DecodePCM16 converts signed 16-bit little-endian PCM back to float32.
// A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32767
	}
	return out
}
