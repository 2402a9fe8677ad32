package alsahal

import "encoding/binary"

// decodeS16 reads little-endian 16-bit samples into dst.
func decodeS16(dst []int16, src []byte) []int16 {
	n := len(src) / 2
	dst = dst[:n]

	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(src[2*i:]))
	}

	return dst
}

// encodeS16 writes samples to dst in the hardware sample format and returns the used bytes.
// 32-bit output shifts each sample into the high half; 8-bit output keeps the high byte.
func encodeS16(dst []byte, src []int16, f SampleFormat) []byte {
	dst = dst[:len(src)*f.Bytes()]

	switch f {
	case FormatS32:
		for i, s := range src {
			binary.LittleEndian.PutUint32(dst[4*i:], uint32(int32(s)<<16))
		}
	case FormatS8:
		for i, s := range src {
			dst[i] = byte(int8(s >> 8))
		}
	default:
		for i, s := range src {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(s))
		}
	}

	return dst
}

// sampleAt widens sample i of a raw hardware buffer to 16 bits.
func sampleAt(raw []byte, i int, f SampleFormat) int16 {
	switch f {
	case FormatS32:
		return int16(int32(binary.LittleEndian.Uint32(raw[4*i:])) >> 16)
	case FormatS8:
		return int16(int8(raw[i])) << 8
	default:
		return int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
}

// firstChannel widens a raw interleaved buffer and keeps only the first channel of each frame.
func firstChannel(dst []int16, raw []byte, channels int, f SampleFormat) []int16 {
	frames := len(raw) / (channels * f.Bytes())
	dst = dst[:frames]

	for i := range dst {
		dst[i] = sampleAt(raw, i*channels, f)
	}

	return dst
}

// dropRightChannel reduces interleaved stereo to mono in place by keeping the left sample.
func dropRightChannel(samples []int16) []int16 {
	frames := len(samples) / 2
	for i := 1; i < frames; i++ {
		samples[i] = samples[2*i]
	}

	return samples[:frames]
}
