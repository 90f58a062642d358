// SPDX-License-Identifier: EPL-2.0

package utils

// Clamp limits x to [-1, 1].
func Clamp(x float32) float32 {
	switch {
	case x > 1:
		return 1
	case x < -1:
		return -1
	default:
		return x
	}
}

// FullScale returns the magnitude of the most negative value of a signed PCM sample of
// the given bit depth. Unknown depths are treated as 16-bit.
func FullScale(bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return 128
	case 24:
		return 8388608
	case 32:
		return 2147483648
	default:
		return 32768
	}
}

// Float32ToInt16 converts a float sample in [-1, 1] to 16-bit PCM, clamping out of range input.
func Float32ToInt16(x float32) int16 {
	return int16(Float32ToInt(x, 16))
}

// Float32ToInt converts a float sample to signed PCM of the given bit depth.
// -1 maps to the most negative value and 1 to the most positive one.
func Float32ToInt(x float32, bitDepth int) int {
	v := float64(Clamp(x))
	scale := float64(FullScale(bitDepth))
	if v < 0 {
		return int(v * scale)
	}

	return int(v * (scale - 1))
}

// IntToFloat32 converts signed PCM of the given bit depth to a float sample.
func IntToFloat32(v int, bitDepth int) float32 {
	return float32(v) / FullScale(bitDepth)
}
