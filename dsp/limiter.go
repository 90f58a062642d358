// SPDX-License-Identifier: EPL-2.0

package dsp

import "math"

const (
	limitThreshold = 0.95
	limitRange     = 1 - limitThreshold
)

// Limit softly compresses samples above the threshold so they approach but
// never exceed full scale.
func Limit(x float32) float32 {
	switch {
	case x > limitThreshold:
		r := (float64(x) - limitThreshold) / limitRange
		return float32(math.Atan(r)/(math.Pi/2)*limitRange + limitThreshold)
	case x < -limitThreshold:
		r := -(float64(x) + limitThreshold) / limitRange
		return -float32(math.Atan(r)/(math.Pi/2)*limitRange + limitThreshold)
	default:
		return x
	}
}

// LimitBuffer applies Limit to every sample of buf.
func LimitBuffer(buf []float32) {
	for i, v := range buf {
		buf[i] = Limit(v)
	}
}
