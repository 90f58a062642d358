// SPDX-License-Identifier: EPL-2.0

package dsp

import "math"

// BiQuad is a second order IIR section in direct form I. Coefficients follow
// the RBJ audio EQ cookbook.
type BiQuad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func NewLowPass(sampleRate, cutoff, q float64) *BiQuad {
	b := &BiQuad{}
	b.SetLowPass(sampleRate, cutoff, q)
	return b
}

func NewHighPass(sampleRate, cutoff, q float64) *BiQuad {
	b := &BiQuad{}
	b.SetHighPass(sampleRate, cutoff, q)
	return b
}

func NewAllPass(sampleRate, freq, q float64) *BiQuad {
	b := &BiQuad{}
	b.SetAllPass(sampleRate, freq, q)
	return b
}

func cookbook(sampleRate, freq, q float64) (cosw, alpha float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	return math.Cos(w0), math.Sin(w0) / (2 * q)
}

// setCoefficients normalizes by a0. The delay line is kept so a retune does not click.
func (b *BiQuad) setCoefficients(a0, a1, a2, b0, b1, b2 float64) {
	b.b0 = b0 / a0
	b.b1 = b1 / a0
	b.b2 = b2 / a0
	b.a1 = a1 / a0
	b.a2 = a2 / a0
}

func (b *BiQuad) SetLowPass(sampleRate, cutoff, q float64) {
	cosw, alpha := cookbook(sampleRate, cutoff, q)
	b.setCoefficients(1+alpha, -2*cosw, 1-alpha, (1-cosw)/2, 1-cosw, (1-cosw)/2)
}

func (b *BiQuad) SetHighPass(sampleRate, cutoff, q float64) {
	cosw, alpha := cookbook(sampleRate, cutoff, q)
	b.setCoefficients(1+alpha, -2*cosw, 1-alpha, (1+cosw)/2, -(1 + cosw), (1+cosw)/2)
}

func (b *BiQuad) SetAllPass(sampleRate, freq, q float64) {
	cosw, alpha := cookbook(sampleRate, freq, q)
	b.setCoefficients(1+alpha, -2*cosw, 1-alpha, 1-alpha, -2*cosw, 1+alpha)
}

// Transform filters one sample.
func (b *BiQuad) Transform(in float32) float32 {
	x := float64(in)
	y := b.b0*x + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2

	b.x2, b.x1 = b.x1, x
	b.y2, b.y1 = b.y1, y

	return float32(y)
}

// Reset clears the delay line.
func (b *BiQuad) Reset() {
	b.x1, b.x2, b.y1, b.y2 = 0, 0, 0, 0
}

// StereoBiQuad runs an independent section per channel of interleaved stereo audio.
type StereoBiQuad [2]BiQuad

// Process filters buf in place.
func (s *StereoBiQuad) Process(buf []float32) {
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i] = s[0].Transform(buf[i])
		buf[i+1] = s[1].Transform(buf[i+1])
	}
}

func (s *StereoBiQuad) SetLowPass(sampleRate, cutoff, q float64) {
	s[0].SetLowPass(sampleRate, cutoff, q)
	s[1].SetLowPass(sampleRate, cutoff, q)
}

func (s *StereoBiQuad) SetHighPass(sampleRate, cutoff, q float64) {
	s[0].SetHighPass(sampleRate, cutoff, q)
	s[1].SetHighPass(sampleRate, cutoff, q)
}

func (s *StereoBiQuad) SetAllPass(sampleRate, freq, q float64) {
	s[0].SetAllPass(sampleRate, freq, q)
	s[1].SetAllPass(sampleRate, freq, q)
}
