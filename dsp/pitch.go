// SPDX-License-Identifier: EPL-2.0

package dsp

import "math"

const (
	// DefaultFFTSize is the analysis frame length of the pitch shifter.
	DefaultFFTSize = 4096
	// DefaultOversampling is the number of overlapping frames per FFT window.
	DefaultOversampling = 4
)

// PitchShifter shifts the pitch of a mono signal without changing its duration
// using a short-time Fourier transform phase vocoder. Output lags input by
// fftSize-fftSize/osamp samples.
type PitchShifter struct {
	fftSize    int
	osamp      int
	sampleRate float64

	inFIFO    []float64
	outFIFO   []float64
	workspace []float64
	lastPhase []float64
	sumPhase  []float64
	accum     []float64
	anaFreq   []float64
	anaMagn   []float64
	synFreq   []float64
	synMagn   []float64
	window    []float64
	rover     int
}

// NewPitchShifter builds a shifter. fftSize must be a power of two.
func NewPitchShifter(fftSize, osamp int, sampleRate float64) *PitchShifter {
	half := fftSize/2 + 1
	p := &PitchShifter{
		fftSize:    fftSize,
		osamp:      osamp,
		sampleRate: sampleRate,
		inFIFO:     make([]float64, fftSize),
		outFIFO:    make([]float64, fftSize),
		workspace:  make([]float64, 2*fftSize),
		lastPhase:  make([]float64, half),
		sumPhase:   make([]float64, half),
		accum:      make([]float64, 2*fftSize),
		anaFreq:    make([]float64, fftSize),
		anaMagn:    make([]float64, fftSize),
		synFreq:    make([]float64, fftSize),
		synMagn:    make([]float64, fftSize),
		window:     make([]float64, fftSize),
	}
	for k := range p.window {
		p.window[k] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(k)/float64(fftSize))
	}

	return p
}

// Latency is the delay, in samples, introduced by the shifter.
func (p *PitchShifter) Latency() int {
	return p.fftSize - p.fftSize/p.osamp
}

// Process shifts data in place by the pitch factor (2 = one octave up).
func (p *PitchShifter) Process(pitch float64, data []float32) {
	step := p.fftSize / p.osamp
	latency := p.fftSize - step
	if p.rover == 0 {
		p.rover = latency
	}

	for i, v := range data {
		p.inFIFO[p.rover] = float64(v)
		data[i] = float32(p.outFIFO[p.rover-latency])
		p.rover++

		if p.rover >= p.fftSize {
			p.rover = latency
			p.frame(pitch, step, latency)
		}
	}
}

func (p *PitchShifter) frame(pitch float64, step, latency int) {
	n := p.fftSize
	half := n / 2
	freqPerBin := p.sampleRate / float64(n)
	expected := 2 * math.Pi * float64(step) / float64(n)
	osamp := float64(p.osamp)
	ws := p.workspace

	for k := range n {
		ws[2*k] = p.inFIFO[k] * p.window[k]
		ws[2*k+1] = 0
	}
	fft(ws, n, -1)

	// analysis: true frequency of every bin from the phase advance
	for k := 0; k <= half; k++ {
		re, im := ws[2*k], ws[2*k+1]
		magn := 2 * math.Hypot(re, im)
		phase := math.Atan2(im, re)

		d := phase - p.lastPhase[k]
		p.lastPhase[k] = phase
		d -= float64(k) * expected

		qpd := int(d / math.Pi)
		if qpd >= 0 {
			qpd += qpd & 1
		} else {
			qpd -= qpd & 1
		}
		d -= math.Pi * float64(qpd)
		d = osamp * d / (2 * math.Pi)

		p.anaMagn[k] = magn
		p.anaFreq[k] = float64(k)*freqPerBin + d*freqPerBin
	}

	clear(p.synMagn)
	clear(p.synFreq)
	for k := 0; k <= half; k++ {
		idx := int(float64(k) * pitch)
		if idx <= half {
			p.synMagn[idx] += p.anaMagn[k]
			p.synFreq[idx] = p.anaFreq[k] * pitch
		}
	}

	// synthesis
	for k := 0; k <= half; k++ {
		d := p.synFreq[k] - float64(k)*freqPerBin
		d /= freqPerBin
		d = 2 * math.Pi * d / osamp
		d += float64(k) * expected

		p.sumPhase[k] += d
		ws[2*k] = p.synMagn[k] * math.Cos(p.sumPhase[k])
		ws[2*k+1] = p.synMagn[k] * math.Sin(p.sumPhase[k])
	}
	for k := n + 2; k < 2*n; k++ {
		ws[k] = 0
	}
	fft(ws, n, 1)

	scale := 2 / (float64(half) * osamp)
	for k := range n {
		p.accum[k] += p.window[k] * ws[2*k] * scale
	}
	copy(p.outFIFO[:step], p.accum[:step])
	copy(p.accum, p.accum[step:step+n])
	copy(p.inFIFO[:latency], p.inFIFO[step:step+latency])
}

// fft is an in-place radix-2 transform over interleaved complex values.
// sign is -1 for the forward and 1 for the inverse transform (unscaled).
func fft(buf []float64, size int, sign float64) {
	for i := 2; i < 2*size-2; i += 2 {
		j := 0
		for bit := 2; bit < 2*size; bit <<= 1 {
			if i&bit != 0 {
				j++
			}
			j <<= 1
		}
		if i < j {
			buf[i], buf[j] = buf[j], buf[i]
			buf[i+1], buf[j+1] = buf[j+1], buf[i+1]
		}
	}

	stages := int(math.Log2(float64(size)) + 0.5)
	le := 2
	for range stages {
		le <<= 1
		le2 := le >> 1
		ur, ui := 1.0, 0.0
		arg := math.Pi / float64(le2>>1)
		wr, wi := math.Cos(arg), sign*math.Sin(arg)

		for j := 0; j < le2; j += 2 {
			for i := j; i < 2*size; i += le {
				p2r, p2i := i+le2, i+le2+1
				tr := buf[p2r]*ur - buf[p2i]*ui
				ti := buf[p2r]*ui + buf[p2i]*ur
				buf[p2r] = buf[i] - tr
				buf[p2i] = buf[i+1] - ti
				buf[i] += tr
				buf[i+1] += ti
			}
			ur, ui = ur*wr-ui*wi, ur*wi+ui*wr
		}
	}
}

// StereoPitchShifter runs one shifter per channel of interleaved stereo audio.
type StereoPitchShifter struct {
	left, right *PitchShifter
	l, r        []float32
}

func NewStereoPitchShifter(fftSize, osamp int, sampleRate float64) *StereoPitchShifter {
	return &StereoPitchShifter{
		left:  NewPitchShifter(fftSize, osamp, sampleRate),
		right: NewPitchShifter(fftSize, osamp, sampleRate),
	}
}

// Process shifts interleaved stereo buf in place and runs the limiter over the result.
func (s *StereoPitchShifter) Process(pitch float64, buf []float32) {
	frames := len(buf) / 2
	if cap(s.l) < frames {
		s.l = make([]float32, frames)
		s.r = make([]float32, frames)
	}
	l, r := s.l[:frames], s.r[:frames]
	for i := range frames {
		l[i], r[i] = buf[2*i], buf[2*i+1]
	}

	s.left.Process(pitch, l)
	s.right.Process(pitch, r)

	for i := range frames {
		buf[2*i], buf[2*i+1] = Limit(l[i]), Limit(r[i])
	}
}
