// SPDX-License-Identifier: EPL-2.0

package filters

import (
	"sync/atomic"

	"github.com/ik5/audmix/dsp"
	"github.com/ik5/audmix/mix"
)

const (
	DefaultLowPassCutoff  = 500
	DefaultHighPassCutoff = 100
	DefaultQ              = 0.7
)

type passKind int

const (
	lowPass passKind = iota
	highPass
)

type passParams struct {
	cutoff float64
	q      float64
}

type passState struct {
	bq     dsp.StereoBiQuad
	params *passParams
	rate   int
}

// passFilter is the shared body of LowPass and HighPass: one stereo biquad per
// voice, re-parameterized on that voice's next read after a setter runs.
type passFilter struct {
	mix.BaseFilter
	kind   passKind
	params atomic.Pointer[passParams]
	states voiceStates[*passState]
}

func (f *passFilter) init(kind passKind, cutoff, q float64) {
	if q <= 0 {
		q = DefaultQ
	}
	f.kind = kind
	f.params.Store(&passParams{cutoff: cutoff, q: q})
}

func (f *passFilter) Cutoff() float64 { return f.params.Load().cutoff }
func (f *passFilter) Q() float64      { return f.params.Load().q }

// SetCutoff sets the corner frequency in Hz.
func (f *passFilter) SetCutoff(hz float64) {
	f.params.Store(&passParams{cutoff: hz, q: f.Q()})
}

// SetQ sets the resonance; non-positive values fall back to DefaultQ.
func (f *passFilter) SetQ(q float64) {
	if q <= 0 {
		q = DefaultQ
	}
	f.params.Store(&passParams{cutoff: f.Cutoff(), q: q})
}

func (f *passFilter) Apply(v *mix.Voice)   { f.states.put(v.ID(), &passState{}) }
func (f *passFilter) Unapply(v *mix.Voice) { f.states.take(v.ID()) }

func (f *passFilter) PostProcess(s mix.Stage, buf []float32) {
	params := f.params.Load()
	rate := s.Format().SampleRate

	switch f.kind {
	case lowPass:
		if params.cutoff >= float64(rate)/2 {
			return
		}
	case highPass:
		if params.cutoff <= 0 {
			return
		}
	}

	st, ok := f.states.get(s.VoiceID())
	if !ok {
		return
	}

	if st.params != params || st.rate != rate {
		if f.kind == lowPass {
			st.bq.SetLowPass(float64(rate), params.cutoff, params.q)
		} else {
			st.bq.SetHighPass(float64(rate), params.cutoff, params.q)
		}
		st.params, st.rate = params, rate
	}

	st.bq.Process(buf)
}

// LowPass attenuates content above the cutoff. Cutoffs at or above the Nyquist
// frequency disable it.
type LowPass struct{ passFilter }

// NewLowPass returns a low-pass at DefaultLowPassCutoff with DefaultQ.
func NewLowPass() *LowPass { return NewLowPassAt(DefaultLowPassCutoff, DefaultQ) }

func NewLowPassAt(cutoff, q float64) *LowPass {
	f := &LowPass{}
	f.init(lowPass, cutoff, q)
	return f
}

// HighPass attenuates content below the cutoff. A cutoff of 0 or less disables it.
type HighPass struct{ passFilter }

// NewHighPass returns a high-pass at DefaultHighPassCutoff with DefaultQ.
func NewHighPass() *HighPass { return NewHighPassAt(DefaultHighPassCutoff, DefaultQ) }

func NewHighPassAt(cutoff, q float64) *HighPass {
	f := &HighPass{}
	f.init(highPass, cutoff, q)
	return f
}
