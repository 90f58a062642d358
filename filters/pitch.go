// SPDX-License-Identifier: EPL-2.0

package filters

import (
	"github.com/ik5/audmix/dsp"
	"github.com/ik5/audmix/mix"
)

func newShifter(v *mix.Voice) *dsp.StereoPitchShifter {
	return dsp.NewStereoPitchShifter(dsp.DefaultFFTSize, dsp.DefaultOversampling, float64(v.Format().SampleRate))
}

// PitchShift raises or lowers pitch without changing duration. A factor of 2
// is one octave up, 0.5 one octave down. The phase vocoder adds a fixed latency
// of dsp.DefaultFFTSize minus one hop.
type PitchShift struct {
	mix.BaseFilter
	pitch    *atomicFloat
	shifters voiceStates[*dsp.StereoPitchShifter]
}

func NewPitchShift(pitch float32) *PitchShift {
	return &PitchShift{pitch: newAtomicFloat(pitch)}
}

func (f *PitchShift) Pitch() float32 { return f.pitch.Load() }

// SetPitch sets the factor; non-positive values disable shifting.
func (f *PitchShift) SetPitch(pitch float32) { f.pitch.Store(pitch) }

func (f *PitchShift) Apply(v *mix.Voice)   { f.shifters.put(v.ID(), newShifter(v)) }
func (f *PitchShift) Unapply(v *mix.Voice) { f.shifters.take(v.ID()) }

func (f *PitchShift) PostProcess(s mix.Stage, buf []float32) {
	pitch := f.pitch.Load()
	if pitch == 1 || pitch <= 0 {
		return
	}
	if sh, ok := f.shifters.get(s.VoiceID()); ok {
		sh.Process(float64(pitch), buf)
	}
}

// TempoChange changes duration without changing pitch: it resamples like
// SpeedChange, then shifts the pitch back by 1/tempo.
type TempoChange struct {
	mix.BaseFilter
	tempo      *atomicFloat
	resamplers voiceStates[*dsp.LinearResampler]
	shifters   voiceStates[*dsp.StereoPitchShifter]
}

func NewTempoChange(tempo float32) *TempoChange {
	return &TempoChange{tempo: newAtomicFloat(max(tempo, 0))}
}

func (f *TempoChange) Priority() mix.Priority { return mix.ApplyLast }

func (f *TempoChange) Tempo() float32 { return f.tempo.Load() }

// SetTempo sets the duration multiplier; negative values are treated as 0.
func (f *TempoChange) SetTempo(tempo float32) { f.tempo.Store(max(tempo, 0)) }

func (f *TempoChange) Apply(v *mix.Voice) {
	f.resamplers.put(v.ID(), dsp.NewLinearResampler(v.Format().Channels))
	f.shifters.put(v.ID(), newShifter(v))
}

func (f *TempoChange) Unapply(v *mix.Voice) {
	f.resamplers.take(v.ID())
	f.shifters.take(v.ID())
}

func (f *TempoChange) ModifyRead(s mix.Stage, dst []float32) (int, error) {
	return resampleRead(&f.resamplers, f.tempo.Load(), s, dst)
}

func (f *TempoChange) PostProcess(s mix.Stage, buf []float32) {
	tempo := f.tempo.Load()
	if tempo == 1 || tempo == 0 {
		return
	}
	if sh, ok := f.shifters.get(s.VoiceID()); ok {
		sh.Process(1/float64(tempo), buf)
	}
}
