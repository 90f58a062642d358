// SPDX-License-Identifier: EPL-2.0

package filters

import (
	"github.com/ik5/audmix/dsp"
	"github.com/ik5/audmix/mix"
)

// SpeedChange plays a voice faster or slower, shifting its pitch with it. It
// consumes upstream samples at speed times the rate it produces them, so it runs
// last in the chain.
type SpeedChange struct {
	mix.BaseFilter
	speed      *atomicFloat
	resamplers voiceStates[*dsp.LinearResampler]
}

func NewSpeedChange(speed float32) *SpeedChange {
	return &SpeedChange{speed: newAtomicFloat(max(speed, 0))}
}

func (f *SpeedChange) Priority() mix.Priority { return mix.ApplyLast }

func (f *SpeedChange) Speed() float32 { return f.speed.Load() }

// SetSpeed sets the playback rate multiplier; negative values are treated as 0.
func (f *SpeedChange) SetSpeed(speed float32) { f.speed.Store(max(speed, 0)) }

func (f *SpeedChange) Apply(v *mix.Voice) {
	f.resamplers.put(v.ID(), dsp.NewLinearResampler(v.Format().Channels))
}

func (f *SpeedChange) Unapply(v *mix.Voice) { f.resamplers.take(v.ID()) }

func (f *SpeedChange) ModifyRead(s mix.Stage, dst []float32) (int, error) {
	return resampleRead(&f.resamplers, f.speed.Load(), s, dst)
}

// resampleRead reads dst through the voice's resampler at rate. Rate 1 bypasses
// the resampler and rate 0 holds the voice in silence.
func resampleRead(states *voiceStates[*dsp.LinearResampler], rate float32, s mix.Stage, dst []float32) (int, error) {
	rs, ok := states.get(s.VoiceID())

	switch {
	case !ok:
		return s.Read(dst)
	case rate == 1:
		rs.Reset()
		return s.Read(dst)
	case rate == 0:
		clear(dst)
		return len(dst), nil
	}

	return rs.Resample(dst, float64(rate), s.Read)
}
