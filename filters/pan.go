// SPDX-License-Identifier: EPL-2.0

package filters

import "github.com/ik5/audmix/mix"

// Pan moves a stereo signal between the speakers. -1 is hard left, 1 hard right.
// Panning folds the far channel into the near one instead of only attenuating it,
// so a hard pan keeps both source channels audible.
type Pan struct {
	mix.BaseFilter
	pan *atomicFloat
}

func NewPan(pan float32) *Pan {
	return &Pan{pan: newAtomicFloat(clampPan(pan))}
}

func (f *Pan) Pan() float32 { return f.pan.Load() }

// SetPan sets the position, clamped to [-1, 1].
func (f *Pan) SetPan(p float32) { f.pan.Store(clampPan(p)) }

func (f *Pan) PostProcess(_ mix.Stage, buf []float32) {
	p := f.pan.Load()
	if p == 0 {
		return
	}

	ll, lr, rl, rr := panMatrix(p)
	for i := 0; i+1 < len(buf); i += 2 {
		l, r := buf[i], buf[i+1]
		buf[i] = l*ll + r*lr
		buf[i+1] = l*rl + r*rr
	}
}

// panMatrix returns the gains of left-to-left, right-to-left, left-to-right and
// right-to-right for pan position p.
func panMatrix(p float32) (ll, lr, rl, rr float32) {
	if p < 0 {
		return 0.5*p + 1, -0.5 * p, 0, p + 1
	}
	return 1 - p, 0, 0.5 * p, 1 - 0.5*p
}

func clampPan(p float32) float32 { return min(max(p, -1), 1) }
