// SPDX-License-Identifier: EPL-2.0

package filters

import "github.com/ik5/audmix/mix"

// Volume scales every sample by a linear gain. A gain of exactly 1 leaves the
// samples untouched.
type Volume struct {
	mix.BaseFilter
	volume *atomicFloat
}

func NewVolume(volume float32) *Volume {
	return &Volume{volume: newAtomicFloat(max(volume, 0))}
}

func (f *Volume) Volume() float32 { return f.volume.Load() }

// SetVolume sets the gain; negative values are treated as 0.
func (f *Volume) SetVolume(v float32) { f.volume.Store(max(v, 0)) }

func (f *Volume) PostProcess(_ mix.Stage, buf []float32) {
	volume := f.volume.Load()
	if volume == 1 {
		return
	}
	for i := range buf {
		buf[i] *= volume
	}
}
