// SPDX-License-Identifier: EPL-2.0

package filters

import (
	"math"
	"sync/atomic"

	"github.com/ik5/audmix/mix"
)

// DefaultListeningRange is the distance at which a positioned voice falls silent.
const DefaultListeningRange = 400

type point struct{ x, y float32 }

// Position places a voice on a plane around a listener at the origin. Distance
// fades the voice out along a quarter cosine reaching silence at the listening
// range; the horizontal offset pans it with equal power.
type Position struct {
	mix.BaseFilter
	at        atomic.Pointer[point]
	listening *atomicFloat
}

func NewPosition(x, y, listeningRange float32) *Position {
	if listeningRange <= 0 {
		listeningRange = DefaultListeningRange
	}

	f := &Position{listening: newAtomicFloat(listeningRange)}
	f.at.Store(&point{x, y})

	return f
}

func (f *Position) Position() (x, y float32) {
	p := f.at.Load()
	return p.x, p.y
}

func (f *Position) SetPosition(x, y float32) { f.at.Store(&point{x, y}) }

func (f *Position) ListeningRange() float32 { return f.listening.Load() }

// SetListeningRange sets the audible radius; non-positive values are ignored.
func (f *Position) SetListeningRange(r float32) {
	if r > 0 {
		f.listening.Store(r)
	}
}

func (f *Position) PostProcess(_ mix.Stage, buf []float32) {
	p := f.at.Load()
	if p.x == 0 && p.y == 0 {
		return
	}

	listening := float64(f.listening.Load())
	dist := math.Hypot(float64(p.x), float64(p.y))
	if dist > listening {
		clear(buf)
		return
	}

	volume := float32(math.Cos(dist * math.Pi / (2 * listening)))
	if volume != 1 {
		for i := range buf {
			buf[i] *= volume
		}
	}

	pan := float64(p.x) / listening
	if pan == 0 {
		return
	}

	norm := (1 - pan) / 2
	left, right := float32(math.Sqrt(norm)), float32(math.Sqrt(1-norm))
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i] *= left
		buf[i+1] *= right
	}
}
