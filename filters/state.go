// SPDX-License-Identifier: EPL-2.0

package filters

import (
	"math"
	"sync/atomic"

	"github.com/ik5/audmix/internal/fairlock"
	"github.com/ik5/audmix/mix"
)

// voiceStates maps voices to a filter's per-voice state. The fair lock keeps
// the audio thread, which looks states up on every read, from starving Apply
// and Unapply.
type voiceStates[T any] struct {
	lock fairlock.Lock
	m    map[mix.VoiceID]T
}

func (s *voiceStates[T]) put(id mix.VoiceID, v T) {
	s.lock.Do(func() {
		if s.m == nil {
			s.m = make(map[mix.VoiceID]T)
		}
		s.m[id] = v
	})
}

func (s *voiceStates[T]) get(id mix.VoiceID) (v T, ok bool) {
	s.lock.Do(func() { v, ok = s.m[id] })
	return v, ok
}

func (s *voiceStates[T]) take(id mix.VoiceID) (v T, ok bool) {
	s.lock.Do(func() {
		v, ok = s.m[id]
		delete(s.m, id)
	})
	return v, ok
}

func (s *voiceStates[T]) len() (n int) {
	s.lock.Do(func() { n = len(s.m) })
	return n
}

// atomicFloat is a float32 readable from the audio thread while a parameter
// setter writes it.
type atomicFloat struct{ bits atomic.Uint32 }

func newAtomicFloat(v float32) *atomicFloat {
	f := &atomicFloat{}
	f.Store(v)
	return f
}

func (f *atomicFloat) Load() float32   { return math.Float32frombits(f.bits.Load()) }
func (f *atomicFloat) Store(v float32) { f.bits.Store(math.Float32bits(v)) }
