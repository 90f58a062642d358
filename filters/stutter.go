// SPDX-License-Identifier: EPL-2.0

package filters

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/edaniels/golog"
	"github.com/ik5/audmix/mix"
)

type stutterState struct {
	seeker mix.Seeker
	// window is touched only by the reading goroutine
	window []float32

	mu     sync.Mutex
	pos    int
	filled bool
}

func (st *stutterState) cursor() (int, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.pos, st.filled
}

func (st *stutterState) advance(n int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.pos += n
	if st.pos == len(st.window) {
		st.pos, st.filled = 0, true
	}
}

// Stutter captures the next Length of a voice and repeats it until the filter
// is removed. Removing it rewinds the voice to where the repeated window left
// off. Voices whose source cannot seek are passed through.
type Stutter struct {
	mix.BaseFilter
	length atomic.Int64
	states voiceStates[*stutterState]
	logger atomic.Pointer[golog.Logger]
}

func NewStutter(length time.Duration) *Stutter {
	f := &Stutter{}
	f.length.Store(int64(length))
	f.SetLogger(golog.Global().Named("stutter"))
	return f
}

// SetLogger sets where failed rewinds are reported.
func (f *Stutter) SetLogger(logger golog.Logger) { f.logger.Store(&logger) }

func (f *Stutter) Length() time.Duration { return time.Duration(f.length.Load()) }

// SetLength changes the window for voices the filter is attached to afterwards.
func (f *Stutter) SetLength(d time.Duration) { f.length.Store(int64(d)) }

func (f *Stutter) Apply(v *mix.Voice) {
	seeker, ok := v.Seeker()
	if !ok {
		return
	}

	format := v.Format()
	size := format.AlignDown(int64(f.Length().Seconds() * float64(format.SamplesPerSecond())))
	if size <= 0 {
		return
	}

	f.states.put(v.ID(), &stutterState{window: make([]float32, size), seeker: seeker})
}

func (f *Stutter) Unapply(v *mix.Voice) {
	st, ok := f.states.take(v.ID())
	if !ok {
		return
	}
	pos, filled := st.cursor()
	if !filled {
		return
	}

	left := int64(len(st.window) - pos)
	err := st.seeker.SetPosition(max(st.seeker.Position()-left, 0))
	if logger := f.logger.Load(); err != nil && logger != nil {
		(*logger).Warnw("stutter rewind failed", "voice", v.ID(), "error", err)
	}
}

func (f *Stutter) ModifyRead(s mix.Stage, dst []float32) (int, error) {
	st, ok := f.states.get(s.VoiceID())
	if !ok {
		return s.Read(dst)
	}

	copied := 0
	for copied < len(dst) {
		pos, filled := st.cursor()
		segment := st.window[pos:min(len(st.window), pos+len(dst)-copied)]

		if !filled {
			n, err := s.Read(segment)
			clear(segment[n:])
			if err != nil {
				copy(dst[copied:], segment[:n])
				st.advance(n)
				return copied + n, err
			}
		}

		copied += copy(dst[copied:], segment)
		st.advance(len(segment))
	}

	return copied, nil
}
