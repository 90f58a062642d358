// SPDX-License-Identifier: EPL-2.0

package mix

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ik5/audmix/audio"
)

// VoiceID is a process-wide unique voice identifier, assigned at creation.
type VoiceID uint64

var lastVoiceID atomic.Uint64

// Provider is anything that produces graph samples on demand.
type Provider interface {
	Format() audio.Format
	// Read fills dst with interleaved samples and returns how many were written.
	// A short count with a nil error means the stream has ended.
	Read(dst []float32) (int, error)
}

// Terminal is the concrete end of a voice: where its samples come from and where
// its playback state lives.
type Terminal interface {
	Format() audio.Format
	ReadSource(dst []float32) (int, error)
	State() audio.PlaybackState
	SetState(audio.PlaybackState)
}

// Seeker is implemented by terminals whose source supports random access.
// Positions are in samples.
type Seeker interface {
	Position() int64
	SetPosition(pos int64) error
}

// Voice is a playable node with an ordered filter chain ending in its Terminal.
type Voice struct {
	id   VoiceID
	term Terminal
	base *volumeFilter

	mu        sync.Mutex
	chain     atomic.Pointer[[]entry]
	nextIndex uint64
}

// NewVoice wraps term. The built-in volume filter starts at 1.
func NewVoice(term Terminal) *Voice {
	v := &Voice{
		id:        VoiceID(lastVoiceID.Add(1)),
		term:      term,
		base:      newVolumeFilter(),
		nextIndex: 1,
	}
	chain := []entry{{filter: v.base, priority: ApplyFirst, index: 0}}
	v.chain.Store(&chain)

	return v
}

func (v *Voice) ID() VoiceID                    { return v.id }
func (v *Voice) Format() audio.Format           { return v.term.Format() }
func (v *Voice) State() audio.PlaybackState     { return v.term.State() }
func (v *Voice) SetState(s audio.PlaybackState) { v.term.SetState(s) }

// Volume is the linear gain of the built-in volume filter.
func (v *Voice) Volume() float32 { return v.base.get() }

// SetVolume sets the linear gain; negative values are treated as 0.
func (v *Voice) SetVolume(volume float32) { v.base.set(volume) }

// Seeker returns the terminal's seekable source, if any.
func (v *Voice) Seeker() (Seeker, bool) {
	if sp, ok := v.term.(interface{ Seeker() (Seeker, bool) }); ok {
		return sp.Seeker()
	}
	s, ok := v.term.(Seeker)
	return s, ok
}

// Read dispatches on the playback state. A paused voice yields silence for the
// whole request so mixers do not mistake it for an ended one.
func (v *Voice) Read(dst []float32) (int, error) {
	switch v.term.State() {
	case audio.Playing:
		chain := *v.chain.Load()
		top := len(chain) - 1
		return ReadFilter(chain[top].filter, Stage{voice: v, chain: chain, index: top}, dst)
	case audio.Paused:
		clear(dst)
		return len(dst), nil
	default:
		return 0, nil
	}
}

// AddFilter attaches f, calling f.Apply before the first read can reach it.
func (v *Voice) AddFilter(f Filter) error {
	if f == nil {
		return ErrNilFilter
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	old := *v.chain.Load()
	for _, e := range old {
		if e.filter == f {
			return ErrFilterAttached
		}
	}

	e := entry{filter: f, priority: f.Priority(), index: v.nextIndex}
	v.nextIndex++

	pos := sort.Search(len(old), func(i int) bool { return e.less(old[i]) })
	next := make([]entry, 0, len(old)+1)
	next = append(next, old[:pos]...)
	next = append(next, e)
	next = append(next, old[pos:]...)

	f.Apply(v)
	v.chain.Store(&next)

	return nil
}

// RemoveFilter detaches f and calls f.Unapply.
func (v *Voice) RemoveFilter(f Filter) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	old := *v.chain.Load()
	for i, e := range old {
		if i == 0 || e.filter != f {
			continue
		}

		next := make([]entry, 0, len(old)-1)
		next = append(next, old[:i]...)
		next = append(next, old[i+1:]...)
		v.chain.Store(&next)
		f.Unapply(v)

		return nil
	}

	return ErrFilterNotAttached
}

// ClearFilters detaches every filter except the built-in volume.
func (v *Voice) ClearFilters() {
	v.mu.Lock()
	defer v.mu.Unlock()

	old := *v.chain.Load()
	next := []entry{old[0]}
	v.chain.Store(&next)

	for _, e := range old[1:] {
		e.filter.Unapply(v)
	}
}

// Filters lists attached filters in chain order, without the built-in volume.
func (v *Voice) Filters() []Filter {
	chain := *v.chain.Load()
	out := make([]Filter, 0, len(chain)-1)
	for _, e := range chain[1:] {
		out = append(out, e.filter)
	}

	return out
}

// HasFilter reports whether f is attached.
func (v *Voice) HasFilter(f Filter) bool {
	for _, e := range *v.chain.Load() {
		if e.filter == f {
			return true
		}
	}
	return false
}

type volumeFilter struct {
	BaseFilter
	bits atomic.Uint32
}

func newVolumeFilter() *volumeFilter {
	f := &volumeFilter{}
	f.set(1)
	return f
}

func (f *volumeFilter) Priority() Priority { return ApplyFirst }

func (f *volumeFilter) get() float32 { return math.Float32frombits(f.bits.Load()) }

func (f *volumeFilter) set(volume float32) {
	f.bits.Store(math.Float32bits(max(volume, 0)))
}

func (f *volumeFilter) PostProcess(_ Stage, buf []float32) {
	volume := f.get()
	if volume == 1 {
		return
	}
	for i := range buf {
		buf[i] *= volume
	}
}
