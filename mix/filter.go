// SPDX-License-Identifier: EPL-2.0

package mix

import (
	"fmt"

	"github.com/ik5/audmix/audio"
)

// Priority orders filters inside a voice's chain. Lower priorities run closer to
// the source.
type Priority int

const (
	ApplyFirst Priority = iota - 1
	None
	ApplyLast
)

func (p Priority) String() string {
	switch p {
	case ApplyFirst:
		return "ApplyFirst"
	case None:
		return "None"
	case ApplyLast:
		return "ApplyLast"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// Filter is one stage of a voice's processing chain.
//
// One Filter value may be attached to many voices at once; anything that must
// not be shared belongs in per-voice state created by Apply and released by
// Unapply. Filters are compared by identity, so implementations should be
// pointer types.
type Filter interface {
	// Priority is fixed for the lifetime of the filter.
	Priority() Priority
	// ModifyRead produces samples into dst, normally by reading from s.
	ModifyRead(s Stage, dst []float32) (int, error)
	// PostProcess transforms the samples ModifyRead produced, in place.
	PostProcess(s Stage, buf []float32)
	// Apply is called once when the filter is attached to v.
	Apply(v *Voice)
	// Unapply is called once when the filter is detached from v.
	Unapply(v *Voice)
}

// BaseFilter provides pass-through defaults. Embed it and override what the
// filter needs.
type BaseFilter struct{}

func (BaseFilter) Priority() Priority { return None }

func (BaseFilter) ModifyRead(s Stage, dst []float32) (int, error) { return s.Read(dst) }

func (BaseFilter) PostProcess(Stage, []float32) {}
func (BaseFilter) Apply(*Voice)                 {}
func (BaseFilter) Unapply(*Voice)               {}

// ReadFilter runs f over dst: ModifyRead, then PostProcess on what was produced.
func ReadFilter(f Filter, s Stage, dst []float32) (int, error) {
	n, err := f.ModifyRead(s, dst)
	n = min(max(n, 0), len(dst))
	if n > 0 {
		f.PostProcess(s, dst[:n])
	}

	return n, err
}

// Stage links a running filter to the rest of its voice's chain.
type Stage struct {
	voice *Voice
	chain []entry
	index int
}

// Voice is the voice being read.
func (s Stage) Voice() *Voice { return s.voice }

// VoiceID identifies the voice being read; filters key per-voice state on it.
func (s Stage) VoiceID() VoiceID { return s.voice.id }

// Format of the voice being read.
func (s Stage) Format() audio.Format { return s.voice.Format() }

// Read pulls from the previous link: the filter below this one, or the voice's
// raw source for the first link.
func (s Stage) Read(dst []float32) (int, error) {
	if s.index <= 0 {
		return s.voice.term.ReadSource(dst)
	}

	up := Stage{voice: s.voice, chain: s.chain, index: s.index - 1}
	return ReadFilter(s.chain[up.index].filter, up, dst)
}

type entry struct {
	filter   Filter
	priority Priority
	index    uint64
}

func (e entry) less(o entry) bool {
	if e.priority != o.priority {
		return e.priority < o.priority
	}
	return e.index < o.index
}
