// SPDX-License-Identifier: EPL-2.0

package mix

import (
	"sync"
	"sync/atomic"

	"github.com/ik5/audmix/audio"
)

// constInput yields value for remaining samples, then ends.
type constInput struct {
	format    audio.Format
	value     float32
	remaining int
	err       error
	state     atomic.Int32
	closed    atomic.Bool
}

func newConstInput(value float32, samples int) *constInput {
	in := &constInput{format: audio.Standard, value: value, remaining: samples}
	in.state.Store(int32(audio.Playing))
	return in
}

func (c *constInput) Format() audio.Format           { return c.format }
func (c *constInput) State() audio.PlaybackState     { return audio.PlaybackState(c.state.Load()) }
func (c *constInput) SetState(s audio.PlaybackState) { c.state.Store(int32(s)) }
func (c *constInput) Close() error                   { c.closed.Store(true); return nil }

func (c *constInput) Read(dst []float32) (int, error) {
	if c.State() != audio.Playing {
		return 0, nil
	}
	n := min(len(dst), c.remaining)
	for i := range n {
		dst[i] = c.value
	}
	c.remaining -= n
	if n < len(dst) && c.err != nil {
		return n, c.err
	}
	return n, nil
}

// sliceTerminal serves fixed samples to a voice.
type sliceTerminal struct {
	data  []float32
	pos   int
	state audio.PlaybackState
}

func (s *sliceTerminal) Format() audio.Format            { return audio.Standard }
func (s *sliceTerminal) State() audio.PlaybackState      { return s.state }
func (s *sliceTerminal) SetState(st audio.PlaybackState) { s.state = st }

func (s *sliceTerminal) ReadSource(dst []float32) (int, error) {
	n := copy(dst, s.data[s.pos:])
	s.pos += n
	return n, nil
}

// recordFilter logs its name on every PostProcess and counts lifecycle calls.
type recordFilter struct {
	BaseFilter
	name     string
	priority Priority
	log      *[]string
	mu       sync.Mutex
	applied  map[VoiceID]int
	removed  map[VoiceID]int
}

func newRecordFilter(name string, p Priority, log *[]string) *recordFilter {
	return &recordFilter{
		name:     name,
		priority: p,
		log:      log,
		applied:  map[VoiceID]int{},
		removed:  map[VoiceID]int{},
	}
}

func (f *recordFilter) Priority() Priority { return f.priority }

func (f *recordFilter) PostProcess(Stage, []float32) {
	if f.log != nil {
		*f.log = append(*f.log, f.name)
	}
}

func (f *recordFilter) Apply(v *Voice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied[v.ID()]++
}

func (f *recordFilter) Unapply(v *Voice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed[v.ID()]++
}
