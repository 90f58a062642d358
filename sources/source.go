// SPDX-License-Identifier: EPL-2.0

package sources

import (
	"sync/atomic"

	"github.com/ik5/audmix/audio"
)

// Source is the leaf of the mixing graph: it produces interleaved samples in the
// graph format and owns its playback state and loop region.
type Source interface {
	Format() audio.Format
	// Read fills dst and returns the number of samples written. It returns fewer
	// than len(dst) only at the end of the stream; when looping, the wrap to the
	// loop start happens inside the same call.
	Read(dst []float32) (int, error)

	State() audio.PlaybackState
	SetState(audio.PlaybackState)

	Looped() bool
	SetLooped(bool)
	// LoopStart and LoopEnd are sample offsets, -1 when unset.
	LoopStart() int64
	LoopEnd() int64

	Comments() map[string]string

	OnPlay()
	OnPause()
	OnResume()
	OnStop()

	Close() error
}

// Seekable sources support random access. Positions and lengths are in samples.
type Seekable interface {
	Source
	Position() int64
	SetPosition(pos int64) error
	// Length is the total number of samples, or -1 when unknown.
	Length() int64
}

// CanSeek reports whether src can move to any position now. Sources may
// implement Seekable yet decline at run time, as a Stream over a decoder
// without frame seeking does; they say so with a CanSeek method.
func CanSeek(src Source) (Seekable, bool) {
	s, ok := src.(Seekable)
	if !ok {
		return nil, false
	}
	if c, ok := src.(interface{ CanSeek() bool }); ok && !c.CanSeek() {
		return nil, false
	}

	return s, true
}

// Playback holds the state every source shares. Embed it to get the state, loop
// and hook methods of Source; the zero value is stopped, not looped, with no
// loop region.
type Playback struct {
	state  atomic.Int32
	looped atomic.Bool

	// stored plus one so the zero value reads as unset
	loopStart atomic.Int64
	loopEnd   atomic.Int64
	comments  map[string]string
}

func (p *Playback) State() audio.PlaybackState     { return audio.PlaybackState(p.state.Load()) }
func (p *Playback) SetState(s audio.PlaybackState) { p.state.Store(int32(s)) }
func (p *Playback) Looped() bool                   { return p.looped.Load() }
func (p *Playback) SetLooped(v bool)               { p.looped.Store(v) }
func (p *Playback) LoopStart() int64               { return p.loopStart.Load() - 1 }
func (p *Playback) LoopEnd() int64                 { return p.loopEnd.Load() - 1 }

// SetLoop sets the loop region; pass -1 to clear either bound.
func (p *Playback) SetLoop(start, end int64) {
	p.loopStart.Store(max(start, -1) + 1)
	p.loopEnd.Store(max(end, -1) + 1)
}

// HasLoop reports whether either loop bound is set.
func (p *Playback) HasLoop() bool { return p.LoopStart() >= 0 || p.LoopEnd() >= 0 }

// Comments are the tags read from the file. The map must not be modified.
func (p *Playback) Comments() map[string]string { return p.comments }

// SetComments replaces the tags; call it before the source is shared.
func (p *Playback) SetComments(c map[string]string) { p.comments = c }

func (p *Playback) OnPlay()   {}
func (p *Playback) OnPause()  {}
func (p *Playback) OnResume() {}
func (p *Playback) OnStop()   {}
