// SPDX-License-Identifier: EPL-2.0

package sources

import (
	"sync"
	"sync/atomic"

	"github.com/ik5/audmix/audio"
)

// DefaultBufferSeconds is the read-ahead used when none is given.
const DefaultBufferSeconds = 5

const fillChunk = 8192

// Buffered keeps a ring of decoded samples ahead of the playback position so
// that slow decoding happens off the audio thread. State, loop and tag methods
// are those of the wrapped source. A Buffered filled only by its reader works
// without a Worker; with one, refills happen in the background.
type Buffered struct {
	Source

	ring  *ring
	chunk []float32

	fillMu sync.Mutex
	ended  atomic.Bool

	errMu   sync.Mutex
	fillErr error

	worker *Worker
	gen    uint64
}

var _ Seekable = (*Buffered)(nil)

// NewBuffered wraps src with seconds of read-ahead; non-positive seconds means
// DefaultBufferSeconds.
func NewBuffered(src Source, seconds float64) *Buffered {
	if seconds <= 0 {
		seconds = DefaultBufferSeconds
	}

	format := src.Format()
	capacity := int(format.AlignDown(int64(seconds * float64(format.SamplesPerSecond()))))
	capacity = max(capacity, fillChunk)

	return &Buffered{
		Source: src,
		ring:   newRing(capacity),
		chunk:  make([]float32, fillChunk),
	}
}

// Buffered reports how many samples are waiting in the ring.
func (b *Buffered) Buffered() int { return b.ring.Len() }

func (b *Buffered) Read(dst []float32) (int, error) {
	if err := b.takeErr(); err != nil {
		return 0, err
	}

	n := 0
	for n < len(dst) {
		if b.ended.Load() {
			// the final write lands before ended is set
			n += b.ring.Read(dst[n:])
			break
		}

		m := b.ring.Read(dst[n:])
		n += m
		if n == len(dst) {
			break
		}

		if err := b.fill(); err != nil {
			return n, err
		}
		if m == 0 && b.ring.Len() == 0 && !b.ended.Load() {
			break
		}
	}

	b.wake()

	return n, nil
}

// Position is the playback position of the reader, which trails the wrapped
// source by the buffered amount.
func (b *Buffered) Position() int64 {
	s, ok := b.Source.(Seekable)
	if !ok {
		return 0
	}

	b.fillMu.Lock()
	defer b.fillMu.Unlock()

	return max(s.Position()-int64(b.ring.Len()), 0)
}

// SetPosition seeks the wrapped source, discards the buffered samples and
// refills synchronously.
func (b *Buffered) SetPosition(pos int64) error {
	s, ok := CanSeek(b.Source)
	if !ok {
		return audio.ErrNotSeekable
	}

	b.fillMu.Lock()
	defer b.fillMu.Unlock()

	if err := s.SetPosition(pos); err != nil {
		return err
	}
	b.ring.Reset()
	b.ended.Store(false)
	b.takeErr()

	return b.fillLocked()
}

// CanSeek reports whether the wrapped source can seek.
func (b *Buffered) CanSeek() bool {
	_, ok := CanSeek(b.Source)
	return ok
}

func (b *Buffered) Length() int64 {
	if s, ok := b.Source.(Seekable); ok {
		return s.Length()
	}
	return -1
}

func (b *Buffered) Close() error {
	if b.worker != nil {
		b.worker.remove(b)
	}
	return b.Source.Close()
}

func (b *Buffered) fill() error {
	b.fillMu.Lock()
	defer b.fillMu.Unlock()

	return b.fillLocked()
}

func (b *Buffered) fillLocked() error {
	format := b.Source.Format()

	for !b.ended.Load() {
		free := int(format.AlignDown(int64(b.ring.Free())))
		if free == 0 {
			return nil
		}

		chunk := b.chunk[:min(free, len(b.chunk))]
		n, err := b.Source.Read(chunk)
		b.ring.Write(chunk[:n])
		if err != nil {
			return err
		}
		if n < len(chunk) {
			b.ended.Store(true)
		}
	}

	return nil
}

func (b *Buffered) setErr(err error) {
	b.errMu.Lock()
	if b.fillErr == nil {
		b.fillErr = err
	}
	b.errMu.Unlock()
}

func (b *Buffered) takeErr() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()

	err := b.fillErr
	b.fillErr = nil

	return err
}

func (b *Buffered) wake() {
	if b.worker != nil && b.worker.Generation() == b.gen {
		b.worker.Wake()
	}
}
