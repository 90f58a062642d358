// SPDX-License-Identifier: EPL-2.0

package output

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/mix"
	"github.com/pkg/errors"
)

// NullOption configures a Null sink.
type NullOption func(*Null)

// WithNullLatency sets how much audio each Update pulls.
func WithNullLatency(latency time.Duration) NullOption {
	return func(n *Null) { n.latency = latency }
}

// WithPacing makes Update wait until the previous block would have finished
// playing, so the graph advances in real time.
func WithPacing(paced bool) NullOption {
	return func(n *Null) { n.paced = paced }
}

// WithCapture hands every pulled block to fn. fn must not keep the slice.
func WithCapture(fn func([]float32)) NullOption {
	return func(n *Null) { n.capture = fn }
}

// WithNullLogger replaces the default logger.
func WithNullLogger(logger golog.Logger) NullOption {
	return func(n *Null) { n.logger = logger }
}

// Null is a pull sink that discards what it reads. It drives the graph in
// headless runs and tests.
type Null struct {
	logger  golog.Logger
	latency time.Duration
	paced   bool
	capture func([]float32)

	mu       sync.Mutex
	provider mix.Provider
	format   audio.Format
	buf      []float32
	playing  bool
	disposed bool
	next     time.Time

	pulled atomic.Int64
}

var _ Sink = (*Null)(nil)

func NewNull(opts ...NullOption) *Null {
	n := &Null{latency: DefaultLatency}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = golog.Global().Named("null sink").With("sink", uuid.NewString())
	}

	return n
}

func (n *Null) Init(p mix.Provider) error {
	f, err := checkProvider(p)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.disposed {
		return ErrDisposed
	}
	if n.provider != nil {
		return ErrAlreadyInitialized
	}
	n.provider, n.format = p, f
	n.buf = make([]float32, BlockSize(f, n.latency))
	n.logger.Debugw("null sink bound", "format", f.String(), "block", len(n.buf))

	return nil
}

func (n *Null) Play() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.provider == nil {
		return ErrNotInitialized
	}
	n.playing = true
	n.next = time.Now()

	return nil
}

// Update pulls one block. Before Play it does nothing.
func (n *Null) Update() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch {
	case n.disposed:
		return ErrDisposed
	case !n.playing:
		return nil
	}

	if n.paced {
		time.Sleep(time.Until(n.next))
		n.next = n.next.Add(blockDuration(n.format, len(n.buf)))
	}

	read, err := n.provider.Read(n.buf)
	read = min(max(read, 0), len(n.buf))
	n.pulled.Add(int64(read))
	if n.capture != nil && read > 0 {
		n.capture(n.buf[:read])
	}

	return errors.Wrap(err, "reading from provider")
}

func (n *Null) Dispose() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.disposed = true
	n.playing = false
	n.logger.Debugw("null sink disposed", "pulled", n.pulled.Load())

	return nil
}

// Pulled is the total number of samples read so far.
func (n *Null) Pulled() int64 { return n.pulled.Load() }
