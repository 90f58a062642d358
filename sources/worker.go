// SPDX-License-Identifier: EPL-2.0

package sources

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edaniels/golog"
	"golang.org/x/sync/errgroup"
)

// DefaultFillInterval is how often the worker tops up buffers when no reader
// wakes it.
const DefaultFillInterval = 50 * time.Millisecond

// Worker refills Buffered sources in the background. Each Start begins a new
// generation; buffers created by an earlier generation are never touched by a
// later one and fall back to filling on read.
type Worker struct {
	logger   golog.Logger
	interval time.Duration

	generation atomic.Uint64
	wakeCh     chan struct{}

	mu      sync.Mutex
	buffers map[*Buffered]struct{}
	cancel  context.CancelFunc
	group   *errgroup.Group
}

func NewWorker(logger golog.Logger, interval time.Duration) *Worker {
	if logger == nil {
		logger = golog.Global().Named("readahead")
	}
	if interval <= 0 {
		interval = DefaultFillInterval
	}

	return &Worker{
		logger:   logger,
		interval: interval,
		wakeCh:   make(chan struct{}, 1),
		buffers:  make(map[*Buffered]struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrWorkerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	gen := w.generation.Add(1)
	group.Go(func() error { return w.run(gctx, gen) })

	w.cancel, w.group = cancel, group
	w.logger.Debugw("read-ahead worker started", "generation", gen)

	return nil
}

// Stop ends the current generation and waits for its goroutine.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerStopped
	}

	cancel, group := w.cancel, w.group
	w.cancel, w.group = nil, nil
	clear(w.buffers)
	w.mu.Unlock()

	cancel()
	err := group.Wait()
	w.logger.Debugw("read-ahead worker stopped", "generation", w.generation.Load())

	return err
}

func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.cancel != nil
}

func (w *Worker) Generation() uint64 { return w.generation.Load() }

// Buffer wraps src in a Buffered registered with the running generation.
func (w *Worker) Buffer(src Source, seconds float64) (*Buffered, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return nil, ErrWorkerStopped
	}

	b := NewBuffered(src, seconds)
	b.worker = w
	b.gen = w.generation.Load()
	w.buffers[b] = struct{}{}

	return b, nil
}

// Wake asks the worker to refill now instead of at the next tick.
func (w *Worker) Wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

func (w *Worker) remove(b *Buffered) {
	w.mu.Lock()
	delete(w.buffers, b)
	w.mu.Unlock()
}

func (w *Worker) run(ctx context.Context, gen uint64) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-w.wakeCh:
		}

		w.fillAll(gen)
	}
}

func (w *Worker) fillAll(gen uint64) {
	w.mu.Lock()
	pending := make([]*Buffered, 0, len(w.buffers))
	for b := range w.buffers {
		if b.gen == gen {
			pending = append(pending, b)
		}
	}
	w.mu.Unlock()

	for _, b := range pending {
		if err := b.fill(); err != nil {
			b.setErr(err)
			w.logger.Warnw("read-ahead fill failed", "generation", gen, "error", err)
		}
	}
}
