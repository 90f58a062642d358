// SPDX-License-Identifier: EPL-2.0

package output

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/ik5/audmix/formats/wav"
	"github.com/ik5/audmix/mix"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// WavOption configures a Wav sink.
type WavOption func(*Wav)

// WithBitDepth selects 8, 16, 24 or 32 bit PCM. The default is 16.
func WithBitDepth(bits int) WavOption {
	return func(w *Wav) { w.bitDepth = bits }
}

// WithDuration stops writing after d of audio; Done is closed once it is reached.
func WithDuration(d time.Duration) WavOption {
	return func(w *Wav) { w.duration = d }
}

// WithWavLatency sets how much audio each Update renders.
func WithWavLatency(latency time.Duration) WavOption {
	return func(w *Wav) { w.latency = latency }
}

// WithWavLogger replaces the default logger.
func WithWavLogger(logger golog.Logger) WavOption {
	return func(w *Wav) { w.logger = logger }
}

// Wav renders the graph into a WAV file as fast as Update is called.
type Wav struct {
	logger   golog.Logger
	bitDepth int
	duration time.Duration
	latency  time.Duration

	out    io.WriteSeeker
	closer io.Closer

	mu       sync.Mutex
	provider mix.Provider
	writer   *wav.Writer
	buf      []float32
	limit    int64 // samples; 0 means unbounded
	written  int64
	playing  bool
	disposed bool

	done     chan struct{}
	doneOnce sync.Once
}

var _ Sink = (*Wav)(nil)

// NewWav renders into out. The caller keeps ownership of out.
func NewWav(out io.WriteSeeker, opts ...WavOption) *Wav {
	w := &Wav{
		bitDepth: 16,
		latency:  DefaultLatency,
		out:      out,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = golog.Global().Named("wav sink").With("sink", uuid.NewString())
	}

	return w
}

// CreateWav renders into a new file at path, which Dispose closes.
func CreateWav(path string, opts ...WavOption) (*Wav, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating WAV output")
	}

	w := NewWav(f, opts...)
	w.closer = f

	return w, nil
}

func (w *Wav) Init(p mix.Provider) error {
	f, err := checkProvider(p)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return ErrDisposed
	}
	if w.provider != nil {
		return ErrAlreadyInitialized
	}

	writer, err := wav.NewWriter(w.out, f, w.bitDepth)
	if err != nil {
		return err
	}

	w.provider, w.writer = p, writer
	w.buf = make([]float32, BlockSize(f, w.latency))
	if w.duration > 0 {
		w.limit = f.AlignDown(int64(w.duration) * int64(f.SamplesPerSecond()) / int64(time.Second))
	}

	return nil
}

func (w *Wav) Play() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.provider == nil {
		return ErrNotInitialized
	}
	w.playing = true

	return nil
}

// Update renders one block, or nothing once the duration limit was reached.
func (w *Wav) Update() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.disposed:
		return ErrDisposed
	case !w.playing:
		return nil
	}

	want := len(w.buf)
	if w.limit > 0 {
		want = int(min(int64(want), w.limit-w.written))
		if want <= 0 {
			w.finish()
			return nil
		}
	}

	read, err := w.provider.Read(w.buf[:want])
	read = min(max(read, 0), want)
	read -= read % w.writer.Format().Channels
	if werr := w.writer.Write(w.buf[:read]); werr != nil {
		return multierr.Append(errors.Wrap(err, "reading from provider"), werr)
	}
	w.written += int64(read)

	if w.limit > 0 && w.written >= w.limit {
		w.finish()
	}

	return errors.Wrap(err, "reading from provider")
}

func (w *Wav) finish() {
	w.doneOnce.Do(func() {
		w.logger.Infow("render complete", "samples", w.written)
		close(w.done)
	})
}

// Done is closed when the duration limit has been written.
func (w *Wav) Done() <-chan struct{} { return w.done }

// Written is the number of samples written so far.
func (w *Wav) Written() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.written
}

// Dispose finalizes the file header and closes the file if the sink opened it.
func (w *Wav) Dispose() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return nil
	}
	w.disposed = true
	w.playing = false

	var err error
	if w.writer != nil {
		err = w.writer.Close()
	}
	if w.closer != nil {
		err = multierr.Append(err, w.closer.Close())
	}

	return err
}
