// SPDX-License-Identifier: EPL-2.0

package audmix

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/mix"
	"github.com/ik5/audmix/output"
	"github.com/ik5/audmix/sources"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Category names a sub-mixer of the master mixer.
type Category string

const (
	CategoryMusic Category = "music"
	CategorySFX   Category = "sfx"
)

// VoiceError reports an input the mixer stopped because its read failed.
type VoiceError struct {
	Category Category
	Input    mix.Input
	Err      error
}

func (e VoiceError) Error() string {
	return string(e.Category) + " voice failed: " + e.Err.Error()
}

func (e VoiceError) Unwrap() error { return e.Err }

// Engine owns the mixing graph, the output sink and the goroutine that drives
// them. Sounds are played into category mixers which are inputs of the master.
type Engine struct {
	logger golog.Logger
	cfg    Config
	sink   output.Sink
	worker *sources.Worker
	master *mix.Mixer

	mu     sync.RWMutex
	mixers map[Category]*mix.Mixer

	shouldShutdown func() bool
	stopping       atomic.Bool
	running        atomic.Bool

	errOnce sync.Once
	pending atomic.Pointer[error]

	voiceErrs chan VoiceError

	ctx   context.Context
	group *errgroup.Group
	done  chan struct{}
}

// Initialize builds the graph, binds sink to the master mixer and starts
// playback. The engine runs until shouldShutdown returns true, Shutdown is
// called, or the WithContext context ends; then it disposes the sink and every
// mixer and its inputs.
func Initialize(shouldShutdown func() bool, cfg Config, sink output.Sink, opts ...Option) (*Engine, error) {
	if sink == nil {
		return nil, ErrNilSink
	}
	if shouldShutdown == nil {
		shouldShutdown = func() bool { return false }
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = golog.Global().Named("audmix")
	}
	logger := o.logger.With("engine", uuid.NewString())

	e := &Engine{
		logger:         logger,
		cfg:            cfg,
		sink:           sink,
		worker:         sources.NewWorker(logger.Named("readahead"), o.fillInterval),
		master:         mix.NewMixer(audio.Standard),
		mixers:         make(map[Category]*mix.Mixer),
		shouldShutdown: shouldShutdown,
		voiceErrs:      make(chan VoiceError, o.voiceErrorBuffer),
		done:           make(chan struct{}),
	}
	e.master.SetLogger(logger.Named("master"))
	e.master.SetVolume(cfg.MasterVolume)
	e.master.OnInputError(e.inputFailed(""))

	volumes := map[Category]float32{CategoryMusic: 1, CategorySFX: 1}
	for cat, volume := range cfg.Volumes {
		volumes[cat] = volume
	}
	cats := make([]Category, 0, len(volumes))
	for cat := range volumes {
		cats = append(cats, cat)
	}
	slices.Sort(cats)
	for _, cat := range cats {
		if _, err := e.AddMixer(cat, volumes[cat]); err != nil {
			return nil, multierr.Append(err, e.master.Close())
		}
	}

	if err := sink.Init(e.master); err != nil {
		return nil, multierr.Append(errors.Wrap(err, "binding output sink"), e.master.Close())
	}

	group, ctx := errgroup.WithContext(o.ctx)
	if err := e.worker.Start(ctx); err != nil {
		return nil, multierr.Combine(err, sink.Dispose(), e.master.Close())
	}
	e.ctx, e.group = ctx, group

	e.running.Store(true)
	group.Go(e.run)
	logger.Infow("engine started", "categories", cats, "master_volume", cfg.MasterVolume)

	return e, nil
}

// run is the playback goroutine.
func (e *Engine) run() error {
	defer e.dispose()

	if err := e.playLoop(); err != nil {
		e.fail(err)
	}

	return e.ThrowIfErrored()
}

func (e *Engine) playLoop() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrPlaybackPanicked, "%v", r)
		}
	}()

	if err := e.sink.Play(); err != nil {
		return errors.Wrap(err, "starting output")
	}
	for !e.shouldStop() {
		if err := e.Update(); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) shouldStop() bool {
	return e.stopping.Load() || e.ctx.Err() != nil || e.shouldShutdown()
}

func (e *Engine) dispose() {
	err := errors.Wrap(e.sink.Dispose(), "disposing output")
	err = multierr.Append(err, e.master.Close())
	if werr := e.worker.Stop(); werr != nil && !errors.Is(werr, sources.ErrWorkerStopped) {
		err = multierr.Append(err, werr)
	}
	if err != nil {
		e.fail(err)
	}

	e.running.Store(false)
	close(e.done)
	e.logger.Infow("engine stopped", "error", e.ThrowIfErrored())
}

// Update lets the sink pump audio, then closes every stopped input of every
// mixer. The playback goroutine calls it in a loop; it is the only place where
// stopped sounds are released.
func (e *Engine) Update() error {
	if err := e.sink.Update(); err != nil {
		return errors.Wrap(err, "updating output")
	}

	e.reconcile(e.master)

	return nil
}

func (e *Engine) reconcile(m *mix.Mixer) {
	for _, in := range m.Inputs() {
		sub, isMixer := in.(*mix.Mixer)
		if isMixer && e.isCategory(sub) {
			e.reconcile(sub)
			continue
		}
		if in.State() != audio.Stopped {
			if isMixer {
				e.reconcile(sub)
			}
			continue
		}

		m.RemoveInput(in)
		if err := in.Close(); err != nil {
			e.logger.Warnw("closing stopped input", "error", err)
		}
	}
}

func (e *Engine) isCategory(m *mix.Mixer) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, c := range e.mixers {
		if c == m {
			return true
		}
	}
	return false
}

func (e *Engine) fail(err error) {
	e.errOnce.Do(func() {
		e.pending.Store(&err)
		e.logger.Errorw("playback failed", "error", err)
	})
}

// ThrowIfErrored returns the error that ended or disrupted playback, if any.
// Hosts poll it once per frame.
func (e *Engine) ThrowIfErrored() error {
	if err := e.pending.Load(); err != nil {
		return *err
	}
	return nil
}

// inputEnded marks an input that produced nothing as stopped, so the next
// Update releases it.
func (e *Engine) inputEnded(in mix.Input) {
	if in.State() == audio.Stopped {
		return
	}
	if s, ok := in.(*Sound); ok {
		s.Stop()
		return
	}
	in.SetState(audio.Stopped)
}

func (e *Engine) inputFailed(cat Category) func(mix.Input, error) {
	return func(in mix.Input, err error) {
		select {
		case e.voiceErrs <- VoiceError{Category: cat, Input: in, Err: err}:
		default:
			e.logger.Warnw("voice error dropped", "category", cat, "error", err)
		}
	}
}

// VoiceErrors delivers inputs that failed mid-read. The mixer has already
// stopped them; the engine closes them on the next Update.
func (e *Engine) VoiceErrors() <-chan VoiceError { return e.voiceErrs }

func (e *Engine) Running() bool { return e.running.Load() }

// Done is closed once the engine has shut down and released everything.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Wait blocks until the engine has shut down and returns the pending error.
func (e *Engine) Wait() error {
	_ = e.group.Wait()
	return e.ThrowIfErrored()
}

// Shutdown asks the playback goroutine to stop and waits for it.
func (e *Engine) Shutdown() error {
	e.stopping.Store(true)
	return e.Wait()
}

func (e *Engine) Master() *mix.Mixer { return e.master }
func (e *Engine) Config() Config     { return e.cfg }

// Mixer returns the sub-mixer of cat, or nil.
func (e *Engine) Mixer(cat Category) *mix.Mixer {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.mixers[cat]
}

func (e *Engine) mixer(cat Category) (*mix.Mixer, error) {
	if m := e.Mixer(cat); m != nil {
		return m, nil
	}
	return nil, errors.Wrapf(ErrUnknownCategory, "%q", cat)
}

// Categories lists the sub-mixers in name order.
func (e *Engine) Categories() []Category {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cats := make([]Category, 0, len(e.mixers))
	for cat := range e.mixers {
		cats = append(cats, cat)
	}
	slices.Sort(cats)

	return cats
}

// AddMixer creates a sub-mixer for cat and attaches it to the master.
func (e *Engine) AddMixer(cat Category, volume float32) (*mix.Mixer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.mixers[cat]; ok {
		return nil, errors.Wrapf(ErrCategoryExists, "%q", cat)
	}

	m := mix.NewMixer(audio.Standard)
	m.SetLogger(e.logger.Named(string(cat)))
	m.SetVolume(volume)
	m.OnInputEnded(e.inputEnded)
	m.OnInputError(e.inputFailed(cat))

	if err := e.master.AddInput(m); err != nil {
		return nil, errors.Wrapf(err, "attaching %s mixer", cat)
	}
	e.mixers[cat] = m

	return m, nil
}

// RemoveMixer detaches the sub-mixer of cat and closes it with its inputs.
func (e *Engine) RemoveMixer(cat Category) error {
	e.mu.Lock()
	m, ok := e.mixers[cat]
	delete(e.mixers, cat)
	e.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrUnknownCategory, "%q", cat)
	}
	e.master.RemoveInput(m)

	return m.Close()
}

// AddInput adds any graph input to the mixer of cat.
func (e *Engine) AddInput(in mix.Input, cat Category) error {
	m, err := e.mixer(cat)
	if err != nil {
		return err
	}

	return m.AddInput(in)
}

// RemoveInput unlinks in from the mixer of cat and closes it.
func (e *Engine) RemoveInput(in mix.Input, cat Category) error {
	m, err := e.mixer(cat)
	if err != nil {
		return err
	}
	if !m.RemoveInput(in) {
		return ErrNotAnInput
	}

	return in.Close()
}

// ActiveInputs returns the inputs of the mixer of cat that are of type T.
func ActiveInputs[T mix.Input](e *Engine, cat Category) []T {
	m := e.Mixer(cat)
	if m == nil {
		return nil
	}

	return mix.InputsOf[T](m)
}

// NewSound wraps src in a stopped Sound bound to the mixer of cat. The sound
// owns src.
func (e *Engine) NewSound(src sources.Source, cat Category) (*Sound, error) {
	if !e.Running() {
		return nil, ErrEngineStopped
	}
	m, err := e.mixer(cat)
	if err != nil {
		return nil, err
	}
	if f := src.Format(); !f.Equal(audio.Standard) {
		return nil, errors.Wrapf(mix.ErrFormatMismatch, "source is %s", f)
	}

	return newSound(src, m, cat), nil
}

// NewBufferedSound is NewSound with read-ahead done by the engine's worker.
func (e *Engine) NewBufferedSound(src sources.Source, cat Category) (*Sound, error) {
	b, err := e.worker.Buffer(src, e.cfg.BufferSeconds)
	if err != nil {
		return nil, errors.Wrap(err, "buffering sound")
	}

	s, err := e.NewSound(b, cat)
	if err != nil {
		return nil, multierr.Append(err, b.Close())
	}

	return s, nil
}

// StreamFile opens path for streaming into the mixer of cat.
func (e *Engine) StreamFile(path string, cat Category) (*Sound, error) {
	stream, err := sources.OpenStream(path, e.cfg.SourceOptions())
	if err != nil {
		return nil, err
	}

	return e.NewBufferedSound(stream, cat)
}

// PlayCached starts a new instance of c in the mixer of cat.
func (e *Engine) PlayCached(c *sources.Cached, cat Category) (*Sound, error) {
	s, err := e.NewSound(c.NewReader(), cat)
	if err != nil {
		return nil, err
	}
	if err := s.Play(); err != nil {
		return nil, multierr.Append(err, s.Close())
	}

	return s, nil
}
