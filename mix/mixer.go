// SPDX-License-Identifier: EPL-2.0

package mix

import (
	"sync"
	"sync/atomic"

	"github.com/edaniels/golog"
	"github.com/ik5/audmix/audio"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// MaxInputs is the most inputs a single mixer accepts.
const MaxInputs = 1024

// Input is a provider a Mixer can own: it has a playback state and can be closed
// when the engine reclaims it.
type Input interface {
	Provider
	State() audio.PlaybackState
	SetState(audio.PlaybackState)
	Close() error
}

// Mixer additively combines its inputs. It is itself a Voice, so it has a volume
// and a filter chain, and it can be the input of another Mixer.
type Mixer struct {
	*Voice

	state     atomic.Int32
	readFully atomic.Bool

	mu      sync.Mutex
	format  audio.Format
	inputs  []Input
	onEnded func(Input)
	onError func(Input, error)
	logger  golog.Logger

	// guards the read buffers below; list mutations never wait on it
	readMu   sync.Mutex
	snapshot []Input
	scratch  []float32
}

// NewMixer creates a playing mixer. A zero format is taken from the first input.
// Mixers read fully by default: short reads are padded with silence.
func NewMixer(format audio.Format) *Mixer {
	m := &Mixer{
		format: format,
		logger: golog.Global().Named("mixer"),
	}
	m.state.Store(int32(audio.Playing))
	m.readFully.Store(true)
	m.Voice = NewVoice(mixerTerminal{m})

	return m
}

type mixerTerminal struct{ m *Mixer }

func (t mixerTerminal) Format() audio.Format                  { return t.m.inputFormat() }
func (t mixerTerminal) ReadSource(dst []float32) (int, error) { return t.m.mixInputs(dst) }
func (t mixerTerminal) State() audio.PlaybackState            { return audio.PlaybackState(t.m.state.Load()) }
func (t mixerTerminal) SetState(s audio.PlaybackState)        { t.m.state.Store(int32(s)) }

func (m *Mixer) inputFormat() audio.Format {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.format
}

// SetLogger replaces the mixer's logger.
func (m *Mixer) SetLogger(logger golog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger = logger
}

// ReadFully reports whether short reads are padded to the requested length.
func (m *Mixer) ReadFully() bool { return m.readFully.Load() }

func (m *Mixer) SetReadFully(v bool) { m.readFully.Store(v) }

// OnInputEnded registers fn to be called, from the reading goroutine, whenever an
// input returns no samples. fn must not block or modify the mixer's inputs.
func (m *Mixer) OnInputEnded(fn func(Input)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onEnded = fn
}

// OnInputError registers fn to be called, from the reading goroutine, when an
// input fails. The failed input has already been stopped.
func (m *Mixer) OnInputError(fn func(Input, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onError = fn
}

// Play resumes the mixer.
func (m *Mixer) Play() { m.Resume() }

func (m *Mixer) Pause()  { m.SetState(audio.Paused) }
func (m *Mixer) Resume() { m.SetState(audio.Playing) }

// linkMu serializes linking mixers into mixers, so two concurrent links cannot
// each pass the cycle check and close a loop together.
var linkMu sync.Mutex

// lockLinks takes linkMu when any of ins is a mixer. Call it before m.mu.
func lockLinks(ins ...Input) func() {
	for _, in := range ins {
		if _, ok := in.(*Mixer); ok {
			linkMu.Lock()
			return linkMu.Unlock
		}
	}
	return func() {}
}

func (m *Mixer) checkInput(in Input) error {
	if in == nil {
		return ErrNilInput
	}
	if sub, ok := in.(*Mixer); ok && sub.reaches(m, make(map[*Mixer]bool)) {
		return ErrMixerCycle
	}

	return nil
}

// reaches reports whether target is m or one of the mixers feeding m. target
// itself is never locked, so this is safe while target.mu is held.
func (m *Mixer) reaches(target *Mixer, seen map[*Mixer]bool) bool {
	if m == target {
		return true
	}
	if seen[m] {
		return false
	}
	seen[m] = true

	for _, in := range m.Inputs() {
		if sub, ok := in.(*Mixer); ok && sub.reaches(target, seen) {
			return true
		}
	}

	return false
}

// addLocked validates and appends in. m.mu must be held.
func (m *Mixer) addLocked(in Input) error {
	if len(m.inputs) >= MaxInputs {
		return ErrTooManyInputs
	}

	f := in.Format()
	if m.format.IsZero() {
		m.format = f
	} else if !m.format.Equal(f) {
		return errors.Wrapf(ErrFormatMismatch, "mixer is %s, input is %s", m.format, f)
	}

	m.inputs = append(m.inputs, in)

	return nil
}

func (m *Mixer) indexLocked(in Input) int {
	for i, x := range m.inputs {
		if x == in {
			return i
		}
	}
	return -1
}

// AddInput appends in to the mixer.
func (m *Mixer) AddInput(in Input) error {
	defer lockLinks(in)()
	if err := m.checkInput(in); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexLocked(in) >= 0 {
		return ErrInputExists
	}

	return m.addLocked(in)
}

// Activate adds in unless it is already an input. It reports whether in was added.
func (m *Mixer) Activate(in Input) (bool, error) {
	defer lockLinks(in)()
	if err := m.checkInput(in); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexLocked(in) >= 0 {
		return false, nil
	}
	if err := m.addLocked(in); err != nil {
		return false, err
	}

	return true, nil
}

// RemoveInput unlinks in without closing it. It reports whether in was an input.
func (m *Mixer) RemoveInput(in Input) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(in)
	if i < 0 {
		return false
	}
	m.inputs = append(m.inputs[:i], m.inputs[i+1:]...)

	return true
}

// SetInputs replaces every input. Nothing changes if any of ins is rejected.
func (m *Mixer) SetInputs(ins []Input) error {
	defer lockLinks(ins...)()
	m.mu.Lock()
	defer m.mu.Unlock()

	oldFormat, oldInputs := m.format, m.inputs
	m.inputs = make([]Input, 0, len(ins))
	for _, in := range ins {
		err := m.checkInput(in)
		if err == nil && m.indexLocked(in) >= 0 {
			err = ErrInputExists
		}
		if err == nil {
			err = m.addLocked(in)
		}
		if err != nil {
			m.format, m.inputs = oldFormat, oldInputs
			return err
		}
	}

	return nil
}

// ClearInputs unlinks every input without closing them.
func (m *Mixer) ClearInputs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputs = nil
}

// Inputs returns a snapshot of the current inputs.
func (m *Mixer) Inputs() []Input {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Input, len(m.inputs))
	copy(out, m.inputs)

	return out
}

// Contains reports whether in is currently an input.
func (m *Mixer) Contains(in Input) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.indexLocked(in) >= 0
}

// Len is the number of inputs.
func (m *Mixer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.inputs)
}

// InputsOf returns the inputs of m that are of type T.
func InputsOf[T Input](m *Mixer) []T {
	var out []T
	for _, in := range m.Inputs() {
		if t, ok := in.(T); ok {
			out = append(out, t)
		}
	}

	return out
}

func (m *Mixer) mixInputs(dst []float32) (int, error) {
	m.readMu.Lock()
	defer m.readMu.Unlock()

	m.mu.Lock()
	m.snapshot = append(m.snapshot[:0], m.inputs...)
	ended, failed, logger := m.onEnded, m.onError, m.logger
	m.mu.Unlock()

	clear(dst)
	if cap(m.scratch) < len(dst) {
		m.scratch = make([]float32, len(dst))
	}
	scratch := m.scratch[:len(dst)]

	produced := 0
	for _, in := range m.snapshot {
		n, err := in.Read(scratch)
		n = min(max(n, 0), len(dst))
		for i, v := range scratch[:n] {
			dst[i] += v
		}
		produced = max(produced, n)

		switch {
		case err != nil:
			// a failing input is isolated so the rest of the mix keeps playing
			in.SetState(audio.Stopped)
			logger.Warnw("mixer input failed, stopping it", "error", err)
			if failed != nil {
				failed(in, err)
			}
		case n == 0 && ended != nil:
			ended(in)
		}
	}
	clear(m.snapshot)

	if m.readFully.Load() {
		return len(dst), nil
	}

	return produced, nil
}

// Close stops the mixer, detaches its filters and closes every input.
func (m *Mixer) Close() error {
	m.SetState(audio.Stopped)

	m.mu.Lock()
	inputs := m.inputs
	m.inputs = nil
	m.mu.Unlock()

	var err error
	for _, in := range inputs {
		err = multierr.Append(err, in.Close())
	}
	m.ClearFilters()

	return err
}
