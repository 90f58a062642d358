// SPDX-License-Identifier: EPL-2.0

package audmix

import (
	"sync"
	"sync/atomic"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/mix"
	"github.com/ik5/audmix/sources"
	"github.com/pkg/errors"
)

// Sound is a voice playing one Source through a category mixer. Its playback
// state is the state of the source.
type Sound struct {
	*mix.Voice

	src      sources.Source
	mixer    *mix.Mixer
	category Category

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ mix.Input = (*Sound)(nil)

func newSound(src sources.Source, m *mix.Mixer, cat Category) *Sound {
	s := &Sound{src: src, mixer: m, category: cat}
	s.Voice = mix.NewVoice(soundTerminal{src})

	return s
}

// soundTerminal is the raw end of a Sound's filter chain.
type soundTerminal struct{ src sources.Source }

func (t soundTerminal) Format() audio.Format                  { return t.src.Format() }
func (t soundTerminal) ReadSource(dst []float32) (int, error) { return t.src.Read(dst) }
func (t soundTerminal) State() audio.PlaybackState            { return t.src.State() }
func (t soundTerminal) SetState(s audio.PlaybackState)        { t.src.SetState(s) }

// Seeker exposes the source when it supports random access. A stream whose
// decoder cannot seek, or a buffer over one, reports false.
func (t soundTerminal) Seeker() (mix.Seeker, bool) {
	sk, ok := sources.CanSeek(t.src)
	if !ok {
		return nil, false
	}

	return sk, true
}

func (s *Sound) Source() sources.Source { return s.src }
func (s *Sound) Category() Category     { return s.category }

// Play starts the sound. A sound that is already a mixer input is restarted
// from the beginning when its source can seek; it is never added twice.
func (s *Sound) Play() error {
	if s.closed.Load() {
		return ErrSoundClosed
	}

	s.SetState(audio.Playing)
	added, err := s.mixer.Activate(s)
	if err != nil {
		s.SetState(audio.Stopped)
		return errors.Wrapf(err, "adding sound to %s mixer", s.category)
	}

	if !added {
		if sk, ok := s.Seeker(); ok {
			if err := sk.SetPosition(0); err != nil && !errors.Is(err, audio.ErrNotSeekable) {
				return errors.Wrap(err, "rewinding sound")
			}
		}
	}
	s.src.OnPlay()

	return nil
}

func (s *Sound) Pause() {
	s.SetState(audio.Paused)
	s.src.OnPause()
}

func (s *Sound) Resume() {
	s.SetState(audio.Playing)
	s.src.OnResume()
}

// Stop stops the sound. The engine removes and closes it on its next Update.
func (s *Sound) Stop() {
	s.SetState(audio.Stopped)
	s.src.OnStop()
}

// Playing reports whether the sound is in its mixer and playing.
func (s *Sound) Playing() bool {
	return s.State() == audio.Playing && s.mixer.Contains(s)
}

// RemoveInput unlinks the sound from its mixer at once, without closing it.
func (s *Sound) RemoveInput() bool { return s.mixer.RemoveInput(s) }

// Close unlinks the sound, detaches its filters and closes the source. Later
// calls return the result of the first.
func (s *Sound) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.mixer.RemoveInput(s)
		s.SetState(audio.Stopped)
		s.ClearFilters()
		s.closeErr = s.src.Close()
	})

	return s.closeErr
}
