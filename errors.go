// SPDX-License-Identifier: EPL-2.0

package audmix

import "github.com/pkg/errors"

var (
	ErrNilSink          = errors.New("output sink is nil")
	ErrUnknownCategory  = errors.New("no mixer for category")
	ErrCategoryExists   = errors.New("mixer for category already exists")
	ErrNotAnInput       = errors.New("input is not attached to the category mixer")
	ErrSoundClosed      = errors.New("sound is closed")
	ErrEngineStopped    = errors.New("engine is not running")
	ErrUnsupportedSink  = errors.New("unsupported output kind")
	ErrPlaybackPanicked = errors.New("playback goroutine panicked")
	ErrNilProvider      = errors.New("provider is nil")
)
