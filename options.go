// SPDX-License-Identifier: EPL-2.0

package audmix

import (
	"context"
	"time"

	"github.com/edaniels/golog"
)

// defaultVoiceErrorBuffer is how many voice failures VoiceErrors holds before
// newer ones are dropped.
const defaultVoiceErrorBuffer = 16

// Option configures Initialize.
type Option func(*options)

type options struct {
	ctx              context.Context
	logger           golog.Logger
	fillInterval     time.Duration
	voiceErrorBuffer int
}

func defaultOptions() options {
	return options{
		ctx:              context.Background(),
		voiceErrorBuffer: defaultVoiceErrorBuffer,
	}
}

// WithContext ties the engine to ctx: cancelling it shuts the engine down.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// WithLogger replaces the default logger.
func WithLogger(logger golog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFillInterval sets how often the read-ahead worker tops up buffered sounds.
func WithFillInterval(d time.Duration) Option {
	return func(o *options) { o.fillInterval = d }
}

// WithVoiceErrorBuffer sets the capacity of the VoiceErrors channel.
func WithVoiceErrorBuffer(n int) Option {
	return func(o *options) { o.voiceErrorBuffer = max(n, 0) }
}
