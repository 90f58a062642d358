// SPDX-License-Identifier: EPL-2.0

package output

import (
	"time"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/mix"
)

// DefaultLatency is how much audio a sink asks for per block when not told otherwise.
const DefaultLatency = 50 * time.Millisecond

// Sink moves samples from the mixing graph to somewhere audible or durable.
//
// Pull sinks read the provider from Update, so Update sets the cadence of the
// whole graph. Push sinks are driven by a device callback and Update only waits
// for the device and reports what went wrong on the callback thread.
type Sink interface {
	// Init binds the sink to the provider it will drain.
	Init(p mix.Provider) error
	// Play starts output. It is called once, before the first Update.
	Play() error
	// Update is called repeatedly by the engine's playback goroutine.
	Update() error
	// Dispose releases the sink. It is called once, after the last Update.
	Dispose() error
}

// BlockSize converts a latency into a whole number of graph frames, in samples.
func BlockSize(f audio.Format, latency time.Duration) int {
	if latency <= 0 {
		latency = DefaultLatency
	}
	frames := max(int(int64(f.SampleRate)*int64(latency)/int64(time.Second)), 1)

	return frames * f.Channels
}

// blockDuration is how long n samples of f last.
func blockDuration(f audio.Format, n int) time.Duration {
	if f.SamplesPerSecond() == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(f.SamplesPerSecond()))
}

func checkProvider(p mix.Provider) (audio.Format, error) {
	if p == nil {
		return audio.Format{}, ErrNilProvider
	}

	f := p.Format()
	if f.IsZero() {
		f = audio.Standard
	}
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return audio.Format{}, ErrUnsupportedFormat
	}

	return f, nil
}
