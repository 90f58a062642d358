// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"errors"
	"io"
	"math"
)

// MockSource is a test helper that generates audio data for testing.
// It implements audio.Source, audio.FrameSeeker and audio.Tagged without importing
// the audio package, so that package's own tests can use it.
type MockSource struct {
	sampleRate  int
	channels    int
	totalFrames int
	generated   int
	waveform    func(frame int, channel int) float32

	// Tags is returned by Comments.
	Tags map[string]string
	// Closed records whether Close was called.
	Closed bool
}

// NewMockSource creates a new mock audio source producing totalFrames frames.
// waveform generates the value of each sample given frame index and channel.
func NewMockSource(sampleRate, channels, totalFrames int, waveform func(frame int, channel int) float32) *MockSource {
	return &MockSource{
		sampleRate:  sampleRate,
		channels:    channels,
		totalFrames: totalFrames,
		waveform:    waveform,
	}
}

// NewSilentSource creates a mock source that generates silence (all zeros).
func NewSilentSource(sampleRate, channels, totalFrames int) *MockSource {
	return NewConstantSource(sampleRate, channels, totalFrames, 0)
}

// NewSineSource creates a mock source that generates a sine wave.
func NewSineSource(sampleRate, channels, totalFrames int, frequency float64) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(frame int, _ int) float32 {
		t := float64(frame) / float64(sampleRate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	})
}

// NewConstantSource creates a mock source with constant value.
func NewConstantSource(sampleRate, channels, totalFrames int, value float32) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(int, int) float32 {
		return value
	})
}

// NewRampSource creates a source whose samples equal their interleaved index, which
// makes positions observable in the output.
func NewRampSource(sampleRate, channels, totalFrames int) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(frame int, channel int) float32 {
		return float32(frame*channels + channel)
	})
}

func (m *MockSource) SampleRate() int { return m.sampleRate }
func (m *MockSource) Channels() int   { return m.channels }
func (m *MockSource) BufSize() int    { return 4096 }

func (m *MockSource) Close() error {
	m.Closed = true
	return nil
}

// Reset rewinds the source to its first frame.
func (m *MockSource) Reset() {
	m.generated = 0
}

func (m *MockSource) SeekFrame(frame int64) error {
	if frame < 0 || frame > int64(m.totalFrames) {
		return errors.New("seek out of range")
	}
	m.generated = int(frame)
	return nil
}

func (m *MockSource) FramePosition() int64 { return int64(m.generated) }
func (m *MockSource) LengthFrames() int64  { return int64(m.totalFrames) }

func (m *MockSource) Comments() map[string]string { return m.Tags }

func (m *MockSource) ReadSamples(dst []float32) (int, error) {
	if m.generated >= m.totalFrames {
		return 0, io.EOF
	}

	frames := min(len(dst)/m.channels, m.totalFrames-m.generated)
	for f := range frames {
		for ch := range m.channels {
			dst[f*m.channels+ch] = m.waveform(m.generated+f, ch)
		}
	}
	m.generated += frames

	if m.generated >= m.totalFrames {
		return frames * m.channels, io.EOF
	}

	return frames * m.channels, nil
}

// FailingSource yields Frames frames of silence and then fails with Err.
type FailingSource struct {
	Rate     int
	Chans    int
	Frames   int
	Err      error
	produced int
}

func (f *FailingSource) SampleRate() int { return f.Rate }
func (f *FailingSource) Channels() int   { return f.Chans }
func (f *FailingSource) BufSize() int    { return 4096 }
func (f *FailingSource) Close() error    { return nil }

func (f *FailingSource) ReadSamples(dst []float32) (int, error) {
	frames := min(len(dst)/f.Chans, f.Frames-f.produced)
	if frames <= 0 {
		return 0, f.Err
	}
	clear(dst[:frames*f.Chans])
	f.produced += frames

	return frames * f.Chans, nil
}

// Unseekable hides everything but the plain source methods of Src, like a
// decoder reading from a pipe.
type Unseekable struct {
	Src interface {
		SampleRate() int
		Channels() int
		ReadSamples(dst []float32) (int, error)
		BufSize() int
		Close() error
	}
}

func (u Unseekable) SampleRate() int                        { return u.Src.SampleRate() }
func (u Unseekable) Channels() int                          { return u.Src.Channels() }
func (u Unseekable) ReadSamples(dst []float32) (int, error) { return u.Src.ReadSamples(dst) }
func (u Unseekable) BufSize() int                           { return u.Src.BufSize() }
func (u Unseekable) Close() error                           { return u.Src.Close() }
