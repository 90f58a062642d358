// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// MonoMixer downmixes a multi-channel Source to mono by averaging channels.
type MonoMixer struct {
	src Source
	tmp []float32
}

func NewMonoMixer(src Source) *MonoMixer {
	return &MonoMixer{
		src: src,
		tmp: make([]float32, 8192),
	}
}

func (m *MonoMixer) SampleRate() int { return m.src.SampleRate() }
func (m *MonoMixer) Channels() int   { return 1 }
func (m *MonoMixer) BufSize() int    { return m.src.BufSize() }

func (m *MonoMixer) Close() error {
	if err := m.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}

	return nil
}

// ReadSamples fills dst with mono frames.
func (m *MonoMixer) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	channels := m.src.Channels()
	if channels == 1 {
		return m.src.ReadSamples(dst)
	}

	need := len(dst) * channels
	if cap(m.tmp) < need {
		m.tmp = make([]float32, need)
	}
	m.tmp = m.tmp[:need]

	n, err := m.src.ReadSamples(m.tmp)
	frames := n / channels

	if channels == 2 {
		for f := range frames {
			dst[f] = (m.tmp[2*f] + m.tmp[2*f+1]) * 0.5
		}
		return frames, err
	}

	inv := 1 / float32(channels)
	for f := range frames {
		var sum float32
		for _, v := range m.tmp[f*channels : (f+1)*channels] {
			sum += v
		}
		dst[f] = sum * inv
	}

	return frames, err
}

// StereoExpander duplicates a mono Source into two identical channels.
// Sources that already have two channels pass through.
type StereoExpander struct {
	src Source
	tmp []float32
}

func NewStereoExpander(src Source) (*StereoExpander, error) {
	if c := src.Channels(); c != 1 && c != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannelCount, c)
	}

	return &StereoExpander{src: src, tmp: make([]float32, 4096)}, nil
}

func (e *StereoExpander) SampleRate() int { return e.src.SampleRate() }
func (e *StereoExpander) Channels() int   { return 2 }
func (e *StereoExpander) BufSize() int    { return e.src.BufSize() * 2 }

func (e *StereoExpander) Close() error {
	if err := e.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}

	return nil
}

func (e *StereoExpander) ReadSamples(dst []float32) (int, error) {
	if e.src.Channels() == 2 {
		return e.src.ReadSamples(dst)
	}
	if len(dst)%2 != 0 {
		return 0, ErrInvalidDstSize
	}

	frames := len(dst) / 2
	if cap(e.tmp) < frames {
		e.tmp = make([]float32, frames)
	}
	e.tmp = e.tmp[:frames]

	n, err := e.src.ReadSamples(e.tmp)
	for i := n - 1; i >= 0; i-- {
		dst[2*i] = e.tmp[i]
		dst[2*i+1] = e.tmp[i]
	}

	return n * 2, err
}

// SeekFrame forwards to the wrapped source when it can seek; frame numbering is unchanged.
func (e *StereoExpander) SeekFrame(frame int64) error {
	s, ok := e.src.(FrameSeeker)
	if !ok {
		return ErrNotSeekable
	}
	return s.SeekFrame(frame)
}

func (e *StereoExpander) FramePosition() int64 {
	if s, ok := e.src.(FrameSeeker); ok {
		return s.FramePosition()
	}
	return 0
}

func (e *StereoExpander) LengthFrames() int64 {
	if s, ok := e.src.(FrameSeeker); ok {
		return s.LengthFrames()
	}
	return -1
}

// Comments forwards the wrapped source's tags.
func (e *StereoExpander) Comments() map[string]string {
	if t, ok := e.src.(Tagged); ok {
		return t.Comments()
	}
	return nil
}
