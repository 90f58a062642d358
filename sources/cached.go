// SPDX-License-Identifier: EPL-2.0

package sources

import (
	"io"
	"sync"
	"time"

	"github.com/ik5/audmix/audio"
	"github.com/pkg/errors"
)

// Cached is fully decoded audio held in memory. It is immutable and may back any
// number of concurrently playing Memory readers.
type Cached struct {
	format    audio.Format
	data      []float32
	loopStart int64
	loopEnd   int64
	comments  map[string]string
}

// NewCached wraps already-decoded interleaved samples. Loop bounds are sample
// offsets, -1 when unset.
func NewCached(data []float32, format audio.Format, loopStart, loopEnd int64) (*Cached, error) {
	if format.SampleRate <= 0 {
		return nil, audio.ErrInvalidSampleRate
	}
	if format.Channels <= 0 {
		return nil, audio.ErrUnsupportedChannelCount
	}
	if len(data)%format.Channels != 0 {
		return nil, audio.ErrInvalidDstSize
	}

	return &Cached{
		format:    format,
		data:      data,
		loopStart: alignBound(format, loopStart),
		loopEnd:   alignBound(format, loopEnd),
	}, nil
}

// LoadCached decodes src to the end, converting it to the graph format. Loop
// tags found on src are parsed and scaled to the converted data. src is closed.
func LoadCached(src audio.Source, quality int) (c *Cached, err error) {
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing decoder")
		}
	}()

	comments := commentsOf(src)

	norm, ratio, err := Normalize(src, quality)
	if err != nil {
		return nil, err
	}

	estimate := 0
	if fs, ok := src.(audio.FrameSeeker); ok {
		if frames := fs.LengthFrames(); frames > 0 {
			estimate = int(float64(frames)*ratio+1) * audio.StandardChannels
		}
	}

	data := make([]float32, 0, estimate)
	buf := make([]float32, audio.ReadBufferSize)
	for {
		n, rerr := norm.ReadSamples(buf)
		data = append(data, buf[:n]...)
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return nil, errors.Wrap(rerr, "decoding audio")
		}
		if n == 0 {
			break
		}
	}

	start, end := ParseLoop(comments, audio.StandardChannels, ratio)

	c, err = NewCached(data, audio.Standard, start, end)
	if err != nil {
		return nil, err
	}
	c.comments = comments

	return c, nil
}

func (c *Cached) Format() audio.Format { return c.format }

// Len is the number of samples held.
func (c *Cached) Len() int64 { return int64(len(c.data)) }

func (c *Cached) Duration() time.Duration {
	frames := len(c.data) / c.format.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.format.SampleRate)
}

func (c *Cached) LoopStart() int64            { return c.loopStart }
func (c *Cached) LoopEnd() int64              { return c.loopEnd }
func (c *Cached) Comments() map[string]string { return c.comments }

// NewReader returns an independent, stopped reader positioned at the start.
// It is looped when the audio carries loop tags.
func (c *Cached) NewReader() *Memory {
	m := &Memory{cached: c}
	m.SetLoop(c.loopStart, c.loopEnd)
	m.SetLooped(m.HasLoop())
	m.SetComments(c.comments)

	return m
}

// Memory plays a Cached buffer. It is seekable.
type Memory struct {
	Playback

	cached *Cached

	mu     sync.Mutex
	pos    int64
	closed bool
}

var _ Seekable = (*Memory)(nil)

func (m *Memory) Format() audio.Format { return m.cached.format }

func (m *Memory) Read(dst []float32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, nil
	}

	return loopRead(memoryCursor{m}, &m.Playback, dst)
}

func (m *Memory) Position() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pos
}

// SetPosition moves the read position, clamped to the data and aligned to a frame.
func (m *Memory) SetPosition(pos int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return memoryCursor{m}.seek(pos)
}

func (m *Memory) Length() int64 { return m.cached.Len() }

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	return nil
}

// memoryCursor is the rawReader view of a Memory; the caller holds m.mu.
type memoryCursor struct{ m *Memory }

func (c memoryCursor) readRaw(dst []float32) (int, error) {
	data := c.m.cached.data
	if c.m.pos >= int64(len(data)) {
		return 0, nil
	}

	n := copy(dst, data[c.m.pos:])
	c.m.pos += int64(n)

	return n, nil
}

func (c memoryCursor) position() int64 { return c.m.pos }
func (c memoryCursor) length() int64   { return c.m.cached.Len() }

func (c memoryCursor) seek(pos int64) error {
	pos = min(max(pos, 0), c.m.cached.Len())
	c.m.pos = c.m.cached.format.AlignDown(pos)

	return nil
}

func alignBound(format audio.Format, pos int64) int64 {
	if pos < 0 {
		return -1
	}
	return format.AlignDown(pos)
}

func commentsOf(src audio.Source) map[string]string {
	if t, ok := src.(audio.Tagged); ok {
		return t.Comments()
	}
	return nil
}
