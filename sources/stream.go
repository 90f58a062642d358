// SPDX-License-Identifier: EPL-2.0

package sources

import (
	"io"
	"sync"

	"github.com/ik5/audmix/audio"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Stream decodes on demand from an audio.Source. It can seek when the decoder
// can seek frames and knows its length, resampled or not; otherwise SetPosition
// returns audio.ErrNotSeekable and loops end the stream instead of wrapping.
type Stream struct {
	Playback

	src    audio.Source
	seeker audio.FrameSeeker
	closer io.Closer

	mu     sync.Mutex
	pos    int64
	length int64
	ended  bool
	closed bool
}

var _ Seekable = (*Stream)(nil)

// NewStream converts src to the graph format and wraps it. Loop tags on src are
// honored. The stream owns src.
func NewStream(src audio.Source, quality int) (*Stream, error) {
	comments := commentsOf(src)

	norm, ratio, err := Normalize(src, quality)
	if err != nil {
		return nil, err
	}

	s := &Stream{src: norm, length: -1}
	if fs, ok := norm.(audio.FrameSeeker); ok {
		if frames := fs.LengthFrames(); frames >= 0 {
			s.seeker = fs
			s.length = frames * audio.StandardChannels
			s.pos = fs.FramePosition() * audio.StandardChannels
		}
	}

	start, end := ParseLoop(comments, audio.StandardChannels, ratio)
	s.SetLoop(start, end)
	s.SetLooped(s.HasLoop())
	s.SetComments(comments)

	return s, nil
}

func (s *Stream) Format() audio.Format { return audio.Standard }

// CanSeek reports whether SetPosition is supported.
func (s *Stream) CanSeek() bool { return s.seeker != nil }

func (s *Stream) Read(dst []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, nil
	}

	return loopRead(streamCursor{s}, &s.Playback, dst)
}

func (s *Stream) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pos
}

func (s *Stream) SetPosition(pos int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return streamCursor{s}.seek(pos)
}

func (s *Stream) Length() int64 { return s.length }

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.src.Close()
	if s.closer != nil {
		err = multierr.Append(err, s.closer.Close())
	}

	return err
}

// streamCursor is the rawReader view of a Stream; the caller holds s.mu.
type streamCursor struct{ s *Stream }

func (c streamCursor) readRaw(dst []float32) (int, error) {
	if c.s.ended {
		return 0, nil
	}

	n, err := c.s.src.ReadSamples(dst)
	c.s.pos += int64(n)

	if err != nil {
		if errors.Is(err, io.EOF) {
			c.s.ended = true
			return n, nil
		}
		return n, errors.Wrap(err, "reading stream")
	}
	if n == 0 {
		c.s.ended = true
	}

	return n, nil
}

func (c streamCursor) position() int64 { return c.s.pos }
func (c streamCursor) length() int64   { return c.s.length }

func (c streamCursor) seek(pos int64) error {
	if c.s.seeker == nil {
		return audio.ErrNotSeekable
	}

	pos = audio.Standard.AlignDown(min(max(pos, 0), c.s.length))
	if err := c.s.seeker.SeekFrame(pos / audio.StandardChannels); err != nil {
		return errors.Wrap(err, "seeking stream")
	}
	c.s.pos = pos
	c.s.ended = false

	return nil
}
