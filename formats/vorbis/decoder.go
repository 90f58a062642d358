// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"io"
	"strings"

	"github.com/ik5/audmix/audio"
	"github.com/jfreymuth/oggvorbis"
	"github.com/pkg/errors"
)

// oggReader is the part of oggvorbis.Reader the source uses. Positions are in
// frames; Read counts values (frames times channels).
type oggReader interface {
	SampleRate() int
	Channels() int
	Read([]float32) (int, error)
	Position() int64
	Length() int64
	SetPosition(int64) error
}

type source struct {
	dec      oggReader
	seekable bool
	comments map[string]string
}

func (s *source) SampleRate() int { return s.dec.SampleRate() }
func (s *source) Channels() int   { return s.dec.Channels() }
func (s *source) BufSize() int    { return 4096 * s.dec.Channels() }
func (s *source) Close() error    { return nil }

func (s *source) ReadSamples(dst []float32) (int, error) {
	ch := s.dec.Channels()
	dst = dst[:len(dst)-len(dst)%ch]
	if len(dst) == 0 {
		return 0, nil
	}

	n, err := s.dec.Read(dst)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		if n > 0 {
			return n, nil
		}
		return 0, io.EOF
	default:
		return n, errors.Wrap(err, "decoding vorbis packet")
	}
}

// SeekFrame requires the decoder to have been created over an io.Seeker.
func (s *source) SeekFrame(frame int64) error {
	if !s.seekable {
		return audio.ErrNotSeekable
	}

	return errors.Wrap(s.dec.SetPosition(max(frame, 0)), "seeking vorbis stream")
}

func (s *source) FramePosition() int64 { return s.dec.Position() }

func (s *source) LengthFrames() int64 {
	if !s.seekable {
		return -1
	}
	return s.dec.Length()
}

// Comments returns the user comments of the stream. Keys keep their original
// case; when a key repeats, the first value wins.
func (s *source) Comments() map[string]string { return s.comments }

func parseComments(list []string) map[string]string {
	comments := make(map[string]string, len(list))
	for _, c := range list {
		key, value, ok := strings.Cut(c, "=")
		if !ok || key == "" {
			continue
		}
		if _, seen := comments[key]; !seen {
			comments[key] = value
		}
	}

	return comments
}

// Decoder decodes Ogg Vorbis streams. When the input is an io.ReadSeeker the
// source supports frame seeking and reports its length.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening vorbis stream")
	}

	_, seekable := r.(io.Seeker)

	return &source{
		dec:      dec,
		seekable: seekable,
		comments: parseComments(dec.CommentHeader().Comments),
	}, nil
}
