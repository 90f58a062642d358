// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"encoding/binary"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/utils"
	"github.com/pkg/errors"
)

// go-mp3 always produces 16-bit little-endian stereo.
const (
	channels      = 2
	bytesPerFrame = channels * 2
)

// mp3Reader is the part of gomp3.Decoder the source uses. Offsets and Length
// are in bytes of decoded PCM; Length is -1 when the input cannot seek.
type mp3Reader interface {
	io.ReadSeeker
	SampleRate() int
	Length() int64
}

type source struct {
	dec mp3Reader
	buf []byte
	pos int64
	// parked is set after seeking to the very end, which the decoder itself
	// cannot represent.
	parked bool
}

func (s *source) SampleRate() int { return s.dec.SampleRate() }
func (s *source) Channels() int   { return channels }
func (s *source) BufSize() int    { return len(s.buf) / 2 }
func (s *source) Close() error    { return nil }

func (s *source) ReadSamples(dst []float32) (int, error) {
	frames := len(dst) / channels
	if frames == 0 {
		return 0, nil
	}
	if s.parked {
		return 0, io.EOF
	}

	want := frames * bytesPerFrame
	if len(s.buf) < want {
		s.buf = make([]byte, want)
	}

	n, err := io.ReadFull(s.dec, s.buf[:want])
	s.pos += int64(n)

	samples := (n / bytesPerFrame) * channels
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(s.buf[2*i:]))
		dst[i] = utils.IntToFloat32(int(v), 16)
	}

	switch {
	case err == nil:
		return samples, nil
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		if samples == 0 {
			return 0, io.EOF
		}
		return samples, nil
	default:
		return samples, errors.Wrap(err, "decoding mp3 frame")
	}
}

// SeekFrame needs a seekable input; without one the decoder has no frame index.
func (s *source) SeekFrame(frame int64) error {
	length := s.dec.Length()
	if length < 0 {
		return audio.ErrNotSeekable
	}

	offset := max(frame, 0) * bytesPerFrame
	if offset >= length {
		s.pos, s.parked = length, true
		return nil
	}

	if _, err := s.dec.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrap(err, "seeking mp3 stream")
	}
	s.pos, s.parked = offset, false

	return nil
}

func (s *source) FramePosition() int64 { return s.pos / bytesPerFrame }

func (s *source) LengthFrames() int64 {
	length := s.dec.Length()
	if length < 0 {
		return -1
	}
	return length / bytesPerFrame
}

// Decoder decodes MPEG-1/2 layer III streams. Seeking and length reporting work
// when the input is an io.ReadSeeker.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening mp3 stream")
	}

	return &source{
		dec: dec,
		buf: make([]byte, 4096*bytesPerFrame),
	}, nil
}
