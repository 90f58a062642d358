// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/utils"
	"github.com/pkg/errors"
)

const (
	formatPCM        = 0x0001
	formatFloat      = 0x0003
	formatExtensible = 0xFFFE

	// streamingSize marks a data chunk whose length was not known when written.
	streamingSize = 0xFFFFFFFF
)

// layout describes the sample encoding found in the fmt chunk.
type layout struct {
	encoding   uint16
	channels   int
	sampleRate int
	bitDepth   int
	blockAlign int
}

func (l layout) bytesPerSample() int { return l.bitDepth / 8 }

func (l layout) validate() error {
	if l.channels <= 0 || l.sampleRate <= 0 {
		return ErrUnsupportedWavLayout
	}

	switch l.encoding {
	case formatPCM:
		switch l.bitDepth {
		case 8, 16, 24, 32:
			return nil
		}
	case formatFloat:
		if l.bitDepth == 32 || l.bitDepth == 64 {
			return nil
		}
	}

	return errors.Wrapf(ErrUnsupportedEncoding, "format %#04x, %d bits", l.encoding, l.bitDepth)
}

// sample decodes one sample starting at b.
func (l layout) sample(b []byte) float32 {
	switch l.encoding {
	case formatFloat:
		if l.bitDepth == 64 {
			return float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	}

	switch l.bitDepth {
	case 8:
		return utils.IntToFloat32(int(b[0])-128, 8)
	case 24:
		v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
		return utils.IntToFloat32(int(v), 24)
	case 32:
		return utils.IntToFloat32(int(int32(binary.LittleEndian.Uint32(b))), 32)
	default:
		return utils.IntToFloat32(int(int16(binary.LittleEndian.Uint16(b))), 16)
	}
}

type wavSource struct {
	r      io.Reader
	seeker io.Seeker
	// base is the offset of the first data byte when seeker is set.
	base int64

	layout  layout
	dataLen int64 // bytes; -1 when unknown
	read    int64 // data bytes consumed
	buf     []byte
}

func (s *wavSource) SampleRate() int { return s.layout.sampleRate }
func (s *wavSource) Channels() int   { return s.layout.channels }
func (s *wavSource) BufSize() int    { return len(s.buf) / s.layout.bytesPerSample() }
func (s *wavSource) Close() error    { return nil }

func (s *wavSource) ReadSamples(dst []float32) (int, error) {
	frames := len(dst) / s.layout.channels
	if frames == 0 {
		return 0, nil
	}

	want := int64(frames * s.layout.blockAlign)
	if s.dataLen >= 0 {
		want = min(want, s.dataLen-s.read)
	}
	if want <= 0 {
		return 0, io.EOF
	}
	if int64(len(s.buf)) < want {
		s.buf = make([]byte, want)
	}

	n, err := io.ReadFull(s.r, s.buf[:want])
	s.read += int64(n)

	width := s.layout.bytesPerSample()
	samples := (n / s.layout.blockAlign) * s.layout.channels
	for i := range samples {
		dst[i] = s.layout.sample(s.buf[i*width:])
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
		return samples, errors.Wrap(err, "reading WAV data")
	}
}

// SeekFrame moves to frame, clamped to the data chunk. It fails with
// audio.ErrNotSeekable when the input is not an io.Seeker.
func (s *wavSource) SeekFrame(frame int64) error {
	if s.seeker == nil {
		return audio.ErrNotSeekable
	}

	frame = max(frame, 0)
	if total := s.LengthFrames(); total >= 0 {
		frame = min(frame, total)
	}

	offset := frame * int64(s.layout.blockAlign)
	if _, err := s.seeker.Seek(s.base+offset, io.SeekStart); err != nil {
		return errors.Wrap(err, "seeking WAV data")
	}
	s.read = offset

	return nil
}

func (s *wavSource) FramePosition() int64 {
	return s.read / int64(s.layout.blockAlign)
}

func (s *wavSource) LengthFrames() int64 {
	if s.seeker == nil || s.dataLen < 0 {
		return -1
	}
	return s.dataLen / int64(s.layout.blockAlign)
}

// Decoder reads RIFF/WAVE files holding PCM (8, 16, 24 or 32 bit) or IEEE float
// (32 or 64 bit) samples. Unknown chunks are skipped. When the input is an
// io.ReadSeeker the returned source also implements audio.FrameSeeker.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, errors.Wrapf(ErrNotWavFile, "reading RIFF header: %v", err)
	}
	if string(riff[:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, ErrNotWavFile
	}

	var (
		l       layout
		haveFmt bool
		header  [8]byte
	)

	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrMissingDataChunk
			}
			return nil, errors.Wrap(err, "reading WAV chunk header")
		}

		id := string(header[:4])
		size := int64(binary.LittleEndian.Uint32(header[4:]))

		switch id {
		case "fmt ":
			parsed, err := readFormat(r, size)
			if err != nil {
				return nil, err
			}
			l, haveFmt = parsed, true
		case "data":
			if !haveFmt {
				return nil, errors.Wrap(ErrUnsupportedWavChunks, "data chunk before fmt chunk")
			}
			return newSource(r, l, size)
		default:
			if err := skip(r, size+size%2); err != nil {
				return nil, errors.Wrapf(err, "skipping %q chunk", id)
			}
		}
	}
}

func readFormat(r io.Reader, size int64) (layout, error) {
	if size < 16 {
		return layout{}, ErrUnsupportedWavLayout
	}

	chunk := make([]byte, size+size%2)
	if _, err := io.ReadFull(r, chunk); err != nil {
		return layout{}, errors.Wrap(err, "reading fmt chunk")
	}

	l := layout{
		encoding:   binary.LittleEndian.Uint16(chunk[0:2]),
		channels:   int(binary.LittleEndian.Uint16(chunk[2:4])),
		sampleRate: int(binary.LittleEndian.Uint32(chunk[4:8])),
		bitDepth:   int(binary.LittleEndian.Uint16(chunk[14:16])),
	}

	// WAVE_FORMAT_EXTENSIBLE keeps the real format tag in the first two bytes of
	// the sub-format GUID.
	if l.encoding == formatExtensible {
		if size < 40 {
			return layout{}, ErrUnsupportedWavLayout
		}
		l.encoding = binary.LittleEndian.Uint16(chunk[24:26])
	}

	if err := l.validate(); err != nil {
		return layout{}, err
	}
	l.blockAlign = l.channels * l.bytesPerSample()

	return l, nil
}

func newSource(r io.Reader, l layout, size int64) (*wavSource, error) {
	s := &wavSource{
		r:       r,
		layout:  l,
		dataLen: size,
		buf:     make([]byte, 4096*l.blockAlign),
	}
	if size == streamingSize {
		s.dataLen = -1
	}

	if seeker, ok := r.(io.Seeker); ok {
		base, err := seeker.Seek(0, io.SeekCurrent)
		if err == nil {
			s.seeker, s.base = seeker, base
		}
	}

	return s, nil
}

func skip(r io.Reader, n int64) error {
	if seeker, ok := r.(io.Seeker); ok {
		_, err := seeker.Seek(n, io.SeekCurrent)
		return err
	}

	_, err := io.CopyN(io.Discard, r, n)
	return err
}
