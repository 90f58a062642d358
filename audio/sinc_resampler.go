// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"
	"math"

	"github.com/oov/audio/resampler"
)

// SincResampler converts src to a target rate with the windowed-sinc resampler from
// github.com/oov/audio. Quality ranges from 0 (fastest) to 10 (best).
type SincResampler struct {
	src      Source
	channels int
	dstRate  int
	quality  int
	rs       *resampler.Resampler

	in       []float32
	planeIn  []float32
	planeOut []float32
	out      []float32
	outPos   int
	eof      bool
	pos      int64
}

var _ FrameSeeker = (*SincResampler)(nil)

func NewSincResampler(src Source, dstRate, quality int) (*SincResampler, error) {
	if dstRate <= 0 || src.SampleRate() <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if quality < 0 {
		quality = 0
	} else if quality > 10 {
		quality = 10
	}

	channels := src.Channels()
	const blockFrames = 1024
	outFrames := blockFrames*dstRate/src.SampleRate() + 64

	return &SincResampler{
		src:      src,
		channels: channels,
		dstRate:  dstRate,
		quality:  quality,
		rs:       resampler.New(channels, src.SampleRate(), dstRate, quality),
		in:       make([]float32, blockFrames*channels),
		planeIn:  make([]float32, blockFrames),
		planeOut: make([]float32, outFrames),
	}, nil
}

func (r *SincResampler) SampleRate() int { return r.dstRate }
func (r *SincResampler) Channels() int   { return r.channels }
func (r *SincResampler) BufSize() int    { return len(r.in) }

func (r *SincResampler) Close() error {
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// refill converts one block of source audio into r.out.
func (r *SincResampler) refill() error {
	n, err := r.src.ReadSamples(r.in)
	if err == io.EOF || (err == nil && n == 0) {
		r.eof = true
	} else if err != nil {
		return fmt.Errorf("%w", err)
	}

	frames := n / r.channels
	r.out = r.out[:0]
	r.outPos = 0
	if frames == 0 {
		return nil
	}

	written := 0
	for c := range r.channels {
		for f := range frames {
			r.planeIn[f] = r.in[f*r.channels+c]
		}

		// the resampler keeps per-channel history, so every channel sees the whole block
		in := r.planeIn[:frames]
		w := 0
		for len(in) > 0 {
			read, wrote := r.rs.ProcessFloat32(c, in, r.planeOut[w:])
			in = in[read:]
			w += wrote
			if read == 0 && wrote == 0 {
				break
			}
		}

		if c == 0 {
			written = w
			if cap(r.out) < written*r.channels {
				r.out = make([]float32, written*r.channels)
			}
			r.out = r.out[:written*r.channels]
		}
		for f := 0; f < written && f < w; f++ {
			r.out[f*r.channels+c] = r.planeOut[f]
		}
	}

	return nil
}

func (r *SincResampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	total := 0
	for total < len(dst) {
		if r.outPos >= len(r.out) {
			if r.eof {
				break
			}
			if err := r.refill(); err != nil {
				return total, err
			}
			continue
		}

		n := copy(dst[total:], r.out[r.outPos:])
		r.outPos += n
		total += n
	}

	r.pos += int64(total / r.channels)
	if total < len(dst) {
		return total, io.EOF
	}

	return total, nil
}

// SeekFrame moves to an output frame. The filter history is dropped, so the
// first few frames after a seek are built from the new position only.
func (r *SincResampler) SeekFrame(frame int64) error {
	s, ok := r.src.(FrameSeeker)
	if !ok {
		return ErrNotSeekable
	}

	frame = max(frame, 0)
	target := int64(math.Round(float64(frame) * float64(r.src.SampleRate()) / float64(r.dstRate)))
	if n := s.LengthFrames(); n >= 0 {
		target = min(target, n)
	}
	if err := s.SeekFrame(target); err != nil {
		return fmt.Errorf("%w", err)
	}

	r.rs = resampler.New(r.channels, r.src.SampleRate(), r.dstRate, r.quality)
	r.out = r.out[:0]
	r.outPos = 0
	r.eof = false
	r.pos = frame

	return nil
}

func (r *SincResampler) FramePosition() int64 { return r.pos }

// LengthFrames is the wrapped source length at the target rate, or -1 when
// unknown.
func (r *SincResampler) LengthFrames() int64 {
	s, ok := r.src.(FrameSeeker)
	if !ok {
		return -1
	}
	n := s.LengthFrames()
	if n < 0 {
		return -1
	}

	return n * int64(r.dstRate) / int64(r.src.SampleRate())
}
