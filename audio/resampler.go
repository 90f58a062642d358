// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"
	"math"

	"github.com/ik5/audmix/utils"
)

// Resampler streams from src to a target sample rate using Catmull-Rom interpolation.
// Works on interleaved samples and preserves the channel count. When downsampling a
// one-pole low-pass smooths incoming frames to tame aliasing.
type Resampler struct {
	src      Source
	channels int
	dstRate  int
	step     float64 // source frames per output frame
	frac     float64 // position between window frames 1 and 2

	// window holds four frames: t-1, t0, t+1, t+2
	window []float32
	valid  [4]bool
	primed bool

	in     []float32
	inPos  int
	inLen  int
	eof    bool
	smooth bool
	prev   []float32

	// output frames produced since the last seek target
	pos int64
}

var _ FrameSeeker = (*Resampler)(nil)

func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()
	step := float64(src.SampleRate()) / float64(dstRate)

	return &Resampler{
		src:      src,
		channels: channels,
		dstRate:  dstRate,
		step:     step,
		window:   make([]float32, 4*channels),
		in:       make([]float32, 1024*channels),
		smooth:   step > 1,
		prev:     make([]float32, channels),
	}
}

func (r *Resampler) SampleRate() int { return r.dstRate }
func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) BufSize() int    { return r.src.BufSize() }

func (r *Resampler) Close() error {
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// nextFrame copies the next source frame into dst. It reports false once the source is drained.
func (r *Resampler) nextFrame(dst []float32) (bool, error) {
	for r.inPos >= r.inLen {
		if r.eof {
			return false, nil
		}
		n, err := r.src.ReadSamples(r.in)
		r.inPos, r.inLen = 0, n-n%r.channels
		if err == io.EOF {
			r.eof = true
		} else if err != nil {
			return false, fmt.Errorf("%w", err)
		} else if n == 0 {
			r.eof = true
		}
	}

	copy(dst, r.in[r.inPos:r.inPos+r.channels])
	r.inPos += r.channels

	if r.smooth {
		const alpha = 0.5
		for c := range dst {
			dst[c] = alpha*dst[c] + (1-alpha)*r.prev[c]
			r.prev[c] = dst[c]
		}
	}

	return true, nil
}

func (r *Resampler) slot(i int) []float32 {
	return r.window[i*r.channels : (i+1)*r.channels]
}

func (r *Resampler) prime() error {
	ok, err := r.nextFrame(r.slot(1))
	if err != nil {
		return err
	}
	if !ok {
		return io.EOF
	}
	if r.smooth {
		// restart the filter from the first frame to avoid a fade-in
		copy(r.prev, r.slot(1))
	}
	copy(r.slot(0), r.slot(1))
	r.valid[0], r.valid[1] = true, true

	for i := 2; i < 4; i++ {
		if err := r.fill(i); err != nil {
			return err
		}
	}
	r.primed = true

	return nil
}

// fill loads window slot i from the source, repeating slot i-1 past the end.
func (r *Resampler) fill(i int) error {
	ok, err := r.nextFrame(r.slot(i))
	if err != nil {
		return err
	}
	if !ok {
		copy(r.slot(i), r.slot(i-1))
	}
	r.valid[i] = ok

	return nil
}

func (r *Resampler) advance() error {
	copy(r.window, r.window[r.channels:])
	copy(r.valid[:], r.valid[1:])

	return r.fill(3)
}

// ReadSamples produces dst samples at the target rate.
// dst length should be a multiple of the channel count.
func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	frames, err := r.readFrames(dst)
	r.pos += int64(frames)

	return frames * r.channels, err
}

func (r *Resampler) readFrames(dst []float32) (int, error) {
	if !r.primed {
		if err := r.prime(); err != nil {
			return 0, err
		}
	}

	frames := len(dst) / r.channels
	written := 0
	ch := r.channels

	for written < frames {
		for r.frac >= 1 {
			r.frac--
			if err := r.advance(); err != nil {
				return written, err
			}
		}

		if !r.valid[2] {
			return written, io.EOF
		}

		x := float32(r.frac)
		out := dst[written*ch : (written+1)*ch]
		for c := range out {
			out[c] = utils.CubicInterpolate(r.window[c], r.window[ch+c], r.window[2*ch+c], r.window[3*ch+c], x)
		}

		written++
		r.frac += r.step
	}

	return written, nil
}

// SeekFrame moves to an output frame by seeking the wrapped source to the
// nearest source frame and restarting interpolation there.
func (r *Resampler) SeekFrame(frame int64) error {
	s, ok := r.src.(FrameSeeker)
	if !ok {
		return ErrNotSeekable
	}

	frame = max(frame, 0)
	target := int64(math.Round(float64(frame) * r.step))
	if n := s.LengthFrames(); n >= 0 {
		target = min(target, n)
	}
	if err := s.SeekFrame(target); err != nil {
		return fmt.Errorf("%w", err)
	}

	r.frac = 0
	clear(r.window)
	r.valid = [4]bool{}
	r.primed = false
	r.inPos, r.inLen = 0, 0
	r.eof = false
	clear(r.prev)
	r.pos = frame

	return nil
}

func (r *Resampler) FramePosition() int64 { return r.pos }

// LengthFrames is the number of frames the resampler yields from the start of
// the wrapped source, or -1 when the source length is unknown.
func (r *Resampler) LengthFrames() int64 {
	s, ok := r.src.(FrameSeeker)
	if !ok {
		return -1
	}
	n := s.LengthFrames()
	if n < 0 {
		return -1
	}
	if n < 2 {
		return 0
	}

	return int64(math.Ceil(float64(n-1) / r.step))
}
