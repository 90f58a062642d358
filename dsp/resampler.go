// SPDX-License-Identifier: EPL-2.0

package dsp

import "github.com/ik5/audmix/utils"

// ReadFunc pulls interleaved samples from upstream.
type ReadFunc func(dst []float32) (int, error)

// LinearResampler changes playback rate by linear interpolation between
// neighbouring frames. It is output driven: each call asks upstream for exactly
// the frames the requested output needs, carrying unconsumed frames over to the
// next call.
type LinearResampler struct {
	channels int
	pending  []float32
	pos      float64 // fractional read position into pending, in frames
	scratch  []float32
}

func NewLinearResampler(channels int) *LinearResampler {
	return &LinearResampler{
		channels: channels,
		pending:  make([]float32, 0, 4096),
	}
}

// Resample fills dst with output frames where every output frame advances the
// input by ratio frames. It returns the number of samples written; a short count
// means upstream is exhausted.
func (r *LinearResampler) Resample(dst []float32, ratio float64, read ReadFunc) (int, error) {
	ch := r.channels
	outFrames := len(dst) / ch
	if outFrames == 0 || ratio <= 0 {
		return 0, nil
	}

	// last output frame interpolates between floor(t) and floor(t)+1
	need := int(r.pos+float64(outFrames-1)*ratio) + 2
	have := len(r.pending) / ch

	var err error
	if need > have {
		want := (need - have) * ch
		if cap(r.scratch) < want {
			r.scratch = make([]float32, want)
		}
		n, rerr := read(r.scratch[:want])
		n -= n % ch
		r.pending = append(r.pending, r.scratch[:n]...)
		have = len(r.pending) / ch
		err = rerr
	}

	produced := 0
	t := r.pos
	for produced < outFrames {
		i := int(t)
		if i+1 >= have {
			break
		}
		x := float32(t - float64(i))
		a := r.pending[i*ch : (i+1)*ch]
		b := r.pending[(i+1)*ch : (i+2)*ch]
		out := dst[produced*ch : (produced+1)*ch]
		for c := range out {
			out[c] = utils.Lerp(a[c], b[c], x)
		}
		produced++
		t += ratio
	}

	drop := min(int(t), have)
	r.pending = r.pending[:copy(r.pending, r.pending[drop*ch:])]
	r.pos = t - float64(drop)

	return produced * ch, err
}

// Reset discards carried-over frames.
func (r *LinearResampler) Reset() {
	r.pending = r.pending[:0]
	r.pos = 0
}
