// SPDX-License-Identifier: EPL-2.0

package dsp

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func settle(b *BiQuad, in float32, n int) float32 {
	var out float32
	for range n {
		out = b.Transform(in)
	}
	return out
}

func TestBiQuad_DCResponse(t *testing.T) {
	t.Parallel()

	lp := NewLowPass(44100, 500, 0.7)
	test.That(t, math.Abs(float64(settle(lp, 1, 20000)-1)), test.ShouldBeLessThan, 1e-3)

	hp := NewHighPass(44100, 100, 0.7)
	test.That(t, math.Abs(float64(settle(hp, 1, 20000))), test.ShouldBeLessThan, 1e-3)

	ap := NewAllPass(44100, 8500, 0.7)
	test.That(t, math.Abs(float64(settle(ap, 1, 20000)-1)), test.ShouldBeLessThan, 1e-3)
}

func TestBiQuad_LowPassAttenuatesNyquist(t *testing.T) {
	t.Parallel()

	lp := NewLowPass(44100, 500, 0.7)
	var peak float32
	for i := range 4000 {
		in := float32(1)
		if i%2 == 1 {
			in = -1
		}
		out := lp.Transform(in)
		if i > 2000 && float32(math.Abs(float64(out))) > peak {
			peak = float32(math.Abs(float64(out)))
		}
	}
	test.That(t, peak, test.ShouldBeLessThan, 0.01)
}

func TestStereoBiQuad_ChannelsIndependent(t *testing.T) {
	t.Parallel()

	var s StereoBiQuad
	s.SetHighPass(44100, 100, 0.7)

	buf := make([]float32, 40000)
	for i := 0; i < len(buf); i += 2 {
		buf[i] = 1
	}
	s.Process(buf)

	test.That(t, math.Abs(float64(buf[len(buf)-2])), test.ShouldBeLessThan, 1e-3)
	for i := 1; i < len(buf); i += 2 {
		if buf[i] != 0 {
			t.Fatalf("right channel leaked at %d: %v", i, buf[i])
		}
	}
}

func rampReader(total int) (ReadFunc, *int) {
	pos := 0
	return func(dst []float32) (int, error) {
		n := 0
		for n < len(dst) && pos < total {
			dst[n] = float32(pos)
			pos++
			n++
		}
		return n, nil
	}, &pos
}

func TestLinearResampler_Identity(t *testing.T) {
	t.Parallel()

	read, _ := rampReader(1000)
	r := NewLinearResampler(1)
	var got []float32
	buf := make([]float32, 64)
	for {
		n, err := r.Resample(buf, 1, read)
		test.That(t, err, test.ShouldBeNil)
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}

	test.That(t, len(got), test.ShouldEqual, 999)
	for i, v := range got {
		if v != float32(i) {
			t.Fatalf("got[%d] = %v, want %d", i, v, i)
		}
	}
}

func TestLinearResampler_Ratios(t *testing.T) {
	t.Parallel()

	for _, ratio := range []float64{2, 0.5, 1.5} {
		read, _ := rampReader(10000)
		r := NewLinearResampler(1)
		buf := make([]float32, 37)

		k := 0
		for range 20 {
			n, err := r.Resample(buf, ratio, read)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, n, test.ShouldEqual, len(buf))
			for _, v := range buf[:n] {
				want := float64(k) * ratio
				if math.Abs(float64(v)-want) > 1e-3 {
					t.Fatalf("ratio %v: output %d = %v, want %v", ratio, k, v, want)
				}
				k++
			}
		}
	}
}

func TestLinearResampler_Stereo(t *testing.T) {
	t.Parallel()

	read, pos := rampReader(400)
	r := NewLinearResampler(2)
	buf := make([]float32, 20)

	n, err := r.Resample(buf, 2, read)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 20)
	// frame k of the output is input frame 2k: samples 4k and 4k+1
	for k := range 10 {
		test.That(t, buf[2*k], test.ShouldEqual, float32(4*k))
		test.That(t, buf[2*k+1], test.ShouldEqual, float32(4*k+1))
	}
	test.That(t, *pos, test.ShouldBeLessThanOrEqualTo, 44)
}

func TestLinearResampler_EndOfStream(t *testing.T) {
	t.Parallel()

	read, _ := rampReader(10)
	r := NewLinearResampler(1)
	buf := make([]float32, 64)

	n, err := r.Resample(buf, 1, read)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 9)

	n, err = r.Resample(buf, 1, read)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 0)
}

func TestLimit(t *testing.T) {
	t.Parallel()

	test.That(t, Limit(0.5), test.ShouldEqual, float32(0.5))
	test.That(t, Limit(-0.9), test.ShouldEqual, float32(-0.9))

	hi := Limit(10)
	test.That(t, hi, test.ShouldBeGreaterThan, float32(0.95))
	test.That(t, hi, test.ShouldBeLessThan, float32(1))
	test.That(t, Limit(-10), test.ShouldEqual, -hi)
}

func TestFFT_RoundTrip(t *testing.T) {
	t.Parallel()

	const size = 64
	buf := make([]float64, 2*size)
	orig := make([]float64, size)
	for i := range size {
		orig[i] = math.Sin(float64(i) * 0.3)
		buf[2*i] = orig[i]
	}

	fft(buf, size, -1)
	fft(buf, size, 1)

	for i := range size {
		test.That(t, math.Abs(buf[2*i]/size-orig[i]), test.ShouldBeLessThan, 1e-9)
	}
}

func TestPitchShifter_ProducesSignal(t *testing.T) {
	t.Parallel()

	p := NewPitchShifter(1024, 4, 44100)
	buf := make([]float32, 8192)
	for i := range buf {
		buf[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/44100))
	}
	p.Process(2, buf)

	// nothing has been synthesized before the first analysis frame completes
	for i := range 1024 / 4 {
		test.That(t, buf[i], test.ShouldEqual, float32(0))
	}

	var energy float64
	for _, v := range buf[p.Latency():] {
		test.That(t, math.IsNaN(float64(v)), test.ShouldBeFalse)
		energy += float64(v * v)
	}
	test.That(t, energy, test.ShouldBeGreaterThan, 1.0)
}
