// SPDX-License-Identifier: EPL-2.0

package audmix

import (
	"errors"
	"testing"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/mix"
	"github.com/ik5/audmix/sources"
)

func memorySource(t testing.TB, value float32, samples int) *sources.Memory {
	t.Helper()

	data := make([]float32, samples)
	for i := range data {
		data[i] = value
	}
	c, err := sources.NewCached(data, audio.Standard, -1, -1)
	if err != nil {
		t.Fatalf("NewCached() error = %v", err)
	}

	return c.NewReader()
}

// failingProvider yields n samples and then fails.
type failingProvider struct {
	n   int
	err error
}

func (p *failingProvider) Format() audio.Format { return audio.Standard }

func (p *failingProvider) Read(dst []float32) (int, error) {
	n := min(p.n, len(dst))
	clear(dst[:n])
	p.n -= n
	if n < len(dst) {
		return n, p.err
	}
	return n, nil
}

func TestRender_Blocks(t *testing.T) {
	t.Parallel()

	out, err := Render(memorySource(t, 0.5, 1000), 600, 256)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(out) != 600 {
		t.Fatalf("Render() got %d samples, want 600", len(out))
	}
	for i, v := range out {
		if v != 0.5 {
			t.Fatalf("out[%d] = %v, want 0.5", i, v)
		}
	}
}

func TestRender_StopsAtEnd(t *testing.T) {
	t.Parallel()

	out, err := Render(memorySource(t, 0.25, 300), 1000, 0)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(out) != 300 {
		t.Errorf("Render() got %d samples, want 300", len(out))
	}
}

func TestRender_Mixer(t *testing.T) {
	t.Parallel()

	m := mix.NewMixer(audio.Standard)
	for _, v := range []float32{0.25, 0.5} {
		snd := newSound(memorySource(t, v, 100), m, CategorySFX)
		if err := snd.Play(); err != nil {
			t.Fatalf("Play() error = %v", err)
		}
	}

	// the mixer reads fully, so it pads past the end of its inputs
	out, err := Render(m, 200, 64)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(out) != 200 {
		t.Fatalf("Render() got %d samples, want 200", len(out))
	}
	if out[99] != 0.75 || out[100] != 0 {
		t.Errorf("out[99], out[100] = %v, %v, want 0.75, 0", out[99], out[100])
	}
}

func TestRender_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	out, err := Render(&failingProvider{n: 10, err: boom}, 100, 64)
	if !errors.Is(err, boom) {
		t.Fatalf("Render() error = %v, want %v", err, boom)
	}
	if len(out) != 10 {
		t.Errorf("Render() kept %d samples, want 10", len(out))
	}

	if _, err := Render(nil, 10, 10); !errors.Is(err, ErrNilProvider) {
		t.Errorf("Render(nil) error = %v, want %v", err, ErrNilProvider)
	}
}

func TestRenderPCM16_Clamping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value float32
		want  int16
	}{
		{"half", 0.5, 16383},
		{"full", 1, 32767},
		{"over", 2, 32767},
		{"under", -2, -32768},
		{"silence", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pcm, err := RenderPCM16(memorySource(t, tt.value, 8), 8, 4)
			if err != nil {
				t.Fatalf("RenderPCM16() error = %v", err)
			}
			if len(pcm) != 8 {
				t.Fatalf("RenderPCM16() got %d samples, want 8", len(pcm))
			}
			if pcm[0] != tt.want {
				t.Errorf("pcm[0] = %d, want %d", pcm[0], tt.want)
			}
		})
	}
}

func BenchmarkRender(b *testing.B) {
	src := memorySource(b, 0.5, audio.ReadBufferSize)
	for b.Loop() {
		_ = src.SetPosition(0)
		if _, err := Render(src, audio.ReadBufferSize, 4096); err != nil {
			b.Fatal(err)
		}
	}
}
