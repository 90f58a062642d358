// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/ik5/audmix/audio"
)

// seekBuffer is an in-memory io.WriteSeeker.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		b.pos = int(offset)
	case io.SeekCurrent:
		b.pos += int(offset)
	case io.SeekEnd:
		b.pos = len(b.data) + int(offset)
	}
	return int64(b.pos), nil
}

func TestWriter_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, bits := range []int{8, 16, 24, 32} {
		out := &seekBuffer{}
		w, err := NewWriter(out, audio.Format{SampleRate: 48000, Channels: 2}, bits)
		if err != nil {
			t.Fatalf("%d bits: NewWriter() error = %v", bits, err)
		}

		in := []float32{0, 0.5, -0.5, -1, 1, 2}
		if err := w.Write(in); err != nil {
			t.Fatalf("%d bits: Write() error = %v", bits, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("%d bits: Close() error = %v", bits, err)
		}
		if w.Frames() != 3 {
			t.Errorf("%d bits: Frames() = %d, want 3", bits, w.Frames())
		}

		src, err := Decoder{}.Decode(bytes.NewReader(out.data))
		if err != nil {
			t.Fatalf("%d bits: Decode() error = %v", bits, err)
		}
		if src.SampleRate() != 48000 || src.Channels() != 2 {
			t.Fatalf("%d bits: format = %d Hz x %d", bits, src.SampleRate(), src.Channels())
		}

		got := readAll(t, src)
		want := []float32{0, 0.5, -0.5, -1, 1, 1}
		if len(got) != len(want) {
			t.Fatalf("%d bits: read %d samples, want %d", bits, len(got), len(want))
		}
		tolerance := 2 / float64(int(1)<<(bits-1))
		for i := range want {
			if math.Abs(float64(got[i]-want[i])) > tolerance {
				t.Errorf("%d bits: sample %d = %v, want %v", bits, i, got[i], want[i])
			}
		}
	}
}

func TestWriter_EmptyFile(t *testing.T) {
	t.Parallel()

	out := &seekBuffer{}
	w, err := NewWriter(out, audio.Standard, 16)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	src, err := Decoder{}.Decode(bytes.NewReader(out.data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := src.(audio.FrameSeeker).LengthFrames(); got != 0 {
		t.Errorf("LengthFrames() = %d, want 0", got)
	}
}

func TestWriter_Errors(t *testing.T) {
	t.Parallel()

	if _, err := NewWriter(&seekBuffer{}, audio.Standard, 12); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("NewWriter(12 bits) error = %v, want %v", err, ErrUnsupportedEncoding)
	}
	if _, err := NewWriter(&seekBuffer{}, audio.Format{Channels: 2}, 16); !errors.Is(err, audio.ErrInvalidSampleRate) {
		t.Errorf("NewWriter(0 Hz) error = %v, want %v", err, audio.ErrInvalidSampleRate)
	}

	w, err := NewWriter(&seekBuffer{}, audio.Standard, 16)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if err := w.Write([]float32{0, 0, 0}); !errors.Is(err, audio.ErrInvalidDstSize) {
		t.Errorf("Write(partial frame) error = %v, want %v", err, audio.ErrInvalidDstSize)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Write([]float32{0, 0}); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Write() after Close error = %v, want %v", err, ErrWriterClosed)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
