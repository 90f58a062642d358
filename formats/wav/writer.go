// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"io"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/utils"
	"github.com/pkg/errors"
)

// Writer encodes interleaved float samples as integer PCM. The header sizes are
// patched on Close, so the destination must be seekable.
type Writer struct {
	enc      *gowav.Encoder
	format   audio.Format
	bitDepth int
	buf      *goaudio.IntBuffer
	frames   int64
	closed   bool
}

// NewWriter starts a WAV file on w. bitDepth is 8, 16, 24 or 32.
func NewWriter(w io.WriteSeeker, format audio.Format, bitDepth int) (*Writer, error) {
	if format.SampleRate <= 0 {
		return nil, audio.ErrInvalidSampleRate
	}
	if format.Channels <= 0 {
		return nil, audio.ErrUnsupportedChannelCount
	}

	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, errors.Wrapf(ErrUnsupportedEncoding, "%d bits", bitDepth)
	}

	return &Writer{
		enc:      gowav.NewEncoder(w, format.SampleRate, bitDepth, format.Channels, formatPCM),
		format:   format,
		bitDepth: bitDepth,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: format.Channels,
				SampleRate:  format.SampleRate,
			},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

func (w *Writer) Format() audio.Format { return w.format }

// Frames reports how many frames were written so far.
func (w *Writer) Frames() int64 { return w.frames }

// Write appends samples, which must hold whole frames. Values outside [-1, 1]
// are clipped.
func (w *Writer) Write(samples []float32) error {
	if w.closed {
		return ErrWriterClosed
	}
	if len(samples)%w.format.Channels != 0 {
		return audio.ErrInvalidDstSize
	}
	if len(samples) == 0 {
		return nil
	}

	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]

	for i, x := range samples {
		v := utils.Float32ToInt(x, w.bitDepth)
		// 8-bit WAV is unsigned.
		if w.bitDepth == 8 {
			v += 128
		}
		w.buf.Data[i] = v
	}

	if err := w.enc.Write(w.buf); err != nil {
		return errors.Wrap(err, "encoding WAV samples")
	}
	w.frames += int64(len(samples) / w.format.Channels)

	return nil
}

// Close finalizes the header. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	// The encoder only emits its headers on the first Write.
	if w.frames == 0 {
		w.buf.Data = w.buf.Data[:0]
		if err := w.enc.Write(w.buf); err != nil {
			return errors.Wrap(err, "writing WAV header")
		}
	}

	return errors.Wrap(w.enc.Close(), "finalizing WAV file")
}
