// SPDX-License-Identifier: EPL-2.0

package sources

import (
	"io"
	"os"
	"path/filepath"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/formats/aiff"
	"github.com/ik5/audmix/formats/mp3"
	"github.com/ik5/audmix/formats/vorbis"
	"github.com/ik5/audmix/formats/wav"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// DefaultRegistry knows every container this module can decode.
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *audio.Registry {
	r := audio.NewRegistry()
	r.Register("wav", wav.Decoder{})
	r.Register("wave", wav.Decoder{})
	r.Register("mp3", mp3.Decoder{})
	r.Register("ogg", vorbis.Decoder{})
	r.Register("oga", vorbis.Decoder{})
	r.Register("aif", aiff.Decoder{})
	r.Register("aiff", aiff.Decoder{})

	return r
}

// Options control how files are turned into graph-format sources.
type Options struct {
	// ResampleQuality selects cubic interpolation at 0 and a windowed-sinc
	// filter of increasing length from 1 to 10.
	ResampleQuality int
	// Registry resolves decoders by file extension. Nil means DefaultRegistry.
	Registry *audio.Registry
}

func (o Options) registry() *audio.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return DefaultRegistry
}

// Normalize converts src to the graph format: resampled to 44100 Hz and mono
// expanded to stereo. ratio is graph rate over source rate. Sources with more
// than two channels are rejected.
func Normalize(src audio.Source, quality int) (out audio.Source, ratio float64, err error) {
	rate, channels := src.SampleRate(), src.Channels()
	if rate <= 0 {
		return nil, 0, audio.ErrInvalidSampleRate
	}
	if channels != 1 && channels != 2 {
		return nil, 0, errors.Wrapf(audio.ErrUnsupportedChannelCount, "%d channels", channels)
	}

	out = src
	if rate != audio.StandardSampleRate {
		if quality <= 0 {
			out = audio.NewResampler(out, audio.StandardSampleRate)
		} else {
			out, err = audio.NewSincResampler(out, audio.StandardSampleRate, quality)
			if err != nil {
				return nil, 0, err
			}
		}
	}

	if channels == 1 {
		out, err = audio.NewStereoExpander(out)
		if err != nil {
			return nil, 0, err
		}
	}

	return out, float64(audio.StandardSampleRate) / float64(rate), nil
}

// Decode picks a decoder from name's extension and decodes r with it.
func Decode(r io.Reader, name string, opts Options) (audio.Source, error) {
	dec, ok := opts.registry().ForFile(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", filepath.Ext(name))
	}

	src, err := dec.Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", name)
	}

	return src, nil
}

// LoadFile decodes the whole file at path into memory.
func LoadFile(path string, opts Options) (*Cached, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening audio file")
	}
	defer f.Close()

	src, err := Decode(f, path, opts)
	if err != nil {
		return nil, err
	}

	return LoadCached(src, opts.ResampleQuality)
}

// OpenStream opens path for streaming playback. The file stays open until the
// stream is closed.
func OpenStream(path string, opts Options) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening audio file")
	}

	src, err := Decode(f, path, opts)
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}

	s, err := NewStream(src, opts.ResampleQuality)
	if err != nil {
		return nil, multierr.Combine(err, src.Close(), f.Close())
	}
	s.closer = f

	return s, nil
}
