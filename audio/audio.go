// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Source is a decoded PCM stream as produced by a Decoder.
type Source interface {
	// SampleRate of the PCM stream in Hz.
	SampleRate() int
	// Channels count (e.g., 1=mono, 2=stereo).
	Channels() int
	// ReadSamples fills dst with interleaved float32 samples in [-1,1].
	// Returns number of float32 values written (not frames). When n == 0 with err == io.EOF, the stream is finished.
	ReadSamples(dst []float32) (n int, err error)

	BufSize() int

	// Close releases any resources.
	Close() error
}

// FrameSeeker is implemented by sources whose container supports random access.
// Positions are in frames of the source's native layout.
type FrameSeeker interface {
	SeekFrame(frame int64) error
	FramePosition() int64
	// LengthFrames reports the total frame count, or -1 when unknown.
	LengthFrames() int64
}

// Tagged is implemented by sources that carry key/value comments (e.g. Vorbis comments).
type Tagged interface {
	Comments() map[string]string
}

// Decoder constructs a Source from an input reader.
type Decoder interface {
	Decode(r io.Reader) (Source, error)
}

// Registry for decoders by format key (e.g., "wav", "mp3", "ogg").
type Registry struct {
	codecs map[string]Decoder

	mtx *sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[string]Decoder),
		mtx:    &sync.Mutex{},
	}
}

// Register binds d to a format key. Keys are case-insensitive and a leading dot is ignored,
// so "OGG", ".ogg" and "ogg" are the same key.
func (r *Registry) Register(format string, d Decoder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.codecs[formatKey(format)] = d
}

func (r *Registry) Get(format string) (Decoder, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	d, ok := r.codecs[formatKey(format)]
	return d, ok
}

// ForFile returns the decoder registered for the extension of name.
func (r *Registry) ForFile(name string) (Decoder, bool) {
	return r.Get(filepath.Ext(name))
}

// Formats lists the registered keys in sorted order.
func (r *Registry) Formats() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	keys := make([]string, 0, len(r.codecs))
	for k := range r.codecs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

func formatKey(format string) string {
	return strings.ToLower(strings.TrimPrefix(format, "."))
}
