// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/ik5/audmix/audio"
)

func chunk(id string, body []byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(id)
	binary.Write(buf, binary.LittleEndian, uint32(len(body)))
	buf.Write(body)
	if len(body)%2 == 1 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func fmtBody(encoding uint16, channels, rate, bits int) []byte {
	buf := new(bytes.Buffer)
	blockAlign := channels * bits / 8
	binary.Write(buf, binary.LittleEndian, encoding)
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(rate))
	binary.Write(buf, binary.LittleEndian, uint32(rate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bits))
	return buf.Bytes()
}

func riffFile(chunks ...[]byte) []byte {
	body := bytes.Join(chunks, nil)
	buf := new(bytes.Buffer)
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(4+len(body)))
	buf.WriteString("WAVE")
	buf.Write(body)
	return buf.Bytes()
}

func pcm16(samples ...int16) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

// streamOnly hides the Seek method of the wrapped reader.
type streamOnly struct{ io.Reader }

func readAll(t *testing.T, src audio.Source) []float32 {
	t.Helper()

	var out []float32
	buf := make([]float32, 3*src.Channels())
	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}
}

func TestDecoder_PCM16(t *testing.T) {
	t.Parallel()

	data := riffFile(
		chunk("fmt ", fmtBody(formatPCM, 2, 22050, 16)),
		chunk("data", pcm16(0, 16384, -32768, 8192)),
	)

	src, err := Decoder{}.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if src.SampleRate() != 22050 || src.Channels() != 2 {
		t.Fatalf("format = %d Hz x %d, want 22050 Hz x 2", src.SampleRate(), src.Channels())
	}

	got := readAll(t, src)
	want := []float32{0, 0.5, -1, 0.25}
	if len(got) != len(want) {
		t.Fatalf("read %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDecoder_SkipsUnknownChunks(t *testing.T) {
	t.Parallel()

	data := riffFile(
		chunk("LIST", []byte("INFOodd")),
		chunk("fmt ", fmtBody(formatPCM, 1, 8000, 16)),
		chunk("fact", []byte{1, 0, 0, 0}),
		chunk("data", pcm16(100, 200)),
		chunk("LIST", []byte("trailing data that is not audio")),
	)

	for name, r := range map[string]io.Reader{
		"seekable": bytes.NewReader(data),
		"stream":   streamOnly{bytes.NewReader(data)},
	} {
		src, err := Decoder{}.Decode(r)
		if err != nil {
			t.Fatalf("%s: Decode() error = %v", name, err)
		}

		got := readAll(t, src)
		if len(got) != 2 {
			t.Fatalf("%s: read %d samples, want 2", name, len(got))
		}
		if got[1] != 200.0/32768 {
			t.Errorf("%s: sample 1 = %v, want %v", name, got[1], 200.0/32768)
		}
	}
}

func TestDecoder_Encodings(t *testing.T) {
	t.Parallel()

	float32Bytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(float32Bytes, math.Float32bits(0.25))
	float64Bytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(float64Bytes, math.Float64bits(-0.75))

	int32Bytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(int32Bytes, 1<<30)

	extensible := append(fmtBody(formatExtensible, 1, 44100, 32), make([]byte, 24)...)
	binary.LittleEndian.PutUint16(extensible[16:], 22)
	binary.LittleEndian.PutUint16(extensible[24:], formatFloat)

	tests := []struct {
		name string
		fmt  []byte
		data []byte
		want []float32
	}{
		{"8-bit", fmtBody(formatPCM, 1, 8000, 8), []byte{0, 128, 192}, []float32{-1, 0, 0.5}},
		{"24-bit", fmtBody(formatPCM, 1, 8000, 24), []byte{0x00, 0x00, 0x40, 0x00, 0x00, 0xC0}, []float32{0.5, -0.5}},
		{"32-bit", fmtBody(formatPCM, 1, 8000, 32), int32Bytes, []float32{0.5}},
		{"float32", fmtBody(formatFloat, 1, 8000, 32), float32Bytes, []float32{0.25}},
		{"float64", fmtBody(formatFloat, 1, 8000, 64), float64Bytes, []float32{-0.75}},
		{"extensible float", extensible, float32Bytes, []float32{0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src, err := Decoder{}.Decode(bytes.NewReader(riffFile(chunk("fmt ", tt.fmt), chunk("data", tt.data))))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			got := readAll(t, src)
			if len(got) != len(tt.want) {
				t.Fatalf("read %d samples, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("sample %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDecoder_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrNotWavFile},
		{"not riff", []byte("This is not a WAV file"), ErrNotWavFile},
		{"adpcm", riffFile(chunk("fmt ", fmtBody(2, 1, 8000, 4)), chunk("data", []byte{0})), ErrUnsupportedEncoding},
		{"12-bit", riffFile(chunk("fmt ", fmtBody(formatPCM, 1, 8000, 12)), chunk("data", nil)), ErrUnsupportedEncoding},
		{"zero channels", riffFile(chunk("fmt ", fmtBody(formatPCM, 0, 8000, 16))), ErrUnsupportedWavLayout},
		{"short fmt", riffFile(chunk("fmt ", []byte{1, 0})), ErrUnsupportedWavLayout},
		{"data first", riffFile(chunk("data", pcm16(1)), chunk("fmt ", fmtBody(formatPCM, 1, 8000, 16))), ErrUnsupportedWavChunks},
		{"no data", riffFile(chunk("fmt ", fmtBody(formatPCM, 1, 8000, 16))), ErrMissingDataChunk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decoder{}.Decode(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecoder_SeekFrame(t *testing.T) {
	t.Parallel()

	data := riffFile(
		chunk("fmt ", fmtBody(formatPCM, 2, 8000, 16)),
		chunk("data", pcm16(0, 1, 2, 3, 4, 5, 6, 7)),
	)

	src, err := Decoder{}.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	fs, ok := src.(audio.FrameSeeker)
	if !ok {
		t.Fatal("source does not implement audio.FrameSeeker")
	}
	if got := fs.LengthFrames(); got != 4 {
		t.Fatalf("LengthFrames() = %d, want 4", got)
	}

	if err := fs.SeekFrame(2); err != nil {
		t.Fatalf("SeekFrame() error = %v", err)
	}
	buf := make([]float32, 2)
	if _, err := src.ReadSamples(buf); err != nil {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if buf[0] != 4.0/32768 || buf[1] != 5.0/32768 {
		t.Errorf("frame after seek = %v, want [4 5]/32768", buf)
	}
	if got := fs.FramePosition(); got != 3 {
		t.Errorf("FramePosition() = %d, want 3", got)
	}

	if err := fs.SeekFrame(100); err != nil {
		t.Fatalf("SeekFrame(100) error = %v", err)
	}
	if n, err := src.ReadSamples(buf); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadSamples() past end = %d, %v; want 0, EOF", n, err)
	}
}

func TestDecoder_StreamNotSeekable(t *testing.T) {
	t.Parallel()

	data := riffFile(
		chunk("fmt ", fmtBody(formatPCM, 1, 8000, 16)),
		chunk("data", pcm16(1, 2, 3)),
	)

	src, err := Decoder{}.Decode(streamOnly{bytes.NewReader(data)})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	fs := src.(audio.FrameSeeker)
	if got := fs.LengthFrames(); got != -1 {
		t.Errorf("LengthFrames() = %d, want -1", got)
	}
	if err := fs.SeekFrame(0); !errors.Is(err, audio.ErrNotSeekable) {
		t.Errorf("SeekFrame() error = %v, want %v", err, audio.ErrNotSeekable)
	}
}
