// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/ik5/audmix"
	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/filters"
	"github.com/ik5/audmix/formats/wav"
	"github.com/ik5/audmix/output"
	"go.viam.com/test"
)

func writeInput(t *testing.T, path string, frames int, value float32) {
	t.Helper()

	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()

	w, err := wav.NewWriter(f, audio.Standard, 16)
	test.That(t, err, test.ShouldBeNil)
	samples := make([]float32, frames*2)
	for i := range samples {
		samples[i] = value
	}
	test.That(t, w.Write(samples), test.ShouldBeNil)
	test.That(t, w.Close(), test.ShouldBeNil)
}

func decodeOutput(t *testing.T, path string) (audio.Source, int64) {
	t.Helper()

	f, err := os.Open(path)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { f.Close() })

	src, err := wav.Decoder{}.Decode(f)
	test.That(t, err, test.ShouldBeNil)

	return src, src.(audio.FrameSeeker).LengthFrames()
}

func TestParseFlagsOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "audmix.yaml")
	test.That(t, os.WriteFile(cfgPath, []byte("output: wav\nlatency_ms: 20\ndevice_index: 1\n"), 0o600), test.ShouldBeNil)

	opts, v, rest, err := parseFlags([]string{
		"--config", cfgPath,
		"--output", "null",
		"--device", "3",
		"--pan", "-0.5",
		"--loop",
		"a.ogg", "b.wav",
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rest, test.ShouldResemble, []string{"a.ogg", "b.wav"})
	test.That(t, opts.filters.loop, test.ShouldBeTrue)

	cfg, err := audmix.ConfigFrom(v)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Output, test.ShouldEqual, audmix.OutputNull)
	test.That(t, cfg.DeviceIndex, test.ShouldEqual, 3)
	test.That(t, cfg.Latency, test.ShouldEqual, 20*time.Millisecond)

	_, _, _, err = parseFlags([]string{"--no-such-flag"})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFilterFlagsBuild(t *testing.T) {
	opts, _, _, err := parseFlags([]string{"--config", "", "x.wav"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.filters.build(), test.ShouldBeEmpty)

	opts, _, _, err = parseFlags([]string{
		"--config", "",
		"--lowpass", "800",
		"--pan", "0.5",
		"--reverb",
		"--speed", "1.5",
		"--tempo", "0.8",
		"x.wav",
	})
	test.That(t, err, test.ShouldBeNil)

	built := opts.filters.build()
	test.That(t, built, test.ShouldHaveLength, 5)
	_, ok := built[0].(*filters.LowPass)
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = built[3].(*filters.SpeedChange)
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = built[4].(*filters.TempoChange)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestNewSink(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg := audmix.DefaultConfig()

	cfg.Output = audmix.OutputNull
	sink, done, err := newSink(cfg, options{}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldBeNil)
	_, ok := sink.(*output.Null)
	test.That(t, ok, test.ShouldBeTrue)

	cfg.Output = audmix.OutputWav
	sink, done, err = newSink(cfg, options{outPath: filepath.Join(t.TempDir(), "x.wav"), duration: time.Second}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldNotBeNil)
	test.That(t, sink.Dispose(), test.ShouldBeNil)

	cfg.Output = audmix.OutputDevice
	sink, _, err = newSink(cfg, options{}, logger)
	test.That(t, err, test.ShouldBeNil)
	_, ok = sink.(*output.Malgo)
	test.That(t, ok, test.ShouldBeTrue)

	cfg.Output = "speakers"
	_, _, err = newSink(cfg, options{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunRendersFileToEnd(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.wav"), filepath.Join(dir, "out.wav")
	writeInput(t, in, 4410, 0.5)

	err := run(context.Background(), []string{
		"--config", filepath.Join(dir, "missing.yaml"),
		"--output", "wav",
		"--out", out,
		in,
	})
	test.That(t, err, test.ShouldBeNil)

	src, frames := decodeOutput(t, out)
	test.That(t, frames, test.ShouldBeGreaterThanOrEqualTo, 4410)

	buf := make([]float32, 2)
	_, err = src.ReadSamples(buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, float64(buf[0]), test.ShouldAlmostEqual, 0.5, 1e-3)
}

func TestRunRendersLoopForDuration(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.wav"), filepath.Join(dir, "out.wav")
	writeInput(t, in, 441, 0.25)

	err := run(context.Background(), []string{
		"--config", "",
		"--output", "wav",
		"--out", out,
		"--duration", "100ms",
		"--cached",
		"--loop",
		in,
	})
	test.That(t, err, test.ShouldBeNil)

	_, frames := decodeOutput(t, out)
	test.That(t, frames, test.ShouldEqual, 4410)
}

func TestRunNeedsInput(t *testing.T) {
	err := run(context.Background(), []string{"--config", "", "--output", "null"})
	test.That(t, err, test.ShouldNotBeNil)

	err = run(context.Background(), []string{"--config", "", "--output", "null", "missing.wav"})
	test.That(t, err, test.ShouldNotBeNil)
}
