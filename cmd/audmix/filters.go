// SPDX-License-Identifier: EPL-2.0

package main

import (
	"time"

	"github.com/ik5/audmix/filters"
	"github.com/ik5/audmix/mix"
	"github.com/spf13/pflag"
)

// filterFlags are the per-sound effects selectable on the command line. Zero
// values leave an effect off.
type filterFlags struct {
	speed    float32
	tempo    float32
	pitch    float32
	pan      float32
	lowPass  float64
	highPass float64
	reverb   bool
	delayMs  float32
	dropoff  float32
	stutter  time.Duration
	loop     bool
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.Float32Var(&f.speed, "speed", 1, "playback speed, changes pitch")
	fs.Float32Var(&f.tempo, "tempo", 1, "playback tempo, keeps pitch")
	fs.Float32Var(&f.pitch, "pitch", 1, "pitch factor")
	fs.Float32Var(&f.pan, "pan", 0, "stereo pan from -1 (left) to 1 (right)")
	fs.Float64Var(&f.lowPass, "lowpass", 0, "low-pass cutoff in Hz")
	fs.Float64Var(&f.highPass, "highpass", 0, "high-pass cutoff in Hz")
	fs.BoolVar(&f.reverb, "reverb", false, "add reverb")
	fs.Float32Var(&f.delayMs, "reverb-delay", 60, "reverb echo spacing in milliseconds")
	fs.Float32Var(&f.dropoff, "reverb-dropoff", 0.25, "reverb gain lost per echo")
	fs.DurationVar(&f.stutter, "stutter", 0, "repeat a window of this length")
	fs.BoolVar(&f.loop, "loop", false, "loop the sound")
}

// build returns a fresh filter for every enabled effect, in flag order.
func (f *filterFlags) build() []mix.Filter {
	var out []mix.Filter

	if f.lowPass > 0 {
		out = append(out, filters.NewLowPassAt(f.lowPass, filters.DefaultQ))
	}
	if f.highPass > 0 {
		out = append(out, filters.NewHighPassAt(f.highPass, filters.DefaultQ))
	}
	if f.pan != 0 {
		out = append(out, filters.NewPan(f.pan))
	}
	if f.pitch != 1 && f.pitch > 0 {
		out = append(out, filters.NewPitchShift(f.pitch))
	}
	if f.reverb {
		out = append(out, filters.NewReverb(f.delayMs, f.dropoff, filters.DefaultAllPassCount))
	}
	if f.stutter > 0 {
		out = append(out, filters.NewStutter(f.stutter))
	}
	if f.speed != 1 {
		out = append(out, filters.NewSpeedChange(f.speed))
	}
	if f.tempo != 1 && f.tempo > 0 {
		out = append(out, filters.NewTempoChange(f.tempo))
	}

	return out
}
