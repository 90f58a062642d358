// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// Format describes the layout of an interleaved float32 stream.
type Format struct {
	SampleRate int
	Channels   int
}

const (
	// StandardSampleRate is the rate every provider in the mixing graph runs at.
	StandardSampleRate = 44100
	// StandardChannels is the channel count of the mixing graph.
	StandardChannels = 2
	// ReadBufferSize is one second of graph audio, in samples.
	ReadBufferSize = StandardSampleRate * StandardChannels
)

// Standard is the graph format.
var Standard = Format{SampleRate: StandardSampleRate, Channels: StandardChannels}

// IsZero reports whether the format has not been set.
func (f Format) IsZero() bool { return f.SampleRate == 0 && f.Channels == 0 }

// Equal reports whether both rate and channel count match.
func (f Format) Equal(o Format) bool {
	return f.SampleRate == o.SampleRate && f.Channels == o.Channels
}

// SamplesPerSecond is the number of interleaved samples in one second of audio.
func (f Format) SamplesPerSecond() int { return f.SampleRate * f.Channels }

// AlignDown rounds a sample count down to a whole number of frames.
func (f Format) AlignDown(samples int64) int64 {
	if f.Channels <= 1 {
		return samples
	}
	return samples - samples%int64(f.Channels)
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz/%d ch", f.SampleRate, f.Channels)
}

// PlaybackState is the lifecycle state of anything that can be played.
type PlaybackState int32

const (
	Stopped PlaybackState = iota
	Playing
	Paused
)

func (s PlaybackState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("PlaybackState(%d)", int32(s))
	}
}
