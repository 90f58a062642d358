// Copyright (c) 2026 Ido Kanner
// SPDX-License-Identifier: EPL-2.0

// Package audio provides the low-level building blocks shared by the decoders,
// the sources and the mixing graph.
//
// It contains:
//   - Source, the interface every decoder returns
//   - Format and the engine's Standard format (44.1 kHz stereo)
//   - PlaybackState, the lifecycle of anything that plays
//   - Resampler and SincResampler for sample rate conversion
//   - MonoMixer and StereoExpander for channel conversion
//   - Registry, which maps file extensions to decoders
//
// # Source Interface
//
// Decoders produce interleaved float32 samples:
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float32) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// Sources backed by a seekable container also implement FrameSeeker, and
// sources that carry metadata implement Tagged.
//
// # Converting To The Standard Format
//
// Everything the engine mixes is in Standard. A decoded source is brought there
// by chaining the converters:
//
//	stereo, err := audio.NewStereoExpander(src)
//	if err != nil {
//	    return err
//	}
//	rs, err := audio.NewSincResampler(stereo, audio.StandardSampleRate, 4)
//
// Resampler is a cheaper cubic interpolator for cases where quality matters
// less than speed.
//
// # Format Registry
//
//	registry := audio.NewRegistry()
//	registry.Register("wav", wav.Decoder{})
//	decoder, ok := registry.ForFile("theme.wav")
//
// # Sample Format
//
// Samples are float32 in [-1.0, 1.0]. Intermediate results may exceed that
// range; clamping happens only when converting to integer PCM.
//
// # Errors
//
// A Source returns io.EOF once it is exhausted. ErrNotSeekable is returned by
// seek operations on streams that cannot move.
package audio
