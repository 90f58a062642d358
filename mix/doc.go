// SPDX-License-Identifier: EPL-2.0

// Package mix is the mixing graph: the pull-based Provider contract, voices with
// ordered filter chains, and additive mixers that are themselves voices.
//
// # Providers and voices
//
// Every node answers Read(dst) with interleaved float32 samples in the graph
// format. A Voice wraps a Terminal (the raw sample read of a sound, or the mixing
// of a Mixer's inputs) with a chain of filters ordered by priority and then by
// attachment order. The first link of every chain is the voice's built-in volume.
//
//	voice := mix.NewVoice(term)
//	voice.SetVolume(0.5)
//	_ = voice.AddFilter(lowPass)
//	n, err := voice.Read(buf)
//
// # Filters
//
// A Filter reads from the Stage it is given, which links it to the previous
// filter of the same voice. Filters that only change sample values implement
// PostProcess; filters that change how many samples are consumed override
// ModifyRead. Per-voice state is keyed by VoiceID and created in Apply.
//
// # Mixers
//
// A Mixer sums the output of its inputs. Inputs are added and removed under a
// lock that is never held while an input is being read, and a Mixer can be used
// as an input of another Mixer.
package mix
