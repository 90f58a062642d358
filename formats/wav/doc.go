// SPDX-License-Identifier: EPL-2.0

// Package wav reads and writes RIFF/WAVE files.
//
// The Decoder walks the chunk list, skipping anything that is not "fmt " or
// "data", and accepts integer PCM at 8, 16, 24 and 32 bits as well as 32 and 64
// bit IEEE float, including the WAVE_FORMAT_EXTENSIBLE variants of both. When
// the input is an io.ReadSeeker the decoded source implements
// audio.FrameSeeker, so streamed playback can rewind and loop.
//
// The Writer goes the other way: interleaved float samples in, integer PCM out,
// encoded with github.com/go-audio/wav. The engine's offline render sink is
// built on it.
package wav
