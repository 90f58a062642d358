// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MP3 files with github.com/hajimehoshi/go-mp3.
//
// The decoder always yields interleaved stereo at the file's sample rate, so
// mono files come out with both channels equal.
package mp3
