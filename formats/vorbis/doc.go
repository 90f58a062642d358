// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis streams with github.com/jfreymuth/oggvorbis.
//
// Besides samples, a decoded source exposes the stream's user comments through
// audio.Tagged. Music files commonly carry LOOPSTART and LOOPEND (or
// LOOPLENGTH) comments there, which the sources package turns into loop points.
// Frame seeking is available when the decoder reads from an io.ReadSeeker.
package vorbis
