// SPDX-License-Identifier: EPL-2.0

// Package sources turns decoded audio into leaves of the mixing graph.
//
// Every Source reads interleaved 44100 Hz stereo float32 samples and carries a
// playback state, an optional loop region and the file's comment tags. Three
// implementations are provided:
//
//   - Memory plays a Cached buffer, decoded once and shared by any number of
//     readers. Use it for short effects.
//   - Stream decodes on demand. Use it for long music tracks.
//   - Buffered reads ahead of a Stream so decoding stays off the audio thread,
//     optionally refilled by a Worker.
//
// Loop regions come from LOOPSTART, LOOPEND and LOOPLENGTH comment tags, given
// in frames of the file's own rate:
//
//	cached, err := sources.LoadFile("theme.ogg", sources.Options{})
//	if err != nil {
//	    return err
//	}
//	r := cached.NewReader() // looped when the file carries loop tags
package sources
