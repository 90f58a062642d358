// SPDX-License-Identifier: EPL-2.0

// Package filters holds the stock voice filters: gain, stereo panning, biquad
// equalisation, speed, tempo and pitch changes, reverb, stutter and a simple
// listener-relative position.
//
// A filter value may be attached to many voices at once. Parameters are shared
// by every voice; anything that carries signal history (biquad delay lines,
// resamplers, echo queues) lives in per-voice state created by Apply and dropped
// by Unapply.
//
//	lp := filters.NewLowPass()
//	lp.SetCutoff(800)
//	if err := voice.AddFilter(lp); err != nil {
//	    return err
//	}
package filters
