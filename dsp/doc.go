// SPDX-License-Identifier: EPL-2.0

// Package dsp holds the signal processing kernels used by the filters: biquad
// sections, a streaming linear-interpolation resampler, a phase-vocoder pitch
// shifter and a soft limiter.
//
// Kernels keep their own state and are not safe for concurrent use; filters keep
// one instance per voice.
package dsp
