// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes uncompressed AIFF files with github.com/go-audio/aiff.
// Samples of 8, 16, 24 and 32 bits are scaled to [-1, 1).
package aiff
