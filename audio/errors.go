// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidDstSize          = errors.New("dst size must be multiple of channels")
	ErrUnsupportedChannelCount = errors.New("unsupported channel count")
	ErrInvalidSampleRate       = errors.New("sample rate must be positive")
	ErrNotSeekable             = errors.New("source cannot seek")
)
