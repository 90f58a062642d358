// SPDX-License-Identifier: EPL-2.0

package mix

import "github.com/pkg/errors"

var (
	ErrNilFilter         = errors.New("filter is nil")
	ErrFilterAttached    = errors.New("filter already attached to voice")
	ErrFilterNotAttached = errors.New("filter not attached to voice")

	ErrNilInput       = errors.New("mixer input is nil")
	ErrFormatMismatch = errors.New("input format does not match mixer format")
	ErrInputExists    = errors.New("input already added to mixer")
	ErrTooManyInputs  = errors.New("mixer input limit reached")
	ErrMixerCycle     = errors.New("mixer would feed into itself")
)
