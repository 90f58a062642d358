// SPDX-License-Identifier: EPL-2.0

package output

import "errors"

var (
	ErrNilProvider        = errors.New("sink provider is nil")
	ErrNotInitialized     = errors.New("sink is not initialized")
	ErrAlreadyInitialized = errors.New("sink is already initialized")
	ErrDisposed           = errors.New("sink is disposed")
	ErrUnsupportedFormat  = errors.New("sink cannot play this format")
	ErrDeviceNotFound     = errors.New("playback device not found")
)
