// SPDX-License-Identifier: EPL-2.0

package sources

import "github.com/pkg/errors"

var (
	ErrUnknownFormat = errors.New("no decoder registered for file type")
	ErrClosed        = errors.New("source is closed")
	ErrEmptyAudio    = errors.New("audio contains no samples")
	ErrWorkerRunning = errors.New("read-ahead worker already running")
	ErrWorkerStopped = errors.New("read-ahead worker is not running")
)
