// SPDX-License-Identifier: EPL-2.0

package wav

import "errors"

var (
	ErrNotWavFile           = errors.New("not a WAV file")
	ErrUnsupportedWavLayout = errors.New("unsupported WAV layout")
	ErrUnsupportedEncoding  = errors.New("unsupported WAV sample encoding")
	ErrUnsupportedWavChunks = errors.New("unsupported WAV chunks")
	ErrMissingDataChunk     = errors.New("WAV file has no data chunk")
	ErrWriterClosed         = errors.New("WAV writer is closed")
)
