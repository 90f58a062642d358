// SPDX-License-Identifier: EPL-2.0

package audmix

import (
	"github.com/ik5/audmix/mix"
	"github.com/ik5/audmix/utils"
	"github.com/pkg/errors"
)

// defaultRenderBlock is the read size Render uses when blockSize is not positive.
const defaultRenderBlock = 4096

// Render pulls up to total samples from p, blockSize samples at a time, and
// stops early when p ends. It is the offline counterpart of an output sink:
// useful for bouncing a mixer to memory.
func Render(p mix.Provider, total, blockSize int) ([]float32, error) {
	if p == nil {
		return nil, ErrNilProvider
	}
	if blockSize <= 0 {
		blockSize = defaultRenderBlock
	}

	out := make([]float32, 0, min(total, blockSize*16))
	for len(out) < total {
		want := min(blockSize, total-len(out))
		start := len(out)
		out = append(out, make([]float32, want)...)

		n, err := p.Read(out[start:])
		n = min(max(n, 0), want)
		out = out[:start+n]
		if err != nil {
			return out, errors.Wrap(err, "rendering")
		}
		if n < want {
			break
		}
	}

	return out, nil
}

// RenderPCM16 is Render converted to clamped 16-bit PCM.
func RenderPCM16(p mix.Provider, total, blockSize int) ([]int16, error) {
	samples, err := Render(p, total, blockSize)

	pcm := make([]int16, len(samples))
	for i, x := range samples {
		pcm[i] = utils.Float32ToInt16(x)
	}

	return pcm, err
}
