// SPDX-License-Identifier: EPL-2.0

package audmix_test

import (
	"fmt"
	"log"

	"github.com/ik5/audmix"
	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/mix"
	"github.com/ik5/audmix/sources"
)

func constant(value float32, samples int) *sources.Cached {
	data := make([]float32, samples)
	for i := range data {
		data[i] = value
	}
	c, err := sources.NewCached(data, audio.Standard, -1, -1)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

// Example_render bounces a small mixing graph to memory without an output
// device.
func Example_render() {
	m := mix.NewMixer(audio.Standard)
	// stop at the end of the longest input instead of padding with silence
	m.SetReadFully(false)

	for _, c := range []*sources.Cached{constant(0.25, 8), constant(0.5, 4)} {
		if err := m.AddInput(c.NewReader()); err != nil {
			log.Fatal(err)
		}
	}

	out, err := audmix.Render(m, 16, 4)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(out)

	// Output:
	// [0.75 0.75 0.75 0.75 0.25 0.25 0.25 0.25]
}
