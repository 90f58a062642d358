// SPDX-License-Identifier: EPL-2.0

package sources

import (
	"math"
	"strconv"
	"strings"

	"github.com/ik5/audmix/audio"
	"github.com/pkg/errors"
)

// rawReader is the positioned sample store a looping read runs over.
type rawReader interface {
	readRaw(dst []float32) (int, error)
	position() int64
	seek(pos int64) error
	// length in samples, -1 when unknown
	length() int64
}

// loopRead fills dst from r, wrapping to the loop start whenever the loop end
// (or the end of data) is reached while p is looped.
func loopRead(r rawReader, p *Playback, dst []float32) (int, error) {
	copied, idle := 0, 0

	for copied < len(dst) {
		looped := p.Looped()
		end := r.length()
		if looped {
			if le := p.LoopEnd(); le >= 0 && (end < 0 || le < end) {
				end = le
			}
		}

		want := len(dst) - copied
		if end >= 0 {
			want = int(min(int64(want), max(end-r.position(), 0)))
		}

		n := 0
		if want > 0 {
			var err error
			n, err = r.readRaw(dst[copied : copied+want])
			copied += n
			if err != nil {
				return copied, err
			}
		}

		if !looped {
			if n == 0 {
				break
			}
			continue
		}

		if n == 0 || (end >= 0 && r.position() >= end) {
			if err := r.seek(max(0, p.LoopStart())); err != nil {
				if errors.Is(err, audio.ErrNotSeekable) {
					break
				}
				return copied, err
			}
		}

		// an empty loop region never produces data
		if n == 0 {
			idle++
			if idle > 1 {
				break
			}
		} else {
			idle = 0
		}
	}

	return copied, nil
}

// ParseLoop reads LOOPSTART, LOOPEND and LOOPLENGTH (any case) from comments.
// Values are frame counts in the file's own rate; the result is in graph samples:
// scaled by ratio (graph rate / file rate), multiplied by channels. Missing or
// malformed tags yield -1.
func ParseLoop(comments map[string]string, channels int, ratio float64) (start, end int64) {
	var (
		loopStart, loopEnd, loopLength int64 = -1, -1, -1
	)

	for k, v := range comments {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n < 0 {
			continue
		}

		switch strings.ToUpper(strings.TrimSpace(k)) {
		case "LOOPSTART":
			loopStart = n
		case "LOOPEND":
			loopEnd = n
		case "LOOPLENGTH":
			loopLength = n
		}
	}

	if loopEnd < 0 && loopStart >= 0 && loopLength >= 0 {
		loopEnd = loopStart + loopLength
	}

	return scaleFrames(loopStart, channels, ratio), scaleFrames(loopEnd, channels, ratio)
}

func scaleFrames(frames int64, channels int, ratio float64) int64 {
	if frames < 0 {
		return -1
	}
	if ratio <= 0 {
		ratio = 1
	}

	return int64(math.Round(float64(frames)*ratio)) * int64(channels)
}
