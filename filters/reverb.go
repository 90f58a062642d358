// SPDX-License-Identifier: EPL-2.0

package filters

import (
	"sync/atomic"

	"github.com/ik5/audmix/dsp"
	"github.com/ik5/audmix/mix"
)

const (
	AllPassFrequency    = 8500
	AllPassQ            = 0.7
	DefaultAllPassCount = 2

	// minDropoff bounds the number of combs BuildCombs can produce.
	minDropoff = 0.01
)

// Comb is one echo tap: heard DelayMs after the dry signal at gain 1-Decay.
type Comb struct {
	DelayMs float32
	Decay   float32
}

// AllPass is one smearing stage applied to the wet and dry mix.
type AllPass struct {
	Frequency float64
	Q         float64
}

// BuildCombs returns taps every echoDelay milliseconds whose decay grows by
// volumeDropoff per tap, until the echo would be silent. With 10 ms and 0.2 the
// taps are 10 ms at full gain, 20 ms at 0.8 and so on down to 50 ms at 0.2.
func BuildCombs(echoDelay, volumeDropoff float32) []Comb {
	volumeDropoff = max(volumeDropoff, minDropoff)

	var (
		combs []Comb
		delay float32
	)
	for decay := float32(0); decay < 1; decay += volumeDropoff {
		delay += echoDelay
		combs = append(combs, Comb{DelayMs: delay, Decay: decay})
	}

	return combs
}

// BuildAllPasses returns count identical stages at AllPassFrequency and AllPassQ.
func BuildAllPasses(count int) []AllPass {
	passes := make([]AllPass, max(count, 0))
	for i := range passes {
		passes[i] = AllPass{Frequency: AllPassFrequency, Q: AllPassQ}
	}
	return passes
}

type reverbConfig struct {
	echoDelay float32
	dropoff   float32
	combs     []Comb
	passes    []AllPass
}

type reverbState struct {
	echo   echoQueue
	passes []dsp.StereoBiQuad
	config *reverbConfig
	rate   int
}

// Reverb records each voice into a per-voice echo queue at the comb delays and
// plays the queue back under the live signal, then smears the result through
// all-pass stages. Once the voice ends the queued echoes keep playing until
// they drain.
type Reverb struct {
	mix.BaseFilter
	config atomic.Pointer[reverbConfig]
	states voiceStates[*reverbState]
}

func NewReverb(echoDelay, volumeDropoff float32, allPassCount int) *Reverb {
	f := &Reverb{}
	f.config.Store(&reverbConfig{
		echoDelay: echoDelay,
		dropoff:   volumeDropoff,
		combs:     BuildCombs(echoDelay, volumeDropoff),
		passes:    BuildAllPasses(allPassCount),
	})
	return f
}

// NewReverbWith uses explicit taps and all-pass stages.
func NewReverbWith(combs []Comb, passes []AllPass) *Reverb {
	f := &Reverb{}
	cfg := &reverbConfig{
		combs:  append([]Comb(nil), combs...),
		passes: append([]AllPass(nil), passes...),
	}
	if len(combs) > 0 {
		cfg.echoDelay = combs[0].DelayMs
	}
	if len(combs) > 1 {
		cfg.dropoff = combs[1].Decay - combs[0].Decay
	}
	f.config.Store(cfg)

	return f
}

func (f *Reverb) EchoDelay() float32     { return f.config.Load().echoDelay }
func (f *Reverb) VolumeDropoff() float32 { return f.config.Load().dropoff }
func (f *Reverb) AllPassCount() int      { return len(f.config.Load().passes) }

func (f *Reverb) Combs() []Comb {
	return append([]Comb(nil), f.config.Load().combs...)
}

func (f *Reverb) AllPasses() []AllPass {
	return append([]AllPass(nil), f.config.Load().passes...)
}

// SetEchoDelay rebuilds the taps keeping the current dropoff.
func (f *Reverb) SetEchoDelay(ms float32) {
	f.update(func(c *reverbConfig) {
		c.echoDelay = ms
		c.combs = BuildCombs(ms, c.dropoff)
	})
}

// SetVolumeDropoff rebuilds the taps keeping the current delay.
func (f *Reverb) SetVolumeDropoff(dropoff float32) {
	f.update(func(c *reverbConfig) {
		c.dropoff = dropoff
		c.combs = BuildCombs(c.echoDelay, dropoff)
	})
}

func (f *Reverb) SetAllPassCount(count int) {
	f.update(func(c *reverbConfig) { c.passes = BuildAllPasses(count) })
}

func (f *Reverb) SetCombs(combs []Comb) {
	f.update(func(c *reverbConfig) { c.combs = append([]Comb(nil), combs...) })
}

func (f *Reverb) SetAllPasses(passes []AllPass) {
	f.update(func(c *reverbConfig) { c.passes = append([]AllPass(nil), passes...) })
}

func (f *Reverb) update(fn func(*reverbConfig)) {
	for {
		old := f.config.Load()
		next := *old
		fn(&next)
		if f.config.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (f *Reverb) Apply(v *mix.Voice)   { f.states.put(v.ID(), &reverbState{}) }
func (f *Reverb) Unapply(v *mix.Voice) { f.states.take(v.ID()) }

func (f *Reverb) ModifyRead(s mix.Stage, dst []float32) (int, error) {
	st, ok := f.states.get(s.VoiceID())
	if !ok {
		return s.Read(dst)
	}

	read, err := s.Read(dst)
	if err != nil {
		return read, err
	}

	format := s.Format()
	ch := format.Channels
	samplesPerMs := float64(format.SampleRate) / 1000

	for _, c := range f.config.Load().combs {
		offset := int(samplesPerMs * float64(c.DelayMs) * float64(ch))
		offset = max(offset-offset%ch, 0)
		st.echo.addScaled(offset, dst[:read], 1-c.Decay)
	}

	clear(dst[read:])
	drained := st.echo.drainInto(dst)

	return max(read, drained), nil
}

func (f *Reverb) PostProcess(s mix.Stage, buf []float32) {
	st, ok := f.states.get(s.VoiceID())
	if !ok {
		return
	}

	cfg := f.config.Load()
	rate := s.Format().SampleRate
	if st.config != cfg || st.rate != rate {
		st.passes = make([]dsp.StereoBiQuad, len(cfg.passes))
		for i, p := range cfg.passes {
			st.passes[i].SetAllPass(float64(rate), p.Frequency, p.Q)
		}
		st.config, st.rate = cfg, rate
	}

	for i := range st.passes {
		st.passes[i].Process(buf)
	}
}

// echoQueue is a growable FIFO where samples can be mixed in ahead of the read
// point.
type echoQueue struct {
	buf  []float32
	head int
}

func (q *echoQueue) Len() int { return len(q.buf) - q.head }

// addScaled mixes src*gain into the queue starting offset samples past the head.
func (q *echoQueue) addScaled(offset int, src []float32, gain float32) {
	if len(src) == 0 || gain == 0 {
		return
	}

	need := q.head + offset + len(src)
	if need > cap(q.buf) && q.head > 0 {
		n := copy(q.buf, q.buf[q.head:])
		q.buf = q.buf[:n]
		need -= q.head
		q.head = 0
	}
	if need > len(q.buf) {
		q.buf = append(q.buf, make([]float32, need-len(q.buf))...)
	}

	seg := q.buf[q.head+offset : need]
	for i, v := range src {
		seg[i] += v * gain
	}
}

// drainInto adds up to len(dst) queued samples onto dst and returns how many.
func (q *echoQueue) drainInto(dst []float32) int {
	n := min(len(dst), q.Len())
	for i, v := range q.buf[q.head : q.head+n] {
		dst[i] += v
	}

	q.head += n
	if q.head == len(q.buf) {
		q.buf, q.head = q.buf[:0], 0
	}

	return n
}
