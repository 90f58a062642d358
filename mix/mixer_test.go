// SPDX-License-Identifier: EPL-2.0

package mix

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ik5/audmix/audio"
	"go.viam.com/test"
)

func TestMixer_Additivity(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Standard)
	test.That(t, m.AddInput(newConstInput(0.25, 1000)), test.ShouldBeNil)
	test.That(t, m.AddInput(newConstInput(-0.5, 1000)), test.ShouldBeNil)

	buf := make([]float32, 512)
	n, err := m.Read(buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 512)
	for i, v := range buf {
		if v != -0.25 {
			t.Fatalf("buf[%d] = %v, want -0.25", i, v)
		}
	}
}

func TestMixer_ReadFullyWithoutInputs(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Standard)
	for _, count := range []int{1, 2, 511, 4096} {
		buf := make([]float32, count)
		for i := range buf {
			buf[i] = 7
		}
		n, err := m.Read(buf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, n, test.ShouldEqual, count)
		for _, v := range buf {
			test.That(t, v, test.ShouldEqual, float32(0))
		}
	}
}

func TestMixer_ReadFullyPadsEndedInputs(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Standard)
	test.That(t, m.AddInput(newConstInput(0.5, 10)), test.ShouldBeNil)

	buf := make([]float32, 16)
	n, _ := m.Read(buf)
	test.That(t, n, test.ShouldEqual, 16)
	test.That(t, buf[9], test.ShouldEqual, float32(0.5))
	test.That(t, buf[10], test.ShouldEqual, float32(0))

	n, _ = m.Read(buf)
	test.That(t, n, test.ShouldEqual, 16)
}

func TestMixer_NotReadFullyReportsLongestInput(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Standard)
	m.SetReadFully(false)
	test.That(t, m.ReadFully(), test.ShouldBeFalse)
	test.That(t, m.AddInput(newConstInput(0.1, 6)), test.ShouldBeNil)
	test.That(t, m.AddInput(newConstInput(0.1, 12)), test.ShouldBeNil)

	n, _ := m.Read(make([]float32, 20))
	test.That(t, n, test.ShouldEqual, 12)

	n, _ = m.Read(make([]float32, 20))
	test.That(t, n, test.ShouldEqual, 0)
}

func TestMixer_InputEndedNotification(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Standard)
	in := newConstInput(0.5, 4)
	test.That(t, m.AddInput(in), test.ShouldBeNil)

	var ended []Input
	m.OnInputEnded(func(i Input) { ended = append(ended, i) })

	_, _ = m.Read(make([]float32, 4))
	test.That(t, len(ended), test.ShouldEqual, 0)

	_, _ = m.Read(make([]float32, 4))
	test.That(t, ended, test.ShouldResemble, []Input{in})
	// the read path never removes inputs
	test.That(t, m.Contains(in), test.ShouldBeTrue)
}

func TestMixer_FormatChecks(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Format{})
	mono := newConstInput(0, 10)
	mono.format = audio.Format{SampleRate: 22050, Channels: 1}
	test.That(t, m.AddInput(mono), test.ShouldBeNil)
	test.That(t, m.Format(), test.ShouldResemble, mono.format)

	err := m.AddInput(newConstInput(0, 10))
	test.That(t, errors.Is(err, ErrFormatMismatch), test.ShouldBeTrue)
	test.That(t, m.Len(), test.ShouldEqual, 1)
}

func TestMixer_RejectsDuplicatesAndSelf(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Standard)
	in := newConstInput(0, 10)
	test.That(t, m.AddInput(in), test.ShouldBeNil)
	test.That(t, m.AddInput(in), test.ShouldEqual, ErrInputExists)
	test.That(t, m.AddInput(m), test.ShouldEqual, ErrMixerCycle)
	test.That(t, m.AddInput(nil), test.ShouldEqual, ErrNilInput)

	added, err := m.Activate(in)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, added, test.ShouldBeFalse)
	test.That(t, m.Len(), test.ShouldEqual, 1)

	other := newConstInput(0, 10)
	added, err = m.Activate(other)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, added, test.ShouldBeTrue)
	test.That(t, m.Len(), test.ShouldEqual, 2)
}

func TestMixer_RejectsIndirectCycle(t *testing.T) {
	t.Parallel()

	a := NewMixer(audio.Standard)
	b := NewMixer(audio.Standard)
	c := NewMixer(audio.Standard)
	test.That(t, a.AddInput(b), test.ShouldBeNil)
	test.That(t, b.AddInput(c), test.ShouldBeNil)

	test.That(t, b.AddInput(a), test.ShouldEqual, ErrMixerCycle)
	test.That(t, c.AddInput(a), test.ShouldEqual, ErrMixerCycle)
	_, err := c.Activate(b)
	test.That(t, err, test.ShouldEqual, ErrMixerCycle)
	test.That(t, c.SetInputs([]Input{newConstInput(0.5, 10), a}), test.ShouldEqual, ErrMixerCycle)
	test.That(t, c.Len(), test.ShouldEqual, 0)

	// a diamond is not a cycle
	d := NewMixer(audio.Standard)
	test.That(t, a.AddInput(d), test.ShouldBeNil)
	test.That(t, c.AddInput(d), test.ShouldBeNil)

	read := make(chan int, 1)
	go func() {
		n, _ := a.Read(make([]float32, 64))
		read <- n
	}()
	select {
	case n := <-read:
		test.That(t, n, test.ShouldEqual, 64)
	case <-time.After(2 * time.Second):
		t.Fatal("reading the graph did not return")
	}
}

func TestMixer_InputLimit(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Standard)
	for range MaxInputs {
		test.That(t, m.AddInput(newConstInput(0, 1)), test.ShouldBeNil)
	}
	test.That(t, m.AddInput(newConstInput(0, 1)), test.ShouldEqual, ErrTooManyInputs)
}

func TestMixer_SetAndClearInputs(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Standard)
	a, b := newConstInput(0.1, 10), newConstInput(0.2, 10)
	test.That(t, m.SetInputs([]Input{a, b}), test.ShouldBeNil)
	test.That(t, m.Inputs(), test.ShouldResemble, []Input{a, b})

	bad := newConstInput(0, 10)
	bad.format = audio.Format{SampleRate: 8000, Channels: 2}
	err := m.SetInputs([]Input{a, bad})
	test.That(t, errors.Is(err, ErrFormatMismatch), test.ShouldBeTrue)
	test.That(t, m.Inputs(), test.ShouldResemble, []Input{a, b})

	test.That(t, m.RemoveInput(a), test.ShouldBeTrue)
	test.That(t, m.RemoveInput(a), test.ShouldBeFalse)

	m.ClearInputs()
	test.That(t, m.Len(), test.ShouldEqual, 0)
	test.That(t, a.closed.Load(), test.ShouldBeFalse)
}

func TestMixer_FailingInputIsIsolated(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Standard)
	good := newConstInput(0.5, 100)
	bad := newConstInput(0.25, 2)
	bad.err = errors.New("disk on fire")
	test.That(t, m.AddInput(good), test.ShouldBeNil)
	test.That(t, m.AddInput(bad), test.ShouldBeNil)

	var failed []error
	m.OnInputError(func(_ Input, err error) { failed = append(failed, err) })

	buf := make([]float32, 8)
	n, err := m.Read(buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 8)
	test.That(t, buf[0], test.ShouldEqual, float32(0.75))
	test.That(t, buf[5], test.ShouldEqual, float32(0.5))
	test.That(t, bad.State(), test.ShouldEqual, audio.Stopped)
	test.That(t, good.State(), test.ShouldEqual, audio.Playing)
	test.That(t, len(failed), test.ShouldEqual, 1)
}

func TestMixer_NestedScenario(t *testing.T) {
	t.Parallel()

	master := NewMixer(audio.Standard)
	music := NewMixer(audio.Standard)
	test.That(t, master.AddInput(music), test.ShouldBeNil)
	test.That(t, music.AddInput(newConstInput(0.5, 44100*2)), test.ShouldBeNil)

	buf := make([]float32, 44100*2)
	n, err := master.Read(buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, len(buf))
	for i, v := range buf {
		if v != 0.5 {
			t.Fatalf("buf[%d] = %v, want 0.5", i, v)
		}
	}

	n, err = master.Read(buf[:1024])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 1024)
	for i, v := range buf[:1024] {
		if v != 0 {
			t.Fatalf("after end buf[%d] = %v, want 0", i, v)
		}
	}
}

func TestMixer_VolumeAndPause(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Standard)
	test.That(t, m.AddInput(newConstInput(0.5, 1000)), test.ShouldBeNil)
	m.SetVolume(0.5)

	buf := make([]float32, 4)
	_, _ = m.Read(buf)
	test.That(t, buf[0], test.ShouldEqual, float32(0.25))

	m.Pause()
	test.That(t, m.State(), test.ShouldEqual, audio.Paused)
	n, _ := m.Read(buf)
	test.That(t, n, test.ShouldEqual, 4)
	test.That(t, buf[0], test.ShouldEqual, float32(0))

	m.Play()
	test.That(t, m.State(), test.ShouldEqual, audio.Playing)
}

func TestMixer_CloseCascades(t *testing.T) {
	t.Parallel()

	master := NewMixer(audio.Standard)
	sub := NewMixer(audio.Standard)
	leaf := newConstInput(0, 10)
	test.That(t, sub.AddInput(leaf), test.ShouldBeNil)
	test.That(t, master.AddInput(sub), test.ShouldBeNil)

	test.That(t, master.Close(), test.ShouldBeNil)
	test.That(t, leaf.closed.Load(), test.ShouldBeTrue)
	test.That(t, sub.State(), test.ShouldEqual, audio.Stopped)
	test.That(t, master.Len(), test.ShouldEqual, 0)
}

func TestInputsOf(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Standard)
	sub := NewMixer(audio.Standard)
	leaf := newConstInput(0, 10)
	test.That(t, m.AddInput(sub), test.ShouldBeNil)
	test.That(t, m.AddInput(leaf), test.ShouldBeNil)

	test.That(t, InputsOf[*Mixer](m), test.ShouldResemble, []*Mixer{sub})
	test.That(t, InputsOf[*constInput](m), test.ShouldResemble, []*constInput{leaf})
}

func TestMixer_ConcurrentMutation(t *testing.T) {
	t.Parallel()

	m := NewMixer(audio.Standard)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for range 200 {
			in := newConstInput(0.1, 1<<20)
			_ = m.AddInput(in)
			m.RemoveInput(in)
		}
	}()
	go func() {
		defer wg.Done()
		buf := make([]float32, 256)
		for range 200 {
			n, err := m.Read(buf)
			if err != nil || n != len(buf) {
				t.Errorf("Read() = %d, %v", n, err)
				return
			}
		}
	}()

	wg.Wait()
}
