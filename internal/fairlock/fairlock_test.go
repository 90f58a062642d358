// SPDX-License-Identifier: EPL-2.0

package fairlock

import (
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestLock_MutualExclusion(t *testing.T) {
	t.Parallel()

	var l Lock
	var wg sync.WaitGroup
	counter := 0

	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				l.Do(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	test.That(t, counter, test.ShouldEqual, 16*500)
	test.That(t, l.queued(), test.ShouldEqual, 0)
}

func TestLock_ArrivalOrder(t *testing.T) {
	t.Parallel()

	var l Lock
	l.Lock()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Do(func() {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			})
		}()

		// wait until goroutine i holds its ticket before starting the next one
		deadline := time.Now().Add(5 * time.Second)
		for l.queued() != i+2 {
			if time.Now().After(deadline) {
				t.Fatalf("goroutine %d never queued", i)
			}
			time.Sleep(time.Millisecond)
		}
	}

	l.Unlock()
	wg.Wait()

	test.That(t, order, test.ShouldResemble, []int{0, 1, 2, 3, 4})
}

func TestLock_UnlockWithoutLockPanics(t *testing.T) {
	t.Parallel()

	var l Lock
	l.Lock()
	l.Unlock()

	test.That(t, func() { l.Unlock() }, test.ShouldPanic)
}
