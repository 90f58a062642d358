// SPDX-License-Identifier: EPL-2.0

// Package fairlock provides a ticket lock: goroutines acquire it strictly in the
// order they asked for it, so a reader that re-enters in a tight loop cannot
// starve a writer waiting behind it.
package fairlock

import "sync"

// Lock is a FIFO mutual exclusion lock. The zero value is an unlocked lock.
type Lock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
}

// Lock blocks until every goroutine that called Lock earlier has released it.
func (l *Lock) Lock() {
	l.mu.Lock()
	if l.cond == nil {
		l.cond = sync.NewCond(&l.mu)
	}

	ticket := l.next
	l.next++
	for ticket != l.serving {
		l.cond.Wait()
	}
	l.mu.Unlock()
}

// Unlock hands the lock to the next ticket holder.
func (l *Lock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.next == l.serving {
		panic("fairlock: unlock of unlocked lock")
	}
	l.serving++
	l.cond.Broadcast()
}

// Do runs fn while holding the lock.
func (l *Lock) Do(fn func()) {
	l.Lock()
	defer l.Unlock()

	fn()
}

// queued reports how many goroutines hold or wait for the lock.
func (l *Lock) queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return int(l.next - l.serving)
}
