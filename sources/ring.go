// SPDX-License-Identifier: EPL-2.0

package sources

import "sync"

// ring is a fixed-capacity FIFO of samples shared by one reader and one writer.
type ring struct {
	mu   sync.Mutex
	buf  []float32
	head int
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float32, capacity)}
}

// Write appends as much of p as fits and returns the count written.
func (r *ring) Write(p []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := min(len(p), len(r.buf)-r.size)
	tail := (r.head + r.size) % len(r.buf)
	first := copy(r.buf[tail:], p[:n])
	copy(r.buf, p[first:n])
	r.size += n

	return n
}

// Read removes up to len(p) samples into p.
func (r *ring) Read(p []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := min(len(p), r.size)
	first := copy(p[:n], r.buf[r.head:])
	copy(p[first:n], r.buf)
	r.head = (r.head + n) % len(r.buf)
	r.size -= n

	return n
}

func (r *ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.size
}

func (r *ring) Free() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.buf) - r.size
}

func (r *ring) Cap() int { return len(r.buf) }

func (r *ring) Reset() {
	r.mu.Lock()
	r.head, r.size = 0, 0
	r.mu.Unlock()
}
