package launch

import (
	"sync"
)

// RingBuffer is a thread-safe circular buffer of output lines. It keeps
// the last N lines of engine output for 'openwork launch --tail' style
// inspection without unbounded memory growth.
type RingBuffer struct {
	mu    sync.RWMutex
	lines []string
	head  int
	size  int
	cap   int
}

// NewRingBuffer creates a ring buffer with the given capacity.
// If capacity is <= 0, it defaults to 1000 lines.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RingBuffer{
		lines: make([]string, capacity),
		cap:   capacity,
	}
}

// Write adds a line, overwriting the oldest once full.
func (rb *RingBuffer) Write(line string) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.lines[rb.head] = line
	rb.head = (rb.head + 1) % rb.cap
	if rb.size < rb.cap {
		rb.size++
	}
}

// Lines returns the stored lines, oldest first.
func (rb *RingBuffer) Lines() []string {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	out := make([]string, 0, rb.size)
	start := rb.head - rb.size
	if start < 0 {
		start += rb.cap
	}
	for i := 0; i < rb.size; i++ {
		out = append(out, rb.lines[(start+i)%rb.cap])
	}
	return out
}

// Size reports the number of lines currently stored.
func (rb *RingBuffer) Size() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}
