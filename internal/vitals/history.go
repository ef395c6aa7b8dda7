package vitals

import (
	"sync"

	"github.com/jwalitptl/phms-engine/internal/model"
)

// History is a fixed-capacity FIFO of recent samples. One goroutine appends;
// any number may read.
type History struct {
	mu    sync.RWMutex
	buf   []model.VitalSample
	start int
	size  int
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]model.VitalSample, capacity)}
}

// Append adds s, evicting the oldest sample when full.
func (h *History) Append(s model.VitalSample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	capacity := len(h.buf)
	if h.size < capacity {
		h.buf[(h.start+h.size)%capacity] = s
		h.size++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % capacity
}

// Snapshot returns the samples oldest first. The slice is a copy.
func (h *History) Snapshot() []model.VitalSample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]model.VitalSample, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Last returns the newest sample.
func (h *History) Last() (model.VitalSample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.size == 0 {
		return model.VitalSample{}, false
	}
	return h.buf[(h.start+h.size-1)%len(h.buf)], true
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

func (h *History) Cap() int {
	return len(h.buf)
}
