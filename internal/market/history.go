package market

import (
	"sync"
	"time"
)

type sample struct {
	at    time.Time
	price float64
}

// History keeps a rolling window of observed prices and reports the change
// against the oldest sample still inside the window.
type History struct {
	mu      sync.Mutex
	window  time.Duration
	samples []sample
}

func NewHistory(window time.Duration) *History {
	return &History{window: window}
}

func (h *History) Add(at time.Time, price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, sample{at: at, price: price})
	cutoff := at.Add(-h.window)
	drop := 0
	for drop < len(h.samples) && h.samples[drop].at.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		h.samples = append(h.samples[:0], h.samples[drop:]...)
	}
}

// Stats returns the window start price and the fractional change of the
// current price against it. ok is false until at least one sample exists.
func (h *History) Stats(current float64) (start, change float64, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) == 0 {
		return 0, 0, false
	}
	start = h.samples[0].price
	if start <= 0 {
		return start, 0, true
	}
	return start, (current - start) / start, true
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}
