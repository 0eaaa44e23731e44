package observer

import (
	"sync"
	"time"
)

// slidingWindow counts notifications delivered in the trailing window.
type slidingWindow struct {
	mu     sync.Mutex
	span   time.Duration
	events []windowEvent
	total  int
}

type windowEvent struct {
	at    time.Time
	count int
}

func newSlidingWindow(span time.Duration) *slidingWindow {
	return &slidingWindow{span: span}
}

func (w *slidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.events) && !w.events[i].at.After(cutoff) {
		w.total -= w.events[i].count
		i++
	}
	w.events = w.events[i:]
}

// reserve records n deliveries at now unless the window already holds
// ceiling or more, in which case it reports false and records nothing.
func (w *slidingWindow) reserve(now time.Time, n, ceiling int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	if w.total >= ceiling {
		return false
	}
	if n > 0 {
		w.events = append(w.events, windowEvent{at: now, count: n})
		w.total += n
	}
	return true
}

// release takes back n deliveries reserved at at, for a notification
// that was refused after its reservation.
func (w *slidingWindow) release(at time.Time, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := len(w.events) - 1; i >= 0; i-- {
		if e := w.events[i]; e.at.Equal(at) && e.count == n {
			w.events = append(w.events[:i], w.events[i+1:]...)
			w.total -= n
			return
		}
	}
}

// count returns the deliveries inside the window ending at now.
func (w *slidingWindow) count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	return w.total
}
