package eventbus

import (
	"sync"
	"time"
)

// Recorder stores events in-memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters recorded events by type.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// WaitFor polls until an event of type t has been recorded or the timeout
// elapses.
func (r *Recorder) WaitFor(t EventType, timeout time.Duration) (Event, bool) {
	deadline := time.Now().Add(timeout)
	for {
		for _, e := range r.Events() {
			if e.Type == t {
				return e, true
			}
		}
		if time.Now().After(deadline) {
			return Event{}, false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
