package eventbus

import "sync"

// LocalBus is an in-process bus: Publish fans events out to subscribers,
// each serviced by its own goroutine so a slow handler never blocks
// publishers or other subscribers. Delivery is at-least-once per subscriber;
// no ordering is guaranteed across event types.
type LocalBus struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

type subscriber struct {
	types    map[EventType]bool // nil means all types
	handler  func(Event)
	finished chan struct{}

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Event
	done    bool
}

// NewLocalBus returns a bus ready for use. Call Close when done to stop the
// subscriber goroutines.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]*subscriber)}
}

// Publish delivers e to every subscriber interested in its type. It never
// blocks; events queue per subscriber until the handler catches up.
func (b *LocalBus) Publish(e Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.types == nil || s.types[e.Type] {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	for _, s := range targets {
		s.enqueue(e)
	}
}

// Subscribe registers handler for the given event types (all types when none
// are given). The handler runs on a dedicated goroutine. The returned
// function unsubscribes; it is safe to call more than once.
func (b *LocalBus) Subscribe(handler func(Event), only ...EventType) func() {
	s := &subscriber{handler: handler, finished: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	if len(only) > 0 {
		s.types = make(map[EventType]bool, len(only))
		for _, t := range only {
			s.types[t] = true
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			s.stop()
		})
	}
}

// Close drops further events and stops all subscriber goroutines. It blocks
// until every subscriber has drained what was already published to it.
func (b *LocalBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[int]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	for _, s := range subs {
		<-s.finished
	}
}

func (s *subscriber) enqueue(e Event) {
	s.mu.Lock()
	if !s.done {
		s.pending = append(s.pending, e)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber) stop() {
	s.mu.Lock()
	s.done = true
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscriber) run() {
	defer close(s.finished)
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.done {
			s.cond.Wait()
		}
		stop := s.done
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		// Already-queued events are delivered even when stopping, so a
		// bus close never swallows what was published before it.
		for _, e := range batch {
			s.handler(e)
		}
		if stop {
			return
		}
	}
}
