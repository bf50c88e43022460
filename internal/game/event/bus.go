package event

import "sync"

// Bus broadcasts events to subscribed channels.
// A subscriber whose channel is full misses the event; Emit never blocks.
type Bus struct {
	mu          sync.Mutex
	subscribers map[chan<- Event]struct{}
	dropped     uint64
}

// NewBus returns a Bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan<- Event]struct{})}
}

// Subscribe registers ch to receive every subsequent event.
//
// Precondition: ch must not be nil.
func (b *Bus) Subscribe(ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
}

// Unsubscribe removes ch from the subscriber list.
func (b *Bus) Unsubscribe(ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, ch)
}

// Emit implements Sink.
func (b *Bus) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			b.dropped++
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
