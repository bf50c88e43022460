package gameserver

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/event"
)

// EventStats counts engine events by kind from a Bus subscription.
type EventStats struct {
	bus    *event.Bus
	ch     chan event.Event
	logger *zap.Logger

	mu     sync.Mutex
	counts map[event.Kind]uint64
}

// KindCount is one row of an EventStats snapshot.
type KindCount struct {
	Kind  event.Kind
	Count uint64
}

// NewEventStats subscribes to bus with a channel of size buffered events.
//
// Precondition: bus and logger must be non-nil.
func NewEventStats(bus *event.Bus, size int, logger *zap.Logger) *EventStats {
	if size <= 0 {
		size = 256
	}
	s := &EventStats{
		bus:    bus,
		ch:     make(chan event.Event, size),
		logger: logger,
		counts: make(map[event.Kind]uint64),
	}
	bus.Subscribe(s.ch)
	return s
}

// Run counts events until ctx is cancelled, then unsubscribes and logs the totals.
func (s *EventStats) Run(ctx context.Context) error {
	defer func() {
		s.bus.Unsubscribe(s.ch)
		fields := []zap.Field{zap.Uint64("dropped", s.bus.Dropped())}
		for _, kc := range s.Snapshot() {
			fields = append(fields, zap.Uint64(string(kc.Kind), kc.Count))
		}
		s.logger.Info("event totals", fields...)
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-s.ch:
			s.record(e)
		}
	}
}

func (s *EventStats) record(e event.Event) {
	s.mu.Lock()
	s.counts[e.Kind]++
	s.mu.Unlock()
}

// Snapshot returns the counts so far, sorted by kind.
func (s *EventStats) Snapshot() []KindCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]KindCount, 0, len(s.counts))
	for k, n := range s.counts {
		out = append(out, KindCount{Kind: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Dropped returns how many events the bus could not deliver to any subscriber.
func (s *EventStats) Dropped() uint64 { return s.bus.Dropped() }
