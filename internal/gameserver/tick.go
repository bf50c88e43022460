package gameserver

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/cast"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/session"
)

// Roster lists the characters a TickManager advances.
type Roster interface {
	All() []*session.Session
}

// TickManager advances every rostered character once per interval: cooldowns decay by
// the interval, then one tick of mana regenerates. Extra periodic callbacks (autosave)
// run after the characters on the same tick.
//
// Invariant: each character is advanced at most once per tick, under its own lock.
type TickManager struct {
	interval time.Duration
	engine   *cast.Engine
	roster   Roster
	logger   *zap.Logger

	mu    sync.Mutex
	extra map[string]func()
	ticks atomic.Uint64
}

// NewTickManager returns a manager that fires every interval.
//
// Precondition: interval must be > 0; engine, roster and logger must be non-nil.
func NewTickManager(interval time.Duration, engine *cast.Engine, roster Roster, logger *zap.Logger) *TickManager {
	if interval <= 0 {
		panic("gameserver.NewTickManager: interval must be > 0")
	}
	if engine == nil || roster == nil || logger == nil {
		panic("gameserver.NewTickManager: engine, roster and logger must be non-nil")
	}
	return &TickManager{
		interval: interval,
		engine:   engine,
		roster:   roster,
		logger:   logger,
		extra:    make(map[string]func()),
	}
}

// Interval returns the configured tick interval.
func (m *TickManager) Interval() time.Duration { return m.interval }

// Ticks returns how many ticks have completed.
func (m *TickManager) Ticks() uint64 { return m.ticks.Load() }

// RegisterTick adds a named callback run once per tick after the characters. Replaces any existing callback.
func (m *TickManager) RegisterTick(name string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extra[name] = fn
}

// Unregister removes the named callback.
func (m *TickManager) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.extra, name)
}

// TickOnce advances every rostered character by dt seconds and returns how many were advanced.
func (m *TickManager) TickOnce(dt float64) int {
	sessions := m.roster.All()
	var ready, regen int
	for _, s := range sessions {
		expired, restored := m.engine.Advance(s.State, dt)
		ready += len(expired)
		if restored > 0 {
			regen++
		}
	}

	m.mu.Lock()
	names := make([]string, 0, len(m.extra))
	for name := range m.extra {
		names = append(names, name)
	}
	callbacks := make([]func(), 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		callbacks = append(callbacks, m.extra[name])
	}
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}

	n := m.ticks.Add(1)
	if ready > 0 || regen > 0 {
		m.logger.Debug("tick",
			zap.Uint64("tick", n),
			zap.Int("characters", len(sessions)),
			zap.Int("cooldowns_ready", ready),
			zap.Int("regenerated", regen),
		)
	}
	return len(sessions)
}

// Run drives TickOnce every interval until ctx is cancelled. It always returns nil.
func (m *TickManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	dt := m.interval.Seconds()
	m.logger.Info("tick manager running", zap.Duration("interval", m.interval))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("tick manager stopped", zap.Uint64("ticks", m.ticks.Load()))
			return nil
		case <-ticker.C:
			m.TickOnce(dt)
		}
	}
}

// Start runs the tick loop in a new goroutine until ctx is cancelled.
func (m *TickManager) Start(ctx context.Context) {
	go func() { _ = m.Run(ctx) }()
}
