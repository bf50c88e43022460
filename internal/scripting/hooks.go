package scripting

import (
	"context"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/event"
)

// Hook names called for engine events.
const (
	HookOnCast    = "on_cast"
	HookOnLevelUp = "on_level_up"
	HookOnLearn   = "on_learn"
)

// HookSink is an event.Sink that runs Lua hooks for committed casts, level-ups
// and learned abilities. Emit only enqueues; hooks run on the goroutine started
// by Run, so a slow script never holds a character lock. Events arriving while
// the queue is full are dropped with a warning.
type HookSink struct {
	mgr     *Manager
	catalog *ability.Catalog
	logger  *zap.Logger
	queue   chan event.Event
	wg      sync.WaitGroup
}

// NewHookSink creates a HookSink with a queue of size buffered events.
//
// Precondition: mgr, catalog and logger must be non-nil.
func NewHookSink(mgr *Manager, catalog *ability.Catalog, size int, logger *zap.Logger) *HookSink {
	if size <= 0 {
		size = 256
	}
	return &HookSink{mgr: mgr, catalog: catalog, logger: logger, queue: make(chan event.Event, size)}
}

// Emit implements event.Sink.
func (h *HookSink) Emit(e event.Event) {
	switch e.Kind {
	case event.KindCastCommitted, event.KindLevelUp, event.KindAbilityLearned:
	default:
		return
	}
	select {
	case h.queue <- e:
	default:
		h.logger.Warn("scripting: hook queue full, dropping event",
			zap.String("kind", string(e.Kind)),
			zap.String("character", e.CharacterUID.String()),
		)
	}
}

// Start runs Run on a new goroutine. The goroutine is counted before Start
// returns, so a later Wait always observes it.
func (h *HookSink) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.Run(ctx)
	}()
}

// Run dispatches queued events until ctx is cancelled, then drains what is left.
// It blocks; Wait does not track it unless it was launched by Start.
func (h *HookSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-h.queue:
					h.Dispatch(e)
				default:
					return
				}
			}
		case e := <-h.queue:
			h.Dispatch(e)
		}
	}
}

// Wait blocks until every goroutine launched by Start has returned.
func (h *HookSink) Wait() { h.wg.Wait() }

// Dispatch runs the hooks for e synchronously.
//
// A committed cast calls the ability's own lua_on_cast hook when it has one,
// then on_cast(uid, ability, cost). Level-ups call on_level_up(uid, from, to);
// learned abilities call on_learn(uid, ability). Errors are logged by the Manager.
func (h *HookSink) Dispatch(e event.Event) {
	uid := lua.LString(e.CharacterUID.String())
	switch e.Kind {
	case event.KindCastCommitted:
		if def, ok := h.catalog.Lookup(e.Ability); ok && def.LuaOnCast != "" {
			_, _ = h.mgr.CallHook(def.LuaOnCast, uid, lua.LNumber(e.Cost))
		}
		_, _ = h.mgr.CallHook(HookOnCast, uid, lua.LString(e.Ability), lua.LNumber(e.Cost))
	case event.KindLevelUp:
		_, _ = h.mgr.CallHook(HookOnLevelUp, uid, lua.LNumber(e.FromLevel), lua.LNumber(e.ToLevel))
	case event.KindAbilityLearned:
		_, _ = h.mgr.CallHook(HookOnLearn, uid, lua.LString(e.Ability))
	}
}
