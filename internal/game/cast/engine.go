// Package cast implements the ability cast pipeline and the per-character operations
// that advance cooldowns, mana and experience.
package cast

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/character"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/event"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/mana"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/ruleset"
)

// Engine runs casts and progression against character state.
//
// The Engine itself is stateless apart from its read-only catalog and policy and is
// safe for concurrent use. Each operation holds the target character's lock for its
// whole duration, so operations on one character are serialised.
type Engine struct {
	catalog *ability.Catalog
	policy  *ruleset.Policy
	sink    event.Sink
	logger  *zap.Logger
}

// NewEngine creates an Engine.
//
// Precondition: catalog, policy and logger must be non-nil. A nil sink discards events.
func NewEngine(catalog *ability.Catalog, policy *ruleset.Policy, sink event.Sink, logger *zap.Logger) *Engine {
	if sink == nil {
		sink = event.Nop{}
	}
	return &Engine{catalog: catalog, policy: policy, sink: sink, logger: logger}
}

// Catalog returns the engine's ability catalog.
func (e *Engine) Catalog() *ability.Catalog { return e.catalog }

// Policy returns the engine's learning policy.
func (e *Engine) Policy() *ruleset.Policy { return e.policy }

// Cast attempts to use abilityType for cs with the given cost reduction.
//
// Checks run in order: learned, ready, affordable. The first failure rejects the
// cast with no state change. On success mana is consumed and the cooldown started
// before the lock is released, so no other operation observes one without the other.
// Uncatalogued types cost nothing, whatever the reduction, and start no cooldown.
func (e *Engine) Cast(cs *character.State, abilityType ability.Type, reduction mana.Reduction) Result {
	cs.Lock()
	defer cs.Unlock()

	id := ability.Instance(abilityType)
	res := Result{Instance: id}

	if !cs.Learned.Has(abilityType) {
		res.Reason = ReasonNotLearned
		e.reject(cs, abilityType, res)
		return res
	}
	if !cs.Cooldowns.IsReady(id) {
		res.Reason = ReasonOnCooldown
		res.Remaining = cs.Cooldowns.Remaining(id)
		e.reject(cs, abilityType, res)
		return res
	}

	def, catalogued := e.catalog.Resolve(abilityType)
	var cost uint32
	if catalogued {
		cost = mana.EffectiveCost(def.ManaCost, reduction)
	}
	if !cs.Mana.TryConsume(int64(cost)) {
		res.Reason = ReasonInsufficientResource
		res.Cost = cost
		e.reject(cs, abilityType, res)
		return res
	}
	cs.Cooldowns.Start(id, def.CooldownSeconds)

	res.Committed = true
	res.Cost = cost
	res.Cooldown = def.CooldownSeconds

	ev := event.New(event.KindCastCommitted, cs.Character.UID)
	ev.Ability = abilityType
	ev.Instance = id
	ev.Cost = cost
	ev.Cooldown = def.CooldownSeconds
	e.sink.Emit(ev)
	return res
}

func (e *Engine) reject(cs *character.State, abilityType ability.Type, res Result) {
	ev := event.New(event.KindCastRejected, cs.Character.UID)
	ev.Ability = abilityType
	ev.Instance = res.Instance
	ev.Reason = string(res.Reason)
	e.sink.Emit(ev)
}

// Tick advances every cooldown of cs by dt seconds and returns the instances that became ready.
func (e *Engine) Tick(cs *character.State, dt float64) []ability.InstanceID {
	cs.Lock()
	defer cs.Unlock()
	return e.tickLocked(cs, dt)
}

// Regenerate restores one tick of mana to cs and returns the amount restored.
func (e *Engine) Regenerate(cs *character.State) int64 {
	cs.Lock()
	defer cs.Unlock()
	return e.regenerateLocked(cs)
}

// Advance runs one scheduling step for cs: cooldowns decay by dt, then mana regenerates.
// Both happen under one lock acquisition so no cast observes one without the other.
func (e *Engine) Advance(cs *character.State, dt float64) ([]ability.InstanceID, int64) {
	cs.Lock()
	defer cs.Unlock()
	return e.tickLocked(cs, dt), e.regenerateLocked(cs)
}

func (e *Engine) tickLocked(cs *character.State, dt float64) []ability.InstanceID {
	expired := cs.Cooldowns.Tick(dt)
	for _, id := range expired {
		ev := event.New(event.KindCooldownExpired, cs.Character.UID)
		ev.Ability = id.Type
		ev.Instance = id
		e.sink.Emit(ev)
	}
	return expired
}

func (e *Engine) regenerateLocked(cs *character.State) int64 {
	n := cs.Mana.Regenerate()
	if n > 0 {
		ev := event.New(event.KindManaRegenerated, cs.Character.UID)
		ev.Amount = n
		e.sink.Emit(ev)
	}
	return n
}

// GrantXP awards amount experience to cs and reports whether a level was gained.
// Multi-level jumps resolve in one call; stat growth resizes the mana pool.
//
// Postcondition: returns ErrInvalidAmount without mutation if amount < 0.
func (e *Engine) GrantXP(cs *character.State, amount int64) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("grant %d xp: %w", amount, ErrInvalidAmount)
	}
	cs.Lock()
	defer cs.Unlock()
	up := cs.XP.ApplyXP(amount, cs)
	if !up.Leveled() {
		return false, nil
	}
	ev := event.New(event.KindLevelUp, cs.Character.UID)
	ev.FromLevel = up.From
	ev.ToLevel = up.To
	e.sink.Emit(ev)
	return true, nil
}

// LearnAbility adds abilityType to cs's learned set if its class permits it.
//
// Postcondition: returns an error wrapping ErrAlreadyKnown or ErrNotEligible without mutation on failure.
func (e *Engine) LearnAbility(cs *character.State, abilityType ability.Type) error {
	cs.Lock()
	defer cs.Unlock()
	if err := e.policy.Learn(cs.Learned, cs.Character.Class, abilityType); err != nil {
		e.logger.Debug("learn rejected",
			zap.String("character", cs.Character.UID.String()),
			zap.String("class", cs.Character.Class),
			zap.String("ability", string(abilityType)),
			zap.Error(err),
		)
		return err
	}
	ev := event.New(event.KindAbilityLearned, cs.Character.UID)
	ev.Ability = abilityType
	e.sink.Emit(ev)
	return nil
}

// ScaleCooldowns multiplies every active cooldown of cs by factor.
// It reports false, changing nothing, for a non-finite factor.
func (e *Engine) ScaleCooldowns(cs *character.State, factor float64) bool {
	cs.Lock()
	defer cs.Unlock()
	return cs.Cooldowns.ScaleAll(factor)
}

// ResetCooldown clears one cooldown of cs; ResetAll when id is nil.
func (e *Engine) ResetCooldown(cs *character.State, id *ability.InstanceID) {
	cs.Lock()
	defer cs.Unlock()
	if id == nil {
		cs.Cooldowns.ResetAll()
		return
	}
	cs.Cooldowns.Reset(*id)
}
