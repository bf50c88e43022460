// Package event defines the notifications emitted by the cast engine and the sinks that consume them.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
)

// Kind names an engine event.
type Kind string

const (
	KindCastCommitted   Kind = "cast_committed"
	KindCastRejected    Kind = "cast_rejected"
	KindCooldownExpired Kind = "cooldown_expired"
	KindManaRegenerated Kind = "mana_regenerated"
	KindLevelUp         Kind = "level_up"
	KindAbilityLearned  Kind = "ability_learned"
)

// Event is one engine notification. Fields not relevant to Kind are zero.
type Event struct {
	ID           uuid.UUID
	Kind         Kind
	At           time.Time
	CharacterUID uuid.UUID
	Ability      ability.Type
	Instance     ability.InstanceID
	Reason       string  // rejection reason for KindCastRejected
	Cost         uint32  // mana paid for KindCastCommitted
	Cooldown     float64 // seconds started for KindCastCommitted
	Amount       int64   // mana restored for KindManaRegenerated
	FromLevel    uint32
	ToLevel      uint32
}

// New stamps an Event of kind for character with a fresh id and the current time.
func New(kind Kind, character uuid.UUID) Event {
	return Event{ID: uuid.New(), Kind: kind, At: time.Now(), CharacterUID: character}
}

// Sink receives engine events. Emit is called while the character lock is held,
// so implementations must not block and must not call back into the engine.
type Sink interface {
	Emit(e Event)
}

// Nop discards every event.
type Nop struct{}

// Emit implements Sink.
func (Nop) Emit(Event) {}

// Fanout delivers each event to every sink in order.
type Fanout []Sink

// Emit implements Sink.
func (f Fanout) Emit(e Event) {
	for _, s := range f {
		s.Emit(e)
	}
}
