package cast

import (
	"errors"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/mana"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/ruleset"
)

// Sentinel errors. Component packages own the errors they raise; they are re-exported
// here so callers of the engine need only one import.
var (
	ErrOnCooldown           = errors.New("ability on cooldown")
	ErrInsufficientResource = errors.New("insufficient mana")
	ErrNotLearned           = errors.New("ability not learned")
	ErrNotEligible          = ruleset.ErrNotEligible
	ErrAlreadyKnown         = ruleset.ErrAlreadyKnown
	ErrInvalidAmount        = mana.ErrInvalidAmount
)

// Reason explains why a cast was rejected.
type Reason string

const (
	// ReasonNone marks a committed cast.
	ReasonNone                 Reason = ""
	ReasonNotLearned           Reason = "not_learned"
	ReasonOnCooldown           Reason = "on_cooldown"
	ReasonInsufficientResource Reason = "insufficient_resource"
)

// Result is the outcome of one cast attempt. Committed results carry the mana
// paid and the cooldown started; rejected results carry a Reason and change nothing.
type Result struct {
	Instance  ability.InstanceID
	Committed bool
	Reason    Reason
	Cost      uint32  // mana paid, or mana required for ReasonInsufficientResource
	Cooldown  float64 // seconds
	Remaining float64 // seconds left on the blocking cooldown, for ReasonOnCooldown
}

// Err maps a rejected Result to its sentinel error, or nil when committed.
func (r Result) Err() error {
	if r.Committed {
		return nil
	}
	switch r.Reason {
	case ReasonNotLearned:
		return ErrNotLearned
	case ReasonOnCooldown:
		return ErrOnCooldown
	case ReasonInsufficientResource:
		return ErrInsufficientResource
	}
	return nil
}
