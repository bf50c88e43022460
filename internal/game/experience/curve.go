// Package experience implements the XP requirement curve and level-up resolution.
package experience

import (
	"errors"
	"fmt"
	"math"
)

// Curve parameters for the default progression.
const (
	DefaultBaseXP             = 100
	DefaultMultiplier         = 1.5
	DefaultEarlyGameThreshold = 5
	DefaultEarlyGameScale     = 1.2
)

// Curve computes the XP needed to advance from a level to the next.
//
// Requirement(level) = floor(BaseXP * Multiplier^(max(1,level)-1)), then multiplied by
// EarlyGameScale and floored again when max(1,level) <= EarlyGameThreshold, so the
// opening levels take longer than the plain exponential would.
type Curve struct {
	BaseXP             uint32
	Multiplier         float64
	EarlyGameThreshold uint32
	EarlyGameScale     float64
}

// DefaultCurve returns the shipped progression curve. Requirement(1) == 120.
func DefaultCurve() Curve {
	return Curve{
		BaseXP:             DefaultBaseXP,
		Multiplier:         DefaultMultiplier,
		EarlyGameThreshold: DefaultEarlyGameThreshold,
		EarlyGameScale:     DefaultEarlyGameScale,
	}
}

// Validate checks the curve parameters.
//
// Postcondition: returns nil iff Requirement is >= 1 for every level and non-decreasing in level.
func (c Curve) Validate() error {
	var errs []error
	if c.BaseXP < 1 {
		errs = append(errs, errors.New("base_xp must be >= 1"))
	}
	if !(c.Multiplier >= 1) || math.IsInf(c.Multiplier, 0) {
		errs = append(errs, fmt.Errorf("multiplier must be finite and >= 1, got %v", c.Multiplier))
	}
	if !(c.EarlyGameScale >= 1) || math.IsInf(c.EarlyGameScale, 0) {
		errs = append(errs, fmt.Errorf("early_game_scale must be finite and >= 1, got %v", c.EarlyGameScale))
	}
	// Crossing the early-game threshold drops the scale; the next exponential step must cover it.
	if c.EarlyGameThreshold > 0 && c.EarlyGameScale > c.Multiplier {
		errs = append(errs, fmt.Errorf("early_game_scale (%v) must not exceed multiplier (%v)", c.EarlyGameScale, c.Multiplier))
	}
	return errors.Join(errs...)
}

// Requirement returns the XP needed to advance past level.
// Levels below 1 are treated as 1. The result saturates at math.MaxUint32.
func (c Curve) Requirement(level uint32) uint32 {
	effective := level
	if effective < 1 {
		effective = 1
	}
	req := math.Floor(float64(c.BaseXP) * math.Pow(c.Multiplier, float64(effective-1)))
	if effective <= c.EarlyGameThreshold {
		req = math.Floor(req * c.EarlyGameScale)
	}
	if req >= math.MaxUint32 || math.IsNaN(req) {
		return math.MaxUint32
	}
	if req < 1 {
		return 1
	}
	return uint32(req)
}
