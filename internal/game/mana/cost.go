package mana

import "math"

// Reduction is the equipment-supplied discount applied to an ability's base mana cost.
// Percent is a fraction in [0, 1]; values outside that range are clamped.
type Reduction struct {
	Flat    uint32
	Percent float32
}

// IsZero reports whether no reduction is supplied.
func (r Reduction) IsZero() bool {
	return r.Flat == 0 && r.Percent == 0
}

// EffectiveCost applies r to base.
//
// With no reduction the base cost is returned unchanged. Otherwise the result is
// max(1, round(base*(1-percent)) - flat): a reduced ability is never free.
//
// Postcondition: r.IsZero() || result >= 1.
func EffectiveCost(base uint32, r Reduction) uint32 {
	if r.IsZero() {
		return base
	}
	pct := float64(r.Percent)
	switch {
	case math.IsNaN(pct) || pct < 0:
		pct = 0
	case pct > 1:
		pct = 1
	}
	cost := int64(math.Round(float64(base)*(1-pct))) - int64(r.Flat)
	if cost < 1 {
		return 1
	}
	return uint32(cost)
}
