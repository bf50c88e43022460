// Package mana implements the bounded per-character mana pool and ability cost arithmetic.
package mana

import (
	"errors"
	"fmt"
	"math"
)

// DefaultPerMagicPower is the default mana capacity granted per point of magic power.
const DefaultPerMagicPower int64 = 10

// DefaultRegenPerTick is the default mana restored per scheduling tick.
const DefaultRegenPerTick int64 = 5

// ErrInvalidAmount is returned when a negative amount is passed to a pool operation.
var ErrInvalidAmount = errors.New("mana: amount must not be negative")

// Pool tracks one character's mana.
//
// Invariant: 0 <= Current() <= Max() after every method returns.
// It is not safe for concurrent use; the caller must serialise access.
type Pool struct {
	current       int64
	max           int64
	regenPerTick  int64
	perMagicPower int64
	level         uint32
}

// NewPool creates an empty pool whose capacity is perMagicPower mana per point of
// the base stat and which regenerates regenPerTick per tick.
//
// Precondition: perMagicPower >= 0; regenPerTick >= 0. Negative values are treated as 0.
// Postcondition: Current() == Max() == 0 until Initialize is called.
func NewPool(perMagicPower, regenPerTick int64) *Pool {
	if perMagicPower < 0 {
		perMagicPower = 0
	}
	if regenPerTick < 0 {
		regenPerTick = 0
	}
	return &Pool{perMagicPower: perMagicPower, regenPerTick: regenPerTick}
}

// Restored builds a pool directly from persisted values, clamping into the invariant.
//
// Postcondition: 0 <= Current() <= Max().
func Restored(current, max, perMagicPower, regenPerTick int64) *Pool {
	p := NewPool(perMagicPower, regenPerTick)
	if max < 0 {
		max = 0
	}
	p.max = max
	p.current = clamp(current, 0, max)
	return p
}

// Initialize sets capacity from baseStat and fills the pool.
// level is recorded for callers; it does not enter the capacity formula.
//
// Postcondition: Max() == max(0, baseStat*perMagicPower); Current() == Max().
func (p *Pool) Initialize(baseStat int64, level uint32) {
	p.max = p.capacityFor(baseStat)
	p.current = p.max
	p.level = level
}

// SetLevel records the owner's level after a level-up. Capacity is unchanged.
func (p *Pool) SetLevel(level uint32) { p.level = level }

// RecomputeMax changes capacity for a new base stat, preserving the fraction full:
// current' = round(max' * current / max). When the old capacity is 0 the pool is filled.
//
// Postcondition: 0 <= Current() <= Max().
func (p *Pool) RecomputeMax(newBaseStat int64) {
	newMax := p.capacityFor(newBaseStat)
	if p.max == 0 {
		p.max = newMax
		p.current = newMax
		return
	}
	scaled := math.Round(float64(newMax) * float64(p.current) / float64(p.max))
	p.max = newMax
	p.current = clamp(int64(scaled), 0, newMax)
}

// TryConsume deducts amount and reports true iff amount >= 0 and Current() >= amount.
// On false the pool is unchanged.
func (p *Pool) TryConsume(amount int64) bool {
	if amount < 0 || p.current < amount {
		return false
	}
	p.current -= amount
	return true
}

// CanAfford reports whether TryConsume(amount) would succeed, without mutating.
func (p *Pool) CanAfford(amount int64) bool {
	return amount >= 0 && p.current >= amount
}

// Restore adds amount, clamped to Max(), and returns the amount actually added.
//
// Postcondition: returns ErrInvalidAmount without mutation if amount < 0.
func (p *Pool) Restore(amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("restore %d: %w", amount, ErrInvalidAmount)
	}
	room := p.max - p.current
	if amount > room {
		amount = room
	}
	p.current += amount
	return amount, nil
}

// Regenerate adds min(regenPerTick, Max()-Current()) and returns the amount added.
// It is meant to run once per scheduling tick.
func (p *Pool) Regenerate() int64 {
	restored, _ := p.Restore(p.regenPerTick)
	return restored
}

// Current returns the mana currently available.
func (p *Pool) Current() int64 { return p.current }

// Max returns the pool capacity.
func (p *Pool) Max() int64 { return p.max }

// RegenPerTick returns the mana restored per Regenerate call when not full.
func (p *Pool) RegenPerTick() int64 { return p.regenPerTick }

// PerMagicPower returns the capacity multiplier applied to the base stat.
func (p *Pool) PerMagicPower() int64 { return p.perMagicPower }

// Level returns the level recorded by the last Initialize.
func (p *Pool) Level() uint32 { return p.level }

// Fraction returns Current()/Max(), or 0 for an empty-capacity pool.
func (p *Pool) Fraction() float64 {
	if p.max == 0 {
		return 0
	}
	return float64(p.current) / float64(p.max)
}

func (p *Pool) capacityFor(baseStat int64) int64 {
	m := baseStat * p.perMagicPower
	if m < 0 {
		return 0
	}
	return m
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
