// Package cooldown tracks per-ability-instance cooldown timers for one character.
package cooldown

import (
	"math"
	"sort"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
)

// Entry is a snapshot of one active cooldown.
type Entry struct {
	ID        ability.InstanceID
	Remaining float64 // seconds
}

// Tracker maps ability instances to their remaining cooldown in seconds.
//
// Invariant: an instance with no entry is ready; Tick never leaves an entry at or below zero.
// It is not safe for concurrent use; the caller must serialise access.
type Tracker struct {
	remaining map[ability.InstanceID]float64
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{remaining: make(map[ability.InstanceID]float64)}
}

// IsReady reports whether id may be used: it has no entry or its entry is at or below zero.
func (t *Tracker) IsReady(id ability.InstanceID) bool {
	r, ok := t.remaining[id]
	return !ok || r <= 0
}

// Start inserts or overwrites the cooldown for id.
// A non-positive or NaN duration removes the entry instead, since absence is the ready state.
// +Inf holds id until Reset or ResetAll; Tick and ScaleAll leave it untouched.
//
// Postcondition: Remaining(id) == duration for a positive duration; IsReady(id) otherwise.
func (t *Tracker) Start(id ability.InstanceID, duration float64) {
	if !(duration > 0) {
		delete(t.remaining, id)
		return
	}
	t.remaining[id] = duration
}

// Tick decrements every entry by dt seconds. Entries reaching zero or below are removed
// in the same pass and returned sorted. A negative or non-finite dt is ignored.
//
// Postcondition: for every id in the returned slice, IsReady(id) is true.
func (t *Tracker) Tick(dt float64) []ability.InstanceID {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil
	}
	var expired []ability.InstanceID
	// Deleting during range is allowed.
	for id, r := range t.remaining {
		r -= dt
		if r <= 0 {
			expired = append(expired, id)
			delete(t.remaining, id)
			continue
		}
		t.remaining[id] = r
	}
	sortIDs(expired)
	return expired
}

// Remaining returns the seconds left on id's cooldown, or 0 if absent or already elapsed.
//
// Postcondition: Returns >= 0.
func (t *Tracker) Remaining(id ability.InstanceID) float64 {
	r, ok := t.remaining[id]
	if !ok || r < 0 {
		return 0
	}
	return r
}

// Reset removes the cooldown for id unconditionally. It is a no-op if absent.
//
// Postcondition: IsReady(id) is true.
func (t *Tracker) Reset(id ability.InstanceID) {
	delete(t.remaining, id)
}

// ResetAll removes every cooldown.
//
// Postcondition: Len() == 0.
func (t *Tracker) ResetAll() {
	clear(t.remaining)
}

// ScaleAll multiplies every active entry by factor, e.g. 0.75 for a 25% reduction effect.
// Any finite factor is accepted, including negative factors and factors above one.
// A non-finite factor is rejected without mutation and ScaleAll reports false.
// Held (+Inf) entries are not scaled.
func (t *Tracker) ScaleAll(factor float64) bool {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return false
	}
	for id, r := range t.remaining {
		if math.IsInf(r, 1) {
			continue
		}
		t.remaining[id] = r * factor
	}
	return true
}

// Len returns the number of stored entries.
func (t *Tracker) Len() int {
	return len(t.remaining)
}

// Active returns a snapshot of every stored entry, sorted by instance id.
func (t *Tracker) Active() []Entry {
	out := make([]Entry, 0, len(t.remaining))
	for id := range t.remaining {
		out = append(out, Entry{ID: id, Remaining: t.Remaining(id)})
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].ID, out[j].ID) })
	return out
}

func sortIDs(ids []ability.InstanceID) {
	sort.Slice(ids, func(i, j int) bool { return less(ids[i], ids[j]) })
}

func less(a, b ability.InstanceID) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.Slot < b.Slot
}
