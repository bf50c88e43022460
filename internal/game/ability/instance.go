package ability

import (
	"fmt"
	"sort"
)

// InstanceID identifies one concrete equipped ability slot on a character.
// Two slots of the same Type keep independent cooldowns.
type InstanceID struct {
	Type Type
	Slot int
}

// Instance returns the InstanceID for the primary slot of t.
func Instance(t Type) InstanceID {
	return InstanceID{Type: t}
}

// String renders the id as "type" for the primary slot and "type#slot" otherwise.
func (id InstanceID) String() string {
	if id.Slot == 0 {
		return string(id.Type)
	}
	return fmt.Sprintf("%s#%d", id.Type, id.Slot)
}

// LearnedSet is the set of ability types a character knows.
// It is not safe for concurrent use; the owning character serialises access.
type LearnedSet struct {
	known map[Type]struct{}
}

// NewLearnedSet creates a set pre-populated with types. Duplicates collapse.
func NewLearnedSet(types ...Type) *LearnedSet {
	s := &LearnedSet{known: make(map[Type]struct{}, len(types))}
	for _, t := range types {
		s.known[t] = struct{}{}
	}
	return s
}

// Has reports whether t is known.
func (s *LearnedSet) Has(t Type) bool {
	_, ok := s.known[t]
	return ok
}

// Add inserts t and reports whether it was newly added.
//
// Postcondition: Has(t) is true.
func (s *LearnedSet) Add(t Type) bool {
	if _, ok := s.known[t]; ok {
		return false
	}
	s.known[t] = struct{}{}
	return true
}

// Len returns the number of known types.
func (s *LearnedSet) Len() int {
	return len(s.known)
}

// Types returns the known types sorted lexicographically.
func (s *LearnedSet) Types() []Type {
	out := make([]Type, 0, len(s.known))
	for t := range s.known {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
