package ruleset

import (
	"errors"
	"fmt"
	"sort"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
)

var (
	// ErrAlreadyKnown is returned when learning an ability already in the set.
	ErrAlreadyKnown = errors.New("ability already known")
	// ErrNotEligible is returned when a class may not learn an ability.
	ErrNotEligible = errors.New("class not eligible to learn ability")
)

// Policy provides lookup of learning rules by class ID.
// Classes without a registered rule may learn anything.
//
// A Policy is read-only after construction and safe for concurrent reads.
type Policy struct {
	classes map[string]*Class
}

// NewPolicy returns a Policy holding the given classes.
//
// Precondition: every class must be non-nil with a non-empty ID.
// Postcondition: if the same ID appears more than once, the last one wins.
func NewPolicy(classes ...*Class) *Policy {
	p := &Policy{classes: make(map[string]*Class, len(classes))}
	for _, c := range classes {
		if c == nil {
			panic("ruleset.NewPolicy: precondition violated: class must be non-nil")
		}
		if c.ID == "" {
			panic("ruleset.NewPolicy: precondition violated: class ID must be non-empty")
		}
		p.classes[c.ID] = c
	}
	return p
}

// DefaultPolicy returns a Policy over DefaultClasses.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultClasses()...)
}

// LoadPolicy returns DefaultPolicy overlaid with the classes found in dir.
// An empty dir yields DefaultPolicy.
func LoadPolicy(dir string) (*Policy, error) {
	classes := DefaultClasses()
	if dir != "" {
		loaded, err := LoadClasses(dir)
		if err != nil {
			return nil, err
		}
		classes = append(classes, loaded...)
	}
	return NewPolicy(classes...), nil
}

// Class returns the registered class for id.
//
// Postcondition: Returns the Class and true, or nil and false if not found.
func (p *Policy) Class(id string) (*Class, bool) {
	c, ok := p.classes[id]
	return c, ok
}

// Classes returns every registered class sorted by ID.
func (p *Policy) Classes() []*Class {
	out := make([]*Class, 0, len(p.classes))
	for _, c := range p.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CanLearn reports whether classID may learn t.
func (p *Policy) CanLearn(classID string, t ability.Type) bool {
	c, ok := p.classes[classID]
	if !ok {
		return true
	}
	return c.Learning.Permits(t)
}

// Learn adds t to set if classID may learn it.
// Membership is checked before eligibility.
//
// Postcondition: on nil error set.Has(t) is true; on error set is unchanged.
func (p *Policy) Learn(set *ability.LearnedSet, classID string, t ability.Type) error {
	if set.Has(t) {
		return fmt.Errorf("learning %s: %w", t, ErrAlreadyKnown)
	}
	if !p.CanLearn(classID, t) {
		return fmt.Errorf("class %q learning %s: %w", classID, t, ErrNotEligible)
	}
	set.Add(t)
	return nil
}
