package character

import (
	"sync"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/cooldown"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/experience"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/inventory"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/mana"
)

// State is the mutable runtime state of one character: mana, cooldowns,
// experience, learned abilities and equipment, guarded by a single mutex.
//
// Callers must hold the lock (Lock/Unlock) across every read or write of the
// component fields.
type State struct {
	mu sync.Mutex

	Character *Character
	Mana      *mana.Pool
	Cooldowns *cooldown.Tracker
	XP        *experience.State
	Learned   *ability.LearnedSet
	Equipment *inventory.Equipment
}

// NewState assembles runtime state for a freshly built character.
// The pool is sized from the character's MagicPower and filled.
//
// Precondition: c, pool and xp must be non-nil.
func NewState(c *Character, pool *mana.Pool, xp *experience.State) *State {
	pool.Initialize(c.Stats.MagicPower, xp.Level)
	return &State{
		Character: c,
		Mana:      pool,
		Cooldowns: cooldown.NewTracker(),
		XP:        xp,
		Learned:   ability.NewLearnedSet(),
		Equipment: inventory.NewEquipment(),
	}
}

// Restore assembles runtime state from persisted components without resizing the pool.
//
// Precondition: every argument must be non-nil.
func Restore(c *Character, pool *mana.Pool, xp *experience.State, learned *ability.LearnedSet) *State {
	pool.SetLevel(xp.Level)
	return &State{
		Character: c,
		Mana:      pool,
		Cooldowns: cooldown.NewTracker(),
		XP:        xp,
		Learned:   learned,
		Equipment: inventory.NewEquipment(),
	}
}

// Lock acquires the state lock.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the state lock.
func (s *State) Unlock() { s.mu.Unlock() }

// ApplyGrowth implements experience.StatSink. Stats grow, health grows with MaxHealth,
// and the mana pool is resized for the new MagicPower keeping its fill fraction.
//
// Precondition: the caller holds the lock.
func (s *State) ApplyGrowth(g experience.Growth) {
	s.Character.Stats.ApplyGrowth(g)
	s.Character.CurrentHealth += g.MaxHealth
	if s.Character.CurrentHealth > s.Character.Stats.MaxHealth {
		s.Character.CurrentHealth = s.Character.Stats.MaxHealth
	}
	s.Mana.RecomputeMax(s.Character.Stats.MagicPower)
	s.Mana.SetLevel(s.XP.Level)
}

// Snapshot is a read-only copy of a State for display and persistence.
type Snapshot struct {
	Character   Character
	Level       uint32
	Experience  uint32
	Requirement uint32
	Mana        int64
	MaxMana     int64
	Learned     []ability.Type
	Cooldowns   []cooldown.Entry
	Reduction   mana.Reduction
}

// Snapshot copies the current state.
//
// Precondition: the caller holds the lock.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Character:   *s.Character,
		Level:       s.XP.Level,
		Experience:  s.XP.Experience,
		Requirement: s.XP.Requirement(),
		Mana:        s.Mana.Current(),
		MaxMana:     s.Mana.Max(),
		Learned:     s.Learned.Types(),
		Cooldowns:   s.Cooldowns.Active(),
		Reduction:   s.Equipment.ManaReduction(),
	}
}
