package experience

import "math"

// Growth is the fixed stat increase granted for each level gained.
type Growth struct {
	MaxHealth  int64 `mapstructure:"max_health"`
	MagicPower int64 `mapstructure:"magic_power"`
	Strength   int64 `mapstructure:"strength"`
	Agility    int64 `mapstructure:"agility"`
}

// DefaultGrowth returns the shipped per-level stat increments.
func DefaultGrowth() Growth {
	return Growth{MaxHealth: 10, MagicPower: 5, Strength: 2, Agility: 2}
}

// Times returns g scaled by n levels.
func (g Growth) Times(n uint32) Growth {
	k := int64(n)
	return Growth{
		MaxHealth:  g.MaxHealth * k,
		MagicPower: g.MagicPower * k,
		Strength:   g.Strength * k,
		Agility:    g.Agility * k,
	}
}

// StatSink receives the stat increases earned by a level-up.
type StatSink interface {
	ApplyGrowth(g Growth)
}

// LevelUp describes the outcome of one ApplyXP call.
type LevelUp struct {
	From uint32
	To   uint32
}

// Leveled reports whether at least one level was gained.
func (l LevelUp) Leveled() bool { return l.To > l.From }

// Gained returns the number of levels gained.
func (l LevelUp) Gained() uint32 { return l.To - l.From }

// State is a character's level and unconsumed experience.
//
// Invariant: Level >= 1; after ApplyXP, Experience < curve.Requirement(Level).
// It is not safe for concurrent use; the caller must serialise access.
type State struct {
	Level      uint32
	Experience uint32

	curve  Curve
	growth Growth
}

// NewState returns a level 1 character with no experience on the given curve.
func NewState(curve Curve, growth Growth) *State {
	return &State{Level: 1, curve: curve, growth: growth}
}

// RestoredState rebuilds a State from persisted values. Level 0 is raised to 1.
// Stored experience may be at or above the requirement; call Resolve before the
// state is exposed.
func RestoredState(level, xp uint32, curve Curve, growth Growth) *State {
	if level < 1 {
		level = 1
	}
	return &State{Level: level, Experience: xp, curve: curve, growth: growth}
}

// Curve returns the requirement curve this state advances along.
func (s *State) Curve() Curve { return s.curve }

// Growth returns the per-level stat increments.
func (s *State) Growth() Growth { return s.growth }

// Requirement returns the XP needed to leave the current level.
func (s *State) Requirement() uint32 { return s.curve.Requirement(s.Level) }

// ApplyXP adds xp and resolves every level-up it pays for in one call.
// Negative xp is rejected without mutation. When levels are gained, sink (if non-nil)
// receives the accumulated Growth once.
//
// Postcondition: Experience < Requirement() unless Level saturated at math.MaxUint32.
func (s *State) ApplyXP(xp int64, sink StatSink) LevelUp {
	res := LevelUp{From: s.Level, To: s.Level}
	if xp < 0 {
		return res
	}
	acc := uint64(s.Experience) + uint64(xp)
	level := s.Level
	for level < math.MaxUint32 {
		req := uint64(s.curve.Requirement(level))
		if acc < req {
			break
		}
		if s.flatFrom(level) {
			// Requirement no longer changes with level: settle the remainder arithmetically.
			n := acc / req
			if room := uint64(math.MaxUint32 - level); n > room {
				n = room
			}
			level += uint32(n)
			acc -= n * req
			break
		}
		acc -= req
		level++
	}
	if acc > math.MaxUint32 {
		acc = math.MaxUint32
	}
	s.Level = level
	s.Experience = uint32(acc)
	res.To = level
	if res.Leveled() && sink != nil {
		sink.ApplyGrowth(s.growth.Times(res.Gained()))
	}
	return res
}

// Resolve settles any experience already at or above the requirement, as ApplyXP(0, sink) does.
//
// Postcondition: Experience < Requirement() unless Level saturated at math.MaxUint32.
func (s *State) Resolve(sink StatSink) LevelUp {
	return s.ApplyXP(0, sink)
}

// flatFrom reports whether Requirement is constant for every level >= level.
func (s *State) flatFrom(level uint32) bool {
	if level <= s.curve.EarlyGameThreshold {
		return false
	}
	return s.curve.Multiplier == 1 || s.curve.Requirement(level) == math.MaxUint32
}
