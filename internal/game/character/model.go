// Package character defines the character domain model, pure creation logic, and the
// per-character runtime state the cast engine operates on.
package character

import (
	"time"

	"github.com/google/uuid"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/experience"
)

// Stats holds a character's current attribute values.
type Stats struct {
	MaxHealth  int64
	MagicPower int64
	Strength   int64
	Agility    int64
}

// ApplyGrowth adds g to every stat.
func (s *Stats) ApplyGrowth(g experience.Growth) {
	s.MaxHealth += g.MaxHealth
	s.MagicPower += g.MagicPower
	s.Strength += g.Strength
	s.Agility += g.Agility
}

// Character represents a player character's persistent identity and stats.
//
// UID is assigned at creation; ID is set by the persistence layer and zero for an unsaved character.
type Character struct {
	ID  int64
	UID uuid.UUID

	Name          string
	Class         string // class ID
	Stats         Stats
	CurrentHealth int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
