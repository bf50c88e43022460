package character

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ruleset"
)

// Build constructs a new level 1 Character of class with the class base stats.
// MaxHealth is at least 1 and the character starts at full health.
//
// Precondition: name must be non-empty; class must be non-nil.
// Postcondition: Returns a Character with a fresh UID, or a non-nil error.
func Build(name string, class *ruleset.Class) (*Character, error) {
	if name == "" {
		return nil, errors.New("character name must not be empty")
	}
	if class == nil {
		return nil, errors.New("class must not be nil")
	}

	stats := Stats{
		MaxHealth:  class.Base.MaxHealth,
		MagicPower: class.Base.MagicPower,
		Strength:   class.Base.Strength,
		Agility:    class.Base.Agility,
	}
	if stats.MaxHealth < 1 {
		stats.MaxHealth = 1
	}

	now := time.Now()
	return &Character{
		UID:           uuid.New(),
		Name:          name,
		Class:         class.ID,
		Stats:         stats,
		CurrentHealth: stats.MaxHealth,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
