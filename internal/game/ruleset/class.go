package ruleset

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
)

// LearningMode selects which abilities a class may learn.
type LearningMode string

const (
	// LearnNone forbids learning any ability.
	LearnNone LearningMode = "none"
	// LearnSingle permits exactly one ability type.
	LearnSingle LearningMode = "single"
	// LearnAny permits every ability type.
	LearnAny LearningMode = "any"
)

// Learning is a class's ability learning rule.
type Learning struct {
	Mode    LearningMode `yaml:"mode"`
	Ability ability.Type `yaml:"ability"`
}

// Permits reports whether the rule allows learning t.
func (l Learning) Permits(t ability.Type) bool {
	switch l.Mode {
	case LearnNone:
		return false
	case LearnSingle:
		return t == l.Ability
	default:
		return true
	}
}

// BaseStats are the level 1 stats a class starts with.
type BaseStats struct {
	MaxHealth  int64 `yaml:"max_health"`
	MagicPower int64 `yaml:"magic_power"`
	Strength   int64 `yaml:"strength"`
	Agility    int64 `yaml:"agility"`
}

// Class defines a playable character class.
//
// Precondition: ID and Name must be non-empty after loading.
type Class struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Base        BaseStats `yaml:"base"`
	Learning    Learning  `yaml:"learning"`
}

// Validate checks the class definition.
func (c *Class) Validate() error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if c.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	switch c.Learning.Mode {
	case LearnNone, LearnAny:
	case LearnSingle:
		if c.Learning.Ability == "" {
			errs = append(errs, errors.New("learning.ability is required for mode single"))
		}
	default:
		errs = append(errs, fmt.Errorf("learning.mode %q must be one of none, single, any", c.Learning.Mode))
	}
	if c.Base.MaxHealth < 0 || c.Base.MagicPower < 0 || c.Base.Strength < 0 || c.Base.Agility < 0 {
		errs = append(errs, errors.New("base stats must be >= 0"))
	}
	return errors.Join(errs...)
}

// Class ids shipped with the game.
const (
	ClassHuman     = "human"
	ClassSeer      = "seer"
	ClassHighFae   = "high_fae"
	ClassIllyrian  = "illyrian"
	ClassLesserFae = "lesser_fae"
)

// DefaultClasses returns the built-in class table.
func DefaultClasses() []*Class {
	return []*Class{
		{
			ID: ClassHuman, Name: "Human",
			Description: "Mortal with no magic of their own.",
			Base:        BaseStats{MaxHealth: 100, MagicPower: 0, Strength: 10, Agility: 10},
			Learning:    Learning{Mode: LearnNone},
		},
		{
			ID: ClassSeer, Name: "Seer",
			Description: "A minor gift of sight and nothing else.",
			Base:        BaseStats{MaxHealth: 90, MagicPower: 5, Strength: 8, Agility: 10},
			Learning:    Learning{Mode: LearnSingle, Ability: ability.SeerSight},
		},
		{
			ID: ClassHighFae, Name: "High Fae",
			Description: "Immortal and steeped in power.",
			Base:        BaseStats{MaxHealth: 150, MagicPower: 15, Strength: 14, Agility: 14},
			Learning:    Learning{Mode: LearnAny},
		},
		{
			ID: ClassIllyrian, Name: "Illyrian",
			Description: "Winged warrior of the mountain camps.",
			Base:        BaseStats{MaxHealth: 170, MagicPower: 8, Strength: 18, Agility: 14},
			Learning:    Learning{Mode: LearnAny},
		},
		{
			ID: ClassLesserFae, Name: "Lesser Fae",
			Description: "Fae with a lighter touch of magic.",
			Base:        BaseStats{MaxHealth: 120, MagicPower: 10, Strength: 12, Agility: 12},
			Learning:    Learning{Mode: LearnAny},
		},
	}
}

// LoadClasses reads all .yaml files in dir and parses each as a Class.
// Unknown fields are rejected.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns all parsed classes sorted by ID (may be empty slice) or a non-nil error.
func LoadClasses(dir string) ([]*Class, error) {
	files, err := yamlFiles(dir)
	if err != nil {
		return nil, err
	}
	classes := make([]*Class, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var c Class
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("parsing class file %s: %w", path, err)
		}
		if c.Learning.Mode == "" {
			c.Learning.Mode = LearnAny
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid class file %s: %w", path, err)
		}
		classes = append(classes, &c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })
	return classes, nil
}
