// Package inventory provides definitions, loaders, and equipment slots for the gear
// that modifies ability casting.
package inventory

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/mana"
)

// ItemDef defines the static properties of an equippable item loaded from YAML.
type ItemDef struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Slot        Slot    `yaml:"slot"`
	ManaFlat    uint32  `yaml:"mana_flat"`    // subtracted from every ability cost
	ManaPercent float32 `yaml:"mana_percent"` // fraction in [0,1] removed from every ability cost
}

// Reduction returns the item's contribution to ability cost reduction.
func (d *ItemDef) Reduction() mana.Reduction {
	return mana.Reduction{Flat: d.ManaFlat, Percent: d.ManaPercent}
}

// Validate checks that the ItemDef satisfies its invariants.
//
// Precondition: d is non-nil.
// Postcondition: returns nil iff all fields are valid.
func (d *ItemDef) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if _, ok := validSlots[d.Slot]; !ok {
		errs = append(errs, fmt.Errorf("slot %q is not a valid equipment slot", d.Slot))
	}
	if math.IsNaN(float64(d.ManaPercent)) || d.ManaPercent < 0 || d.ManaPercent > 1 {
		errs = append(errs, fmt.Errorf("mana_percent must be in [0,1], got %v", d.ManaPercent))
	}
	return errors.Join(errs...)
}

// LoadItems reads all *.yaml and *.yml files from dir, parses each as an
// ItemDef, validates it, and returns the collected slice.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid ItemDefs or the first encountered error.
func LoadItems(dir string) ([]*ItemDef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadItems: cannot read directory %q: %w", dir, err)
	}

	var items []*ItemDef
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadItems: cannot read file %q: %w", path, err)
		}
		var d ItemDef
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("LoadItems: cannot parse file %q: %w", path, err)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("LoadItems: invalid item in %q: %w", path, err)
		}
		items = append(items, &d)
	}
	return items, nil
}
