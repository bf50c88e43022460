package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/character"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/inventory"
)

// ErrCharacterNotFound is returned when a character lookup yields no results.
var ErrCharacterNotFound = errors.New("character not found")

// ErrCharacterNameTaken is returned when a different character already owns the name.
var ErrCharacterNameTaken = errors.New("character name already taken")

// Record is the persisted form of one character's progression.
type Record struct {
	Character  character.Character
	Level      uint32
	Experience uint32
	Mana       int64
	MaxMana    int64
	Learned    []ability.Type
	Equipped   map[inventory.Slot]string // slot -> item ID
}

// CharacterRepository stores and loads progression records.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

const characterColumns = `id, uid, name, class, max_health, magic_power, strength, agility,
	current_health, level, experience, mana_current, mana_max, created_at, updated_at`

// Save upserts rec keyed by its UID and replaces its learned abilities and equipment
// in one transaction. rec.Character's ID and timestamps are updated on success.
//
// Precondition: rec.Character.UID must be set and Name non-empty.
// Postcondition: Returns ErrCharacterNameTaken if another UID holds the name (case-insensitive).
func (r *CharacterRepository) Save(ctx context.Context, rec *Record) error {
	c := &rec.Character
	if c.UID == uuid.Nil {
		return errors.New("saving character: uid is unset")
	}
	if c.Name == "" {
		return errors.New("saving character: name is empty")
	}

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO characters
				(uid, name, class, max_health, magic_power, strength, agility,
				 current_health, level, experience, mana_current, mana_max)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (uid) DO UPDATE SET
				name = EXCLUDED.name,
				class = EXCLUDED.class,
				max_health = EXCLUDED.max_health,
				magic_power = EXCLUDED.magic_power,
				strength = EXCLUDED.strength,
				agility = EXCLUDED.agility,
				current_health = EXCLUDED.current_health,
				level = EXCLUDED.level,
				experience = EXCLUDED.experience,
				mana_current = EXCLUDED.mana_current,
				mana_max = EXCLUDED.mana_max,
				updated_at = NOW()
			RETURNING id, created_at, updated_at`,
			c.UID, c.Name, c.Class,
			c.Stats.MaxHealth, c.Stats.MagicPower, c.Stats.Strength, c.Stats.Agility,
			c.CurrentHealth, int64(rec.Level), int64(rec.Experience), rec.Mana, rec.MaxMana,
		).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM character_abilities WHERE character_id = $1`, c.ID); err != nil {
			return fmt.Errorf("clearing abilities: %w", err)
		}
		if len(rec.Learned) > 0 {
			learned := make([]string, len(rec.Learned))
			for i, t := range rec.Learned {
				learned[i] = string(t)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO character_abilities (character_id, ability)
				SELECT $1, a FROM unnest($2::text[]) AS t(a)`,
				c.ID, learned,
			); err != nil {
				return fmt.Errorf("inserting abilities: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM character_equipment WHERE character_id = $1`, c.ID); err != nil {
			return fmt.Errorf("clearing equipment: %w", err)
		}
		if len(rec.Equipped) > 0 {
			slots := make([]string, 0, len(rec.Equipped))
			items := make([]string, 0, len(rec.Equipped))
			for slot, item := range rec.Equipped {
				slots = append(slots, string(slot))
				items = append(items, item)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO character_equipment (character_id, slot, item_id)
				SELECT $1, s, i FROM unnest($2::text[], $3::text[]) AS t(s, i)`,
				c.ID, slots, items,
			); err != nil {
				return fmt.Errorf("inserting equipment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCharacterNameTaken
		}
		return fmt.Errorf("saving character %q: %w", c.Name, err)
	}
	return nil
}

// LoadByName returns the record whose name matches case-insensitively.
//
// Postcondition: Returns ErrCharacterNotFound when no row matches.
func (r *CharacterRepository) LoadByName(ctx context.Context, name string) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE LOWER(name) = LOWER($1)`, name)
	return r.load(ctx, row)
}

// LoadByUID returns the record with the given UID.
//
// Postcondition: Returns ErrCharacterNotFound when no row matches.
func (r *CharacterRepository) LoadByUID(ctx context.Context, uid uuid.UUID) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE uid = $1`, uid)
	return r.load(ctx, row)
}

// Delete removes a character and, by cascade, its abilities and equipment.
//
// Postcondition: Returns ErrCharacterNotFound when no row matched.
func (r *CharacterRepository) Delete(ctx context.Context, uid uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM characters WHERE uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("deleting character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

func (r *CharacterRepository) load(ctx context.Context, row pgx.Row) (*Record, error) {
	var (
		rec   Record
		level int64
		xp    int64
	)
	c := &rec.Character
	err := row.Scan(
		&c.ID, &c.UID, &c.Name, &c.Class,
		&c.Stats.MaxHealth, &c.Stats.MagicPower, &c.Stats.Strength, &c.Stats.Agility,
		&c.CurrentHealth, &level, &xp, &rec.Mana, &rec.MaxMana,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("loading character: %w", err)
	}
	rec.Level = clampUint32(level)
	rec.Experience = clampUint32(xp)

	rows, err := r.db.Query(ctx,
		`SELECT ability FROM character_abilities WHERE character_id = $1 ORDER BY ability`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("loading abilities: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning abilities: %w", err)
	}
	for _, n := range names {
		rec.Learned = append(rec.Learned, ability.Type(n))
	}

	rows, err = r.db.Query(ctx,
		`SELECT slot, item_id FROM character_equipment WHERE character_id = $1`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("loading equipment: %w", err)
	}
	defer rows.Close()
	rec.Equipped = make(map[inventory.Slot]string)
	for rows.Next() {
		var slot, item string
		if err := rows.Scan(&slot, &item); err != nil {
			return nil, fmt.Errorf("scanning equipment: %w", err)
		}
		rec.Equipped[inventory.Slot(slot)] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating equipment: %w", err)
	}
	return &rec, nil
}

func clampUint32(v int64) uint32 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}
