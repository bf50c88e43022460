// Package gameserver assembles the engine, roster, tick driver, persistence and
// admin console into a running game.
package gameserver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/cast"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/character"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/experience"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/inventory"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/mana"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/session"
	"github.com/S3OPS/ACOTAR-sub002/internal/storage/postgres"
)

var (
	// ErrUnknownClass is returned when creating a character of an undefined class.
	ErrUnknownClass = errors.New("unknown class")
	// ErrUnknownItem is returned when equipping an undefined item.
	ErrUnknownItem = errors.New("unknown item")
	// ErrUnknownSlot is returned when unequipping a slot that does not exist.
	ErrUnknownSlot = errors.New("unknown equipment slot")
	// ErrSlotEmpty is returned when unequipping an empty slot.
	ErrSlotEmpty = errors.New("equipment slot is empty")
	// ErrNoStore is returned by Save and Load when persistence is disabled.
	ErrNoStore = errors.New("persistence is disabled")
)

// Store persists character progression.
type Store interface {
	Save(ctx context.Context, rec *postgres.Record) error
	LoadByName(ctx context.Context, name string) (*postgres.Record, error)
}

// GameConfig carries the Game's collaborators and tuning.
type GameConfig struct {
	Engine *cast.Engine
	Roster *session.Manager
	Items  *inventory.Registry
	// Store may be nil, disabling save and load.
	Store  Store
	Logger *zap.Logger

	Curve             experience.Curve
	Growth            experience.Growth
	ManaPerMagicPower int64
	RegenPerTick      int64
}

// Game owns the roster of active characters and the operations that create,
// equip, persist and restore them. Cast-level rules live in cast.Engine.
type Game struct {
	cfg GameConfig
}

// NewGame creates a Game.
//
// Precondition: Engine, Roster, Items and Logger must be non-nil.
func NewGame(cfg GameConfig) *Game {
	if cfg.Engine == nil || cfg.Roster == nil || cfg.Items == nil || cfg.Logger == nil {
		panic("gameserver.NewGame: engine, roster, items and logger must be non-nil")
	}
	return &Game{cfg: cfg}
}

// Engine returns the cast engine.
func (g *Game) Engine() *cast.Engine { return g.cfg.Engine }

// Roster returns the active-character roster.
func (g *Game) Roster() *session.Manager { return g.cfg.Roster }

// Items returns the equipment registry.
func (g *Game) Items() *inventory.Registry { return g.cfg.Items }

// Persistent reports whether a Store is configured.
func (g *Game) Persistent() bool { return g.cfg.Store != nil }

// Create builds a level 1 character of classID, sizes and fills its pool and adds it to the roster.
//
// Postcondition: Returns ErrUnknownClass for an undefined class, or the roster's error if the name is active.
func (g *Game) Create(name, classID string) (*session.Session, error) {
	class, ok := g.cfg.Engine.Policy().Class(classID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, classID)
	}
	c, err := character.Build(name, class)
	if err != nil {
		return nil, err
	}
	pool := mana.NewPool(g.cfg.ManaPerMagicPower, g.cfg.RegenPerTick)
	xp := experience.NewState(g.cfg.Curve, g.cfg.Growth)
	sess, err := g.cfg.Roster.Add(character.NewState(c, pool, xp))
	if err != nil {
		return nil, err
	}
	g.cfg.Logger.Info("character created",
		zap.String("character", c.UID.String()),
		zap.String("name", c.Name),
		zap.String("class", c.Class),
		zap.Int64("max_mana", pool.Max()),
	)
	return sess, nil
}

// Cast casts abilityType for sess with the reduction of its current equipment.
func (g *Game) Cast(sess *session.Session, abilityType ability.Type) cast.Result {
	cs := sess.State
	cs.Lock()
	reduction := cs.Equipment.ManaReduction()
	cs.Unlock()
	return g.cfg.Engine.Cast(cs, abilityType, reduction)
}

// Equip places itemID into its slot and returns the item it displaced, if any.
func (g *Game) Equip(sess *session.Session, itemID string) (*inventory.ItemDef, error) {
	def, ok := g.cfg.Items.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItem, itemID)
	}
	cs := sess.State
	cs.Lock()
	defer cs.Unlock()
	return cs.Equipment.Equip(def), nil
}

// Unequip empties slot and returns the removed item.
func (g *Game) Unequip(sess *session.Session, slot inventory.Slot) (*inventory.ItemDef, error) {
	if !inventory.ValidSlot(slot) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	cs := sess.State
	cs.Lock()
	defer cs.Unlock()
	removed := cs.Equipment.Unequip(slot)
	if removed == nil {
		return nil, fmt.Errorf("%w: %s", ErrSlotEmpty, slot)
	}
	return removed, nil
}

// Save persists sess.
func (g *Game) Save(ctx context.Context, sess *session.Session) error {
	if g.cfg.Store == nil {
		return ErrNoStore
	}
	rec := Capture(sess.State)
	if err := g.cfg.Store.Save(ctx, rec); err != nil {
		return err
	}
	sess.State.Lock()
	sess.State.Character.ID = rec.Character.ID
	sess.State.Character.CreatedAt = rec.Character.CreatedAt
	sess.State.Character.UpdatedAt = rec.Character.UpdatedAt
	sess.State.Unlock()
	return nil
}

// SaveAll persists every active character and returns how many were saved.
// Failures are logged and joined into the returned error; the remaining characters are still saved.
func (g *Game) SaveAll(ctx context.Context) (int, error) {
	if g.cfg.Store == nil {
		return 0, ErrNoStore
	}
	var (
		saved int
		errs  []error
	)
	for _, sess := range g.cfg.Roster.All() {
		if err := g.Save(ctx, sess); err != nil {
			g.cfg.Logger.Warn("autosave failed", zap.String("name", sess.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sess.Name, err))
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

// Load returns the active session named name, restoring it from the Store if it is not active.
func (g *Game) Load(ctx context.Context, name string) (*session.Session, error) {
	if sess, ok := g.cfg.Roster.GetByName(name); ok {
		return sess, nil
	}
	if g.cfg.Store == nil {
		return nil, ErrNoStore
	}
	rec, err := g.cfg.Store.LoadByName(ctx, name)
	if err != nil {
		return nil, err
	}
	sess, err := g.cfg.Roster.Add(g.restore(rec))
	if err != nil {
		return nil, err
	}
	g.cfg.Logger.Info("character restored",
		zap.String("character", rec.Character.UID.String()),
		zap.String("name", rec.Character.Name),
		zap.Uint32("level", rec.Level),
	)
	return sess, nil
}

// restore rebuilds runtime state from rec. Cooldowns are not persisted, so a
// restored character starts with every ability ready. Unknown items are dropped.
// Experience stored at or above its level's requirement is resolved with stat growth.
func (g *Game) restore(rec *postgres.Record) *character.State {
	c := rec.Character
	pool := mana.Restored(rec.Mana, rec.MaxMana, g.cfg.ManaPerMagicPower, g.cfg.RegenPerTick)
	xp := experience.RestoredState(rec.Level, rec.Experience, g.cfg.Curve, g.cfg.Growth)
	cs := character.Restore(&c, pool, xp, ability.NewLearnedSet(rec.Learned...))
	cs.Lock()
	if up := cs.XP.Resolve(cs); up.Leveled() {
		g.cfg.Logger.Warn("stored experience exceeded its level; resolved on restore",
			zap.String("name", c.Name),
			zap.Uint32("from_level", up.From),
			zap.Uint32("to_level", up.To),
			zap.Uint32("experience", cs.XP.Experience),
		)
	}
	cs.Unlock()
	for slot, itemID := range rec.Equipped {
		def, ok := g.cfg.Items.Item(itemID)
		if !ok || def.Slot != slot {
			g.cfg.Logger.Warn("dropping unknown equipment on restore",
				zap.String("name", c.Name), zap.String("slot", string(slot)), zap.String("item", itemID))
			continue
		}
		cs.Equipment.Equip(def)
	}
	return cs
}

// Capture copies cs into a persistence record under its lock.
func Capture(cs *character.State) *postgres.Record {
	cs.Lock()
	defer cs.Unlock()
	snap := cs.Snapshot()
	rec := &postgres.Record{
		Character:  snap.Character,
		Level:      snap.Level,
		Experience: snap.Experience,
		Mana:       snap.Mana,
		MaxMana:    snap.MaxMana,
		Learned:    snap.Learned,
		Equipped:   make(map[inventory.Slot]string),
	}
	for _, item := range cs.Equipment.Items() {
		rec.Equipped[item.Slot] = item.ID
	}
	return rec
}
