package gameserver_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/cast"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/experience"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/inventory"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/ruleset"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/session"
	"github.com/S3OPS/ACOTAR-sub002/internal/gameserver"
	"github.com/S3OPS/ACOTAR-sub002/internal/storage/postgres"
)

// memStore is an in-memory gameserver.Store keyed by lower-cased name.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	byName map[string]postgres.Record
}

func newMemStore() *memStore {
	return &memStore{byName: make(map[string]postgres.Record)}
}

func (s *memStore) Save(_ context.Context, rec *postgres.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(rec.Character.Name)
	if existing, ok := s.byName[key]; ok && existing.Character.UID != rec.Character.UID {
		return postgres.ErrCharacterNameTaken
	}
	if rec.Character.ID == 0 {
		s.nextID++
		rec.Character.ID = s.nextID
		rec.Character.CreatedAt = time.Now()
	}
	rec.Character.UpdatedAt = time.Now()
	cp := *rec
	cp.Learned = append([]ability.Type(nil), rec.Learned...)
	cp.Equipped = make(map[inventory.Slot]string, len(rec.Equipped))
	for k, v := range rec.Equipped {
		cp.Equipped[k] = v
	}
	s.byName[key] = cp
	return nil
}

func (s *memStore) LoadByName(_ context.Context, name string) (*postgres.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byName[strings.ToLower(name)]
	if !ok {
		return nil, postgres.ErrCharacterNotFound
	}
	return &rec, nil
}

func testItems(t *testing.T) *inventory.Registry {
	t.Helper()
	r := inventory.NewRegistry()
	require.NoError(t, r.RegisterItem(&inventory.ItemDef{ID: "ash_staff", Name: "Ash Staff", Slot: inventory.SlotFocus, ManaPercent: 0.5}))
	require.NoError(t, r.RegisterItem(&inventory.ItemDef{ID: "veritas_amulet", Name: "Amulet of Veritas", Slot: inventory.SlotNeck, ManaFlat: 5}))
	require.NoError(t, r.RegisterItem(&inventory.ItemDef{ID: "oak_staff", Name: "Oak Staff", Slot: inventory.SlotFocus, ManaFlat: 1}))
	return r
}

// newTestGame builds a Game on the built-in catalog and classes. store may be nil.
// Fire Manipulation costs 20 mana with a 5s cooldown; a High Fae starts with 150/150 mana.
func newTestGame(t *testing.T, store gameserver.Store) *gameserver.Game {
	t.Helper()
	logger := zaptest.NewLogger(t)
	roster := session.NewManager()
	engine := cast.NewEngine(ability.DefaultCatalog(), ruleset.DefaultPolicy(), roster, logger)
	cfg := gameserver.GameConfig{
		Engine:            engine,
		Roster:            roster,
		Items:             testItems(t),
		Logger:            logger,
		Curve:             experience.DefaultCurve(),
		Growth:            experience.DefaultGrowth(),
		ManaPerMagicPower: 10,
		RegenPerTick:      5,
	}
	if store != nil {
		cfg.Store = store
	}
	return gameserver.NewGame(cfg)
}
