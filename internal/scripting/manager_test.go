package scripting_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/event"
	"github.com/S3OPS/ACOTAR-sub002/internal/scripting"
)

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return scripting.NewManager(0, zap.New(core)), logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func luaMessages(logs *observer.ObservedLogs) []string {
	var out []string
	for _, e := range logs.FilterMessage("lua").All() {
		out = append(out, e.ContextMap()["msg"].(string))
	}
	return out
}

func TestManager_Load_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `function add(a, b) return a + b end`)
	require.NoError(t, mgr.Load(dir))
	assert.True(t, mgr.HasHook("add"))
	ret, err := mgr.CallHook("add", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
}

func TestManager_CallHook_MissingIsNoOp(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret, err := mgr.CallHook("anything")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)

	require.NoError(t, mgr.Load(writeTempLua(t, "empty.lua", `-- nothing`)))
	assert.False(t, mgr.HasHook("nonexistent"))
	ret, err = mgr.CallHook("nonexistent")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_RuntimeErrorLogged(t *testing.T) {
	mgr, logs := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "bad.lua", `function boom() error("kaboom") end`)))
	_, err := mgr.CallHook("boom")
	assert.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("scripting: Lua runtime error").Len())
}

func TestManager_Load_SyntaxErrorKeepsPreviousVM(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "ok.lua", `function ping() return 1 end`)))
	assert.Error(t, mgr.Load(writeTempLua(t, "bad.lua", `function (`)))
	assert.True(t, mgr.HasHook("ping"))
}

func TestManager_Load_MissingDir(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Error(t, mgr.Load(filepath.Join(t.TempDir(), "nope")))
}

func TestManager_EngineAbility(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.LookupAbility = func(t string) (scripting.AbilityInfo, bool) {
		if t != "healing" {
			return scripting.AbilityInfo{}, false
		}
		return scripting.AbilityInfo{Type: t, Name: "Healing", ManaCost: 20, Cooldown: 6}, true
	}
	require.NoError(t, mgr.Load(writeTempLua(t, "q.lua", `
		function cost_of(t)
			local a = engine.ability(t)
			if a == nil then return -1 end
			return a.mana_cost
		end
	`)))
	ret, err := mgr.CallHook("cost_of", lua.LString("healing"))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(20), ret)
	ret, err = mgr.CallHook("cost_of", lua.LString("unknown"))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(-1), ret)
}

func TestManager_ConcurrentCalls(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "c.lua", `n = 0 function inc() n = n + 1 return n end`)))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.CallHook("inc")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	ret, err := mgr.CallHook("inc")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(21), ret)
}

func TestHookSink_DispatchesEngineEvents(t *testing.T) {
	mgr, logs := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "h.lua", `
		function on_cast_fire(uid, cost) engine.log("fire " .. cost) end
		function on_cast(uid, ability, cost) engine.log("cast " .. ability) end
		function on_level_up(uid, from, to) engine.log("level " .. from .. "->" .. to) end
		function on_learn(uid, ability) engine.log("learn " .. ability) end
	`)))
	catalog := ability.NewCatalog()
	require.NoError(t, catalog.Register(ability.Definition{Type: ability.FireManipulation, Name: "Fire", ManaCost: 20, LuaOnCast: "on_cast_fire"}))
	sink := scripting.NewHookSink(mgr, catalog, 8, zap.NewNop())

	uid := uuid.New()
	cast := event.New(event.KindCastCommitted, uid)
	cast.Ability, cast.Cost = ability.FireManipulation, 20
	up := event.New(event.KindLevelUp, uid)
	up.FromLevel, up.ToLevel = 1, 3
	learn := event.New(event.KindAbilityLearned, uid)
	learn.Ability = ability.Healing

	sink.Dispatch(cast)
	sink.Dispatch(up)
	sink.Dispatch(learn)
	assert.Equal(t, []string{"fire 20", "cast fire_manipulation", "level 1->3", "learn healing"}, luaMessages(logs))
}

func TestHookSink_RunDrainsOnCancel(t *testing.T) {
	mgr, logs := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "h.lua", `function on_learn(uid, a) engine.log(a) end`)))
	sink := scripting.NewHookSink(mgr, ability.NewCatalog(), 8, zap.NewNop())

	for _, at := range []ability.Type{ability.Healing, ability.Shielding} {
		e := event.New(event.KindAbilityLearned, uuid.New())
		e.Ability = at
		sink.Emit(e)
	}
	sink.Emit(event.New(event.KindManaRegenerated, uuid.New())) // ignored kind

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Run(ctx)
	assert.ElementsMatch(t, []string{"healing", "shielding"}, luaMessages(logs))
}

func TestHookSink_WaitAfterStartDrainsQueue(t *testing.T) {
	mgr, logs := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "h.lua", `function on_learn(uid, a) engine.log(a) end`)))
	sink := scripting.NewHookSink(mgr, ability.NewCatalog(), 8, zap.NewNop())

	e := event.New(event.KindAbilityLearned, uuid.New())
	e.Ability = ability.Winnowing
	sink.Emit(e)

	// Cancelled before the goroutine can be scheduled: Wait must still block
	// until the queued hook has run.
	ctx, cancel := context.WithCancel(context.Background())
	sink.Start(ctx)
	cancel()
	sink.Wait()
	assert.Equal(t, []string{"winnowing"}, luaMessages(logs))
}

func TestHookSink_FullQueueDrops(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	mgr := scripting.NewManager(0, zap.NewNop())
	sink := scripting.NewHookSink(mgr, ability.NewCatalog(), 1, zap.New(core))
	sink.Emit(event.New(event.KindLevelUp, uuid.New()))
	sink.Emit(event.New(event.KindLevelUp, uuid.New()))
	assert.Equal(t, 1, logs.FilterMessage("scripting: hook queue full, dropping event").Len())
}

func TestContentScripts_Load(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load("../../content/scripts"))
	for _, hook := range []string{scripting.HookOnCast, scripting.HookOnLevelUp, scripting.HookOnLearn, "on_cast_fire", "on_cast_seer"} {
		assert.True(t, mgr.HasHook(hook), hook)
	}
}
