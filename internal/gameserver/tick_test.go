package gameserver_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
	"github.com/S3OPS/ACOTAR-sub002/internal/gameserver"
)

func newTicks(t *testing.T, g *gameserver.Game, interval time.Duration) *gameserver.TickManager {
	t.Helper()
	return gameserver.NewTickManager(interval, g.Engine(), g.Roster(), zaptest.NewLogger(t))
}

func TestNewTickManager_RejectsNonPositiveInterval(t *testing.T) {
	g := newTestGame(t, nil)
	assert.Panics(t, func() { newTicks(t, g, 0) })
}

func TestTickManager_TickOnce_DecaysAndRegenerates(t *testing.T) {
	g := newTestGame(t, nil)
	tm := newTicks(t, g, time.Second)
	sess, err := g.Create("Feyre", "high_fae")
	require.NoError(t, err)
	require.NoError(t, g.Engine().LearnAbility(sess.State, ability.FireManipulation))
	require.True(t, g.Cast(sess, ability.FireManipulation).Committed) // 130/150, 5s cooldown

	assert.Equal(t, 1, tm.TickOnce(2))
	cs := sess.State
	cs.Lock()
	assert.Equal(t, int64(135), cs.Mana.Current())
	assert.InDelta(t, 3.0, cs.Cooldowns.Remaining(ability.Instance(ability.FireManipulation)), 1e-9)
	cs.Unlock()

	tm.TickOnce(3)
	cs.Lock()
	assert.True(t, cs.Cooldowns.IsReady(ability.Instance(ability.FireManipulation)))
	assert.Equal(t, int64(140), cs.Mana.Current())
	cs.Unlock()
	assert.Equal(t, uint64(2), tm.Ticks())
}

func TestTickManager_TickOnce_EmptyRoster(t *testing.T) {
	g := newTestGame(t, nil)
	tm := newTicks(t, g, time.Second)
	assert.Equal(t, 0, tm.TickOnce(1))
	assert.Equal(t, uint64(1), tm.Ticks())
}

func TestTickManager_ExtraCallbacks(t *testing.T) {
	g := newTestGame(t, nil)
	tm := newTicks(t, g, time.Second)
	var calls atomic.Int64
	tm.RegisterTick("autosave", func() { calls.Add(1) })
	tm.TickOnce(1)
	tm.TickOnce(1)
	tm.Unregister("autosave")
	tm.TickOnce(1)
	assert.Equal(t, int64(2), calls.Load())
}

func TestTickManager_Run_StopsOnCancel(t *testing.T) {
	g := newTestGame(t, nil)
	tm := newTicks(t, g, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tm.Run(ctx) }()

	require.Eventually(t, func() bool { return tm.Ticks() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTickManager_Start_InvokesCallback(t *testing.T) {
	g := newTestGame(t, nil)
	tm := newTicks(t, g, 10*time.Millisecond)
	called := make(chan struct{}, 1)
	tm.RegisterTick("probe", func() {
		select {
		case called <- struct{}{}:
		default:
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tm.Start(ctx)
	select {
	case <-called:
	case <-ctx.Done():
		t.Fatal("tick callback not invoked")
	}
}

func TestPropertyTickManager_ManaStaysBounded(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := newTestGame(t, nil)
		tm := gameserver.NewTickManager(time.Second, g.Engine(), g.Roster(), zaptest.NewLogger(t))
		sess, err := g.Create("Feyre", "high_fae")
		require.NoError(rt, err)
		require.NoError(rt, g.Engine().LearnAbility(sess.State, ability.FireManipulation))
		steps := rapid.SliceOfN(rapid.Bool(), 1, 40).Draw(rt, "steps")
		for _, doCast := range steps {
			if doCast {
				g.Cast(sess, ability.FireManipulation)
			} else {
				tm.TickOnce(rapid.Float64Range(0, 6).Draw(rt, "dt"))
			}
			cs := sess.State
			cs.Lock()
			cur, max := cs.Mana.Current(), cs.Mana.Max()
			cs.Unlock()
			assert.GreaterOrEqual(rt, cur, int64(0))
			assert.LessOrEqual(rt, cur, max)
		}
	})
}
