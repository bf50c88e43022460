package gameserver_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/S3OPS/ACOTAR-sub002/internal/config"
	"github.com/S3OPS/ACOTAR-sub002/internal/frontend/telnet"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/event"
	"github.com/S3OPS/ACOTAR-sub002/internal/gameserver"
	"github.com/S3OPS/ACOTAR-sub002/internal/testutil"
)

type consoleFixture struct {
	t       *testing.T
	game    *gameserver.Game
	handler *gameserver.ConsoleHandler
	con     *gameserver.Console
	feed    chan string
}

func newConsole(t *testing.T, store gameserver.Store) *consoleFixture {
	t.Helper()
	g := newTestGame(t, store)
	ticks := gameserver.NewTickManager(time.Second, g.Engine(), g.Roster(), zaptest.NewLogger(t))
	h := gameserver.NewConsoleHandler(g, ticks, false, zaptest.NewLogger(t))
	feed := make(chan string, 256)
	con := h.NewConsole(func(line string) { feed <- line })
	return &consoleFixture{t: t, game: g, handler: h, con: con, feed: feed}
}

func (f *consoleFixture) run(line string) string {
	f.t.Helper()
	out, quit := f.handler.Execute(context.Background(), f.con, line)
	require.False(f.t, quit, "unexpected quit for %q", line)
	return out
}

func TestConsole_CastLifecycle(t *testing.T) {
	f := newConsole(t, nil)

	assert.Contains(t, f.run("create Feyre high_fae"), "Created Feyre, a High Fae (level 1, mana 150/150)")
	assert.Contains(t, f.run("cast fire_manipulation"), "has not learned Fire Manipulation")
	assert.Contains(t, f.run("learn fire_manipulation"), "Feyre learns Fire Manipulation")
	assert.Contains(t, f.run("learn FIRE_MANIPULATION"), "already knows")
	assert.Contains(t, f.run("use fire_manipulation"), "uses Fire Manipulation for 20 mana (cooldown 5.0s)")
	assert.Contains(t, f.run("cast fire_manipulation"), "on cooldown for 5.0s")

	status := f.run("status")
	assert.Contains(t, status, "Feyre the High Fae")
	assert.Contains(t, status, "Mana 130/150")
	assert.Contains(t, status, "Cooldown Fire Manipulation: 5.0s")

	assert.Contains(t, f.run("haste 0.5"), "scaled by 0.5")
	assert.Contains(t, f.run("tick 2.5"), "Advanced 1 character(s) by 2.5s")
	assert.NotContains(t, f.run("status"), "Cooldown")
	assert.Contains(t, f.run("cast fire_manipulation"), "uses Fire Manipulation")
	assert.Contains(t, f.run("reset fire_manipulation"), "Fire Manipulation is ready")
	assert.Contains(t, f.run("reset"), "All cooldowns cleared")
}

func TestConsole_InsufficientMana(t *testing.T) {
	f := newConsole(t, nil)
	f.run("create Elain seer")
	f.run("learn seer_sight")
	// Seer: 50 max mana, Seer Sight costs 10 with a 30s cooldown.
	for i := 0; i < 5; i++ {
		require.Contains(t, f.run("cast seer_sight"), "uses Seer Sight")
		f.run("reset")
	}
	assert.Contains(t, f.run("cast seer_sight"), "Not enough mana for Seer Sight (needs 10)")
}

func TestConsole_ClassGating(t *testing.T) {
	f := newConsole(t, nil)
	f.run("create Elain seer")
	assert.Contains(t, f.run("learn fire_manipulation"), "A Seer cannot learn Fire Manipulation")
	assert.Contains(t, f.run("learn seer_sight"), "learns Seer Sight")

	f.run("create Isaac human")
	assert.Contains(t, f.run("learn healing"), "A Human cannot learn Healing")
}

func TestConsole_XPAndLevels(t *testing.T) {
	f := newConsole(t, nil)
	f.run("create Feyre high_fae")
	assert.Contains(t, f.run("xp 100"), "gains 100 XP (100/120)")
	assert.Contains(t, f.run("xp 200"), "reaches level 3")
	assert.Contains(t, f.run("xp -5"), "must not be negative")
	assert.Contains(t, f.run("xp lots"), "is not a whole number")
	assert.Contains(t, f.run("status"), "Level 3")
}

func TestConsole_Equipment(t *testing.T) {
	f := newConsole(t, nil)
	f.run("create Feyre high_fae")
	f.run("learn fire_manipulation")

	assert.Contains(t, f.run("items"), "ash_staff")
	assert.Contains(t, f.run("equip ash_staff"), "Equipped Ash Staff (Focus)")
	assert.Contains(t, f.run("equip oak_staff"), "Removed Ash Staff")
	assert.Contains(t, f.run("equip ash_staff"), "Removed Oak Staff")
	assert.Contains(t, f.run("status"), "Mana cost reduction: -0, -50%")
	assert.Contains(t, f.run("cast fire_manipulation"), "for 10 mana")
	assert.Contains(t, f.run("unequip focus"), "Removed Ash Staff")
	assert.Contains(t, f.run("unequip focus"), "Nothing is worn in Focus")
	assert.Contains(t, f.run("unequip tail"), `No slot "tail"`)
	assert.Contains(t, f.run("equip crown"), `No item "crown"`)
}

func TestConsole_RosterCommands(t *testing.T) {
	f := newConsole(t, nil)
	assert.Equal(t, "Nobody is active.", f.run("who"))
	f.run("create Feyre high_fae")
	f.run("create Nesta high_fae")
	who := f.run("who")
	assert.Contains(t, who, "Feyre")
	assert.Contains(t, who, "Nesta")
	assert.Equal(t, "Nesta", f.con.Active().Name)
	assert.Contains(t, f.run("play feyre"), "Now playing Feyre")
	assert.Equal(t, "Feyre", f.con.Active().Name)
	assert.Contains(t, f.run("play Tamlin"), `No active character named "Tamlin"`)
	assert.Contains(t, f.run("create feyre seer"), "Cannot create feyre")
	assert.Contains(t, f.run("create Tamlin dragon"), `No class "dragon"`)
}

func TestConsole_Guards(t *testing.T) {
	f := newConsole(t, nil)
	assert.Equal(t, "", f.run("   "))
	assert.Contains(t, f.run("fly"), `Unknown command "fly"`)
	assert.Contains(t, f.run("cast"), "Usage: cast <ability>")
	assert.Contains(t, f.run("status"), "No active character")
	assert.Contains(t, f.run("haste"), "Usage: haste <factor>")
}

func TestConsole_HelpAndListings(t *testing.T) {
	f := newConsole(t, nil)
	help := f.run("help")
	for _, section := range []string{"[character]", "[magic]", "[progression]", "[equipment]", "[world]", "[system]"} {
		assert.Contains(t, help, section)
	}
	assert.Contains(t, f.run("help use"), "aliases: use, c")
	assert.Contains(t, f.run("help nothing"), `No command named "nothing"`)

	classes := f.run("classes")
	assert.Contains(t, classes, "cannot learn magic")
	assert.Contains(t, classes, "may learn only Seer Sight")
	assert.Contains(t, classes, "may learn any ability")

	f.run("create Feyre high_fae")
	f.run("learn healing")
	abilities := f.run("abilities")
	assert.Contains(t, abilities, "* healing")
	assert.Contains(t, abilities, "  daemati")
}

func TestConsole_Quit(t *testing.T) {
	f := newConsole(t, nil)
	out, quit := f.handler.Execute(context.Background(), f.con, "exit")
	assert.True(t, quit)
	assert.Equal(t, "Farewell.", out)
}

func TestConsole_SaveAndLoad(t *testing.T) {
	f := newConsole(t, newMemStore())
	f.run("create Feyre high_fae")
	f.run("learn fire_manipulation")
	f.run("xp 300")
	assert.Contains(t, f.run("save"), "Feyre saved")

	require.NoError(t, f.game.Roster().Remove(f.con.Active().UID))
	assert.Contains(t, f.run("status"), "no longer active")
	assert.Nil(t, f.con.Active())

	assert.Contains(t, f.run("load feyre"), "Now playing Feyre")
	status := f.run("status")
	assert.Contains(t, status, "Level 3")
	assert.Contains(t, status, "Learned: Fire Manipulation")
	assert.Contains(t, f.run("load Amarantha"), `No saved character named "Amarantha"`)
}

func TestConsole_SaveWithoutStore(t *testing.T) {
	f := newConsole(t, nil)
	f.run("create Feyre high_fae")
	assert.Contains(t, f.run("save"), "Persistence is disabled")
	assert.Contains(t, f.run("load Feyre"), "Persistence is disabled")
}

func TestConsole_WatchFeed(t *testing.T) {
	f := newConsole(t, nil)
	f.run("create Feyre high_fae")
	assert.Contains(t, f.run("watch"), "Watching Feyre")
	f.run("learn fire_manipulation")
	f.run("cast fire_manipulation")

	want := []string{"[feed] learned Fire Manipulation", "[feed] cast Fire Manipulation for 20 mana"}
	for _, w := range want {
		select {
		case line := <-f.feed:
			assert.Contains(t, line, w)
		case <-time.After(2 * time.Second):
			t.Fatalf("feed line %q not delivered", w)
		}
	}
	assert.Equal(t, "Event feed off.", f.run("watch"))
	f.run("cast fire_manipulation")
	select {
	case line := <-f.feed:
		t.Fatalf("feed still running: %q", line)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFormatEvent(t *testing.T) {
	name := func(a ability.Type) string { return strings.ToUpper(string(a)) }
	p := telnet.Palette{}
	e := event.New(event.KindLevelUp, uuid.Nil)
	e.FromLevel, e.ToLevel = 1, 3
	assert.Equal(t, "[feed] level 1 -> 3", gameserver.FormatEvent(p, name, e))

	e = event.New(event.KindCooldownExpired, uuid.Nil)
	e.Ability = ability.Healing
	assert.Equal(t, "[feed] HEALING is ready", gameserver.FormatEvent(p, name, e))

	e = event.New(event.KindCastRejected, uuid.Nil)
	e.Ability = ability.Healing
	e.Reason = "on_cooldown"
	assert.Equal(t, "[feed] cast HEALING rejected: on_cooldown", gameserver.FormatEvent(p, name, e))

	assert.Equal(t, "", gameserver.FormatEvent(p, name, event.Event{Kind: "unknown"}))
}

func TestConsole_OverTCP(t *testing.T) {
	g := newTestGame(t, nil)
	logger := zaptest.NewLogger(t)
	ticks := gameserver.NewTickManager(time.Second, g.Engine(), g.Roster(), logger)
	h := gameserver.NewConsoleHandler(g, ticks, true, logger)
	acc := telnet.NewAcceptor(config.ConsoleConfig{Host: "127.0.0.1", ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}, h, logger)
	require.NoError(t, acc.Listen())
	go func() { _ = acc.ListenAndServe() }()
	t.Cleanup(acc.Stop)

	c := testutil.DialConsole(t, acc.Addr())
	c.Expect("type", 2*time.Second)
	c.Expect("> ", 2*time.Second)

	c.Send("create Feyre high_fae")
	out := telnet.StripANSI(c.Expect("> ", 2*time.Second))
	assert.Contains(t, out, "Created Feyre")

	c.Send("learn fire_manipulation")
	c.Expect("> ", 2*time.Second)
	c.Send("cast fire_manipulation")
	out = c.Expect("> ", 2*time.Second)
	assert.Contains(t, out, telnet.BrightGreen, "console output is coloured")
	assert.Contains(t, telnet.StripANSI(out), "uses Fire Manipulation for 20 mana")

	c.Send("quit")
	c.Expect("Farewell.", 2*time.Second)
}
