package gameserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/S3OPS/ACOTAR-sub002/internal/frontend/telnet"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/cast"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/command"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/event"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/inventory"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/ruleset"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/session"
	"github.com/S3OPS/ACOTAR-sub002/internal/storage/postgres"
)

const consolePrompt = "> "

// ConsoleHandler runs the admin console command loop. It implements telnet.SessionHandler.
type ConsoleHandler struct {
	game       *Game
	ticks      *TickManager
	registry   *command.Registry
	logger     *zap.Logger
	color      bool
	outboxSize int
	stats      *EventStats
}

// NewConsoleHandler creates a ConsoleHandler.
//
// Precondition: game, ticks and logger must be non-nil.
func NewConsoleHandler(game *Game, ticks *TickManager, color bool, logger *zap.Logger) *ConsoleHandler {
	return &ConsoleHandler{
		game:       game,
		ticks:      ticks,
		registry:   command.DefaultRegistry(),
		logger:     logger,
		color:      color,
		outboxSize: 64,
	}
}

// SetStats enables the stats command. A nil stats disables it.
func (h *ConsoleHandler) SetStats(stats *EventStats) { h.stats = stats }

// Console is the per-connection state: the active character and the optional event feed.
type Console struct {
	Palette telnet.Palette
	active  *session.Session

	// write delivers asynchronous event lines; nil disables watching.
	write func(string)

	mu       sync.Mutex
	watching *session.Outbox
	feedDone chan struct{}
}

// NewConsole returns console state that writes event feed lines through write.
func (h *ConsoleHandler) NewConsole(write func(string)) *Console {
	return &Console{Palette: telnet.Palette{Enabled: h.color}, write: write}
}

// Active returns the connection's active character, or nil.
func (c *Console) Active() *session.Session { return c.active }

// HandleSession implements telnet.SessionHandler.
func (h *ConsoleHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	con := h.NewConsole(func(line string) { _ = conn.WriteLine(line) })
	defer h.stopWatching(con)

	banner := con.Palette.Paint(telnet.BrightMagenta, "Prythian ability engine console") +
		" - type " + con.Palette.Paint(telnet.Bold, "help") + " for commands."
	if err := conn.WriteLine(banner); err != nil {
		return err
	}
	for {
		if err := conn.WritePrompt(consolePrompt); err != nil {
			return err
		}
		line, err := conn.ReadLine()
		if errors.Is(err, telnet.ErrLineTooLong) {
			if err := conn.WriteLine(con.Palette.Paint(telnet.Red, "Line too long.")); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		out, quit := h.Execute(ctx, con, line)
		if out != "" {
			if err := conn.WriteLine(strings.ReplaceAll(out, "\n", "\r\n")); err != nil {
				return err
			}
		}
		if quit {
			return nil
		}
	}
}

// Execute runs one console line against con and returns the text to show and
// whether the connection should close.
func (h *ConsoleHandler) Execute(ctx context.Context, con *Console, line string) (string, bool) {
	parsed := command.Parse(line)
	if parsed.Command == "" {
		return "", false
	}
	cmd, ok := h.registry.Resolve(parsed.Command)
	if !ok {
		return con.Palette.Paintf(telnet.Red, "Unknown command %q. Type help for a list.", parsed.Command), false
	}
	if len(parsed.Args) < cmd.MinArgs {
		return con.Palette.Paintf(telnet.Yellow, "Usage: %s %s", cmd.Name, cmd.Usage), false
	}
	if cmd.NeedsCharacter && con.active == nil {
		return con.Palette.Paint(telnet.Yellow, "No active character. Use create or play first."), false
	}
	if con.active != nil {
		// The character may have been replaced or removed by another connection.
		if cur, ok := h.game.Roster().Get(con.active.UID); !ok || cur != con.active {
			h.stopWatching(con)
			con.active = nil
			if cmd.NeedsCharacter {
				return con.Palette.Paint(telnet.Yellow, "Your character is no longer active. Use play or load."), false
			}
		}
	}

	switch cmd.Handler {
	case command.HandlerQuit:
		return "Farewell.", true
	case command.HandlerHelp:
		return h.help(parsed), false
	case command.HandlerCreate:
		return h.create(con, parsed), false
	case command.HandlerPlay:
		return h.play(con, parsed), false
	case command.HandlerStatus:
		return h.status(con), false
	case command.HandlerWho:
		return h.who(), false
	case command.HandlerCast:
		return h.cast(con, parsed), false
	case command.HandlerLearn:
		return h.learn(con, parsed), false
	case command.HandlerAbilities:
		return h.abilities(con), false
	case command.HandlerReset:
		return h.reset(con, parsed), false
	case command.HandlerHaste:
		return h.haste(con, parsed), false
	case command.HandlerXP:
		return h.xp(con, parsed), false
	case command.HandlerClasses:
		return h.classes(), false
	case command.HandlerItems:
		return h.items(), false
	case command.HandlerEquip:
		return h.equip(con, parsed), false
	case command.HandlerUnequip:
		return h.unequip(con, parsed), false
	case command.HandlerTick:
		return h.tick(con, parsed), false
	case command.HandlerWatch:
		return h.watch(con), false
	case command.HandlerSave:
		return h.save(ctx, con), false
	case command.HandlerLoad:
		return h.load(ctx, con, parsed), false
	case command.HandlerStats:
		return h.statsReport(con), false
	}
	h.logger.Error("console command has no handler", zap.String("command", cmd.Name), zap.String("handler", cmd.Handler))
	return con.Palette.Paint(telnet.Red, "That command is not wired up."), false
}

func (h *ConsoleHandler) help(p command.ParseResult) string {
	if name := p.Arg(0); name != "" {
		cmd, ok := h.registry.Resolve(strings.ToLower(name))
		if !ok {
			return fmt.Sprintf("No command named %q.", name)
		}
		text := fmt.Sprintf("%s %s\n  %s", cmd.Name, cmd.Usage, cmd.Help)
		if len(cmd.Aliases) > 0 {
			text += "\n  aliases: " + strings.Join(cmd.Aliases, ", ")
		}
		return text
	}
	byCat := h.registry.CommandsByCategory()
	order := []string{
		command.CategoryCharacter, command.CategoryMagic, command.CategoryProgression,
		command.CategoryEquipment, command.CategoryWorld, command.CategorySystem,
	}
	var b strings.Builder
	for _, cat := range order {
		cmds := byCat[cat]
		if len(cmds) == 0 {
			continue
		}
		fmt.Fprintf(&b, "[%s]\n", cat)
		for _, cmd := range cmds {
			fmt.Fprintf(&b, "  %-10s %-18s %s\n", cmd.Name, cmd.Usage, cmd.Help)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *ConsoleHandler) create(con *Console, p command.ParseResult) string {
	sess, err := h.game.Create(p.Arg(0), strings.ToLower(p.Arg(1)))
	if err != nil {
		if errors.Is(err, ErrUnknownClass) {
			return con.Palette.Paintf(telnet.Red, "No class %q. Type classes for a list.", p.Arg(1))
		}
		return con.Palette.Paintf(telnet.Red, "Cannot create %s: %v", p.Arg(0), err)
	}
	h.activate(con, sess)
	cs := sess.State
	cs.Lock()
	defer cs.Unlock()
	className := cs.Character.Class
	if class, ok := h.game.Engine().Policy().Class(className); ok {
		className = class.Name
	}
	return con.Palette.Paintf(telnet.Green, "Created %s, a %s (level %d, mana %d/%d).",
		cs.Character.Name, className, cs.XP.Level, cs.Mana.Current(), cs.Mana.Max())
}

func (h *ConsoleHandler) play(con *Console, p command.ParseResult) string {
	sess, ok := h.game.Roster().GetByName(p.Arg(0))
	if !ok {
		return con.Palette.Paintf(telnet.Red, "No active character named %q.", p.Arg(0))
	}
	h.activate(con, sess)
	return fmt.Sprintf("Now playing %s.", sess.Name)
}

// activate switches con to sess, moving the event feed along with it.
func (h *ConsoleHandler) activate(con *Console, sess *session.Session) {
	if con.active == sess {
		return
	}
	wasWatching := h.stopWatching(con)
	con.active = sess
	if wasWatching {
		h.startWatching(con)
	}
}

func (h *ConsoleHandler) status(con *Console) string {
	cs := con.active.State
	cs.Lock()
	snap := cs.Snapshot()
	equipped := cs.Equipment.Items()
	cs.Unlock()

	c := snap.Character
	var b strings.Builder
	fmt.Fprintf(&b, "%s the %s\n", con.Palette.Paint(telnet.Bold, c.Name), h.className(c.Class))
	fmt.Fprintf(&b, "  Level %d  XP %d/%d\n", snap.Level, snap.Experience, snap.Requirement)
	fmt.Fprintf(&b, "  Health %d/%d  Mana %s\n", c.CurrentHealth, c.Stats.MaxHealth,
		con.Palette.Paintf(telnet.Cyan, "%d/%d", snap.Mana, snap.MaxMana))
	fmt.Fprintf(&b, "  Magic %d  Strength %d  Agility %d\n", c.Stats.MagicPower, c.Stats.Strength, c.Stats.Agility)
	if len(snap.Learned) == 0 {
		b.WriteString("  Learned: none\n")
	} else {
		names := make([]string, len(snap.Learned))
		for i, t := range snap.Learned {
			names[i] = h.abilityName(t)
		}
		fmt.Fprintf(&b, "  Learned: %s\n", strings.Join(names, ", "))
	}
	for _, cd := range snap.Cooldowns {
		fmt.Fprintf(&b, "  Cooldown %s: %s\n", h.abilityName(cd.ID.Type), formatSeconds(cd.Remaining))
	}
	for _, item := range equipped {
		fmt.Fprintf(&b, "  %s: %s\n", inventory.SlotDisplayName(item.Slot), item.Name)
	}
	if !snap.Reduction.IsZero() {
		fmt.Fprintf(&b, "  Mana cost reduction: -%d, -%.0f%%\n", snap.Reduction.Flat, float64(snap.Reduction.Percent)*100)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *ConsoleHandler) who() string {
	all := h.game.Roster().All()
	if len(all) == 0 {
		return "Nobody is active."
	}
	var b strings.Builder
	for _, sess := range all {
		cs := sess.State
		cs.Lock()
		fmt.Fprintf(&b, "  %-16s %-12s lvl %-4d mana %d/%d\n",
			cs.Character.Name, cs.Character.Class, cs.XP.Level, cs.Mana.Current(), cs.Mana.Max())
		cs.Unlock()
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *ConsoleHandler) cast(con *Console, p command.ParseResult) string {
	t := ability.Type(strings.ToLower(p.Arg(0)))
	res := h.game.Cast(con.active, t)
	name := h.abilityName(t)
	switch res.Reason {
	case cast.ReasonNone:
		return con.Palette.Paintf(telnet.BrightGreen, "%s uses %s for %d mana (cooldown %.1fs).",
			con.active.Name, name, res.Cost, res.Cooldown)
	case cast.ReasonNotLearned:
		return con.Palette.Paintf(telnet.Yellow, "%s has not learned %s.", con.active.Name, name)
	case cast.ReasonOnCooldown:
		return con.Palette.Paintf(telnet.Yellow, "%s is on cooldown for %s.", name, formatSeconds(res.Remaining))
	case cast.ReasonInsufficientResource:
		return con.Palette.Paintf(telnet.Yellow, "Not enough mana for %s (needs %d).", name, res.Cost)
	}
	return con.Palette.Paintf(telnet.Red, "Cast failed: %v", res.Err())
}

func (h *ConsoleHandler) learn(con *Console, p command.ParseResult) string {
	t := ability.Type(strings.ToLower(p.Arg(0)))
	err := h.game.Engine().LearnAbility(con.active.State, t)
	switch {
	case err == nil:
		return con.Palette.Paintf(telnet.BrightGreen, "%s learns %s.", con.active.Name, h.abilityName(t))
	case errors.Is(err, cast.ErrAlreadyKnown):
		return con.Palette.Paintf(telnet.Yellow, "%s already knows %s.", con.active.Name, h.abilityName(t))
	case errors.Is(err, cast.ErrNotEligible):
		return con.Palette.Paintf(telnet.Yellow, "A %s cannot learn %s.",
			h.className(con.active.State.Character.Class), h.abilityName(t))
	}
	return con.Palette.Paintf(telnet.Red, "Cannot learn %s: %v", t, err)
}

func (h *ConsoleHandler) abilities(con *Console) string {
	var learned *ability.LearnedSet
	if con.active != nil {
		cs := con.active.State
		cs.Lock()
		learned = ability.NewLearnedSet(cs.Learned.Types()...)
		cs.Unlock()
	}
	var b strings.Builder
	for _, def := range h.game.Engine().Catalog().All() {
		mark := " "
		if learned != nil && learned.Has(def.Type) {
			mark = "*"
		}
		fmt.Fprintf(&b, " %s %-22s %-24s %4d mana %6.1fs\n", mark, def.Type, def.Name, def.ManaCost, def.CooldownSeconds)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *ConsoleHandler) reset(con *Console, p command.ParseResult) string {
	if p.Arg(0) == "" {
		h.game.Engine().ResetCooldown(con.active.State, nil)
		return "All cooldowns cleared."
	}
	t := ability.Type(strings.ToLower(p.Arg(0)))
	id := ability.Instance(t)
	h.game.Engine().ResetCooldown(con.active.State, &id)
	return fmt.Sprintf("%s is ready.", h.abilityName(t))
}

func (h *ConsoleHandler) haste(con *Console, p command.ParseResult) string {
	factor, err := p.Float64(0)
	if err != nil {
		return con.Palette.Paint(telnet.Red, err.Error())
	}
	if !h.game.Engine().ScaleCooldowns(con.active.State, factor) {
		return con.Palette.Paint(telnet.Red, "The factor must be a finite number.")
	}
	return fmt.Sprintf("Cooldowns scaled by %g.", factor)
}

func (h *ConsoleHandler) xp(con *Console, p command.ParseResult) string {
	amount, err := p.Int64(0)
	if err != nil {
		return con.Palette.Paint(telnet.Red, err.Error())
	}
	leveled, err := h.game.Engine().GrantXP(con.active.State, amount)
	if err != nil {
		return con.Palette.Paintf(telnet.Red, "Cannot grant %d XP: experience must not be negative.", amount)
	}
	cs := con.active.State
	cs.Lock()
	level, xp, req := cs.XP.Level, cs.XP.Experience, cs.XP.Requirement()
	cs.Unlock()
	if leveled {
		return con.Palette.Paintf(telnet.BrightYellow, "%s reaches level %d! (XP %d/%d)", con.active.Name, level, xp, req)
	}
	return fmt.Sprintf("%s gains %d XP (%d/%d).", con.active.Name, amount, xp, req)
}

func (h *ConsoleHandler) classes() string {
	var b strings.Builder
	for _, c := range h.game.Engine().Policy().Classes() {
		var rule string
		switch c.Learning.Mode {
		case ruleset.LearnNone:
			rule = "cannot learn magic"
		case ruleset.LearnSingle:
			rule = "may learn only " + h.abilityName(c.Learning.Ability)
		default:
			rule = "may learn any ability"
		}
		fmt.Fprintf(&b, "  %-12s %-12s hp %-4d magic %-3d %s\n", c.ID, c.Name, c.Base.MaxHealth, c.Base.MagicPower, rule)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *ConsoleHandler) items() string {
	all := h.game.Items().AllItems()
	if len(all) == 0 {
		return "No equipment is defined."
	}
	var b strings.Builder
	for _, item := range all {
		fmt.Fprintf(&b, "  %-22s %-16s -%d mana, -%.0f%%\n",
			item.ID, inventory.SlotDisplayName(item.Slot), item.ManaFlat, float64(item.ManaPercent)*100)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *ConsoleHandler) equip(con *Console, p command.ParseResult) string {
	prev, err := h.game.Equip(con.active, strings.ToLower(p.Arg(0)))
	if err != nil {
		return con.Palette.Paintf(telnet.Red, "No item %q. Type items for a list.", p.Arg(0))
	}
	item, _ := h.game.Items().Item(strings.ToLower(p.Arg(0)))
	msg := fmt.Sprintf("Equipped %s (%s).", item.Name, inventory.SlotDisplayName(item.Slot))
	if prev != nil && prev != item {
		msg += fmt.Sprintf(" Removed %s.", prev.Name)
	}
	return msg
}

func (h *ConsoleHandler) unequip(con *Console, p command.ParseResult) string {
	slot := inventory.Slot(strings.ToLower(p.Arg(0)))
	removed, err := h.game.Unequip(con.active, slot)
	switch {
	case errors.Is(err, ErrUnknownSlot):
		names := make([]string, 0, len(inventory.Slots()))
		for _, s := range inventory.Slots() {
			names = append(names, string(s))
		}
		return con.Palette.Paintf(telnet.Red, "No slot %q. Slots: %s.", p.Arg(0), strings.Join(names, ", "))
	case errors.Is(err, ErrSlotEmpty):
		return fmt.Sprintf("Nothing is worn in %s.", inventory.SlotDisplayName(slot))
	case err != nil:
		return con.Palette.Paint(telnet.Red, err.Error())
	}
	return fmt.Sprintf("Removed %s.", removed.Name)
}

func (h *ConsoleHandler) tick(con *Console, p command.ParseResult) string {
	dt := h.ticks.Interval().Seconds()
	if p.Arg(0) != "" {
		v, err := p.Float64(0)
		if err != nil {
			return con.Palette.Paint(telnet.Red, err.Error())
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return con.Palette.Paint(telnet.Red, "Seconds must be a finite number of at least 0.")
		}
		dt = v
	}
	n := h.ticks.TickOnce(dt)
	return fmt.Sprintf("Advanced %d character(s) by %gs.", n, dt)
}

func (h *ConsoleHandler) statsReport(con *Console) string {
	if h.stats == nil {
		return con.Palette.Paint(telnet.Yellow, "Event statistics are not enabled.")
	}
	rows := h.stats.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "Ticks: %d  Active characters: %d  Dropped events: %d", h.ticks.Ticks(), h.game.Roster().Count(), h.stats.Dropped())
	if len(rows) == 0 {
		b.WriteString("\nNo events yet.")
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "\n  %-18s %d", r.Kind, r.Count)
	}
	return b.String()
}

func (h *ConsoleHandler) watch(con *Console) string {
	if h.stopWatching(con) {
		return "Event feed off."
	}
	if con.write == nil {
		return con.Palette.Paint(telnet.Red, "This console cannot show a live feed.")
	}
	h.startWatching(con)
	return fmt.Sprintf("Watching %s. Type watch again to stop.", con.active.Name)
}

func (h *ConsoleHandler) startWatching(con *Console) {
	if con.write == nil || con.active == nil {
		return
	}
	ob := session.NewOutbox(con.active.Name, h.outboxSize)
	done := make(chan struct{})
	con.mu.Lock()
	con.watching = ob
	con.feedDone = done
	con.mu.Unlock()
	con.active.Watch(ob)

	palette := con.Palette
	write := con.write
	go func() {
		defer close(done)
		for e := range ob.Events() {
			if line := FormatEvent(palette, h.abilityName, e); line != "" {
				write(line)
			}
		}
	}()
}

// stopWatching detaches con's feed and reports whether one was running.
func (h *ConsoleHandler) stopWatching(con *Console) bool {
	con.mu.Lock()
	ob, done := con.watching, con.feedDone
	con.watching, con.feedDone = nil, nil
	con.mu.Unlock()
	if ob == nil {
		return false
	}
	if con.active != nil {
		con.active.Unwatch(ob)
	}
	_ = ob.Close()
	<-done
	return true
}

func (h *ConsoleHandler) save(ctx context.Context, con *Console) string {
	err := h.game.Save(ctx, con.active)
	switch {
	case err == nil:
		return con.Palette.Paintf(telnet.Green, "%s saved.", con.active.Name)
	case errors.Is(err, ErrNoStore):
		return con.Palette.Paint(telnet.Yellow, "Persistence is disabled on this server.")
	case errors.Is(err, postgres.ErrCharacterNameTaken):
		return con.Palette.Paintf(telnet.Red, "Another saved character is already named %s.", con.active.Name)
	}
	h.logger.Warn("console save failed", zap.String("name", con.active.Name), zap.Error(err))
	return con.Palette.Paint(telnet.Red, "Save failed; see the server log.")
}

func (h *ConsoleHandler) load(ctx context.Context, con *Console, p command.ParseResult) string {
	sess, err := h.game.Load(ctx, p.Arg(0))
	switch {
	case err == nil:
		h.activate(con, sess)
		return con.Palette.Paintf(telnet.Green, "Now playing %s.", sess.Name)
	case errors.Is(err, ErrNoStore):
		return con.Palette.Paint(telnet.Yellow, "Persistence is disabled on this server.")
	case errors.Is(err, postgres.ErrCharacterNotFound):
		return con.Palette.Paintf(telnet.Red, "No saved character named %q.", p.Arg(0))
	}
	h.logger.Warn("console load failed", zap.String("name", p.Arg(0)), zap.Error(err))
	return con.Palette.Paint(telnet.Red, "Load failed; see the server log.")
}

func (h *ConsoleHandler) abilityName(t ability.Type) string {
	if def, ok := h.game.Engine().Catalog().Lookup(t); ok && def.Name != "" {
		return def.Name
	}
	return string(t)
}

func (h *ConsoleHandler) className(id string) string {
	if c, ok := h.game.Engine().Policy().Class(id); ok {
		return c.Name
	}
	return id
}

// FormatEvent renders e as one feed line. Mana regeneration is summarised tersely
// since it fires every tick.
func FormatEvent(p telnet.Palette, name func(ability.Type) string, e event.Event) string {
	switch e.Kind {
	case event.KindCastCommitted:
		return p.Paintf(telnet.Green, "[feed] cast %s for %d mana, cooldown %.1fs", name(e.Ability), e.Cost, e.Cooldown)
	case event.KindCastRejected:
		return p.Paintf(telnet.Yellow, "[feed] cast %s rejected: %s", name(e.Ability), e.Reason)
	case event.KindCooldownExpired:
		return p.Paintf(telnet.Cyan, "[feed] %s is ready", name(e.Ability))
	case event.KindManaRegenerated:
		return p.Paintf(telnet.Blue, "[feed] +%d mana", e.Amount)
	case event.KindLevelUp:
		return p.Paintf(telnet.BrightYellow, "[feed] level %d -> %d", e.FromLevel, e.ToLevel)
	case event.KindAbilityLearned:
		return p.Paintf(telnet.Magenta, "[feed] learned %s", name(e.Ability))
	}
	return ""
}

// formatSeconds renders a cooldown; a held (+Inf) cooldown reads "until reset".
func formatSeconds(sec float64) string {
	if math.IsInf(sec, 1) {
		return "until reset"
	}
	return fmt.Sprintf("%.1fs", sec)
}
