// Package command defines the admin console's command table and line parser.
package command

// Categories for organizing commands in help output.
const (
	CategoryCharacter   = "character"
	CategoryMagic       = "magic"
	CategoryProgression = "progression"
	CategoryEquipment   = "equipment"
	CategoryWorld       = "world"
	CategorySystem      = "system"
)

// Handler identifiers mapping commands to console handlers.
const (
	HandlerCreate    = "create"
	HandlerPlay      = "play"
	HandlerStatus    = "status"
	HandlerWho       = "who"
	HandlerCast      = "cast"
	HandlerLearn     = "learn"
	HandlerAbilities = "abilities"
	HandlerReset     = "reset"
	HandlerHaste     = "haste"
	HandlerXP        = "xp"
	HandlerClasses   = "classes"
	HandlerItems     = "items"
	HandlerEquip     = "equip"
	HandlerUnequip   = "unequip"
	HandlerTick      = "tick"
	HandlerWatch     = "watch"
	HandlerSave      = "save"
	HandlerLoad      = "load"
	HandlerStats     = "stats"
	HandlerHelp      = "help"
	HandlerQuit      = "quit"
)

// Command defines a console command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage shows the argument shape, e.g. "<ability>".
	Usage string
	// Help is the one-line description shown by help.
	Help string
	// Category groups the command in help output.
	Category string
	// Handler selects the console handler.
	Handler string
	// MinArgs is the number of arguments the command requires.
	MinArgs int
	// NeedsCharacter marks commands that act on the connection's active character.
	NeedsCharacter bool
}

// BuiltinCommands returns every console command.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "create", Aliases: []string{"new"}, Usage: "<name> <class>", Help: "Create a level 1 character and make it active", Category: CategoryCharacter, Handler: HandlerCreate, MinArgs: 2},
		{Name: "play", Aliases: []string{"select"}, Usage: "<name>", Help: "Switch to another active character", Category: CategoryCharacter, Handler: HandlerPlay, MinArgs: 1},
		{Name: "status", Aliases: []string{"st", "score"}, Help: "Show level, mana, stats and cooldowns", Category: CategoryCharacter, Handler: HandlerStatus, NeedsCharacter: true},
		{Name: "who", Help: "List active characters", Category: CategoryCharacter, Handler: HandlerWho},

		{Name: "cast", Aliases: []string{"use", "c"}, Usage: "<ability>", Help: "Use a learned ability", Category: CategoryMagic, Handler: HandlerCast, MinArgs: 1, NeedsCharacter: true},
		{Name: "learn", Usage: "<ability>", Help: "Learn an ability your class permits", Category: CategoryMagic, Handler: HandlerLearn, MinArgs: 1, NeedsCharacter: true},
		{Name: "abilities", Aliases: []string{"ab"}, Help: "List the ability catalog", Category: CategoryMagic, Handler: HandlerAbilities},
		{Name: "reset", Usage: "[ability]", Help: "Clear one cooldown, or all of them", Category: CategoryMagic, Handler: HandlerReset, NeedsCharacter: true},
		{Name: "haste", Usage: "<factor>", Help: "Multiply every active cooldown by factor", Category: CategoryMagic, Handler: HandlerHaste, MinArgs: 1, NeedsCharacter: true},

		{Name: "xp", Usage: "<amount>", Help: "Grant experience", Category: CategoryProgression, Handler: HandlerXP, MinArgs: 1, NeedsCharacter: true},
		{Name: "classes", Help: "List classes and what they may learn", Category: CategoryProgression, Handler: HandlerClasses},

		{Name: "items", Help: "List equipment definitions", Category: CategoryEquipment, Handler: HandlerItems},
		{Name: "equip", Aliases: []string{"wear"}, Usage: "<item>", Help: "Equip an item into its slot", Category: CategoryEquipment, Handler: HandlerEquip, MinArgs: 1, NeedsCharacter: true},
		{Name: "unequip", Aliases: []string{"remove"}, Usage: "<slot>", Help: "Empty an equipment slot", Category: CategoryEquipment, Handler: HandlerUnequip, MinArgs: 1, NeedsCharacter: true},

		{Name: "tick", Usage: "[seconds]", Help: "Advance cooldowns and regenerate mana for every character", Category: CategoryWorld, Handler: HandlerTick},
		{Name: "watch", Help: "Toggle the live event feed for the active character", Category: CategoryWorld, Handler: HandlerWatch, NeedsCharacter: true},
		{Name: "save", Help: "Persist the active character", Category: CategoryWorld, Handler: HandlerSave, NeedsCharacter: true},
		{Name: "load", Usage: "<name>", Help: "Restore a saved character and make it active", Category: CategoryWorld, Handler: HandlerLoad, MinArgs: 1},

		{Name: "stats", Help: "Show engine event counts since startup", Category: CategorySystem, Handler: HandlerStats},
		{Name: "help", Aliases: []string{"?"}, Usage: "[command]", Help: "Show available commands", Category: CategorySystem, Handler: HandlerHelp},
		{Name: "quit", Aliases: []string{"exit", "q"}, Help: "Close the console", Category: CategorySystem, Handler: HandlerQuit},
	}
}
