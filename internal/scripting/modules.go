package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// AbilityInfo is the read-only view of an ability definition exposed to Lua.
type AbilityInfo struct {
	Type     string
	Name     string
	ManaCost uint32
	Cooldown float64
}

// RegisterModules installs the engine table into L:
//
//	engine.log(msg)           writes msg to the server log at Info
//	engine.ability(type)      returns {type, name, mana_cost, cooldown} or nil
//
// Precondition: L must be from NewSandboxedState.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", L.NewFunction(func(L *lua.LState) int {
		m.logger.Info("lua", zap.String("msg", L.CheckString(1)))
		return 0
	}))
	L.SetField(engine, "ability", L.NewFunction(func(L *lua.LState) int {
		t := L.CheckString(1)
		if m.LookupAbility == nil {
			L.Push(lua.LNil)
			return 1
		}
		info, ok := m.LookupAbility(t)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		tbl := L.NewTable()
		L.SetField(tbl, "type", lua.LString(info.Type))
		L.SetField(tbl, "name", lua.LString(info.Name))
		L.SetField(tbl, "mana_cost", lua.LNumber(info.ManaCost))
		L.SetField(tbl, "cooldown", lua.LNumber(info.Cooldown))
		L.Push(tbl)
		return 1
	}))
	L.SetGlobal("engine", engine)
}
