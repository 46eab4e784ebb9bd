package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/Unwrenchable/fizz-caps/internal/game/dice"
)

// RegisterModules installs the fizz global table into L:
//
//	fizz.roll(expr)  -> total of a dice expression such as "2d6+3"
//	fizz.random()    -> uniform draw in [0, 1)
//	fizz.log(msg)    -> info-level log line tagged with the script namespace
//
// Precondition: L must be from NewSandboxedState.
func (m *Manager) RegisterModules(L *lua.LState, namespace string) {
	mod := L.NewTable()

	L.SetField(mod, "roll", L.NewFunction(func(L *lua.LState) int {
		expr, err := dice.Parse(L.CheckString(1))
		if err != nil {
			L.RaiseError("fizz.roll: %s", err.Error())
			return 0
		}
		L.Push(lua.LNumber(m.roller.Roll(expr).Total()))
		return 1
	}))

	L.SetField(mod, "random", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(m.roller.Draw("script:" + namespace)))
		return 1
	}))

	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		m.logger.Info(L.CheckString(1), zap.String("script", namespace))
		return 0
	}))

	L.SetGlobal("fizz", mod)
}
