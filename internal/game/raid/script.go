package raid

import (
	"context"
	"errors"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/Unwrenchable/fizz-caps/internal/scripting"
)

const (
	// Namespace is the script namespace raid hooks are loaded into.
	Namespace = "raid"
	// Hook is the Lua global called as on_raid(spot, hp, max_hp, gear_count)
	// and expected to return hp, keep.
	Hook = "on_raid"
)

// Script resolves raids through the on_raid Lua hook. Missing hooks,
// runtime errors and malformed return values fall back to Fallback.
type Script struct {
	scripts  *scripting.Manager
	fallback Resolver
	logger   *zap.Logger
}

// NewScript creates a Script resolver.
//
// Precondition: scripts, fallback and logger must be non-nil.
func NewScript(scripts *scripting.Manager, fallback Resolver, logger *zap.Logger) *Script {
	return &Script{scripts: scripts, fallback: fallback, logger: logger}
}

// Resolve implements Resolver.
func (s *Script) Resolve(ctx context.Context, in Input) Outcome {
	ret, err := s.scripts.CallHook(ctx, Namespace, Hook, 2,
		lua.LString(in.Spot),
		lua.LNumber(in.HP),
		lua.LNumber(in.MaxHP),
		lua.LNumber(len(in.Gear)),
	)
	if err != nil {
		if !errors.Is(err, scripting.ErrNoHook) {
			s.logger.Warn("raid script failed, using default", zap.String("spot", in.Spot), zap.Error(err))
		}
		return s.fallback.Resolve(ctx, in)
	}

	hp, okHP := ret[0].(lua.LNumber)
	keep, okKeep := ret[1].(lua.LNumber)
	if !okHP || !okKeep {
		s.logger.Warn("raid script returned non-numeric values, using default",
			zap.String("spot", in.Spot),
			zap.String("hp_type", ret[0].Type().String()),
			zap.String("keep_type", ret[1].Type().String()),
		)
		return s.fallback.Resolve(ctx, in)
	}
	return keepOldest(in, int(hp), int(keep))
}
