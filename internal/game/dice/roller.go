package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger so every draw and roll that decides a
// claim outcome is recorded at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that draws from src and logs to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Draw returns a uniform value in [0, 1) and logs it under purpose
// (e.g. "loot", "raid").
func (r *Roller) Draw(purpose string) float64 {
	v := r.src.Float64()
	r.logger.Debug("draw",
		zap.String("purpose", purpose),
		zap.Float64("value", v),
	)
	return v
}

// Roll evaluates expr and logs the result.
func (r *Roller) Roll(expr Expression) RollResult {
	result := Roll(expr, r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result
}
