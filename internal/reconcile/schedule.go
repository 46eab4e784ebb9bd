package reconcile

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/Unwrenchable/fizz-caps/internal/store"
)

// gocronLogger adapts zap to gocron's key-value logger.
type gocronLogger struct {
	s *zap.SugaredLogger
}

func (l gocronLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l gocronLogger) Info(msg string, args ...any) { l.s.Infow(msg, args...) }
func (l gocronLogger) Warn(msg string, args ...any) { l.s.Warnw(msg, args...) }
func (l gocronLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }

// NewScheduler creates a gocron scheduler logging through logger. The
// caller starts it and must call Shutdown.
func NewScheduler(logger *zap.Logger) (gocron.Scheduler, error) {
	return gocron.NewScheduler(
		gocron.WithLogger(gocronLogger{s: logger.Named("scheduler").Sugar()}),
	)
}

// ScheduleAudit runs a.Run every interval, starting immediately. Runs never
// overlap; a run still in progress when the next is due is skipped.
func ScheduleAudit(ctx context.Context, s gocron.Scheduler, a *Auditor, interval time.Duration) (gocron.Job, error) {
	return s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := a.Run(ctx); err != nil {
				a.logger.Error("reconciliation failed", zap.Error(err))
			}
		}),
		gocron.WithName("reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
}

// ScheduleSweep purges expired keys from a backend without native expiry
// every interval.
func ScheduleSweep(ctx context.Context, s gocron.Scheduler, sw store.Sweeper, interval time.Duration, logger *zap.Logger) (gocron.Job, error) {
	return s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := sw.Sweep(ctx)
			if err != nil {
				logger.Error("sweeping expired keys", zap.Error(err))
				return
			}
			logger.Debug("swept expired keys", zap.Int64("removed", n))
		}),
		gocron.WithName("sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}
