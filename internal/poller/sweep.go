package poller

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/beaconly/beacon/internal/config"
)

// sweepSchedule matches the cadence of remotely registered schedules.
const sweepSchedule = "*/5 * * * *"

// RunSweep starts the embedded cron that polls every enabled service.
// Deployments that register per-service remote schedules can turn it off.
func RunSweep(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, p *Poller) {
	if !cfg.Scheduler.EmbeddedSweep {
		log.Named("poller.sweep").Info("embedded sweep disabled")
		return
	}

	sweepLog := log.Named("poller.sweep")
	c := cron.New()
	_, err := c.AddFunc(sweepSchedule, func() {
		results := p.PollAll(context.Background())
		polled := 0
		for _, r := range results {
			if r.Outcome == OutcomePolled {
				polled++
			}
		}
		sweepLog.Info("sweep finished",
			zap.Int("services", len(results)),
			zap.Int("polled", polled),
		)
	})
	if err != nil {
		sweepLog.Error("sweep registration failed", zap.Error(err))
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start()
			sweepLog.Info("embedded sweep started", zap.String("schedule", sweepSchedule))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := c.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}
