package service

import (
	"context"
	"errors"
	"time"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/logger"
)

// Runner repeats the pipeline on a fixed interval. Each run is independent:
// it builds its own aggregate and export.
type Runner struct {
	pipeline *Pipeline
	interval time.Duration
	onReport func(*domain.RunReport)
}

// NewRunner creates a new poll runner
func NewRunner(pipeline *Pipeline, interval time.Duration) *Runner {
	return &Runner{
		pipeline: pipeline,
		interval: interval,
	}
}

// OnReport registers a callback invoked after every successful run
func (r *Runner) OnReport(fn func(*domain.RunReport)) *Runner {
	r.onReport = fn
	return r
}

// Run executes the pipeline immediately and then on each tick until ctx is done.
// A failed run is logged and retried on the next tick, except for an unauthorized
// session, which is returned.
func (r *Runner) Run(ctx context.Context) error {
	log := logger.Component("runner")
	log.Info().Dur("interval", r.interval).Msg("Poll runner started")

	if err := r.runOnce(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Poll runner stopped")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			if err := r.runOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) error {
	report, err := r.pipeline.Run(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthorized) {
			return err
		}
		if ctx.Err() == nil {
			logger.Component("runner").Error().Err(err).Msg("Run failed")
		}
		return nil
	}
	if r.onReport != nil {
		r.onReport(report)
	}
	return nil
}
