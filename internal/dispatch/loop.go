// Package dispatch runs the polling loop that re-executes scheduled
// robots: each tick lists due robots, triggers the interpreter with
// bounded concurrency, and records completed runs so the cadence
// continues from the actual run time.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"robohub/internal/domain"
	"robohub/internal/executor"
	"robohub/internal/robot"
	"robohub/internal/schedule"
)

type Loop struct {
	store    robot.Store
	exec     robot.Executor
	interval time.Duration
	sem      chan struct{}
	stop     chan struct{}
}

// NewLoop builds a dispatch loop polling every interval with at most
// maxInFlight concurrent executions.
func NewLoop(store robot.Store, exec robot.Executor, interval time.Duration, maxInFlight int) *Loop {
	return &Loop{
		store:    store,
		exec:     exec,
		interval: interval,
		sem:      make(chan struct{}, maxInFlight),
		stop:     make(chan struct{}),
	}
}

func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", l.interval).Msg("dispatch loop started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.tick(ctx, now)
		}
	}
}

func (l *Loop) Stop() {
	close(l.stop)
}

func (l *Loop) tick(ctx context.Context, now time.Time) {
	due, err := l.store.ListDueRobots(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("failed to list due robots")
		return
	}

	for _, r := range due {
		if r.Schedule == nil || !schedule.IsDue(*r.Schedule, now) {
			continue
		}
		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		go func(r robot.Robot) {
			defer func() { <-l.sem }()
			l.runOne(ctx, r)
		}(r)
	}
}

func (l *Loop) runOne(ctx context.Context, r robot.Robot) {
	err := l.exec.Trigger(ctx, r.ID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		// The recording is gone from the interpreter's side; this will
		// not heal on retry, so advance the schedule past now without
		// recording a run.
		log.Warn().Str("robot_id", r.ID).Msg("recording missing at interpreter, skipping occurrence")
		l.skipOccurrence(ctx, r)
		return
	default:
		var te *executor.TransportError
		if errors.As(err, &te) {
			// Retryable: leave nextRunAt alone and let the next tick
			// try again.
			log.Error().Err(err).Str("robot_id", r.ID).Msg("trigger failed, will retry next tick")
			return
		}
		log.Error().Err(err).Str("robot_id", r.ID).Msg("trigger failed")
		return
	}

	ranAt := time.Now()
	cfg, err := schedule.RecordRun(*r.Schedule, ranAt)
	if err != nil {
		log.Error().Err(err).Str("robot_id", r.ID).Msg("failed to compute next run")
		return
	}
	if err := l.store.UpdateRobotRunTimes(ctx, r.ID, *cfg.LastRunAt, *cfg.NextRunAt); err != nil {
		log.Error().Err(err).Str("robot_id", r.ID).Msg("failed to record run times")
		return
	}
	log.Info().
		Str("robot_id", r.ID).
		Str("robot_name", r.Meta.Name).
		Time("next_run", *cfg.NextRunAt).
		Msg("robot dispatched")
}

// skipOccurrence fast-forwards a robot's schedule past now, preserving
// lastRunAt: the occurrence was skipped, not run.
func (l *Loop) skipOccurrence(ctx context.Context, r robot.Robot) {
	cfg, err := schedule.FastForward(*r.Schedule, time.Now())
	if err != nil {
		log.Error().Err(err).Str("robot_id", r.ID).Msg("failed to fast-forward schedule")
		return
	}
	last := time.Time{}
	if cfg.LastRunAt != nil {
		last = *cfg.LastRunAt
	}
	if err := l.store.UpdateRobotRunTimes(ctx, r.ID, last, *cfg.NextRunAt); err != nil {
		log.Error().Err(err).Str("robot_id", r.ID).Msg("failed to persist fast-forwarded schedule")
	}
}
