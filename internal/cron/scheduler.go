package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
	"github.com/angelmondragon/lootmarket-backend/pkg/metrics"
)

const defaultInterval = time.Hour

type SchedulerParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Lease    Lease
	Metrics  *metrics.JobMetrics
	Interval time.Duration
}

// Scheduler runs every job once per interval on whichever replica holds the
// lease. A failing job never stops the others.
type Scheduler struct {
	logg     *logger.Logger
	jobs     []Job
	lease    Lease
	metrics  *metrics.JobMetrics
	interval time.Duration
}

func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lease == nil {
		return nil, errors.New("lease required")
	}
	jobs, err := validateJobs(params.Jobs)
	if err != nil {
		return nil, err
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		logg:     params.Logger,
		jobs:     jobs,
		lease:    params.Lease,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Run cycles immediately and then on every tick until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs a single cycle and returns every job error combined. It is a
// no-op when another replica holds the lease.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	release, err := s.lease.Acquire(ctx)
	if err != nil {
		return err
	}
	if release == nil {
		s.logg.Info(ctx, "cron.lease_held_elsewhere")
		return nil
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "cron.lease_release_failed", relErr)
		}
	}()

	for _, job := range s.jobs {
		err = multierr.Append(err, s.runJob(ctx, job))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":   len(s.jobs),
		"failed": len(multierr.Errors(err)),
	}), "cron.cycle_complete")
	return err
}

func (s *Scheduler) runJob(ctx context.Context, job Job) (err error) {
	name := job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)
	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		elapsed := time.Since(started)
		jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
		if s.metrics != nil {
			s.metrics.ObserveDuration(name, elapsed)
		}
		if err != nil {
			err = fmt.Errorf("%s: %w", name, err)
			s.logg.Error(jobCtx, "cron.job_failed", err)
			if s.metrics != nil {
				s.metrics.IncFailure(name)
			}
			return
		}
		s.logg.Info(jobCtx, "cron.job_done")
		if s.metrics != nil {
			s.metrics.IncSuccess(name)
		}
	}()
	return job.Run(jobCtx)
}
