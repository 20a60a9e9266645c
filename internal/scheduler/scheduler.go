// Package scheduler runs housekeeping jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of scheduled work.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

type Scheduler struct {
	log  *zap.Logger
	cron *cron.Cron
	ctx  context.Context //nolint:containedctx
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		log:  logger.With(zap.String("module", "scheduler")),
		cron: cron.New(),
		ctx:  context.Background(),
	}
}

// AddJob registers job on schedule. Both standard five-field expressions and
// descriptors such as "@every 1h" or "@daily" are accepted.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.run(job) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.log.Info("Job registered", zap.String("job", job.Name()), zap.String("schedule", schedule))

	return nil
}

func (s *Scheduler) run(job Job) {
	s.log.Debug("Running job", zap.String("job", job.Name()))

	if err := job.Run(s.ctx); err != nil {
		s.log.Error("Job failed", zap.String("job", job.Name()), zap.Error(err))

		return
	}

	s.log.Debug("Job completed", zap.String("job", job.Name()))
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx

	s.cron.Start()
	s.log.Info("Scheduler started")

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")

	return nil
}

// RunNow executes job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.log.Info("Running job immediately", zap.String("job", job.Name()))

	return job.Run(ctx)
}
