package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"plannr/internal/config"
	"plannr/internal/queue"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any) error
}

// Scheduler turns the periodic maintenance tasks into stream entries. The
// worker does the actual work.
type Scheduler struct {
	cron  *cron.Cron
	queue Enqueuer
	cfg   config.JobsConfig
	log   zerolog.Logger
}

func NewScheduler(queue Enqueuer, cfg config.JobsConfig, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:  c,
		queue: queue,
		cfg:   cfg,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if s.cfg.PruneSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.PruneSchedule, s.enqueue(queue.TaskPruneLoginEvents)); err != nil {
			return err
		}
	}
	if s.cfg.ReconcileSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.ReconcileSchedule, s.enqueue(queue.TaskReconcilePending)); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
	return nil
}

// Stop waits for running jobs, at most five seconds.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueue(taskType string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.queue.Enqueue(ctx, taskType, nil); err != nil {
			s.log.Error().Err(err).Str("task", taskType).Msg("enqueue periodic task failed")
			return
		}
		s.log.Debug().Str("task", taskType).Msg("periodic task enqueued")
	}
}
