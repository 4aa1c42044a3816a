// Package maintenance runs periodic housekeeping jobs on cron schedules.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/store"
)

const jobTimeout = 3 * time.Minute

// PresenceCounter reports current occupancy.
type PresenceCounter interface {
	Len() int
	Rooms() int
}

// Scheduler wraps a cron runner.
type Scheduler struct {
	cron *cron.Cron
	log  *zerolog.Logger
}

// New creates an idle scheduler.
func New(logger *zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  logger,
	}
}

// AddCheckpoint schedules store compaction. An empty spec is a no-op.
func (s *Scheduler) AddCheckpoint(spec string, cp store.Checkpointer) error {
	if spec == "" || cp == nil {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.checkpointJob(cp)); err != nil {
		return fmt.Errorf("schedule checkpoint %q: %w", spec, err)
	}
	return nil
}

// AddPresenceReport schedules a log line with current occupancy. An empty spec is a no-op.
func (s *Scheduler) AddPresenceReport(spec string, pc PresenceCounter) error {
	if spec == "" || pc == nil {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.presenceJob(pc)); err != nil {
		return fmt.Errorf("schedule presence report %q: %w", spec, err)
	}
	return nil
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs up to the context deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("maintenance jobs still running at shutdown")
	}
}

func (s *Scheduler) checkpointJob(cp store.Checkpointer) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := cp.Checkpoint(ctx); err != nil {
			s.log.Error().Err(err).Msg("store checkpoint failed")
			return
		}
		s.log.Debug().Dur("took", time.Since(start)).Msg("store checkpoint done")
	}
}

func (s *Scheduler) presenceJob(pc PresenceCounter) func() {
	return func() {
		s.log.Info().
			Int("online", pc.Len()).
			Int("rooms", pc.Rooms()).
			Msg("presence report")
	}
}
