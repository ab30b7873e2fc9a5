package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// RetentionSweeper periodically deletes terminal jobs older than maxAge.
// Retention is opt-in: with no JOB_RETENTION configured nothing is ever
// deleted. Running jobs are never eligible.
type RetentionSweeper struct {
	store  Store
	maxAge time.Duration
	logger zerolog.Logger
	cron   *cron.Cron
}

// NewRetentionSweeper builds a sweeper that runs on the given interval.
func NewRetentionSweeper(store Store, maxAge, every time.Duration, logger zerolog.Logger) (*RetentionSweeper, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("jobs: retention max age must be positive")
	}
	if every <= 0 {
		every = 10 * time.Minute
	}
	s := &RetentionSweeper{
		store:  store,
		maxAge: maxAge,
		logger: logger,
		cron:   cron.New(),
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", every), s.sweep); err != nil {
		return nil, fmt.Errorf("jobs: schedule retention sweep: %w", err)
	}
	return s, nil
}

// Start begins the sweep schedule.
func (s *RetentionSweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *RetentionSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *RetentionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cutoff := time.Now().UTC().Add(-s.maxAge)
	removed, err := s.store.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("jobs: retention sweep failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("jobs: retention sweep")
	}
}
