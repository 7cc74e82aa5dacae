package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// JobExpirer closes open jobs older than a maximum age
type JobExpirer interface {
	ExpireStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// HandleExpireJobs runs one expiry sweep
func HandleExpireJobs(ctx context.Context, t *asynq.Task, expirer JobExpirer, maxAge time.Duration, logger zerolog.Logger) error {
	return ExpireJobs(ctx, expirer, maxAge, logger)
}

// ExpireJobs runs one expiry sweep outside the queue
func ExpireJobs(ctx context.Context, expirer JobExpirer, maxAge time.Duration, logger zerolog.Logger) error {
	start := time.Now()
	n, err := expirer.ExpireStale(ctx, maxAge)
	if err != nil {
		logger.Error().Err(err).Msg("Job expiry sweep failed")
		return fmt.Errorf("failed to expire jobs: %w", err)
	}

	logger.Info().
		Int("expired", n).
		Dur("max_age", maxAge).
		Dur("took", time.Since(start)).
		Msg("Job expiry sweep completed")
	return nil
}
