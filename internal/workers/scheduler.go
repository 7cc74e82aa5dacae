package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vakspot/vakspot/internal/tasks"
)

// Standard 5-field format: minute hour day-of-month month day-of-week
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewScheduler returns a stopped cron runner calling run on schedule
func NewScheduler(schedule string, run func(), logger zerolog.Logger) (*cron.Cron, error) {
	if _, err := scheduleParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	c := cron.New(cron.WithParser(scheduleParser))
	if _, err := c.AddFunc(schedule, run); err != nil {
		return nil, fmt.Errorf("failed to schedule: %w", err)
	}

	if next := NextRun(schedule, time.Now()); next != nil {
		logger.Info().Str("schedule", schedule).Time("next_run", *next).Msg("Job expiry scheduled")
	}
	return c, nil
}

// EnqueueExpireJobs returns a scheduler callback that queues an expiry sweep
func EnqueueExpireJobs(client *asynq.Client, logger zerolog.Logger) func() {
	return func() {
		info, err := client.Enqueue(tasks.NewExpireJobsTask(), asynq.Timeout(10*time.Minute))
		if err != nil {
			logger.Error().Err(err).Msg("Failed to enqueue job expiry task")
			return
		}
		logger.Debug().Str("task_id", info.ID).Msg("Job expiry task enqueued")
	}
}

// RunExpireJobs returns a scheduler callback that sweeps in-process
func RunExpireJobs(expirer JobExpirer, maxAge time.Duration, logger zerolog.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		_ = ExpireJobs(ctx, expirer, maxAge, logger)
	}
}

// NextRun returns the next time schedule fires after from, or nil if it is invalid
func NextRun(schedule string, from time.Time) *time.Time {
	if schedule == "" {
		return nil
	}

	parsed, err := scheduleParser.Parse(schedule)
	if err != nil {
		return nil
	}

	next := parsed.Next(from)
	return &next
}
