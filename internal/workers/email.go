// Package workers holds the asynq task handlers and periodic schedules run
// by the worker process.
package workers

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/vakspot/vakspot/internal/mail"
	"github.com/vakspot/vakspot/internal/tasks"
)

// HandleSendEmail delivers one queued email. Failed deliveries are retried by asynq.
func HandleSendEmail(ctx context.Context, t *asynq.Task, sender mail.Sender, logger zerolog.Logger) error {
	payload, err := tasks.ParseEmailPayload(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.To == "" {
		return fmt.Errorf("%w: email task without recipient", asynq.SkipRetry)
	}

	if err := sender.Send(ctx, mail.Message{To: payload.To, Subject: payload.Subject, Body: payload.Body}); err != nil {
		logger.Warn().Err(err).Str("to", payload.To).Msg("Email delivery failed")
		return err
	}

	logger.Info().Str("to", payload.To).Str("subject", payload.Subject).Msg("Email delivered")
	return nil
}
