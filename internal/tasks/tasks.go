package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeSendEmail  = "email:send"
	TypeExpireJobs = "jobs:expire"
)

// Queue names, matching the worker's priority map
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// EmailPayload is the payload for outbound email tasks
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask creates a task delivering one email
func NewSendEmailTask(payload EmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeSendEmail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewExpireJobsTask creates a task expiring stale open jobs
func NewExpireJobsTask() *asynq.Task {
	return asynq.NewTask(TypeExpireJobs, nil, asynq.Queue(QueueLow), asynq.MaxRetry(1))
}

// ParseEmailPayload parses the payload of an email task
func ParseEmailPayload(task *asynq.Task) (EmailPayload, error) {
	var payload EmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}
