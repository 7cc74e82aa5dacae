// Package mail delivers outbound email. Delivery is best-effort: callers never
// fail because an email could not be sent, and an unconfigured relay skips
// delivery silently.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/vakspot/vakspot/internal/config"
	"github.com/vakspot/vakspot/internal/tasks"
)

// Message is a plain-text email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message synchronously
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier hands a message off for best-effort delivery
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// NewSender returns an SMTP sender, or a no-op sender when no relay is configured
func NewSender(cfg config.MailConfig, logger zerolog.Logger) Sender {
	if !cfg.Enabled() {
		return NopSender{logger: logger.With().Str("component", "mail").Logger()}
	}
	return &SMTPSender{cfg: cfg}
}

// SMTPSender delivers through an SMTP relay
type SMTPSender struct {
	cfg config.MailConfig
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, envelopeAddress(s.cfg.From), []string{msg.To}, Render(s.cfg.From, msg, time.Now())); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

// NopSender drops messages
type NopSender struct {
	logger zerolog.Logger
}

func (n NopSender) Send(ctx context.Context, msg Message) error {
	n.logger.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("Mail relay not configured, skipping")
	return nil
}

// Render formats msg as an RFC 5322 message
func Render(from string, msg Message, date time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// envelopeAddress extracts the bare address from "Name <addr>"
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		return strings.TrimSuffix(from[i+1:], ">")
	}
	return from
}

// DirectNotifier sends inline, logging failures
type DirectNotifier struct {
	sender Sender
	logger zerolog.Logger
}

// NewDirectNotifier creates a notifier that sends through sender immediately
func NewDirectNotifier(sender Sender, logger zerolog.Logger) *DirectNotifier {
	return &DirectNotifier{
		sender: sender,
		logger: logger.With().Str("component", "mail").Logger(),
	}
}

func (d *DirectNotifier) Notify(ctx context.Context, msg Message) {
	if err := d.sender.Send(context.WithoutCancel(ctx), msg); err != nil {
		d.logger.Warn().Err(err).Str("to", msg.To).Msg("Failed to send mail")
	}
}

// QueueNotifier enqueues messages for the worker process
type QueueNotifier struct {
	client *asynq.Client
	logger zerolog.Logger
}

// NewQueueNotifier creates a notifier backed by the asynq queue
func NewQueueNotifier(client *asynq.Client, logger zerolog.Logger) *QueueNotifier {
	return &QueueNotifier{
		client: client,
		logger: logger.With().Str("component", "mail").Logger(),
	}
}

func (q *QueueNotifier) Notify(ctx context.Context, msg Message) {
	task, err := tasks.NewSendEmailTask(tasks.EmailPayload{To: msg.To, Subject: msg.Subject, Body: msg.Body})
	if err != nil {
		q.logger.Error().Err(err).Msg("Failed to create mail task")
		return
	}

	info, err := q.client.EnqueueContext(context.WithoutCancel(ctx), task)
	if err != nil {
		q.logger.Warn().Err(err).Str("to", msg.To).Msg("Failed to enqueue mail")
		return
	}
	q.logger.Debug().Str("task_id", info.ID).Str("to", msg.To).Msg("Mail enqueued")
}
