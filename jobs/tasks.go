package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeAuditPrune is the task type for trimming old audit records.
	TaskTypeAuditPrune = "audit:prune"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewWelcomeEmailTask builds the task sent right after registration.
func NewWelcomeEmailTask(email, displayName string) (*asynq.Task, error) {
	return NewSendEmailTask(SendEmailPayload{
		To:      email,
		Subject: "Welcome to Dabir",
		Body:    fmt.Sprintf("Hello %s,\r\n\r\nYour account has been created. You can sign in now.\r\n", displayName),
	})
}

// Mailer delivers mail over plain SMTP.
type Mailer struct {
	Host string
	Port int
	From string
}

// Send submits a single message.
func (m Mailer) Send(payload SendEmailPayload) error {
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.From, payload.To, payload.Subject, payload.Body)
	return smtp.SendMail(addr, nil, m.From, []string{payload.To}, []byte(msg))
}

// NewSendEmailHandler processes TaskTypeSendEmail tasks.
func NewSendEmailHandler(mailer Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := mailer.Send(payload); err != nil {
			if logger != nil {
				logger.Warn("send email", slog.String("to", payload.To), slog.Any("error", err))
			}
			return err
		}
		return nil
	}
}

// AuditPrunePayload carries the retention window for the prune job.
type AuditPrunePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditPruneTask constructs the nightly prune task.
func NewAuditPruneTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPrunePayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditPrune, data), nil
}

// NewAuditPruneHandler deletes audit rows older than the retention window.
func NewAuditPruneHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditPrunePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.RetentionHours <= 0 {
			return asynq.SkipRetry
		}
		tag, err := pool.Exec(ctx,
			`DELETE FROM audit_logs WHERE occurred_at < NOW() - make_interval(hours => $1)`,
			payload.RetentionHours)
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("audit prune", slog.Int64("deleted", tag.RowsAffected()))
		}
		return nil
	}
}
