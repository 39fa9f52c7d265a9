package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
)

// EmailRepository persists email templates and dispatch logs
type EmailRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEmailRepository creates a new email repository
func NewEmailRepository(db *sql.DB, logger *zap.Logger) *EmailRepository {
	return &EmailRepository{db: db, logger: logger}
}

// GetTemplate retrieves the stored template for an event; nil when missing
func (r *EmailRepository) GetTemplate(ctx context.Context, event string) (*entity.EmailTemplate, error) {
	query := `
		SELECT id, event, subject, html_body, text_body, updated_at
		FROM email_templates
		WHERE event = ?
	`

	var t entity.EmailTemplate
	err := r.db.QueryRowContext(ctx, query, event).Scan(
		&t.ID,
		&t.Event,
		&t.Subject,
		&t.HTMLBody,
		&t.TextBody,
		&t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get email template", zap.String("event", event), zap.Error(err))
		return nil, fmt.Errorf("failed to get email template: %w", err)
	}

	return &t, nil
}

// InsertLog records a new dispatch attempt
func (r *EmailRepository) InsertLog(ctx context.Context, log *entity.EmailLog) error {
	query := `
		INSERT INTO email_logs (
			event, recipient, subject, html_body, text_body, status,
			provider_message_id, error_detail, attempts, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		log.Event,
		log.Recipient,
		log.Subject,
		log.HTMLBody,
		log.TextBody,
		log.Status,
		log.ProviderMessageID,
		log.ErrorDetail,
		log.Attempts,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to insert email log", zap.Error(err))
		return fmt.Errorf("failed to insert email log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	log.ID = id
	log.CreatedAt = now
	log.UpdatedAt = now
	return nil
}

// UpdateLog records the outcome of a dispatch attempt
func (r *EmailRepository) UpdateLog(ctx context.Context, log *entity.EmailLog) error {
	query := `
		UPDATE email_logs
		SET status = ?, provider_message_id = ?, error_detail = ?, attempts = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		log.Status,
		log.ProviderMessageID,
		log.ErrorDetail,
		log.Attempts,
		time.Now().UTC(),
		log.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update email log", zap.Int64("id", log.ID), zap.Error(err))
		return fmt.Errorf("failed to update email log: %w", err)
	}

	return nil
}

// ListRetryable returns failed or pending sends that have not exhausted their
// attempt budget, oldest first
func (r *EmailRepository) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*entity.EmailLog, error) {
	query := `
		SELECT id, event, recipient, subject, html_body, text_body, status,
			provider_message_id, error_detail, attempts, created_at, updated_at
		FROM email_logs
		WHERE status IN (?, ?) AND attempts < ?
		ORDER BY updated_at
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query,
		entity.EmailStatusPending,
		entity.EmailStatusFailed,
		maxAttempts,
		limit,
	)
	if err != nil {
		r.logger.Error("Failed to list retryable emails", zap.Error(err))
		return nil, fmt.Errorf("failed to list retryable emails: %w", err)
	}
	defer rows.Close()

	var logs []*entity.EmailLog
	for rows.Next() {
		var l entity.EmailLog
		err := rows.Scan(
			&l.ID,
			&l.Event,
			&l.Recipient,
			&l.Subject,
			&l.HTMLBody,
			&l.TextBody,
			&l.Status,
			&l.ProviderMessageID,
			&l.ErrorDetail,
			&l.Attempts,
			&l.CreatedAt,
			&l.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email log: %w", err)
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}
