package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
)

// AuditRepository persists audit log rows
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// InsertTx records a mutation inside the transaction that performed it
func (r *AuditRepository) InsertTx(ctx context.Context, tx *sql.Tx, log *entity.AuditLog) error {
	query := `
		INSERT INTO audit_logs (entity, entity_id, action, detail, actor_id, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, query,
		log.Entity,
		log.EntityID,
		log.Action,
		log.Detail,
		log.ActorID,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	log.ID = id
	log.OccurredAt = now
	return nil
}

// ListByEntity retrieves audit history for one entity, newest first
func (r *AuditRepository) ListByEntity(ctx context.Context, entityName string, entityID int64, limit int) ([]*entity.AuditLog, error) {
	query := `
		SELECT id, entity, entity_id, action, detail, actor_id, occurred_at
		FROM audit_logs
		WHERE entity = ? AND entity_id = ?
		ORDER BY occurred_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entityName, entityID, limit)
	if err != nil {
		r.logger.Error("Failed to list audit logs", zap.Error(err))
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.AuditLog
	for rows.Next() {
		var l entity.AuditLog
		if err := rows.Scan(&l.ID, &l.Entity, &l.EntityID, &l.Action, &l.Detail, &l.ActorID, &l.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}
