package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
)

// AssignmentRepository persists work order assignments
type AssignmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sql.DB, logger *zap.Logger) *AssignmentRepository {
	return &AssignmentRepository{db: db, logger: logger}
}

// Create inserts a new assignment. The unique partial index on
// (work_order_id) WHERE type = 'lead' rejects a second lead.
func (r *AssignmentRepository) Create(ctx context.Context, a *entity.Assignment) error {
	query := `
		INSERT INTO work_order_assignments (
			work_order_id, assignee_id, assignee_org_id, type, report_complete, created_at
		) VALUES (?, ?, ?, ?, 0, ?)
	`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		a.WorkOrderID,
		a.AssigneeID,
		a.AssigneeOrgID,
		string(a.Type),
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create assignment",
			zap.Int64("work_order_id", a.WorkOrderID),
			zap.Error(err))
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	a.ID = id
	a.CreatedAt = now
	return nil
}

// ListByWorkOrder retrieves all assignments for a work order
func (r *AssignmentRepository) ListByWorkOrder(ctx context.Context, workOrderID int64) ([]*entity.Assignment, error) {
	query := `
		SELECT id, work_order_id, assignee_id, assignee_org_id, type, report_complete, created_at
		FROM work_order_assignments
		WHERE work_order_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, workOrderID)
	if err != nil {
		r.logger.Error("Failed to list assignments", zap.Int64("work_order_id", workOrderID), zap.Error(err))
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*entity.Assignment
	for rows.Next() {
		var a entity.Assignment
		var typ string
		if err := rows.Scan(&a.ID, &a.WorkOrderID, &a.AssigneeID, &a.AssigneeOrgID, &typ, &a.ReportComplete, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.Type = entity.AssignmentType(typ)
		assignments = append(assignments, &a)
	}

	return assignments, rows.Err()
}

// SetReportComplete marks an assignment's work as reported complete
func (r *AssignmentRepository) SetReportComplete(ctx context.Context, id int64, complete bool) error {
	query := `UPDATE work_order_assignments SET report_complete = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, complete, id)
	if err != nil {
		r.logger.Error("Failed to set report completion", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set report completion: %w", err)
	}

	return nil
}

// CompletionStatus reports whether every assignment on the work order has a
// completed report. A work order with no assignments is never complete.
func (r *AssignmentRepository) CompletionStatus(ctx context.Context, workOrderID int64) (total, complete int, err error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(report_complete), 0)
		FROM work_order_assignments
		WHERE work_order_id = ?
	`

	err = r.db.QueryRowContext(ctx, query, workOrderID).Scan(&total, &complete)
	if err != nil {
		r.logger.Error("Failed to get completion status", zap.Int64("work_order_id", workOrderID), zap.Error(err))
		return 0, 0, fmt.Errorf("failed to get completion status: %w", err)
	}

	return total, complete, nil
}
