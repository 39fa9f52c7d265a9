package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
)

// WorkOrderRepository persists work orders
type WorkOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkOrderRepository creates a new work order repository
func NewWorkOrderRepository(db *sql.DB, logger *zap.Logger) *WorkOrderRepository {
	return &WorkOrderRepository{db: db, logger: logger}
}

const workOrderColumns = `id, number, title, description, status, organization_id, trade,
	partner_estimate_approved, active, created_at, updated_at`

func scanWorkOrder(row interface{ Scan(...interface{}) error }) (*entity.WorkOrder, error) {
	var o entity.WorkOrder
	err := row.Scan(
		&o.ID,
		&o.Number,
		&o.Title,
		&o.Description,
		&o.Status,
		&o.OrganizationID,
		&o.Trade,
		&o.PartnerEstimateApproved,
		&o.Active,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// NextNumber returns the next work order number for the given year
// (WO-{year}-{5-digit sequence})
func (r *WorkOrderRepository) NextNumber(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("WO-%d-", year)
	number, err := nextSequence(ctx, r.db, "work_orders", prefix, 5)
	if err != nil {
		r.logger.Error("Failed to generate work order number", zap.Error(err))
		return "", err
	}
	return number, nil
}

// Create inserts a new work order
func (r *WorkOrderRepository) Create(ctx context.Context, o *entity.WorkOrder) error {
	query := `
		INSERT INTO work_orders (
			number, title, description, status, organization_id, trade,
			partner_estimate_approved, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		o.Number,
		o.Title,
		o.Description,
		o.Status,
		o.OrganizationID,
		o.Trade,
		o.PartnerEstimateApproved,
		true,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create work order", zap.Error(err))
		return fmt.Errorf("failed to create work order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	o.ID = id
	o.Active = true
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// GetByID retrieves a work order by ID; returns nil when not found
func (r *WorkOrderRepository) GetByID(ctx context.Context, id int64) (*entity.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = ?`

	o, err := scanWorkOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get work order", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get work order: %w", err)
	}

	return o, nil
}

// List retrieves active work orders, newest first
func (r *WorkOrderRepository) List(ctx context.Context, limit, offset int) ([]*entity.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + `
		FROM work_orders WHERE active = 1
		ORDER BY created_at DESC LIMIT ? OFFSET ?`

	return r.queryMany(ctx, query, limit, offset)
}

// ListByOrganization retrieves active work orders scoped to one organization
func (r *WorkOrderRepository) ListByOrganization(ctx context.Context, orgID int64, limit, offset int) ([]*entity.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + `
		FROM work_orders WHERE active = 1 AND organization_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`

	return r.queryMany(ctx, query, orgID, limit, offset)
}

func (r *WorkOrderRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkOrder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list work orders", zap.Error(err))
		return nil, fmt.Errorf("failed to list work orders: %w", err)
	}
	defer rows.Close()

	var orders []*entity.WorkOrder
	for rows.Next() {
		o, err := scanWorkOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work order: %w", err)
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// UpdateStatusTx updates the work order status inside a transaction
func (r *WorkOrderRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, status string, updatedAt time.Time) error {
	query := `UPDATE work_orders SET status = ?, updated_at = ? WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, status, updatedAt, id)
	if err != nil {
		r.logger.Error("Failed to update work order status",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update work order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("work order %d not found", id)
	}

	return nil
}

// SetPartnerEstimateApproved flips the partner estimate approval flag
func (r *WorkOrderRepository) SetPartnerEstimateApproved(ctx context.Context, id int64, approved bool) error {
	query := `UPDATE work_orders SET partner_estimate_approved = ?, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, approved, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to set partner estimate approval", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set partner estimate approval: %w", err)
	}

	return nil
}

// Deactivate soft-deactivates a work order; rows are never physically deleted
func (r *WorkOrderRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE work_orders SET active = 0, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to deactivate work order", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to deactivate work order: %w", err)
	}

	return nil
}
