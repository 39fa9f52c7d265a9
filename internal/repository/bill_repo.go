package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
)

// BillRepository persists subcontractor bills
type BillRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBillRepository creates a new bill repository
func NewBillRepository(db *sql.DB, logger *zap.Logger) *BillRepository {
	return &BillRepository{db: db, logger: logger}
}

const billColumns = `id, number, external_number, subcontractor_org_id, total_amount,
	status, partner_billing_status, created_at, updated_at`

func scanBill(row interface{ Scan(...interface{}) error }) (*entity.SubcontractorBill, error) {
	var b entity.SubcontractorBill
	err := row.Scan(
		&b.ID,
		&b.Number,
		&b.ExternalNumber,
		&b.SubcontractorOrgID,
		&b.TotalAmount,
		&b.Status,
		&b.PartnerBillingStatus,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// NextNumber returns the next bill number for the given year
// (SB-{year}-{5-digit sequence})
func (r *BillRepository) NextNumber(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("SB-%d-", year)
	number, err := nextSequence(ctx, r.db, "subcontractor_bills", prefix, 5)
	if err != nil {
		r.logger.Error("Failed to generate bill number", zap.Error(err))
		return "", err
	}
	return number, nil
}

// Create inserts a new bill
func (r *BillRepository) Create(ctx context.Context, b *entity.SubcontractorBill) error {
	query := `
		INSERT INTO subcontractor_bills (
			number, external_number, subcontractor_org_id, total_amount,
			status, partner_billing_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		b.Number,
		b.ExternalNumber,
		b.SubcontractorOrgID,
		b.TotalAmount,
		entity.BillStatusDraft,
		entity.PartnerBillingPending,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create bill", zap.Error(err))
		return fmt.Errorf("failed to create bill: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	b.ID = id
	b.Status = entity.BillStatusDraft
	b.PartnerBillingStatus = entity.PartnerBillingPending
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// GetByID retrieves a bill by ID; returns nil when not found
func (r *BillRepository) GetByID(ctx context.Context, id int64) (*entity.SubcontractorBill, error) {
	query := `SELECT ` + billColumns + ` FROM subcontractor_bills WHERE id = ?`

	b, err := scanBill(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get bill", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	return b, nil
}

// GetByIDs retrieves bills for the given IDs
func (r *BillRepository) GetByIDs(ctx context.Context, ids []int64) ([]*entity.SubcontractorBill, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + billColumns + `
		FROM subcontractor_bills WHERE id IN (` + placeholders(len(ids)) + `)`

	rows, err := r.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		r.logger.Error("Failed to get bills by IDs", zap.Error(err))
		return nil, fmt.Errorf("failed to get bills: %w", err)
	}
	defer rows.Close()

	var bills []*entity.SubcontractorBill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, b)
	}

	return bills, rows.Err()
}

// UpdateStatus moves a bill through its lifecycle
func (r *BillRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE subcontractor_bills SET status = ?, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update bill status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update bill status: %w", err)
	}

	return nil
}

// MarkInvoicedTx flips a consumed bill's partner billing status inside a
// transaction; a bill already invoiced fails the whole generation
func (r *BillRepository) MarkInvoicedTx(ctx context.Context, tx *sql.Tx, id int64) error {
	query := `
		UPDATE subcontractor_bills
		SET partner_billing_status = ?, updated_at = ?
		WHERE id = ? AND partner_billing_status = ?
	`

	result, err := tx.ExecContext(ctx, query,
		entity.PartnerBillingInvoiced,
		time.Now().UTC(),
		id,
		entity.PartnerBillingPending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark bill %d invoiced: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("bill %d is already invoiced", id)
	}

	return nil
}
