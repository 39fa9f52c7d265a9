package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
)

// ReceiptRepository persists receipts and their allocations
type ReceiptRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *sql.DB, logger *zap.Logger) *ReceiptRepository {
	return &ReceiptRepository{db: db, logger: logger}
}

// CreateTx inserts a receipt inside a transaction
func (r *ReceiptRepository) CreateTx(ctx context.Context, tx *sql.Tx, rec *entity.Receipt) error {
	query := `
		INSERT INTO receipts (
			uid, organization_id, vendor, amount, attachment_path, attachment_url,
			ocr_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, query,
		rec.UID,
		rec.OrganizationID,
		rec.Vendor,
		rec.Amount,
		rec.AttachmentPath,
		rec.AttachmentURL,
		entity.OCRStatusPending,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create receipt", zap.Error(err))
		return fmt.Errorf("failed to create receipt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	rec.OCRStatus = entity.OCRStatusPending
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// InsertAllocationsTx inserts the receipt's allocations inside the same
// transaction that created the receipt
func (r *ReceiptRepository) InsertAllocationsTx(ctx context.Context, tx *sql.Tx, allocations []*entity.ReceiptAllocation) error {
	if len(allocations) == 0 {
		return nil
	}

	query := `
		INSERT INTO receipt_allocations (receipt_id, work_order_id, amount, created_at)
		VALUES (?, ?, ?, ?)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare allocation insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, a := range allocations {
		result, err := stmt.ExecContext(ctx, a.ReceiptID, a.WorkOrderID, a.Amount, now)
		if err != nil {
			return fmt.Errorf("failed to insert allocation: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		a.ID = id
		a.CreatedAt = now
	}

	return nil
}

// GetByID retrieves a receipt by ID; returns nil when not found
func (r *ReceiptRepository) GetByID(ctx context.Context, id int64) (*entity.Receipt, error) {
	query := `
		SELECT id, uid, organization_id, vendor, amount, attachment_path,
			attachment_url, ocr_status, created_at, updated_at
		FROM receipts
		WHERE id = ?
	`

	return r.getOne(ctx, query, id)
}

// GetByUID retrieves a receipt by its uuid; returns nil when not found
func (r *ReceiptRepository) GetByUID(ctx context.Context, uid string) (*entity.Receipt, error) {
	query := `
		SELECT id, uid, organization_id, vendor, amount, attachment_path,
			attachment_url, ocr_status, created_at, updated_at
		FROM receipts
		WHERE uid = ?
	`

	return r.getOne(ctx, query, uid)
}

func (r *ReceiptRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.Receipt, error) {
	var rec entity.Receipt
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&rec.ID,
		&rec.UID,
		&rec.OrganizationID,
		&rec.Vendor,
		&rec.Amount,
		&rec.AttachmentPath,
		&rec.AttachmentURL,
		&rec.OCRStatus,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get receipt", zap.Error(err))
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	return &rec, nil
}

// ListAllocations retrieves the allocation set of a receipt
func (r *ReceiptRepository) ListAllocations(ctx context.Context, receiptID int64) ([]*entity.ReceiptAllocation, error) {
	query := `
		SELECT id, receipt_id, work_order_id, amount, created_at
		FROM receipt_allocations
		WHERE receipt_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, receiptID)
	if err != nil {
		r.logger.Error("Failed to list allocations", zap.Int64("receipt_id", receiptID), zap.Error(err))
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var allocations []*entity.ReceiptAllocation
	for rows.Next() {
		var a entity.ReceiptAllocation
		if err := rows.Scan(&a.ID, &a.ReceiptID, &a.WorkOrderID, &a.Amount, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, &a)
	}

	return allocations, rows.Err()
}

// UpdateOCRStatus records OCR progress for a receipt
func (r *ReceiptRepository) UpdateOCRStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE receipts SET ocr_status = ?, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update OCR status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update OCR status: %w", err)
	}

	return nil
}
