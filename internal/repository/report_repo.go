package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
)

// ReportRepository persists work order reports
type ReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{db: db, logger: logger}
}

const reportColumns = `id, work_order_id, author_id, status, notes, invoice_amount,
	partner_invoice_id, created_at, updated_at`

func scanReport(row interface{ Scan(...interface{}) error }) (*entity.Report, error) {
	var rep entity.Report
	var invoiceAmount sql.NullFloat64
	var partnerInvoiceID sql.NullInt64

	err := row.Scan(
		&rep.ID,
		&rep.WorkOrderID,
		&rep.AuthorID,
		&rep.Status,
		&rep.Notes,
		&invoiceAmount,
		&partnerInvoiceID,
		&rep.CreatedAt,
		&rep.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if invoiceAmount.Valid {
		rep.InvoiceAmount = &invoiceAmount.Float64
	}
	if partnerInvoiceID.Valid {
		rep.PartnerInvoiceID = &partnerInvoiceID.Int64
	}

	return &rep, nil
}

// Create inserts a new report in submitted status
func (r *ReportRepository) Create(ctx context.Context, rep *entity.Report) error {
	query := `
		INSERT INTO work_order_reports (
			work_order_id, author_id, status, notes, invoice_amount, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		rep.WorkOrderID,
		rep.AuthorID,
		entity.ReportStatusSubmitted,
		rep.Notes,
		rep.InvoiceAmount,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create report", zap.Int64("work_order_id", rep.WorkOrderID), zap.Error(err))
		return fmt.Errorf("failed to create report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rep.ID = id
	rep.Status = entity.ReportStatusSubmitted
	rep.CreatedAt = now
	rep.UpdatedAt = now
	return nil
}

// GetByID retrieves a report by ID; returns nil when not found
func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*entity.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM work_order_reports WHERE id = ?`

	rep, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get report", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return rep, nil
}

// ListByWorkOrder retrieves all reports for a work order
func (r *ReportRepository) ListByWorkOrder(ctx context.Context, workOrderID int64) ([]*entity.Report, error) {
	query := `SELECT ` + reportColumns + `
		FROM work_order_reports WHERE work_order_id = ? ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, workOrderID)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.Int64("work_order_id", workOrderID), zap.Error(err))
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	return collectReports(rows)
}

// GetByIDs retrieves reports for the given IDs
func (r *ReportRepository) GetByIDs(ctx context.Context, ids []int64) ([]*entity.Report, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + reportColumns + `
		FROM work_order_reports WHERE id IN (` + placeholders(len(ids)) + `)`

	rows, err := r.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		r.logger.Error("Failed to get reports by IDs", zap.Error(err))
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}
	defer rows.Close()

	return collectReports(rows)
}

func collectReports(rows *sql.Rows) ([]*entity.Report, error) {
	var reports []*entity.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

// UpdateStatus moves a report through its approval lifecycle
func (r *ReportRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE work_order_reports SET status = ?, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update report status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update report status: %w", err)
	}

	return nil
}

// StampInvoiceTx stamps a consumed report with its partner invoice inside a
// transaction so a source is never left partially billed
func (r *ReportRepository) StampInvoiceTx(ctx context.Context, tx *sql.Tx, reportID, invoiceID int64) error {
	query := `
		UPDATE work_order_reports
		SET partner_invoice_id = ?, updated_at = ?
		WHERE id = ? AND partner_invoice_id IS NULL
	`

	result, err := tx.ExecContext(ctx, query, invoiceID, time.Now().UTC(), reportID)
	if err != nil {
		return fmt.Errorf("failed to stamp report %d: %w", reportID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report %d is already invoiced", reportID)
	}

	return nil
}
