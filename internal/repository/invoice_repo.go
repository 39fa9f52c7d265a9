package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
)

// InvoiceRepository persists partner invoices and their line items
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{db: db, logger: logger}
}

// NextNumber returns the next invoice number for the given year
// (PI-{year}-{5-digit sequence}); PI-{year}-00001 when none exist yet
func (r *InvoiceRepository) NextNumber(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("PI-%d-", year)
	number, err := nextSequence(ctx, r.db, "partner_invoices", prefix, 5)
	if err != nil {
		r.logger.Error("Failed to generate invoice number", zap.Error(err))
		return "", err
	}
	return number, nil
}

// CreateTx inserts the invoice header inside a transaction
func (r *InvoiceRepository) CreateTx(ctx context.Context, tx *sql.Tx, inv *entity.PartnerInvoice) error {
	query := `
		INSERT INTO partner_invoices (
			number, partner_org_id, markup_percentage, subtotal, total_amount,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, query,
		inv.Number,
		inv.PartnerOrgID,
		inv.MarkupPercentage,
		inv.Subtotal,
		inv.TotalAmount,
		entity.InvoiceStatusDraft,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.String("number", inv.Number), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	inv.ID = id
	inv.Status = entity.InvoiceStatusDraft
	inv.CreatedAt = now
	inv.UpdatedAt = now
	return nil
}

// InsertLineItemsTx inserts all line items in one batch inside a transaction
func (r *InvoiceRepository) InsertLineItemsTx(ctx context.Context, tx *sql.Tx, items []*entity.PartnerInvoiceLineItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO partner_invoice_line_items (
			invoice_id, description, amount, source_bill_id, source_report_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare line item insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, item := range items {
		result, err := stmt.ExecContext(ctx,
			item.InvoiceID,
			item.Description,
			item.Amount,
			item.SourceBillID,
			item.SourceRepID,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert line item: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.ID = id
		item.CreatedAt = now
	}

	return nil
}

// GetByID retrieves an invoice by ID; returns nil when not found
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*entity.PartnerInvoice, error) {
	query := `
		SELECT id, number, partner_org_id, markup_percentage, subtotal, total_amount,
			status, created_at, updated_at
		FROM partner_invoices
		WHERE id = ?
	`

	var inv entity.PartnerInvoice
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&inv.ID,
		&inv.Number,
		&inv.PartnerOrgID,
		&inv.MarkupPercentage,
		&inv.Subtotal,
		&inv.TotalAmount,
		&inv.Status,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	return &inv, nil
}

// GetLineItems retrieves all line items of an invoice
func (r *InvoiceRepository) GetLineItems(ctx context.Context, invoiceID int64) ([]*entity.PartnerInvoiceLineItem, error) {
	query := `
		SELECT id, invoice_id, description, amount, source_bill_id, source_report_id, created_at
		FROM partner_invoice_line_items
		WHERE invoice_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to get line items", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get line items: %w", err)
	}
	defer rows.Close()

	var items []*entity.PartnerInvoiceLineItem
	for rows.Next() {
		var item entity.PartnerInvoiceLineItem
		var billID, repID sql.NullInt64

		err := rows.Scan(
			&item.ID,
			&item.InvoiceID,
			&item.Description,
			&item.Amount,
			&billID,
			&repID,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}

		if billID.Valid {
			item.SourceBillID = &billID.Int64
		}
		if repID.Valid {
			item.SourceRepID = &repID.Int64
		}

		items = append(items, &item)
	}

	return items, rows.Err()
}

// UpdateStatus moves an invoice through its lifecycle
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE partner_invoices SET status = ?, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update invoice status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update invoice status: %w", err)
	}

	return nil
}
