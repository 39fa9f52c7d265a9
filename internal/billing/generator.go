// Package billing generates partner invoices from approved subcontractor
// bills and work order reports, applying the partner markup and flipping the
// billing status of every consumed source so nothing is billed twice.
package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/fieldserve/workorder/pkg/database"
	"github.com/fieldserve/workorder/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrNoSources is returned when neither bills nor reports were supplied
	ErrNoSources = errors.New("at least one bill or report is required")

	// ErrSourceNotBillable is returned when a source is missing, not yet
	// approved, or already consumed by another invoice
	ErrSourceNotBillable = errors.New("source is not billable")

	// ErrTotalMismatch is returned when a caller-supplied total disagrees
	// with the total recomputed from the generated line items
	ErrTotalMismatch = errors.New("supplied total does not match computed line items")
)

// BillSource reads and consumes subcontractor bills
type BillSource interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*entity.SubcontractorBill, error)
	MarkInvoicedTx(ctx context.Context, tx *sql.Tx, id int64) error
}

// ReportSource reads and consumes work order reports
type ReportSource interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*entity.Report, error)
	StampInvoiceTx(ctx context.Context, tx *sql.Tx, reportID, invoiceID int64) error
}

// OrderReader resolves work orders referenced by report line items
type OrderReader interface {
	GetByID(ctx context.Context, id int64) (*entity.WorkOrder, error)
}

// InvoiceStore persists invoice headers and line items
type InvoiceStore interface {
	NextNumber(ctx context.Context, year int) (string, error)
	CreateTx(ctx context.Context, tx *sql.Tx, inv *entity.PartnerInvoice) error
	InsertLineItemsTx(ctx context.Context, tx *sql.Tx, items []*entity.PartnerInvoiceLineItem) error
}

// GenerateInput describes one invoice generation request. SuppliedTotal is
// optional; when present it is verified against the recomputed line items.
type GenerateInput struct {
	PartnerOrgID     int64
	BillIDs          []int64
	ReportIDs        []int64
	MarkupPercentage float64
	SuppliedTotal    *float64
	ActorID          int64
}

// Generator builds partner invoices
type Generator struct {
	db       *database.DB
	bills    BillSource
	reports  ReportSource
	orders   OrderReader
	invoices InvoiceStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewGenerator creates a new invoice generator
func NewGenerator(
	db *database.DB,
	bills BillSource,
	reports ReportSource,
	orders OrderReader,
	invoices InvoiceStore,
	logger *zap.Logger,
) *Generator {
	return &Generator{
		db:       db,
		bills:    bills,
		reports:  reports,
		orders:   orders,
		invoices: invoices,
		logger:   logger,
		now:      time.Now,
	}
}

// Generate produces one partner invoice with line items for all supplied
// sources. The header insert, the line item batch, and every source status
// flip happen in a single transaction: a failure anywhere leaves nothing
// committed and no source partially billed.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) (*entity.PartnerInvoice, []*entity.PartnerInvoiceLineItem, error) {
	if len(in.BillIDs) == 0 && len(in.ReportIDs) == 0 {
		return nil, nil, ErrNoSources
	}
	if err := utils.ValidateMarkup(in.MarkupPercentage); err != nil {
		return nil, nil, err
	}

	bills, err := g.collectBills(ctx, in.BillIDs)
	if err != nil {
		return nil, nil, err
	}

	reports, reportOrders, err := g.collectReports(ctx, in.ReportIDs)
	if err != nil {
		return nil, nil, err
	}

	items, subtotal := BuildLineItems(bills, reports, reportOrders, in.MarkupPercentage)
	total := SumLineItems(items)

	if in.SuppliedTotal != nil && math.Abs(*in.SuppliedTotal-total) > 0.01 {
		return nil, nil, fmt.Errorf("%w: supplied %.2f, computed %.2f",
			ErrTotalMismatch, *in.SuppliedTotal, total)
	}

	number, err := g.invoices.NextNumber(ctx, g.now().UTC().Year())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate invoice number: %w", err)
	}

	invoice := &entity.PartnerInvoice{
		Number:           number,
		PartnerOrgID:     in.PartnerOrgID,
		MarkupPercentage: in.MarkupPercentage,
		Subtotal:         subtotal,
		TotalAmount:      total,
	}

	err = g.db.WithTransactionContext(ctx, func(tx *sql.Tx) error {
		if err := g.invoices.CreateTx(ctx, tx, invoice); err != nil {
			return err
		}

		for _, item := range items {
			item.InvoiceID = invoice.ID
		}
		if err := g.invoices.InsertLineItemsTx(ctx, tx, items); err != nil {
			return err
		}

		for _, b := range bills {
			if err := g.bills.MarkInvoicedTx(ctx, tx, b.ID); err != nil {
				return err
			}
		}
		for _, rep := range reports {
			if err := g.reports.StampInvoiceTx(ctx, tx, rep.ID, invoice.ID); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		g.logger.Error("Invoice generation failed",
			zap.Int64("partner_org_id", in.PartnerOrgID),
			zap.String("number", number),
			zap.Error(err))
		return nil, nil, fmt.Errorf("failed to generate invoice: %w", err)
	}

	g.logger.Info("Partner invoice generated",
		zap.String("number", invoice.Number),
		zap.Int64("partner_org_id", in.PartnerOrgID),
		zap.Float64("subtotal", invoice.Subtotal),
		zap.Float64("total", invoice.TotalAmount),
		zap.Int("line_items", len(items)))

	return invoice, items, nil
}

func (g *Generator) collectBills(ctx context.Context, ids []int64) ([]*entity.SubcontractorBill, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	bills, err := g.bills.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bills: %w", err)
	}
	if len(bills) != len(ids) {
		return nil, fmt.Errorf("%w: %d of %d bills not found", ErrSourceNotBillable, len(ids)-len(bills), len(ids))
	}

	for _, b := range bills {
		if b.Status != entity.BillStatusApproved {
			return nil, fmt.Errorf("%w: bill %s is %s, not approved", ErrSourceNotBillable, b.Number, b.Status)
		}
		if b.PartnerBillingStatus != entity.PartnerBillingPending {
			return nil, fmt.Errorf("%w: bill %s is already invoiced", ErrSourceNotBillable, b.Number)
		}
	}

	return bills, nil
}

func (g *Generator) collectReports(ctx context.Context, ids []int64) ([]*entity.Report, map[int64]*entity.WorkOrder, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	reports, err := g.reports.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch reports: %w", err)
	}
	if len(reports) != len(ids) {
		return nil, nil, fmt.Errorf("%w: %d of %d reports not found", ErrSourceNotBillable, len(ids)-len(reports), len(ids))
	}

	orders := make(map[int64]*entity.WorkOrder)
	for _, rep := range reports {
		if rep.Status != entity.ReportStatusApproved {
			return nil, nil, fmt.Errorf("%w: report %d is %s, not approved", ErrSourceNotBillable, rep.ID, rep.Status)
		}
		if rep.PartnerInvoiceID != nil {
			return nil, nil, fmt.Errorf("%w: report %d is already invoiced", ErrSourceNotBillable, rep.ID)
		}
		if rep.InvoiceAmount == nil || *rep.InvoiceAmount <= 0 {
			return nil, nil, fmt.Errorf("%w: report %d has no billable amount", ErrSourceNotBillable, rep.ID)
		}

		if _, ok := orders[rep.WorkOrderID]; !ok {
			order, err := g.orders.GetByID(ctx, rep.WorkOrderID)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to fetch work order %d: %w", rep.WorkOrderID, err)
			}
			orders[rep.WorkOrderID] = order
		}
	}

	return reports, orders, nil
}

// BuildLineItems computes the marked-up line items for the given sources and
// returns them with the pre-markup subtotal. Amounts are rounded to cents
// per line.
func BuildLineItems(
	bills []*entity.SubcontractorBill,
	reports []*entity.Report,
	reportOrders map[int64]*entity.WorkOrder,
	markupPct float64,
) ([]*entity.PartnerInvoiceLineItem, float64) {
	factor := 1 + markupPct/100
	var items []*entity.PartnerInvoiceLineItem
	subtotal := 0.0

	for _, b := range bills {
		billID := b.ID
		desc := fmt.Sprintf("Subcontractor bill %s", b.Number)
		if b.ExternalNumber != "" {
			desc = fmt.Sprintf("Subcontractor bill %s (ref %s)", b.Number, b.ExternalNumber)
		}

		items = append(items, &entity.PartnerInvoiceLineItem{
			Description:  desc,
			Amount:       utils.RoundCents(b.TotalAmount * factor),
			SourceBillID: &billID,
		})
		subtotal += b.TotalAmount
	}

	for _, rep := range reports {
		repID := rep.ID
		desc := fmt.Sprintf("Work report %d", rep.ID)
		if order := reportOrders[rep.WorkOrderID]; order != nil {
			desc = fmt.Sprintf("Work order %s: %s", order.Number, order.Title)
		}

		items = append(items, &entity.PartnerInvoiceLineItem{
			Description: desc,
			Amount:      utils.RoundCents(*rep.InvoiceAmount * factor),
			SourceRepID: &repID,
		})
		subtotal += *rep.InvoiceAmount
	}

	return items, utils.RoundCents(subtotal)
}

// SumLineItems returns the cent-exact sum of line item amounts
func SumLineItems(items []*entity.PartnerInvoiceLineItem) float64 {
	sum := 0.0
	for _, item := range items {
		sum += item.Amount
	}
	return utils.RoundCents(sum)
}
