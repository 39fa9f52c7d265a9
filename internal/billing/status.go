package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
)

// ErrInvoiceNotFound is returned when the invoice does not exist
var ErrInvoiceNotFound = errors.New("invoice not found")

// ErrInvalidInvoiceStatus is returned for an illegal status change
var ErrInvalidInvoiceStatus = errors.New("invalid invoice status change")

// legal invoice status transitions
var invoiceTransitions = map[string][]string{
	entity.InvoiceStatusDraft:     {entity.InvoiceStatusSubmitted},
	entity.InvoiceStatusSubmitted: {entity.InvoiceStatusApproved, entity.InvoiceStatusRejected},
	entity.InvoiceStatusApproved:  {entity.InvoiceStatusPaid},
	entity.InvoiceStatusRejected:  {entity.InvoiceStatusSubmitted},
}

// InvoiceReader reads invoices and updates their status
type InvoiceReader interface {
	GetByID(ctx context.Context, id int64) (*entity.PartnerInvoice, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// InvoiceNotifier emits invoice lifecycle email events
type InvoiceNotifier interface {
	InvoiceSubmitted(ctx context.Context, inv *entity.PartnerInvoice)
	InvoiceStatusChanged(ctx context.Context, inv *entity.PartnerInvoice)
}

// StatusManager moves partner invoices through their lifecycle
type StatusManager struct {
	invoices InvoiceReader
	notifier InvoiceNotifier
	logger   *zap.Logger
}

// NewStatusManager creates a new invoice status manager
func NewStatusManager(invoices InvoiceReader, notifier InvoiceNotifier, logger *zap.Logger) *StatusManager {
	return &StatusManager{invoices: invoices, notifier: notifier, logger: logger}
}

// ChangeStatus validates and applies an invoice status change, emitting the
// matching notification event on success
func (m *StatusManager) ChangeStatus(ctx context.Context, id int64, target string) (*entity.PartnerInvoice, error) {
	inv, err := m.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	if inv == nil {
		return nil, ErrInvoiceNotFound
	}

	if !statusChangeAllowed(inv.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidInvoiceStatus, inv.Status, target)
	}

	if err := m.invoices.UpdateStatus(ctx, id, target); err != nil {
		return nil, fmt.Errorf("failed to update invoice status: %w", err)
	}

	inv.Status = target
	m.logger.Info("Invoice status changed",
		zap.String("number", inv.Number),
		zap.String("status", target))

	if m.notifier != nil {
		if target == entity.InvoiceStatusSubmitted {
			m.notifier.InvoiceSubmitted(ctx, inv)
		} else {
			m.notifier.InvoiceStatusChanged(ctx, inv)
		}
	}

	return inv, nil
}

func statusChangeAllowed(from, to string) bool {
	for _, t := range invoiceTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
