package email

import (
	"context"
	"fmt"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
)

// Directory resolves notification recipients
type Directory interface {
	// AssigneeEmails returns the emails of everyone assigned to a work order
	AssigneeEmails(ctx context.Context, workOrderID int64) ([]string, error)
	// OrganizationEmail returns the contact email of an organization
	OrganizationEmail(ctx context.Context, orgID int64) (string, error)
}

// Notifier turns domain events into outbound emails. Failures are logged and
// swallowed so notification problems never fail the triggering operation.
type Notifier struct {
	sender      *Sender
	directory   Directory
	companyName string
	logger      *zap.Logger
}

// NewNotifier creates a new event notifier
func NewNotifier(sender *Sender, directory Directory, companyName string, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender:      sender,
		directory:   directory,
		companyName: companyName,
		logger:      logger,
	}
}

func orderFields(order *entity.WorkOrder) map[string]string {
	return map[string]string{
		"work_order_number": order.Number,
		"work_order_title":  order.Title,
	}
}

func invoiceFields(inv *entity.PartnerInvoice) map[string]string {
	return map[string]string{
		"invoice_number": inv.Number,
		"total_amount":   fmt.Sprintf("%.2f", inv.TotalAmount),
		"status":         inv.Status,
	}
}

// WorkOrderAssigned emails every assignee of the work order
func (n *Notifier) WorkOrderAssigned(ctx context.Context, order *entity.WorkOrder) {
	recipients, err := n.directory.AssigneeEmails(ctx, order.ID)
	if err != nil {
		n.logger.Error("Failed to resolve assignee emails",
			zap.Int64("work_order_id", order.ID),
			zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		n.logger.Debug("No assignees to notify", zap.Int64("work_order_id", order.ID))
		return
	}

	if err := n.sender.SendMany(ctx, entity.EmailEventWorkOrderAssigned, recipients, orderFields(order)); err != nil {
		n.logger.Error("Assignment notification failed",
			zap.Int64("work_order_id", order.ID),
			zap.Error(err))
	}
}

// WorkOrderCompleted emails the owning organization
func (n *Notifier) WorkOrderCompleted(ctx context.Context, order *entity.WorkOrder) {
	n.notifyOrganization(ctx, entity.EmailEventWorkOrderCompleted, order.OrganizationID, orderFields(order))
}

// ReportSubmitted emails the owning organization that a report awaits review
func (n *Notifier) ReportSubmitted(ctx context.Context, order *entity.WorkOrder) {
	n.notifyOrganization(ctx, entity.EmailEventReportSubmitted, order.OrganizationID, orderFields(order))
}

// InvoiceSubmitted emails the partner organization
func (n *Notifier) InvoiceSubmitted(ctx context.Context, inv *entity.PartnerInvoice) {
	n.notifyOrganization(ctx, entity.EmailEventInvoiceSubmitted, inv.PartnerOrgID, invoiceFields(inv))
}

// InvoiceStatusChanged emails the partner organization
func (n *Notifier) InvoiceStatusChanged(ctx context.Context, inv *entity.PartnerInvoice) {
	n.notifyOrganization(ctx, entity.EmailEventInvoiceStatusChanged, inv.PartnerOrgID, invoiceFields(inv))
}

// Welcome emails a newly created profile
func (n *Notifier) Welcome(ctx context.Context, profile *entity.Profile) {
	fields := map[string]string{
		"full_name":    profile.FullName,
		"company_name": n.companyName,
	}
	if err := n.sender.Send(ctx, entity.EmailEventWelcome, profile.Email, fields); err != nil {
		n.logger.Error("Welcome notification failed",
			zap.String("recipient", profile.Email),
			zap.Error(err))
	}
}

func (n *Notifier) notifyOrganization(ctx context.Context, event string, orgID int64, fields map[string]string) {
	recipient, err := n.directory.OrganizationEmail(ctx, orgID)
	if err != nil {
		n.logger.Error("Failed to resolve organization email",
			zap.Int64("organization_id", orgID),
			zap.Error(err))
		return
	}
	if recipient == "" {
		n.logger.Debug("Organization has no contact email", zap.Int64("organization_id", orgID))
		return
	}

	if err := n.sender.Send(ctx, event, recipient, fields); err != nil {
		n.logger.Error("Notification failed",
			zap.String("event", event),
			zap.String("recipient", recipient),
			zap.Error(err))
	}
}
