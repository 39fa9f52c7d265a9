package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/workorder/internal/billing"
	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/fieldserve/workorder/pkg/utils"
)

// CreateBillRequest is the body of POST /api/bills
type CreateBillRequest struct {
	ExternalNumber     string  `json:"external_number"`
	SubcontractorOrgID int64   `json:"subcontractor_org_id" binding:"required"`
	TotalAmount        float64 `json:"total_amount" binding:"required"`
}

// CreateBill handles POST /api/bills
func (h *Handlers) CreateBill(c *gin.Context) {
	var req CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	if req.TotalAmount <= 0 {
		h.badRequest(c, "total_amount must be greater than zero")
		return
	}

	ctx := c.Request.Context()

	number, err := h.bills.NextNumber(ctx, time.Now().UTC().Year())
	if err != nil {
		h.internalError(c, "failed to allocate bill number", err)
		return
	}

	bill := &entity.SubcontractorBill{
		Number:             number,
		ExternalNumber:     req.ExternalNumber,
		SubcontractorOrgID: req.SubcontractorOrgID,
		TotalAmount:        utils.RoundCents(req.TotalAmount),
	}
	if err := h.bills.Create(ctx, bill); err != nil {
		h.internalError(c, "failed to create bill", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: bill})
}

// GetBill handles GET /api/bills/:id
func (h *Handlers) GetBill(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	bill, err := h.bills.GetByID(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "failed to retrieve bill", err)
		return
	}
	if bill == nil {
		h.notFound(c, "bill not found")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: bill})
}

var allowedBillStatuses = map[string]bool{
	entity.BillStatusSubmitted: true,
	entity.BillStatusApproved:  true,
	entity.BillStatusRejected:  true,
	entity.BillStatusPaid:      true,
}

// UpdateBillStatus handles POST /api/bills/:id/status
func (h *Handlers) UpdateBillStatus(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	if !allowedBillStatuses[req.Status] {
		h.badRequest(c, "invalid bill status")
		return
	}

	ctx := c.Request.Context()

	bill, err := h.bills.GetByID(ctx, id)
	if err != nil {
		h.internalError(c, "failed to retrieve bill", err)
		return
	}
	if bill == nil {
		h.notFound(c, "bill not found")
		return
	}
	if bill.PartnerBillingStatus == entity.PartnerBillingInvoiced {
		h.badRequest(c, "bill is already invoiced")
		return
	}

	if err := h.bills.UpdateStatus(ctx, id, req.Status); err != nil {
		h.internalError(c, "failed to update bill status", err)
		return
	}

	bill.Status = req.Status
	c.JSON(http.StatusOK, Response{Success: true, Data: bill})
}

// GenerateInvoiceRequest is the body of POST /api/invoices. Total is
// optional; when present it must match the server-computed total.
type GenerateInvoiceRequest struct {
	PartnerOrgID     int64    `json:"partner_org_id" binding:"required"`
	BillIDs          []int64  `json:"bill_ids"`
	ReportIDs        []int64  `json:"report_ids"`
	MarkupPercentage float64  `json:"markup_percentage"`
	Total            *float64 `json:"total"`
	ActorID          int64    `json:"actor_id"`
}

// invoiceView is an invoice with its line items in API responses
type invoiceView struct {
	Invoice   *entity.PartnerInvoice           `json:"invoice"`
	LineItems []*entity.PartnerInvoiceLineItem `json:"line_items"`
}

// GenerateInvoice handles POST /api/invoices
func (h *Handlers) GenerateInvoice(c *gin.Context) {
	var req GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	if err := utils.ValidateMarkup(req.MarkupPercentage); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	inv, items, err := h.generator.Generate(c.Request.Context(), billing.GenerateInput{
		PartnerOrgID:     req.PartnerOrgID,
		BillIDs:          req.BillIDs,
		ReportIDs:        req.ReportIDs,
		MarkupPercentage: req.MarkupPercentage,
		SuppliedTotal:    req.Total,
		ActorID:          req.ActorID,
	})
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNoSources),
			errors.Is(err, billing.ErrSourceNotBillable),
			errors.Is(err, billing.ErrTotalMismatch):
			h.badRequest(c, err.Error())
		default:
			h.internalError(c, "failed to generate invoice", err)
		}
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: invoiceView{Invoice: inv, LineItems: items}})
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	inv, err := h.invoices.GetByID(ctx, id)
	if err != nil {
		h.internalError(c, "failed to retrieve invoice", err)
		return
	}
	if inv == nil {
		h.notFound(c, "invoice not found")
		return
	}

	items, err := h.invoices.GetLineItems(ctx, id)
	if err != nil {
		h.internalError(c, "failed to retrieve line items", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: invoiceView{Invoice: inv, LineItems: items}})
}

// UpdateInvoiceStatus handles POST /api/invoices/:id/status
func (h *Handlers) UpdateInvoiceStatus(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	inv, err := h.invoiceStatus.ChangeStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvoiceNotFound):
			h.notFound(c, "invoice not found")
		case errors.Is(err, billing.ErrInvalidInvoiceStatus):
			h.badRequest(c, err.Error())
		default:
			h.internalError(c, "failed to update invoice status", err)
		}
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: inv})
}

// ExportInvoice handles GET /api/invoices/:id/export, streaming the invoice
// as an xlsx download
func (h *Handlers) ExportInvoice(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	inv, err := h.invoices.GetByID(ctx, id)
	if err != nil {
		h.internalError(c, "failed to retrieve invoice", err)
		return
	}
	if inv == nil {
		h.notFound(c, "invoice not found")
		return
	}

	items, err := h.invoices.GetLineItems(ctx, id)
	if err != nil {
		h.internalError(c, "failed to retrieve line items", err)
		return
	}

	partner, err := h.organizations.GetByID(ctx, inv.PartnerOrgID)
	if err != nil {
		h.internalError(c, "failed to retrieve partner organization", err)
		return
	}
	if partner == nil {
		h.notFound(c, "partner organization not found")
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", inv.Number))

	if err := h.exporter.WriteInvoice(c.Writer, inv, partner, items); err != nil {
		h.internalError(c, "failed to export invoice", err)
	}
}
