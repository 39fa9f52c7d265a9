package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/workorder/internal/domain/entity"
)

// CreateReportRequest is the body of POST /api/work-orders/:id/reports
type CreateReportRequest struct {
	AuthorID      int64    `json:"author_id" binding:"required"`
	Notes         string   `json:"notes"`
	InvoiceAmount *float64 `json:"invoice_amount"`
}

// CreateReport handles POST /api/work-orders/:id/reports. New reports always
// start in the submitted status.
func (h *Handlers) CreateReport(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	if req.InvoiceAmount != nil && *req.InvoiceAmount <= 0 {
		h.badRequest(c, "invoice_amount must be greater than zero")
		return
	}

	ctx := c.Request.Context()

	order, err := h.orders.GetByID(ctx, id)
	if err != nil {
		h.internalError(c, "failed to retrieve work order", err)
		return
	}
	if order == nil {
		h.notFound(c, "work order not found")
		return
	}

	rep := &entity.Report{
		WorkOrderID:   id,
		AuthorID:      req.AuthorID,
		Notes:         req.Notes,
		InvoiceAmount: req.InvoiceAmount,
	}
	if err := h.reports.Create(ctx, rep); err != nil {
		h.internalError(c, "failed to create report", err)
		return
	}

	if h.notifier != nil {
		h.notifier.ReportSubmitted(ctx, order)
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: rep})
}

// ListReports handles GET /api/work-orders/:id/reports
func (h *Handlers) ListReports(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	reports, err := h.reports.ListByWorkOrder(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "failed to list reports", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: reports})
}

var allowedReportStatuses = map[string]bool{
	entity.ReportStatusReviewed: true,
	entity.ReportStatusApproved: true,
	entity.ReportStatusRejected: true,
}

// UpdateReportStatus handles POST /api/reports/:id/status
func (h *Handlers) UpdateReportStatus(c *gin.Context) {
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
	if !allowedReportStatuses[req.Status] {
		h.badRequest(c, "status must be reviewed, approved or rejected")
		return
	}

	ctx := c.Request.Context()

	rep, err := h.reports.GetByID(ctx, id)
	if err != nil {
		h.internalError(c, "failed to retrieve report", err)
		return
	}
	if rep == nil {
		h.notFound(c, "report not found")
		return
	}
	if rep.PartnerInvoiceID != nil {
		h.badRequest(c, "report is already invoiced")
		return
	}

	if err := h.reports.UpdateStatus(ctx, id, req.Status); err != nil {
		h.internalError(c, "failed to update report status", err)
		return
	}

	rep.Status = req.Status
	c.JSON(http.StatusOK, Response{Success: true, Data: rep})
}
