package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fieldserve/workorder/internal/allocation"
	"github.com/fieldserve/workorder/internal/receipt"
)

// Receipt attachments larger than this are rejected
const maxAttachmentSize = 10 << 20

// CreateReceipt handles POST /api/receipts. The body is multipart form data:
// organization_id, vendor, amount, allocations (JSON array), selected_ids
// (JSON array) and the attachment file.
func (h *Handlers) CreateReceipt(c *gin.Context) {
	orgID, err := strconv.ParseInt(c.PostForm("organization_id"), 10, 64)
	if err != nil || orgID <= 0 {
		h.badRequest(c, "invalid organization_id")
		return
	}

	amount, err := strconv.ParseFloat(c.PostForm("amount"), 64)
	if err != nil {
		h.badRequest(c, "invalid amount")
		return
	}

	var proposed []allocation.Proposed
	if raw := c.PostForm("allocations"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &proposed); err != nil {
			h.badRequest(c, "invalid allocations")
			return
		}
	}

	var selectedIDs []int64
	if raw := c.PostForm("selected_ids"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &selectedIDs); err != nil {
			h.badRequest(c, "invalid selected_ids")
			return
		}
	}

	fileHeader, err := c.FormFile("attachment")
	if err != nil {
		h.badRequest(c, "attachment is required")
		return
	}
	if fileHeader.Size > maxAttachmentSize {
		h.badRequest(c, "attachment exceeds the size limit")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.internalError(c, "failed to read attachment", err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxAttachmentSize))
	if err != nil {
		h.internalError(c, "failed to read attachment", err)
		return
	}

	rec, result, err := h.receipts.Create(c.Request.Context(), receipt.CreateInput{
		OrganizationID: orgID,
		Vendor:         c.PostForm("vendor"),
		Amount:         amount,
		Attachment:     content,
		AttachmentName: fileHeader.Filename,
		Allocations:    proposed,
		SelectedIDs:    selectedIDs,
	})
	if err != nil {
		var allocErr *receipt.ErrInvalidAllocation
		if errors.As(err, &allocErr) {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   allocErr.Error(),
				Details: allocErr.Result,
			})
			return
		}
		h.internalError(c, "failed to create receipt", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: gin.H{
		"receipt":    rec,
		"validation": result,
	}})
}

// GetReceipt handles GET /api/receipts/:id
func (h *Handlers) GetReceipt(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	rec, allocations, err := h.receipts.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, receipt.ErrReceiptNotFound) {
			h.notFound(c, "receipt not found")
			return
		}
		h.internalError(c, "failed to retrieve receipt", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"receipt":     rec,
		"allocations": allocations,
	}})
}

// TriggerReceiptOCR handles POST /api/receipts/:id/ocr. Extraction runs in
// the background; re-triggering supersedes any extraction already running
// for the same receipt.
func (h *Handlers) TriggerReceiptOCR(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	rec, _, err := h.receipts.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, receipt.ErrReceiptNotFound) {
			h.notFound(c, "receipt not found")
			return
		}
		h.internalError(c, "failed to retrieve receipt", err)
		return
	}

	// Detached from the request context: extraction outlives the response
	go func() {
		if _, err := h.processor.Process(context.Background(), rec.ID); err != nil {
			h.logger.Error("Receipt extraction failed",
				zap.Int64("receipt_id", rec.ID),
				zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, Response{Success: true, Data: gin.H{
		"receipt_id": rec.ID,
		"ocr_status": "running",
	}})
}

// AllocationRequest is the body of the allocation validate/suggest endpoints
type AllocationRequest struct {
	Total       float64               `json:"total"`
	Allocations []allocation.Proposed `json:"allocations"`
	SelectedIDs []int64               `json:"selected_ids"`
}

// ValidateAllocations handles POST /api/receipts/allocations/validate
func (h *Handlers) ValidateAllocations(c *gin.Context) {
	var req AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	result := allocation.Validate(req.Total, req.Allocations, req.SelectedIDs)

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// SuggestAllocations handles POST /api/receipts/allocations/suggest
func (h *Handlers) SuggestAllocations(c *gin.Context) {
	var req AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	if req.Total <= 0 {
		h.badRequest(c, "total must be greater than zero")
		return
	}
	if len(req.SelectedIDs) == 0 {
		h.badRequest(c, "selected_ids must not be empty")
		return
	}

	suggested := allocation.Suggested(req.Total, req.SelectedIDs)

	c.JSON(http.StatusOK, Response{Success: true, Data: suggested})
}
