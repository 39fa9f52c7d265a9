package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/fieldserve/workorder/internal/domain/workorder"
)

// CreateWorkOrderRequest is the body of POST /api/work-orders
type CreateWorkOrderRequest struct {
	Title          string `json:"title" binding:"required"`
	Description    string `json:"description"`
	OrganizationID int64  `json:"organization_id" binding:"required"`
	Trade          string `json:"trade"`
}

// TransitionRequest is the body of POST /api/work-orders/:id/transition
type TransitionRequest struct {
	Target  string `json:"target" binding:"required"`
	ActorID int64  `json:"actor_id"`
}

// BulkTransitionRequest is the body of POST /api/work-orders/transition
type BulkTransitionRequest struct {
	IDs     []int64 `json:"ids" binding:"required"`
	Target  string  `json:"target" binding:"required"`
	ActorID int64   `json:"actor_id"`
}

// workOrderView is a work order in API responses
type workOrderView struct {
	ID                      int64  `json:"id"`
	Number                  string `json:"number"`
	Title                   string `json:"title"`
	Description             string `json:"description,omitempty"`
	Status                  string `json:"status"`
	StatusLabel             string `json:"status_label"`
	StatusColor             string `json:"status_color"`
	OrganizationID          int64  `json:"organization_id"`
	Trade                   string `json:"trade,omitempty"`
	PartnerEstimateApproved bool   `json:"partner_estimate_approved"`
	CreatedAt               string `json:"created_at"`
	UpdatedAt               string `json:"updated_at"`
}

func toWorkOrderView(o *entity.WorkOrder) workOrderView {
	d := workorder.DisplayFor(workorder.Status(o.Status))
	return workOrderView{
		ID:                      o.ID,
		Number:                  o.Number,
		Title:                   o.Title,
		Description:             o.Description,
		Status:                  o.Status,
		StatusLabel:             d.Label,
		StatusColor:             d.Color,
		OrganizationID:          o.OrganizationID,
		Trade:                   o.Trade,
		PartnerEstimateApproved: o.PartnerEstimateApproved,
		CreatedAt:               o.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:               o.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ListWorkOrders handles GET /api/work-orders. Lists are served from the
// in-memory store so optimistic status changes are visible immediately.
func (h *Handlers) ListWorkOrders(c *gin.Context) {
	var orders []*entity.WorkOrder

	if orgStr := c.Query("organization_id"); orgStr != "" {
		orgID, ok := parseQueryID(orgStr)
		if !ok {
			h.badRequest(c, "invalid organization_id")
			return
		}
		orders = h.store.ListByOrganization(orgID)
	} else {
		orders = h.store.List()
	}

	views := make([]workOrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toWorkOrderView(o))
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: views})
}

// GetWorkOrder handles GET /api/work-orders/:id
func (h *Handlers) GetWorkOrder(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	order, err := h.orders.GetByID(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "failed to retrieve work order", err)
		return
	}
	if order == nil {
		h.notFound(c, "work order not found")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toWorkOrderView(order)})
}

// CreateWorkOrder handles POST /api/work-orders. The work order number is
// always generated server side.
func (h *Handlers) CreateWorkOrder(c *gin.Context) {
	var req CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()

	number, err := h.orders.NextNumber(ctx, time.Now().UTC().Year())
	if err != nil {
		h.internalError(c, "failed to allocate work order number", err)
		return
	}

	order := &entity.WorkOrder{
		Number:         number,
		Title:          req.Title,
		Description:    req.Description,
		Status:         string(workorder.StatusReceived),
		OrganizationID: req.OrganizationID,
		Trade:          req.Trade,
		Active:         true,
	}
	if err := h.orders.Create(ctx, order); err != nil {
		h.internalError(c, "failed to create work order", err)
		return
	}

	h.store.Put(order)

	c.JSON(http.StatusCreated, Response{Success: true, Data: toWorkOrderView(order)})
}

// DeactivateWorkOrder handles DELETE /api/work-orders/:id
func (h *Handlers) DeactivateWorkOrder(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.orders.Deactivate(c.Request.Context(), id); err != nil {
		h.internalError(c, "failed to deactivate work order", err)
		return
	}

	h.store.Drop(id)

	c.JSON(http.StatusOK, Response{Success: true})
}

// TransitionWorkOrder handles POST /api/work-orders/:id/transition
func (h *Handlers) TransitionWorkOrder(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	order, err := h.engine.Transition(c.Request.Context(), id, workorder.Status(req.Target), req.ActorID)
	if err != nil {
		h.transitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toWorkOrderView(order)})
}

// TransitionWorkOrders handles POST /api/work-orders/transition. Every work
// order gets its own result; there is no partial-failure rollup.
func (h *Handlers) TransitionWorkOrders(c *gin.Context) {
	var req BulkTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		h.badRequest(c, "ids must not be empty")
		return
	}

	results := h.engine.TransitionMany(c.Request.Context(), req.IDs, workorder.Status(req.Target), req.ActorID)

	c.JSON(http.StatusOK, Response{Success: true, Data: results})
}

// WorkOrderCompletion handles GET /api/work-orders/:id/completion
func (h *Handlers) WorkOrderCompletion(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	total, complete, eligible, err := h.engine.CheckAssignmentCompletion(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "failed to check completion", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"total":    total,
		"complete": complete,
		"eligible": eligible,
	}})
}

// SetEstimateApproval handles POST /api/work-orders/:id/estimate-approval
func (h *Handlers) SetEstimateApproval(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req struct {
		Approved bool `json:"approved"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
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

	if err := h.orders.SetPartnerEstimateApproved(ctx, id, req.Approved); err != nil {
		h.internalError(c, "failed to update estimate approval", err)
		return
	}

	order.PartnerEstimateApproved = req.Approved
	h.store.Put(order)

	c.JSON(http.StatusOK, Response{Success: true, Data: toWorkOrderView(order)})
}

// ListAssignments handles GET /api/work-orders/:id/assignments
func (h *Handlers) ListAssignments(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	assignments, err := h.assignments.ListByWorkOrder(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "failed to list assignments", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: assignmentViews(assignments)})
}

// CreateAssignmentRequest is the body of POST /api/work-orders/:id/assignments
type CreateAssignmentRequest struct {
	AssigneeID    int64  `json:"assignee_id"`
	AssigneeOrgID int64  `json:"assignee_org_id"`
	Type          string `json:"type" binding:"required"`
}

// CreateAssignment handles POST /api/work-orders/:id/assignments
func (h *Handlers) CreateAssignment(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	if req.Type != string(entity.AssignmentLead) && req.Type != string(entity.AssignmentSecondary) {
		h.badRequest(c, "type must be lead or secondary")
		return
	}
	if req.AssigneeID == 0 && req.AssigneeOrgID == 0 {
		h.badRequest(c, "assignee_id or assignee_org_id is required")
		return
	}

	a := &entity.Assignment{
		WorkOrderID:   id,
		AssigneeID:    req.AssigneeID,
		AssigneeOrgID: req.AssigneeOrgID,
		Type:          entity.AssignmentType(req.Type),
	}
	if err := h.assignments.Create(c.Request.Context(), a); err != nil {
		// The unique lead index rejects a second lead
		h.logger.Warn("Failed to create assignment",
			zap.Int64("work_order_id", id),
			zap.Error(err))
		h.badRequest(c, "could not create assignment")
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: assignmentViews([]*entity.Assignment{a})[0]})
}

// CompleteAssignment handles POST /api/assignments/:id/complete
func (h *Handlers) CompleteAssignment(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.assignments.SetReportComplete(c.Request.Context(), id, true); err != nil {
		h.internalError(c, "failed to complete assignment", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// ListWorkOrderAudit handles GET /api/work-orders/:id/audit
func (h *Handlers) ListWorkOrderAudit(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	logs, err := h.auditLogs.ListByEntity(c.Request.Context(), "work_order", id, 50)
	if err != nil {
		h.internalError(c, "failed to list audit trail", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: logs})
}

type assignmentView struct {
	ID             int64  `json:"id"`
	WorkOrderID    int64  `json:"work_order_id"`
	AssigneeID     int64  `json:"assignee_id,omitempty"`
	AssigneeOrgID  int64  `json:"assignee_org_id,omitempty"`
	Type           string `json:"type"`
	ReportComplete bool   `json:"report_complete"`
}

func assignmentViews(assignments []*entity.Assignment) []assignmentView {
	views := make([]assignmentView, 0, len(assignments))
	for _, a := range assignments {
		views = append(views, assignmentView{
			ID:             a.ID,
			WorkOrderID:    a.WorkOrderID,
			AssigneeID:     a.AssigneeID,
			AssigneeOrgID:  a.AssigneeOrgID,
			Type:           string(a.Type),
			ReportComplete: a.ReportComplete,
		})
	}
	return views
}
