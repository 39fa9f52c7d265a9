package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fieldserve/workorder/internal/billing"
	"github.com/fieldserve/workorder/internal/cache"
	"github.com/fieldserve/workorder/internal/domain/workorder"
	"github.com/fieldserve/workorder/internal/email"
	"github.com/fieldserve/workorder/internal/export"
	"github.com/fieldserve/workorder/internal/ocr"
	"github.com/fieldserve/workorder/internal/receipt"
	"github.com/fieldserve/workorder/internal/repository"
	"github.com/fieldserve/workorder/internal/workflow"
)

// Handlers carries every service and repository the routes need
type Handlers struct {
	orders        *repository.WorkOrderRepository
	assignments   *repository.AssignmentRepository
	reports       *repository.ReportRepository
	bills         *repository.BillRepository
	invoices      *repository.InvoiceRepository
	organizations *repository.OrganizationRepository
	auditLogs     *repository.AuditRepository
	settings      *repository.SettingsRepository

	store         *cache.WorkOrderStore
	engine        *workflow.Engine
	generator     *billing.Generator
	invoiceStatus *billing.StatusManager
	receipts      *receipt.Service
	processor     *ocr.Processor
	exporter      *export.InvoiceExporter
	notifier      *email.Notifier

	logger *zap.Logger
}

// HandlerDeps bundles the constructor arguments for Handlers
type HandlerDeps struct {
	Orders        *repository.WorkOrderRepository
	Assignments   *repository.AssignmentRepository
	Reports       *repository.ReportRepository
	Bills         *repository.BillRepository
	Invoices      *repository.InvoiceRepository
	Organizations *repository.OrganizationRepository
	AuditLogs     *repository.AuditRepository
	Settings      *repository.SettingsRepository

	Store         *cache.WorkOrderStore
	Engine        *workflow.Engine
	Generator     *billing.Generator
	InvoiceStatus *billing.StatusManager
	Receipts      *receipt.Service
	Processor     *ocr.Processor
	Exporter      *export.InvoiceExporter
	Notifier      *email.Notifier

	Logger *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps HandlerDeps) *Handlers {
	return &Handlers{
		orders:        deps.Orders,
		assignments:   deps.Assignments,
		reports:       deps.Reports,
		bills:         deps.Bills,
		invoices:      deps.Invoices,
		organizations: deps.Organizations,
		auditLogs:     deps.AuditLogs,
		settings:      deps.Settings,
		store:         deps.Store,
		engine:        deps.Engine,
		generator:     deps.Generator,
		invoiceStatus: deps.InvoiceStatus,
		receipts:      deps.Receipts,
		processor:     deps.Processor,
		exporter:      deps.Exporter,
		notifier:      deps.Notifier,
		logger:        deps.Logger,
	}
}

// Response is the standard JSON envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// ListStatuses handles GET /api/statuses
func (h *Handlers) ListStatuses(c *gin.Context) {
	type statusInfo struct {
		Status      string `json:"status"`
		Label       string `json:"label"`
		Color       string `json:"color"`
		Description string `json:"description"`
		Terminal    bool   `json:"terminal"`
	}

	var out []statusInfo
	for _, s := range workorder.AllStatuses() {
		d := workorder.DisplayFor(s)
		out = append(out, statusInfo{
			Status:      string(s),
			Label:       d.Label,
			Color:       d.Color,
			Description: d.Description,
			Terminal:    s.IsTerminal(),
		})
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// pathID parses the :id route parameter, responding 400 on failure
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func parseQueryID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func (h *Handlers) notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{Success: false, Error: msg})
}

func (h *Handlers) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, Response{Success: false, Error: msg})
}

// transitionError maps workflow errors onto response codes. Guard failures
// surface verbatim; persistence failures stay generic.
func (h *Handlers) transitionError(c *gin.Context, err error) {
	var guardErr *workorder.ValidationError
	switch {
	case errors.As(err, &guardErr):
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   guardErr.Message,
			Details: guardErr,
		})
	case errors.Is(err, workflow.ErrWorkOrderNotFound):
		h.notFound(c, err.Error())
	default:
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   workflow.ErrTransitionFailed.Error(),
		})
	}
}
