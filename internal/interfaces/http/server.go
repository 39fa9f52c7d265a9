// Package http is the HTTP adapter. It translates requests into service
// calls and service errors into response codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fieldserve/workorder/internal/config"
)

// Server is the HTTP server adapter
type Server struct {
	config     config.ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     *zap.Logger
}

// NewServer creates the HTTP server, wiring middleware and routes
func NewServer(cfg config.ServerConfig, handlers *Handlers, attachmentDir string, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   cfg,
		router:   gin.New(),
		handlers: handlers,
		logger:   logger,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.setupRoutes(attachmentDir)

	return s
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (s *Server) setupRoutes(attachmentDir string) {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	// Stored receipt attachments
	s.router.Static("/files", attachmentDir)

	api := s.router.Group("/api")
	{
		api.GET("/statuses", h.ListStatuses)

		api.GET("/work-orders", h.ListWorkOrders)
		api.POST("/work-orders", h.CreateWorkOrder)
		api.GET("/work-orders/:id", h.GetWorkOrder)
		api.DELETE("/work-orders/:id", h.DeactivateWorkOrder)
		api.POST("/work-orders/:id/transition", h.TransitionWorkOrder)
		api.POST("/work-orders/transition", h.TransitionWorkOrders)
		api.GET("/work-orders/:id/completion", h.WorkOrderCompletion)
		api.POST("/work-orders/:id/estimate-approval", h.SetEstimateApproval)
		api.GET("/work-orders/:id/assignments", h.ListAssignments)
		api.POST("/work-orders/:id/assignments", h.CreateAssignment)
		api.GET("/work-orders/:id/reports", h.ListReports)
		api.POST("/work-orders/:id/reports", h.CreateReport)
		api.GET("/work-orders/:id/audit", h.ListWorkOrderAudit)

		api.POST("/assignments/:id/complete", h.CompleteAssignment)
		api.POST("/reports/:id/status", h.UpdateReportStatus)

		api.POST("/bills", h.CreateBill)
		api.GET("/bills/:id", h.GetBill)
		api.POST("/bills/:id/status", h.UpdateBillStatus)

		api.POST("/invoices", h.GenerateInvoice)
		api.GET("/invoices/:id", h.GetInvoice)
		api.POST("/invoices/:id/status", h.UpdateInvoiceStatus)
		api.GET("/invoices/:id/export", h.ExportInvoice)

		api.POST("/receipts", h.CreateReceipt)
		api.GET("/receipts/:id", h.GetReceipt)
		api.POST("/receipts/:id/ocr", h.TriggerReceiptOCR)
		api.POST("/receipts/allocations/validate", h.ValidateAllocations)
		api.POST("/receipts/allocations/suggest", h.SuggestAllocations)

		api.GET("/organizations", h.ListOrganizations)
		api.POST("/organizations", h.CreateOrganization)
		api.POST("/profiles", h.CreateProfile)

		api.GET("/settings/:key", h.GetSetting)
		api.PUT("/settings/:key", h.PutSetting)
	}
}

// Start runs the server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully shuts the server down
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}
