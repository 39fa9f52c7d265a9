package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/fieldserve/workorder/internal/billing"
	"github.com/fieldserve/workorder/internal/cache"
	"github.com/fieldserve/workorder/internal/config"
	"github.com/fieldserve/workorder/internal/email"
	"github.com/fieldserve/workorder/internal/export"
	httpapi "github.com/fieldserve/workorder/internal/interfaces/http"
	"github.com/fieldserve/workorder/internal/ocr"
	"github.com/fieldserve/workorder/internal/receipt"
	"github.com/fieldserve/workorder/internal/repository"
	"github.com/fieldserve/workorder/internal/storage"
	"github.com/fieldserve/workorder/internal/worker"
	"github.com/fieldserve/workorder/internal/workflow"
	"github.com/fieldserve/workorder/migrations"
	"github.com/fieldserve/workorder/pkg/database"
	"github.com/fieldserve/workorder/pkg/utils"
)

// cachePrimeLimit bounds the startup load of active work orders
const cachePrimeLimit = 10000

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting work order service", zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(migrations.FS); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Storage.AttachmentDir, 0755); err != nil {
		logger.Fatal("Failed to create attachment directory", zap.Error(err))
	}

	// Repositories
	orderRepo := repository.NewWorkOrderRepository(db.DB, logger)
	assignmentRepo := repository.NewAssignmentRepository(db.DB, logger)
	reportRepo := repository.NewReportRepository(db.DB, logger)
	billRepo := repository.NewBillRepository(db.DB, logger)
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	receiptRepo := repository.NewReceiptRepository(db.DB, logger)
	orgRepo := repository.NewOrganizationRepository(db.DB, logger)
	emailRepo := repository.NewEmailRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)
	settingsRepo := repository.NewSettingsRepository(db.DB, logger)
	directoryRepo := repository.NewDirectoryRepository(db.DB, logger)

	// Email pipeline
	provider := email.NewHTTPProvider(cfg.Email.ProviderURL, cfg.Email.APIKey, cfg.Email.FromAddress, logger)
	sender := email.NewSender(provider, emailRepo, emailRepo, logger)
	notifier := email.NewNotifier(sender, directoryRepo, cfg.Email.CompanyName, logger)

	// Work order cache, primed with every active work order
	store := cache.NewWorkOrderStore()
	ctx := context.Background()
	active, err := orderRepo.List(ctx, cachePrimeLimit, 0)
	if err != nil {
		logger.Fatal("Failed to prime work order cache", zap.Error(err))
	}
	store.Prime(active)
	logger.Info("Work order cache primed", zap.Int("count", len(active)))

	// Transition engine
	persister := workflow.NewSQLStatusPersister(db, orderRepo, auditRepo)
	engine := workflow.NewEngine(orderRepo, assignmentRepo, persister, store, notifier, logger)

	// Billing
	generator := billing.NewGenerator(db, billRepo, reportRepo, orderRepo, invoiceRepo, logger)
	invoiceStatus := billing.NewStatusManager(invoiceRepo, notifier, logger)
	exporter := export.NewInvoiceExporter(cfg.Email.CompanyName, logger)

	// Receipts
	attachments := storage.NewLocalAttachmentStore(cfg.Storage.AttachmentDir, cfg.Storage.PublicURL, logger)
	receiptSvc := receipt.NewService(db, receiptRepo, attachments, logger)
	reader := ocr.NewVisionReader(cfg.OCR.APIKey, cfg.OCR.Model, logger)
	processor := ocr.NewProcessor(reader, receiptRepo, logger)

	// Background workers
	manager := worker.NewManager(logger)
	manager.Register(worker.NewEmailWorker(sender, emailRepo, cfg.Email.RetryInterval, logger))

	handlers := httpapi.NewHandlers(httpapi.HandlerDeps{
		Orders:        orderRepo,
		Assignments:   assignmentRepo,
		Reports:       reportRepo,
		Bills:         billRepo,
		Invoices:      invoiceRepo,
		Organizations: orgRepo,
		AuditLogs:     auditRepo,
		Settings:      settingsRepo,
		Store:         store,
		Engine:        engine,
		Generator:     generator,
		InvoiceStatus: invoiceStatus,
		Receipts:      receiptSvc,
		Processor:     processor,
		Exporter:      exporter,
		Notifier:      notifier,
		Logger:        logger,
	})
	server := httpapi.NewServer(cfg.Server, handlers, cfg.Storage.AttachmentDir, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := manager.StartAll(runCtx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	// Shut down on SIGINT/SIGTERM
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := server.Start(runCtx); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
	}

	manager.StopAll()
	logger.Info("Shutdown complete")
}
