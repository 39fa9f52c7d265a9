package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
)

// Reader extracts structured receipt data from a stored attachment
type Reader interface {
	ReadAndExtract(ctx context.Context, path string) (*entity.OCRResult, error)
}

// ReceiptStore is the subset of receipt persistence the processor needs
type ReceiptStore interface {
	GetByID(ctx context.Context, id int64) (*entity.Receipt, error)
	UpdateOCRStatus(ctx context.Context, id int64, status string) error
}

// ErrReceiptNotFound is returned when the receipt does not exist
var ErrReceiptNotFound = errors.New("receipt not found")

// Processor runs receipt extraction jobs. At most one job runs per receipt;
// triggering extraction again supersedes the running job.
type Processor struct {
	reader   Reader
	store    ReceiptStore
	registry *Registry
	logger   *zap.Logger
}

// NewProcessor creates a new extraction processor
func NewProcessor(reader Reader, store ReceiptStore, logger *zap.Logger) *Processor {
	return &Processor{
		reader:   reader,
		store:    store,
		registry: NewRegistry(),
		logger:   logger,
	}
}

// Process extracts data for one receipt and records the outcome on its
// ocr_status. A job superseded by a newer one for the same receipt reports
// no error.
func (p *Processor) Process(ctx context.Context, receiptID int64) (*entity.OCRResult, error) {
	rec, err := p.store.GetByID(ctx, receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt %d: %w", receiptID, err)
	}
	if rec == nil {
		return nil, ErrReceiptNotFound
	}

	jobCtx, job := p.registry.Begin(ctx, rec.UID)
	defer p.registry.Finish(job)

	if err := p.store.UpdateOCRStatus(ctx, rec.ID, entity.OCRStatusRunning); err != nil {
		return nil, fmt.Errorf("failed to mark receipt running: %w", err)
	}

	result, err := p.reader.ReadAndExtract(jobCtx, rec.AttachmentPath)

	// Superseded by a newer job for the same receipt. The newer job owns the
	// status from here on, even if extraction still produced a result.
	if errors.Is(jobCtx.Err(), context.Canceled) && ctx.Err() == nil {
		p.logger.Info("Extraction superseded",
			zap.Int64("receipt_id", rec.ID),
			zap.String("uid", rec.UID))
		return nil, nil
	}

	if err != nil {
		p.logger.Error("Extraction failed",
			zap.Int64("receipt_id", rec.ID),
			zap.Error(err))
		if statusErr := p.store.UpdateOCRStatus(ctx, rec.ID, entity.OCRStatusFailed); statusErr != nil {
			p.logger.Error("Failed to mark receipt failed",
				zap.Int64("receipt_id", rec.ID),
				zap.Error(statusErr))
		}
		return nil, err
	}

	if err := p.store.UpdateOCRStatus(ctx, rec.ID, entity.OCRStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to mark receipt completed: %w", err)
	}

	p.logger.Info("Extraction completed",
		zap.Int64("receipt_id", rec.ID),
		zap.String("vendor", result.Vendor.Value))

	return result, nil
}
