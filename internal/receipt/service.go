// Package receipt handles receipt intake: attachment storage, allocation
// validation, and transactional persistence of the receipt together with its
// allocation set.
package receipt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fieldserve/workorder/internal/allocation"
	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/fieldserve/workorder/pkg/database"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidAllocation is returned when the proposed allocation set fails
// validation; Details carries the typed issues for the response body.
type ErrInvalidAllocation struct {
	Result allocation.Result
}

func (e *ErrInvalidAllocation) Error() string {
	if len(e.Result.Errors) > 0 {
		return e.Result.Errors[0].Message
	}
	return "allocation is not submittable"
}

// ErrReceiptNotFound is returned when the receipt does not exist
var ErrReceiptNotFound = errors.New("receipt not found")

// Store persists receipts and allocations
type Store interface {
	CreateTx(ctx context.Context, tx *sql.Tx, rec *entity.Receipt) error
	InsertAllocationsTx(ctx context.Context, tx *sql.Tx, allocations []*entity.ReceiptAllocation) error
	GetByID(ctx context.Context, id int64) (*entity.Receipt, error)
	ListAllocations(ctx context.Context, receiptID int64) ([]*entity.ReceiptAllocation, error)
}

// AttachmentStorage saves receipt attachments and derives their public URLs
type AttachmentStorage interface {
	SaveAttachment(key string, content []byte) (path string, publicURL string, err error)
	RemoveAttachment(path string) error
}

// CreateInput describes one receipt submission
type CreateInput struct {
	OrganizationID int64
	Vendor         string
	Amount         float64
	Attachment     []byte
	AttachmentName string
	Allocations    []allocation.Proposed
	SelectedIDs    []int64
}

// Service is the receipt intake service
type Service struct {
	db      *database.DB
	store   Store
	storage AttachmentStorage
	logger  *zap.Logger
}

// NewService creates a new receipt service
func NewService(db *database.DB, store Store, storage AttachmentStorage, logger *zap.Logger) *Service {
	return &Service{db: db, store: store, storage: storage, logger: logger}
}

// Create validates the proposed allocations against the receipt total, saves
// the attachment, and persists the receipt with its allocation set in one
// transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Receipt, allocation.Result, error) {
	if in.Amount <= 0 {
		result := allocation.Result{
			Errors: []allocation.Issue{{
				Type:    allocation.IssueAmount,
				Message: "Receipt amount must be greater than zero",
				Action:  "Enter the receipt total",
			}},
		}
		return nil, result, &ErrInvalidAllocation{Result: result}
	}

	result := allocation.Validate(in.Amount, in.Allocations, in.SelectedIDs)
	if !result.CanSubmit {
		return nil, result, &ErrInvalidAllocation{Result: result}
	}

	rec := &entity.Receipt{
		UID:            uuid.NewString(),
		OrganizationID: in.OrganizationID,
		Vendor:         in.Vendor,
		Amount:         in.Amount,
	}

	if len(in.Attachment) > 0 {
		key := rec.UID + filepath.Ext(in.AttachmentName)
		path, url, err := s.storage.SaveAttachment(key, in.Attachment)
		if err != nil {
			s.logger.Error("Failed to store receipt attachment", zap.Error(err))
			return nil, result, fmt.Errorf("failed to store attachment: %w", err)
		}
		rec.AttachmentPath = path
		rec.AttachmentURL = url
	}

	err := s.db.WithTransactionContext(ctx, func(tx *sql.Tx) error {
		if err := s.store.CreateTx(ctx, tx, rec); err != nil {
			return err
		}

		rows := make([]*entity.ReceiptAllocation, len(in.Allocations))
		for i, a := range in.Allocations {
			rows[i] = &entity.ReceiptAllocation{
				ReceiptID:   rec.ID,
				WorkOrderID: a.WorkOrderID,
				Amount:      a.Amount,
			}
		}
		return s.store.InsertAllocationsTx(ctx, tx, rows)
	})
	if err != nil {
		// The attachment was written before the transaction; do not leave it
		// orphaned under the attachment dir.
		if rec.AttachmentPath != "" {
			if rmErr := s.storage.RemoveAttachment(rec.AttachmentPath); rmErr != nil {
				s.logger.Warn("Failed to clean up attachment after rollback",
					zap.String("path", rec.AttachmentPath),
					zap.Error(rmErr))
			}
		}
		s.logger.Error("Failed to persist receipt", zap.Error(err))
		return nil, result, fmt.Errorf("failed to persist receipt: %w", err)
	}

	s.logger.Info("Receipt created",
		zap.Int64("id", rec.ID),
		zap.String("uid", rec.UID),
		zap.Float64("amount", rec.Amount),
		zap.Int("allocations", len(in.Allocations)))

	return rec, result, nil
}

// Get retrieves a receipt with its allocation set
func (s *Service) Get(ctx context.Context, id int64) (*entity.Receipt, []*entity.ReceiptAllocation, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, ErrReceiptNotFound
	}

	allocations, err := s.store.ListAllocations(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return rec, allocations, nil
}
