package receipt

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldserve/workorder/internal/allocation"
	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/fieldserve/workorder/pkg/database"
)

type fakeStore struct {
	createErr   error
	created     *entity.Receipt
	allocations []*entity.ReceiptAllocation
}

func (f *fakeStore) CreateTx(_ context.Context, _ *sql.Tx, rec *entity.Receipt) error {
	if f.createErr != nil {
		return f.createErr
	}
	rec.ID = 1
	f.created = rec
	return nil
}

func (f *fakeStore) InsertAllocationsTx(_ context.Context, _ *sql.Tx, rows []*entity.ReceiptAllocation) error {
	f.allocations = rows
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, _ int64) (*entity.Receipt, error) {
	return f.created, nil
}

func (f *fakeStore) ListAllocations(_ context.Context, _ int64) ([]*entity.ReceiptAllocation, error) {
	return f.allocations, nil
}

type fakeAttachmentStorage struct {
	saved   []string
	removed []string
}

func (f *fakeAttachmentStorage) SaveAttachment(key string, _ []byte) (string, string, error) {
	path := "/data/attachments/" + key
	f.saved = append(f.saved, path)
	return path, "/files/" + key, nil
}

func (f *fakeAttachmentStorage) RemoveAttachment(path string) error {
	f.removed = append(f.removed, path)
	return nil
}

func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "receipt_test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createInput() CreateInput {
	return CreateInput{
		OrganizationID: 10,
		Vendor:         "Acme Supply",
		Amount:         100,
		Attachment:     []byte("%PDF-1.4"),
		AttachmentName: "receipt.pdf",
		Allocations: []allocation.Proposed{
			{WorkOrderID: 1, Amount: 60},
			{WorkOrderID: 2, Amount: 40},
		},
		SelectedIDs: []int64{1, 2},
	}
}

func TestService_Create_Success(t *testing.T) {
	store := &fakeStore{}
	storage := &fakeAttachmentStorage{}
	svc := NewService(testDB(t), store, storage, zap.NewNop())

	rec, result, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)
	assert.True(t, result.CanSubmit)

	require.NotNil(t, rec)
	assert.NotEmpty(t, rec.UID)
	assert.Equal(t, "/data/attachments/"+rec.UID+".pdf", rec.AttachmentPath)
	assert.Len(t, store.allocations, 2)
	assert.Empty(t, storage.removed)
}

func TestService_Create_InvalidAllocation(t *testing.T) {
	store := &fakeStore{}
	storage := &fakeAttachmentStorage{}
	svc := NewService(testDB(t), store, storage, zap.NewNop())

	in := createInput()
	in.Allocations[0].Amount = 200 // exceeds the receipt total

	_, result, err := svc.Create(context.Background(), in)
	var allocErr *ErrInvalidAllocation
	require.ErrorAs(t, err, &allocErr)
	assert.False(t, result.CanSubmit)

	// Nothing was stored before validation failed
	assert.Empty(t, storage.saved)
	assert.Nil(t, store.created)
}

// A failed transaction must not leave the already-written attachment behind
func TestService_Create_PersistFailureRemovesAttachment(t *testing.T) {
	store := &fakeStore{createErr: errors.New("constraint violated")}
	storage := &fakeAttachmentStorage{}
	svc := NewService(testDB(t), store, storage, zap.NewNop())

	_, _, err := svc.Create(context.Background(), createInput())
	require.Error(t, err)

	require.Len(t, storage.saved, 1)
	assert.Equal(t, storage.saved, storage.removed)
}
