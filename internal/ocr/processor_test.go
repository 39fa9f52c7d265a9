package ocr

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldserve/workorder/internal/domain/entity"
)

type fakeReader struct {
	result       *entity.OCRResult
	err          error
	started      chan struct{} // closed once extraction begins, when set
	block        chan struct{} // extraction waits here until closed, when set
	ignoreCancel bool          // keep going and return the result despite cancellation
}

func (f *fakeReader) ReadAndExtract(ctx context.Context, _ string) (*entity.OCRResult, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		if f.ignoreCancel {
			<-f.block
		} else {
			select {
			case <-f.block:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if !f.ignoreCancel && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return f.result, f.err
}

type fakeReceiptStore struct {
	mu       sync.Mutex
	receipts map[int64]*entity.Receipt
	statuses map[int64][]string
}

func (f *fakeReceiptStore) GetByID(_ context.Context, id int64) (*entity.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipts[id], nil
}

func (f *fakeReceiptStore) UpdateOCRStatus(_ context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = make(map[int64][]string)
	}
	f.statuses[id] = append(f.statuses[id], status)
	return nil
}

func (f *fakeReceiptStore) history(id int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statuses[id]...)
}

func storedReceipt(id int64, uid string) *entity.Receipt {
	return &entity.Receipt{
		ID:             id,
		UID:            uid,
		OrganizationID: 10,
		Amount:         120.50,
		AttachmentPath: "/data/attachments/" + uid + ".pdf",
		OCRStatus:      entity.OCRStatusPending,
	}
}

func TestProcessor_Process_Success(t *testing.T) {
	reader := &fakeReader{result: &entity.OCRResult{
		Vendor: entity.OCRField{Value: "Acme Supply", Confidence: 0.94},
		Total:  entity.OCRField{Value: "120.50", Confidence: 0.88},
	}}
	store := &fakeReceiptStore{receipts: map[int64]*entity.Receipt{1: storedReceipt(1, "uid-1")}}
	p := NewProcessor(reader, store, zap.NewNop())

	result, err := p.Process(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "Acme Supply", result.Vendor.Value)

	assert.Equal(t, []string{entity.OCRStatusRunning, entity.OCRStatusCompleted}, store.history(1))
}

func TestProcessor_Process_NotFound(t *testing.T) {
	p := NewProcessor(&fakeReader{}, &fakeReceiptStore{}, zap.NewNop())

	_, err := p.Process(context.Background(), 42)
	assert.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestProcessor_Process_ExtractionFailure(t *testing.T) {
	reader := &fakeReader{err: errors.New("vision request failed")}
	store := &fakeReceiptStore{receipts: map[int64]*entity.Receipt{1: storedReceipt(1, "uid-1")}}
	p := NewProcessor(reader, store, zap.NewNop())

	_, err := p.Process(context.Background(), 1)
	require.Error(t, err)

	assert.Equal(t, []string{entity.OCRStatusRunning, entity.OCRStatusFailed}, store.history(1))
}

// A second trigger for the same receipt supersedes the first job: the first
// returns without error and without touching the status, leaving the second
// job as the sole owner of the outcome.
func TestProcessor_Process_SupersededJobIsSilent(t *testing.T) {
	store := &fakeReceiptStore{receipts: map[int64]*entity.Receipt{1: storedReceipt(1, "uid-1")}}

	firstStarted := make(chan struct{})
	firstReader := &fakeReader{
		result:  &entity.OCRResult{Vendor: entity.OCRField{Value: "first"}},
		started: firstStarted,
		block:   make(chan struct{}), // never closed; only supersession unblocks it
	}
	p := NewProcessor(firstReader, store, zap.NewNop())

	type outcome struct {
		result *entity.OCRResult
		err    error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		res, err := p.Process(context.Background(), 1)
		firstDone <- outcome{res, err}
	}()
	<-firstStarted

	// Second trigger claims the registry slot. The processor's reader field is
	// shared, so swap in one that completes immediately.
	p.reader = &fakeReader{result: &entity.OCRResult{Vendor: entity.OCRField{Value: "second"}}}
	result, err := p.Process(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "second", result.Vendor.Value)

	first := <-firstDone
	assert.NoError(t, first.err)
	assert.Nil(t, first.result)

	// Both jobs marked running; only the successor recorded a terminal status,
	// and it is completed, not failed.
	history := store.history(1)
	assert.Equal(t, entity.OCRStatusCompleted, history[len(history)-1])
	for _, status := range history {
		assert.NotEqual(t, entity.OCRStatusFailed, status)
	}
}

// A superseded job whose extraction still returns a result must not write a
// terminal status: the newer job owns the receipt's outcome from the moment
// it claims the slot.
func TestProcessor_Process_SupersededSuccessDoesNotWriteStatus(t *testing.T) {
	store := &fakeReceiptStore{receipts: map[int64]*entity.Receipt{1: storedReceipt(1, "uid-1")}}

	type outcome struct {
		result *entity.OCRResult
		err    error
	}

	// The first job's reader keeps working through cancellation and hands back
	// a result anyway.
	firstStarted := make(chan struct{})
	firstRelease := make(chan struct{})
	firstReader := &fakeReader{
		result:       &entity.OCRResult{Vendor: entity.OCRField{Value: "first"}},
		started:      firstStarted,
		block:        firstRelease,
		ignoreCancel: true,
	}
	p := NewProcessor(firstReader, store, zap.NewNop())

	firstDone := make(chan outcome, 1)
	go func() {
		res, err := p.Process(context.Background(), 1)
		firstDone <- outcome{res, err}
	}()
	<-firstStarted

	secondStarted := make(chan struct{})
	secondRelease := make(chan struct{})
	p.reader = &fakeReader{
		result:  &entity.OCRResult{Vendor: entity.OCRField{Value: "second"}},
		started: secondStarted,
		block:   secondRelease,
	}

	secondDone := make(chan outcome, 1)
	go func() {
		res, err := p.Process(context.Background(), 1)
		secondDone <- outcome{res, err}
	}()
	<-secondStarted

	// Let the superseded job finish with its stale success while the newer
	// job is still running
	close(firstRelease)
	first := <-firstDone
	assert.NoError(t, first.err)
	assert.Nil(t, first.result)

	// Only the two running marks so far; the stale success wrote nothing
	history := store.history(1)
	assert.Equal(t, []string{entity.OCRStatusRunning, entity.OCRStatusRunning}, history)

	close(secondRelease)
	second := <-secondDone
	require.NoError(t, second.err)
	require.NotNil(t, second.result)
	assert.Equal(t, "second", second.result.Vendor.Value)

	history = store.history(1)
	assert.Equal(t, entity.OCRStatusCompleted, history[len(history)-1])
}

func TestProcessor_Process_CallerCancellationIsAnError(t *testing.T) {
	store := &fakeReceiptStore{receipts: map[int64]*entity.Receipt{1: storedReceipt(1, "uid-1")}}
	started := make(chan struct{})
	reader := &fakeReader{started: started, block: make(chan struct{})}
	p := NewProcessor(reader, store, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Process(ctx, 1)
		done <- err
	}()
	<-started
	cancel()

	err := <-done
	require.Error(t, err)
	assert.Equal(t, entity.OCRStatusFailed, store.history(1)[len(store.history(1))-1])
}
