package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldserve/workorder/internal/domain/entity"
)

type fakeInvoiceReader struct {
	invoices  map[int64]*entity.PartnerInvoice
	updated   map[int64]string
	updateErr error
}

func (f *fakeInvoiceReader) GetByID(_ context.Context, id int64) (*entity.PartnerInvoice, error) {
	return f.invoices[id], nil
}

func (f *fakeInvoiceReader) UpdateStatus(_ context.Context, id int64, status string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updated == nil {
		f.updated = make(map[int64]string)
	}
	f.updated[id] = status
	return nil
}

type recordingInvoiceNotifier struct {
	submitted []string
	changed   []string
}

func (r *recordingInvoiceNotifier) InvoiceSubmitted(_ context.Context, inv *entity.PartnerInvoice) {
	r.submitted = append(r.submitted, inv.Number)
}

func (r *recordingInvoiceNotifier) InvoiceStatusChanged(_ context.Context, inv *entity.PartnerInvoice) {
	r.changed = append(r.changed, inv.Number)
}

func invoiceIn(status string) *entity.PartnerInvoice {
	return &entity.PartnerInvoice{ID: 1, Number: "PI-2026-00001", Status: status}
}

func TestStatusManager_ChangeStatus_LegalEdges(t *testing.T) {
	tests := []struct {
		from string
		to   string
		ok   bool
	}{
		{entity.InvoiceStatusDraft, entity.InvoiceStatusSubmitted, true},
		{entity.InvoiceStatusSubmitted, entity.InvoiceStatusApproved, true},
		{entity.InvoiceStatusSubmitted, entity.InvoiceStatusRejected, true},
		{entity.InvoiceStatusApproved, entity.InvoiceStatusPaid, true},
		{entity.InvoiceStatusRejected, entity.InvoiceStatusSubmitted, true},
		{entity.InvoiceStatusDraft, entity.InvoiceStatusPaid, false},
		{entity.InvoiceStatusDraft, entity.InvoiceStatusApproved, false},
		{entity.InvoiceStatusApproved, entity.InvoiceStatusDraft, false},
		{entity.InvoiceStatusPaid, entity.InvoiceStatusSubmitted, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+" to "+tt.to, func(t *testing.T) {
			reader := &fakeInvoiceReader{invoices: map[int64]*entity.PartnerInvoice{1: invoiceIn(tt.from)}}
			m := NewStatusManager(reader, nil, zap.NewNop())

			inv, err := m.ChangeStatus(context.Background(), 1, tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, inv.Status)
				assert.Equal(t, tt.to, reader.updated[1])
			} else {
				assert.ErrorIs(t, err, ErrInvalidInvoiceStatus)
				assert.Empty(t, reader.updated)
			}
		})
	}
}

func TestStatusManager_ChangeStatus_NotFound(t *testing.T) {
	m := NewStatusManager(&fakeInvoiceReader{}, nil, zap.NewNop())

	_, err := m.ChangeStatus(context.Background(), 42, entity.InvoiceStatusSubmitted)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestStatusManager_ChangeStatus_UpdateFailure(t *testing.T) {
	reader := &fakeInvoiceReader{
		invoices:  map[int64]*entity.PartnerInvoice{1: invoiceIn(entity.InvoiceStatusDraft)},
		updateErr: errors.New("database is locked"),
	}
	m := NewStatusManager(reader, nil, zap.NewNop())

	_, err := m.ChangeStatus(context.Background(), 1, entity.InvoiceStatusSubmitted)
	assert.Error(t, err)
}

func TestStatusManager_ChangeStatus_Notifications(t *testing.T) {
	notifier := &recordingInvoiceNotifier{}
	reader := &fakeInvoiceReader{invoices: map[int64]*entity.PartnerInvoice{
		1: invoiceIn(entity.InvoiceStatusDraft),
		2: invoiceIn(entity.InvoiceStatusSubmitted),
	}}
	reader.invoices[2].Number = "PI-2026-00002"
	m := NewStatusManager(reader, notifier, zap.NewNop())

	_, err := m.ChangeStatus(context.Background(), 1, entity.InvoiceStatusSubmitted)
	require.NoError(t, err)
	_, err = m.ChangeStatus(context.Background(), 2, entity.InvoiceStatusApproved)
	require.NoError(t, err)

	assert.Equal(t, []string{"PI-2026-00001"}, notifier.submitted)
	assert.Equal(t, []string{"PI-2026-00002"}, notifier.changed)
}
