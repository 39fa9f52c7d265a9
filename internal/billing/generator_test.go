package billing

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/fieldserve/workorder/pkg/database"
)

type fakeBillSource struct {
	bills    map[int64]*entity.SubcontractorBill
	invoiced []int64
	txErr    error
}

func (f *fakeBillSource) GetByIDs(_ context.Context, ids []int64) ([]*entity.SubcontractorBill, error) {
	var out []*entity.SubcontractorBill
	for _, id := range ids {
		if b, ok := f.bills[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBillSource) MarkInvoicedTx(_ context.Context, _ *sql.Tx, id int64) error {
	if f.txErr != nil {
		return f.txErr
	}
	f.invoiced = append(f.invoiced, id)
	return nil
}

type fakeReportSource struct {
	reports map[int64]*entity.Report
	stamped map[int64]int64
}

func (f *fakeReportSource) GetByIDs(_ context.Context, ids []int64) ([]*entity.Report, error) {
	var out []*entity.Report
	for _, id := range ids {
		if r, ok := f.reports[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReportSource) StampInvoiceTx(_ context.Context, _ *sql.Tx, reportID, invoiceID int64) error {
	if f.stamped == nil {
		f.stamped = make(map[int64]int64)
	}
	f.stamped[reportID] = invoiceID
	return nil
}

type fakeOrderReader struct {
	orders map[int64]*entity.WorkOrder
}

func (f *fakeOrderReader) GetByID(_ context.Context, id int64) (*entity.WorkOrder, error) {
	return f.orders[id], nil
}

type fakeInvoiceStore struct {
	number    string
	created   *entity.PartnerInvoice
	items     []*entity.PartnerInvoiceLineItem
	createErr error
}

func (f *fakeInvoiceStore) NextNumber(_ context.Context, year int) (string, error) {
	return f.number, nil
}

func (f *fakeInvoiceStore) CreateTx(_ context.Context, _ *sql.Tx, inv *entity.PartnerInvoice) error {
	if f.createErr != nil {
		return f.createErr
	}
	inv.ID = 501
	f.created = inv
	return nil
}

func (f *fakeInvoiceStore) InsertLineItemsTx(_ context.Context, _ *sql.Tx, items []*entity.PartnerInvoiceLineItem) error {
	f.items = items
	return nil
}

func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "billing_test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func approvedBill(id int64, number string, amount float64) *entity.SubcontractorBill {
	return &entity.SubcontractorBill{
		ID:                   id,
		Number:               number,
		TotalAmount:          amount,
		Status:               entity.BillStatusApproved,
		PartnerBillingStatus: entity.PartnerBillingPending,
	}
}

func approvedReport(id, workOrderID int64, amount float64) *entity.Report {
	return &entity.Report{
		ID:            id,
		WorkOrderID:   workOrderID,
		Status:        entity.ReportStatusApproved,
		InvoiceAmount: &amount,
	}
}

func newTestGenerator(t *testing.T, bills *fakeBillSource, reports *fakeReportSource, orders *fakeOrderReader, invoices *fakeInvoiceStore) *Generator {
	t.Helper()
	return NewGenerator(testDB(t), bills, reports, orders, invoices, zap.NewNop())
}

func TestBuildLineItems_MarkupAndRounding(t *testing.T) {
	bills := []*entity.SubcontractorBill{approvedBill(1, "SB-2026-00001", 200)}
	amount := 150.555
	reports := []*entity.Report{approvedReport(7, 3, amount)}
	orders := map[int64]*entity.WorkOrder{3: {ID: 3, Number: "WO-2026-00003", Title: "HVAC repair"}}

	items, subtotal := BuildLineItems(bills, reports, orders, 10)
	require.Len(t, items, 2)

	assert.Equal(t, "Subcontractor bill SB-2026-00001", items[0].Description)
	assert.InDelta(t, 220.00, items[0].Amount, 0.001)
	require.NotNil(t, items[0].SourceBillID)
	assert.Equal(t, int64(1), *items[0].SourceBillID)

	// 150.555 * 1.1 = 165.6105, rounded per line
	assert.Equal(t, "Work order WO-2026-00003: HVAC repair", items[1].Description)
	assert.InDelta(t, 165.61, items[1].Amount, 0.001)
	require.NotNil(t, items[1].SourceRepID)
	assert.Equal(t, int64(7), *items[1].SourceRepID)

	assert.InDelta(t, 350.56, subtotal, 0.001)
	assert.InDelta(t, 385.61, SumLineItems(items), 0.001)
}

func TestBuildLineItems_ExternalReference(t *testing.T) {
	bill := approvedBill(1, "SB-2026-00001", 100)
	bill.ExternalNumber = "INV-991"

	items, _ := BuildLineItems([]*entity.SubcontractorBill{bill}, nil, nil, 0)
	require.Len(t, items, 1)
	assert.Equal(t, "Subcontractor bill SB-2026-00001 (ref INV-991)", items[0].Description)
	assert.InDelta(t, 100.00, items[0].Amount, 0.001)
}

func TestGenerator_Generate_Success(t *testing.T) {
	billSrc := &fakeBillSource{bills: map[int64]*entity.SubcontractorBill{
		1: approvedBill(1, "SB-2026-00001", 200),
	}}
	repSrc := &fakeReportSource{reports: map[int64]*entity.Report{
		7: approvedReport(7, 3, 100),
	}}
	orderSrc := &fakeOrderReader{orders: map[int64]*entity.WorkOrder{
		3: {ID: 3, Number: "WO-2026-00003", Title: "Roof patch"},
	}}
	invStore := &fakeInvoiceStore{number: "PI-2026-00001"}

	gen := newTestGenerator(t, billSrc, repSrc, orderSrc, invStore)

	inv, items, err := gen.Generate(context.Background(), GenerateInput{
		PartnerOrgID:     11,
		BillIDs:          []int64{1},
		ReportIDs:        []int64{7},
		MarkupPercentage: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, "PI-2026-00001", inv.Number)
	assert.Equal(t, int64(11), inv.PartnerOrgID)
	assert.InDelta(t, 300.00, inv.Subtotal, 0.001)
	assert.InDelta(t, 330.00, inv.TotalAmount, 0.001)

	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, int64(501), item.InvoiceID)
	}

	assert.Equal(t, []int64{1}, billSrc.invoiced)
	assert.Equal(t, int64(501), repSrc.stamped[7])
}

func TestGenerator_Generate_NoSources(t *testing.T) {
	gen := newTestGenerator(t, &fakeBillSource{}, &fakeReportSource{}, &fakeOrderReader{}, &fakeInvoiceStore{})

	_, _, err := gen.Generate(context.Background(), GenerateInput{PartnerOrgID: 11, MarkupPercentage: 10})
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestGenerator_Generate_RejectsUnbillableSources(t *testing.T) {
	submitted := approvedBill(2, "SB-2026-00002", 50)
	submitted.Status = entity.BillStatusSubmitted

	consumed := approvedBill(3, "SB-2026-00003", 50)
	consumed.PartnerBillingStatus = entity.PartnerBillingInvoiced

	rejectedReport := approvedReport(8, 3, 100)
	rejectedReport.Status = entity.ReportStatusRejected

	stampedID := int64(44)
	invoicedReport := approvedReport(9, 3, 100)
	invoicedReport.PartnerInvoiceID = &stampedID

	zeroReport := approvedReport(10, 3, 0)

	tests := []struct {
		name      string
		billIDs   []int64
		reportIDs []int64
	}{
		{"missing bill", []int64{99}, nil},
		{"unapproved bill", []int64{2}, nil},
		{"already invoiced bill", []int64{3}, nil},
		{"missing report", nil, []int64{99}},
		{"unapproved report", nil, []int64{8}},
		{"already invoiced report", nil, []int64{9}},
		{"report without billable amount", nil, []int64{10}},
	}

	billSrc := &fakeBillSource{bills: map[int64]*entity.SubcontractorBill{2: submitted, 3: consumed}}
	repSrc := &fakeReportSource{reports: map[int64]*entity.Report{8: rejectedReport, 9: invoicedReport, 10: zeroReport}}
	orderSrc := &fakeOrderReader{orders: map[int64]*entity.WorkOrder{3: {ID: 3}}}
	gen := newTestGenerator(t, billSrc, repSrc, orderSrc, &fakeInvoiceStore{number: "PI-2026-00001"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := gen.Generate(context.Background(), GenerateInput{
				PartnerOrgID:     11,
				BillIDs:          tt.billIDs,
				ReportIDs:        tt.reportIDs,
				MarkupPercentage: 10,
			})
			assert.ErrorIs(t, err, ErrSourceNotBillable)
		})
	}
}

func TestGenerator_Generate_TotalMismatch(t *testing.T) {
	billSrc := &fakeBillSource{bills: map[int64]*entity.SubcontractorBill{
		1: approvedBill(1, "SB-2026-00001", 200),
	}}
	gen := newTestGenerator(t, billSrc, &fakeReportSource{}, &fakeOrderReader{}, &fakeInvoiceStore{number: "PI-2026-00001"})

	wrong := 500.00
	_, _, err := gen.Generate(context.Background(), GenerateInput{
		PartnerOrgID:     11,
		BillIDs:          []int64{1},
		MarkupPercentage: 10,
		SuppliedTotal:    &wrong,
	})
	assert.ErrorIs(t, err, ErrTotalMismatch)

	// Within a cent passes
	within := 220.004
	_, _, err = gen.Generate(context.Background(), GenerateInput{
		PartnerOrgID:     11,
		BillIDs:          []int64{1},
		MarkupPercentage: 10,
		SuppliedTotal:    &within,
	})
	assert.NoError(t, err)
}

func TestGenerator_Generate_TxFailureConsumesNothing(t *testing.T) {
	billSrc := &fakeBillSource{
		bills: map[int64]*entity.SubcontractorBill{1: approvedBill(1, "SB-2026-00001", 200)},
		txErr: errors.New("disk I/O error"),
	}
	gen := newTestGenerator(t, billSrc, &fakeReportSource{}, &fakeOrderReader{}, &fakeInvoiceStore{number: "PI-2026-00001"})

	_, _, err := gen.Generate(context.Background(), GenerateInput{
		PartnerOrgID:     11,
		BillIDs:          []int64{1},
		MarkupPercentage: 10,
	})
	require.Error(t, err)
	assert.Empty(t, billSrc.invoiced)
}

func TestGenerator_Generate_InvalidMarkup(t *testing.T) {
	gen := newTestGenerator(t, &fakeBillSource{}, &fakeReportSource{}, &fakeOrderReader{}, &fakeInvoiceStore{})

	for _, pct := range []float64{-1, 101} {
		_, _, err := gen.Generate(context.Background(), GenerateInput{
			PartnerOrgID:     11,
			BillIDs:          []int64{1},
			MarkupPercentage: pct,
		})
		assert.Error(t, err)
	}
}
