// Package export renders partner invoices as spreadsheet downloads.
package export

import (
	"fmt"
	"io"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const invoiceSheet = "Invoice"

// InvoiceExporter writes partner invoices as xlsx workbooks
type InvoiceExporter struct {
	companyName string
	logger      *zap.Logger
}

// NewInvoiceExporter creates a new invoice exporter
func NewInvoiceExporter(companyName string, logger *zap.Logger) *InvoiceExporter {
	return &InvoiceExporter{companyName: companyName, logger: logger}
}

// WriteInvoice renders the invoice and its line items as an xlsx workbook
func (e *InvoiceExporter) WriteInvoice(w io.Writer, inv *entity.PartnerInvoice, partner *entity.Organization, items []*entity.PartnerInvoiceLineItem) error {
	e.logger.Info("Exporting invoice",
		zap.String("invoice_number", inv.Number),
		zap.Int("line_items", len(items)))

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(invoiceSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		e.logger.Warn("Failed to remove default sheet", zap.Error(err))
	}

	e.setCell(f, "A1", e.companyName)
	e.setCell(f, "A2", "Partner Invoice")
	e.setCell(f, "A4", "Invoice Number")
	e.setCell(f, "B4", inv.Number)
	e.setCell(f, "A5", "Billed To")
	e.setCell(f, "B5", partner.Name)
	e.setCell(f, "A6", "Date")
	e.setCell(f, "B6", inv.CreatedAt.Format("2006-01-02"))
	e.setCell(f, "A7", "Status")
	e.setCell(f, "B7", inv.Status)

	// Line item table
	headerRow := 9
	e.setCell(f, fmt.Sprintf("A%d", headerRow), "Description")
	e.setCell(f, fmt.Sprintf("B%d", headerRow), "Amount")

	row := headerRow + 1
	for _, item := range items {
		e.setCell(f, fmt.Sprintf("A%d", row), item.Description)
		e.setCell(f, fmt.Sprintf("B%d", row), fmt.Sprintf("%.2f", item.Amount))
		row++
	}

	row++
	e.setCell(f, fmt.Sprintf("A%d", row), "Subtotal")
	e.setCell(f, fmt.Sprintf("B%d", row), fmt.Sprintf("%.2f", inv.Subtotal))
	row++
	e.setCell(f, fmt.Sprintf("A%d", row), fmt.Sprintf("Markup (%.1f%%)", inv.MarkupPercentage))
	e.setCell(f, fmt.Sprintf("B%d", row), fmt.Sprintf("%.2f", inv.TotalAmount-inv.Subtotal))
	row++
	e.setCell(f, fmt.Sprintf("A%d", row), "Total")
	e.setCell(f, fmt.Sprintf("B%d", row), fmt.Sprintf("%.2f", inv.TotalAmount))

	if err := f.SetColWidth(invoiceSheet, "A", "A", 48); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetColWidth(invoiceSheet, "B", "B", 16); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Invoice exported", zap.String("invoice_number", inv.Number))
	return nil
}

func (e *InvoiceExporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(invoiceSheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
