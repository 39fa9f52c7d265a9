package entity

import "time"

// OCR processing statuses for a receipt attachment
const (
	OCRStatusPending   = "pending"
	OCRStatusRunning   = "running"
	OCRStatusCompleted = "completed"
	OCRStatusFailed    = "failed"
)

// Receipt has a fixed total amount distributed across work orders by its
// allocations. Sum(allocations) must never exceed Amount.
type Receipt struct {
	ID             int64
	UID            string // uuid used for storage object keys and OCR job slots
	OrganizationID int64
	Vendor         string
	Amount         float64
	AttachmentPath string
	AttachmentURL  string
	OCRStatus      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReceiptAllocation assigns a portion of a receipt's total to one work order.
// Work order IDs are unique within one receipt's allocation set.
type ReceiptAllocation struct {
	ID          int64
	ReceiptID   int64
	WorkOrderID int64
	Amount      float64
	CreatedAt   time.Time
}

// OCRField is a single extracted value with a confidence score in [0,1]
type OCRField struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// OCRLineItem is one extracted line-item guess
type OCRLineItem struct {
	Description OCRField `json:"description"`
	Amount      OCRField `json:"amount"`
}

// OCRResult holds structured vendor/total/line-item guesses for a receipt
type OCRResult struct {
	Vendor    OCRField      `json:"vendor"`
	Total     OCRField      `json:"total"`
	Date      OCRField      `json:"date"`
	LineItems []OCRLineItem `json:"line_items"`
}
