package core

import "context"

// Row field names accepted by EditRow and reported in FieldError.Field.
const (
	FieldDate        = "date"
	FieldAmount      = "amount"
	FieldDescription = "description"
	FieldCategory    = "category"
	FieldCategoryID  = "categoryId"
)

// Receipt is a binary attachment that already passed the attachment validator.
type Receipt struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Data        []byte `json:"-"`
}

// RawRow is one record as produced by a file parser.
type RawRow struct {
	Date        string
	Amount      string
	Description string
	Category    string
	CategoryID  string
	Receipt     *Receipt
}

// WorkingRow is the editable client-side representation of one import record.
// ID is generated at ingestion and never reused.
type WorkingRow struct {
	ID           string   `json:"id"`
	Date         string   `json:"date"`
	Amount       string   `json:"amount"`
	Description  string   `json:"description"`
	Category     string   `json:"category,omitempty"`
	CategoryID   string   `json:"categoryId,omitempty"`
	Receipt      *Receipt `json:"receipt,omitempty"`
	ReceiptError string   `json:"receiptError,omitempty"`
	ImportError  string   `json:"importError,omitempty"` // Server-reported failure from the last submit
}

// FieldError is a single field-level validation problem.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ImportErrorRecord is the server's report of a row it could not persist.
// Row is the 1-based position in the submitted batch.
type ImportErrorRecord struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
	RowID   string `json:"rowId,omitempty"` // Filled in by reconciliation
}

// SubmitRow is the wire form of a WorkingRow, without client-only fields.
type SubmitRow struct {
	Date        string          `json:"date"`
	Amount      string          `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	CategoryID  string          `json:"categoryId,omitempty"`
	Receipt     *ReceiptPayload `json:"receipt,omitempty"`
}

// ReceiptPayload carries receipt bytes to the batch endpoint (base64 in JSON).
type ReceiptPayload struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// BatchRequest is the body sent to the batch endpoint.
type BatchRequest struct {
	Rows []SubmitRow `json:"rows"`
}

// ImportedRow is a row the server persisted.
type ImportedRow struct {
	ID          string `json:"id,omitempty"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// BatchResponse is the batch endpoint's per-row outcome report.
type BatchResponse struct {
	Imported []ImportedRow        `json:"imported"`
	Errored  []ImportErrorRecord `json:"errored"`
}

// Submitter sends an ordered batch to the remote store.
// A returned error means no structurally valid response was received.
type Submitter interface {
	Submit(ctx context.Context, rows []SubmitRow) (*BatchResponse, error)
}

// LoadFunc produces the raw rows of one file. It must honor ctx cancellation.
type LoadFunc func(ctx context.Context) ([]RawRow, error)
