package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are emitted as JSON numbers, matching the public API shapes.
	decimal.MarshalJSONWithoutQuotes = true
}

// Workflow steps recorded in ProcessingRecord.CurrentStep.
const (
	StepInitialized         = "initialized"
	StepOCRCompleted        = "ocr_completed"
	StepValidationCompleted = "validation_completed"
	StepCodingCompleted     = "coding_completed"
	StepApprovalDetermined  = "approval_determined"
	StepCompleted           = "completed"
)

// Routes selected by the conditional edge after validation.
const (
	RouteContinue      = "continue"
	RouteClarification = "clarification"
	RouteReject        = "reject"
)

// Approval levels.
const (
	ApprovalLevelAuto     = "auto"
	ApprovalLevelManager  = "manager"
	ApprovalLevelDirector = "director"
	ApprovalLevelCFO      = "cfo"
)

type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

type AccountingEntry struct {
	Account     string          `json:"account"`
	CostCenter  string          `json:"cost_center"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type PurchaseOrder struct {
	PONumber         string          `json:"po_number"`
	AuthorizedAmount decimal.Decimal `json:"authorized_amount"`
	Status           string          `json:"status"`
}

// ExtractedFields is the structured output of the field extractor.
type ExtractedFields struct {
	InvoiceNumber string
	SupplierName  string
	SupplierTaxID string
	InvoiceDate   *time.Time
	DueDate       *time.Time
	TotalAmount   decimal.NullDecimal
	TaxAmount     decimal.NullDecimal
	NetAmount     decimal.NullDecimal
	Currency      string
	PONumber      string
	LineItems     []LineItem

	// EarlyPaymentDiscount is the offered cash discount in percent.
	EarlyPaymentDiscount decimal.NullDecimal
}

// ProcessingRecord is the shared state threaded through every workflow stage.
type ProcessingRecord struct {
	InvoiceID      string `json:"invoice_id"`
	DocumentPath   string `json:"document_path"`
	DocumentFormat string `json:"document_format"`
	DocumentText   string `json:"-"`

	InvoiceNumber string              `json:"invoice_number"`
	SupplierName  string              `json:"supplier_name"`
	SupplierTaxID string              `json:"supplier_tax_id"`
	InvoiceDate   *time.Time          `json:"invoice_date"`
	DueDate       *time.Time          `json:"due_date"`
	TotalAmount   decimal.NullDecimal `json:"total_amount"`
	TaxAmount     decimal.NullDecimal `json:"tax_amount"`
	NetAmount     decimal.NullDecimal `json:"net_amount"`
	Currency      string              `json:"currency"`
	PONumber      string              `json:"po_number"`
	LineItems     []LineItem          `json:"line_items"`

	EarlyPaymentDiscount decimal.Decimal `json:"early_payment_discount"`

	ValidationErrors  []string `json:"validation_errors"`
	ConfidenceScore   float64  `json:"confidence_score"`
	IsValid           bool     `json:"is_valid"`
	FraudDetected     bool     `json:"fraud_detected"`
	DuplicateDetected bool     `json:"duplicate_detected"`

	POMatched  bool           `json:"po_matched"`
	POData     *PurchaseOrder `json:"po_data"`
	SupplierID string         `json:"supplier_id"`

	GLAccount         string            `json:"gl_account"`
	CostCenter        string            `json:"cost_center"`
	AccountingEntries []AccountingEntry `json:"accounting_entries"`

	RequiresApproval  bool            `json:"requires_approval"`
	ApprovalThreshold decimal.Decimal `json:"approval_threshold"`
	ApprovalLevel     string          `json:"approval_level"`
	ApproverID        *int64          `json:"approver_id"`

	CurrentStep          string           `json:"current_step"`
	Route                string           `json:"route"`
	IsTouchless          bool             `json:"is_touchless"`
	ProcessingErrors     []string         `json:"processing_errors"`
	ClarificationNeeded  bool             `json:"clarification_needed"`
	ClarificationMessage string           `json:"clarification_message"`
	FinalStatus          InvoiceStatus    `json:"final_status"`
	ProcessingStatus     ProcessingStatus `json:"processing_status"`

	ProcessedAt    *time.Time `json:"processed_at"`
	ProcessingTime float64    `json:"processing_time"`
}

// NewProcessingRecord returns a record with every field at its workflow-start default.
func NewProcessingRecord(invoiceID, documentPath, documentFormat string) *ProcessingRecord {
	return &ProcessingRecord{
		InvoiceID:        invoiceID,
		DocumentPath:     documentPath,
		DocumentFormat:   documentFormat,
		ValidationErrors: []string{},
		ProcessingErrors: []string{},
		IsValid:          true,
		CurrentStep:      StepInitialized,
	}
}

// MarkRequiresApproval sets RequiresApproval. It never clears the flag.
func (r *ProcessingRecord) MarkRequiresApproval() {
	r.RequiresApproval = true
}

func (r *ProcessingRecord) AddProcessingError(msg string) {
	r.ProcessingErrors = append(r.ProcessingErrors, msg)
}

// Total returns the total amount, zero when not extracted.
func (r *ProcessingRecord) Total() decimal.Decimal { return amountOrZero(r.TotalAmount) }

func (r *ProcessingRecord) Tax() decimal.Decimal { return amountOrZero(r.TaxAmount) }

func (r *ProcessingRecord) Net() decimal.Decimal { return amountOrZero(r.NetAmount) }

// ApplyExtraction copies extractor output into the record with the documented defaults.
func (r *ProcessingRecord) ApplyExtraction(fields ExtractedFields) {
	r.InvoiceNumber = fields.InvoiceNumber
	r.SupplierName = fields.SupplierName
	r.SupplierTaxID = fields.SupplierTaxID
	r.InvoiceDate = fields.InvoiceDate
	r.DueDate = fields.DueDate
	r.TotalAmount = decimal.NewNullDecimal(amountOrZero(fields.TotalAmount))
	r.TaxAmount = decimal.NewNullDecimal(amountOrZero(fields.TaxAmount))
	r.NetAmount = decimal.NewNullDecimal(amountOrZero(fields.NetAmount))
	r.Currency = fields.Currency
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	r.PONumber = fields.PONumber
	r.EarlyPaymentDiscount = amountOrZero(fields.EarlyPaymentDiscount)
	r.LineItems = fields.LineItems
	if r.LineItems == nil {
		r.LineItems = []LineItem{}
	}
}

func amountOrZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}
