package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

// SystemUserID marks actions performed by the workflow rather than a person.
const SystemUserID int64 = 0

type InvoiceStatus string

const (
	InvoiceStatusPending  InvoiceStatus = "pending"
	InvoiceStatusApproved InvoiceStatus = "approved"
	InvoiceStatusRejected InvoiceStatus = "rejected"
)

type ProcessingStatus string

const (
	ProcessingInbox                ProcessingStatus = "inbox"
	ProcessingInProgress           ProcessingStatus = "processing"
	ProcessingPendingClarification ProcessingStatus = "pending_clarification"
	ProcessingPendingApproval      ProcessingStatus = "pending_approval"
	ProcessingPendingReview        ProcessingStatus = "pending_review"
	ProcessingCompleted            ProcessingStatus = "completed"
	ProcessingRejectedFraud        ProcessingStatus = "rejected_fraud"
	ProcessingFailed               ProcessingStatus = "failed"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Invoice struct {
	ID                    string           `json:"id"`
	InvoiceNumber         string           `json:"invoice_number"`
	SupplierID            string           `json:"supplier_id,omitempty"`
	InvoiceDate           *time.Time       `json:"invoice_date"`
	DueDate               *time.Time       `json:"due_date"`
	TotalAmount           decimal.Decimal  `json:"total_amount"`
	TaxAmount             decimal.Decimal  `json:"tax_amount"`
	NetAmount             decimal.Decimal  `json:"net_amount"`
	Currency              string           `json:"currency"`
	PONumber              string           `json:"po_number,omitempty"`
	POMatched             bool             `json:"po_matched"`
	Status                InvoiceStatus    `json:"status"`
	ProcessingStatus      ProcessingStatus `json:"processing_status"`
	ConfidenceScore       float64          `json:"confidence_score"`
	IsTouchless           bool             `json:"is_touchless"`
	ExtractedData         json.RawMessage  `json:"-"`
	ValidationErrors      []string         `json:"validation_errors"`
	EarlyPaymentDiscount  decimal.Decimal  `json:"early_payment_discount"`
	GLAccount             string           `json:"gl_account,omitempty"`
	CostCenter            string           `json:"cost_center,omitempty"`
	DocumentPath          string           `json:"document_path"`
	DocumentFormat        string           `json:"document_format"`
	ApprovalStatus        ApprovalStatus   `json:"approval_status"`
	ApprovalLevel         string           `json:"approval_level,omitempty"`
	ApproverID            *int64           `json:"approver_id,omitempty"`
	ApprovedBy            *int64           `json:"approved_by,omitempty"`
	ApprovedAt            *time.Time       `json:"approved_at,omitempty"`
	RejectionReason       string           `json:"rejection_reason,omitempty"`
	Notes                 string           `json:"notes,omitempty"`
	ProcessingError       string           `json:"processing_error,omitempty"`
	ProcessingTimeSeconds float64          `json:"processing_time_seconds"`
	UploadedBy            int64            `json:"uploaded_by"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// InvoiceUpdate carries the manually editable fields; nil means unchanged.
type InvoiceUpdate struct {
	Status           *InvoiceStatus    `json:"status,omitempty"`
	ProcessingStatus *ProcessingStatus `json:"processing_status,omitempty"`
	GLAccount        *string           `json:"gl_account,omitempty"`
	CostCenter       *string           `json:"cost_center,omitempty"`
	Notes            *string           `json:"notes,omitempty"`

	EarlyPaymentDiscount *decimal.Decimal `json:"early_payment_discount,omitempty"`
}

func (u InvoiceUpdate) IsEmpty() bool {
	return u.Status == nil && u.ProcessingStatus == nil && u.GLAccount == nil && u.CostCenter == nil && u.Notes == nil &&
		u.EarlyPaymentDiscount == nil
}

func (u InvoiceUpdate) Apply(inv *Invoice) {
	if u.Status != nil {
		inv.Status = *u.Status
	}
	if u.ProcessingStatus != nil {
		inv.ProcessingStatus = *u.ProcessingStatus
	}
	if u.GLAccount != nil {
		inv.GLAccount = *u.GLAccount
	}
	if u.CostCenter != nil {
		inv.CostCenter = *u.CostCenter
	}
	if u.Notes != nil {
		inv.Notes = *u.Notes
	}
	if u.EarlyPaymentDiscount != nil {
		inv.EarlyPaymentDiscount = *u.EarlyPaymentDiscount
	}
}

type InvoiceFilter struct {
	Status InvoiceStatus
	Skip   int
	Limit  int
}

type InvoiceStats struct {
	TotalInvoices     int     `json:"total_invoices"`
	PendingInvoices   int     `json:"pending_invoices"`
	ApprovedInvoices  int     `json:"approved_invoices"`
	RejectedInvoices  int     `json:"rejected_invoices"`
	TouchlessRate     float64 `json:"touchless_rate"`
	AvgProcessingTime float64 `json:"avg_processing_time"`
}

type DashboardMetrics struct {
	IncomingInvoices       int             `json:"incoming_invoices"`
	TouchlessBookings      float64         `json:"touchless_bookings"`
	DaysPayableOutstanding float64         `json:"days_payable_outstanding"`
	RealizedCashDiscounts  float64         `json:"realized_cash_discounts"`
	InvoiceCycleTime       float64         `json:"invoice_cycle_time"`
	PendingClarifications  int             `json:"pending_clarifications"`
	OpenPayables           decimal.Decimal `json:"open_payables"`
}

// LedgerLine is one accounting entry tied to its invoice, used for ERP export.
type LedgerLine struct {
	InvoiceID     string
	InvoiceNumber string
	Currency      string
	Entry         AccountingEntry
}
