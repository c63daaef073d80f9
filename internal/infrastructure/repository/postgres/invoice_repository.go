package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

const invoiceColumns = `id, invoice_number, supplier_id, invoice_date, due_date, total_amount, tax_amount, net_amount,
	currency, po_number, po_matched, status, processing_status, confidence_score, is_touchless, extracted_data,
	validation_errors, early_payment_discount, gl_account, cost_center, document_path, document_format,
	approval_status, approval_level, approver_id, approved_by, approved_at, rejection_reason, notes,
	processing_error, processing_time_seconds, uploaded_by, created_at, updated_at`

type InvoiceRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	args, err := invoiceArgs(inv)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO invoices (`+invoiceColumns+`) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
	$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34
)
`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "insert invoice", err)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kindError(domain.ErrInvoiceNotFound, "get invoice", id)
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	return &inv, nil
}

func (r *InvoiceRepository) List(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+invoiceColumns+`
FROM invoices
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC
OFFSET $2 LIMIT $3
`, string(filter.Status), filter.Skip, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Invoice, 0, filter.Limit)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return out, nil
}

func (r *InvoiceRepository) Save(ctx context.Context, inv *domain.Invoice) error {
	args, err := invoiceArgs(inv)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE invoices SET
	invoice_number = $2, supplier_id = $3, invoice_date = $4, due_date = $5,
	total_amount = $6, tax_amount = $7, net_amount = $8, currency = $9, po_number = $10,
	po_matched = $11, status = $12, processing_status = $13, confidence_score = $14,
	is_touchless = $15, extracted_data = $16, validation_errors = $17, early_payment_discount = $18,
	gl_account = $19, cost_center = $20, document_path = $21, document_format = $22,
	approval_status = $23, approval_level = $24, approver_id = $25, approved_by = $26,
	approved_at = $27, rejection_reason = $28, notes = $29, processing_error = $30,
	processing_time_seconds = $31, uploaded_by = $32, created_at = $33, updated_at = $34
WHERE id = $1
`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "save invoice",
				fmt.Errorf("invoice number %q already exists", inv.InvoiceNumber))
		}
		return fmt.Errorf("save invoice: %w", err)
	}
	return expectOneRow(result, domain.ErrInvoiceNotFound, "save invoice", inv.ID)
}

func (r *InvoiceRepository) UpdateProcessingStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE invoices
SET processing_status = $2, processing_error = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, r.now())
	if err != nil {
		return fmt.Errorf("update invoice processing status: %w", err)
	}
	return expectOneRow(result, domain.ErrInvoiceNotFound, "update invoice processing status", id)
}

func (r *InvoiceRepository) ExistsByNumber(ctx context.Context, invoiceNumber, excludeID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM invoices WHERE invoice_number = $1 AND id <> $2)
`, invoiceNumber, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check invoice number: %w", err)
	}
	return exists, nil
}

func (r *InvoiceRepository) Stats(ctx context.Context) (domain.InvoiceStats, error) {
	var stats domain.InvoiceStats
	var touchless int
	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'pending'),
	COUNT(*) FILTER (WHERE status = 'approved'),
	COUNT(*) FILTER (WHERE status = 'rejected'),
	COUNT(*) FILTER (WHERE is_touchless),
	COALESCE(AVG(processing_time_seconds), 0)::float8
FROM invoices
`).Scan(
		&stats.TotalInvoices, &stats.PendingInvoices, &stats.ApprovedInvoices,
		&stats.RejectedInvoices, &touchless, &stats.AvgProcessingTime,
	)
	if err != nil {
		return domain.InvoiceStats{}, fmt.Errorf("invoice stats: %w", err)
	}
	stats.TouchlessRate = percent(touchless, stats.TotalInvoices, 2)
	stats.AvgProcessingTime = round(stats.AvgProcessingTime, 2)
	return stats, nil
}

// Dashboard aggregates the invoices created during the last window days.
func (r *InvoiceRepository) Dashboard(ctx context.Context, window int) (domain.DashboardMetrics, error) {
	now := r.now()
	since := now.AddDate(0, 0, -window)

	var m domain.DashboardMetrics
	var touchless, approved, discounted int
	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE is_touchless),
	COALESCE(AVG(EXTRACT(EPOCH FROM ($2 - invoice_date)) / 86400)
		FILTER (WHERE status = 'pending' AND invoice_date IS NOT NULL), 0)::float8,
	COUNT(*) FILTER (WHERE status = 'approved'),
	COUNT(*) FILTER (WHERE status = 'approved' AND early_payment_discount > 0),
	COALESCE(AVG(EXTRACT(EPOCH FROM (approved_at - created_at)) / 86400)
		FILTER (WHERE approved_at IS NOT NULL), 0)::float8,
	COUNT(*) FILTER (WHERE processing_status = 'pending_clarification'),
	COALESCE(SUM(total_amount) FILTER (WHERE status = 'pending'), 0)
FROM invoices
WHERE created_at >= $1
`, since, now).Scan(
		&m.IncomingInvoices, &touchless, &m.DaysPayableOutstanding, &approved, &discounted,
		&m.InvoiceCycleTime, &m.PendingClarifications, &m.OpenPayables,
	)
	if err != nil {
		return domain.DashboardMetrics{}, fmt.Errorf("dashboard metrics: %w", err)
	}
	m.TouchlessBookings = percent(touchless, m.IncomingInvoices, 1)
	m.RealizedCashDiscounts = percent(discounted, approved, 1)
	m.DaysPayableOutstanding = round(m.DaysPayableOutstanding, 1)
	m.InvoiceCycleTime = round(m.InvoiceCycleTime, 1)
	return m, nil
}

// LedgerLines expands the accounting entries stored in each invoice's processing record.
func (r *InvoiceRepository) LedgerLines(ctx context.Context, status domain.InvoiceStatus) ([]domain.LedgerLine, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, COALESCE(invoice_number, ''), currency, extracted_data
FROM invoices
WHERE status = $1 AND extracted_data IS NOT NULL
ORDER BY created_at
`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list ledger invoices: %w", err)
	}
	defer rows.Close()

	var lines []domain.LedgerLine
	for rows.Next() {
		var id, number, currency string
		var raw []byte
		if err := rows.Scan(&id, &number, &currency, &raw); err != nil {
			return nil, fmt.Errorf("scan ledger invoice: %w", err)
		}
		var rec struct {
			InvoiceNumber     string                   `json:"invoice_number"`
			AccountingEntries []domain.AccountingEntry `json:"accounting_entries"`
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode processing record of invoice %s: %w", id, err)
		}
		// Duplicates are stored without a column number.
		if number == "" {
			number = rec.InvoiceNumber
		}
		for _, entry := range rec.AccountingEntries {
			lines = append(lines, domain.LedgerLine{
				InvoiceID:     id,
				InvoiceNumber: number,
				Currency:      currency,
				Entry:         entry,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger invoices: %w", err)
	}
	return lines, nil
}

func invoiceArgs(inv *domain.Invoice) ([]interface{}, error) {
	validation := inv.ValidationErrors
	if validation == nil {
		validation = []string{}
	}
	validationJSON, err := json.Marshal(validation)
	if err != nil {
		return nil, fmt.Errorf("marshal validation errors: %w", err)
	}
	var extracted interface{}
	if len(inv.ExtractedData) > 0 {
		extracted = []byte(inv.ExtractedData)
	}

	return []interface{}{
		inv.ID, nullIfEmpty(inv.InvoiceNumber), nullIfEmpty(inv.SupplierID), inv.InvoiceDate, inv.DueDate,
		inv.TotalAmount, inv.TaxAmount, inv.NetAmount,
		inv.Currency, inv.PONumber, inv.POMatched, string(inv.Status), string(inv.ProcessingStatus),
		inv.ConfidenceScore, inv.IsTouchless, extracted,
		validationJSON, inv.EarlyPaymentDiscount, inv.GLAccount, inv.CostCenter, inv.DocumentPath, inv.DocumentFormat,
		string(inv.ApprovalStatus), inv.ApprovalLevel, inv.ApproverID, inv.ApprovedBy, inv.ApprovedAt,
		inv.RejectionReason, inv.Notes,
		inv.ProcessingError, inv.ProcessingTimeSeconds, inv.UploadedBy, inv.CreatedAt, inv.UpdatedAt,
	}, nil
}

func scanInvoice(row rowScanner) (domain.Invoice, error) {
	var inv domain.Invoice
	var number, supplierID sql.NullString
	var status, processingStatus, approvalStatus string
	var extracted, validation []byte
	err := row.Scan(
		&inv.ID, &number, &supplierID, &inv.InvoiceDate, &inv.DueDate,
		&inv.TotalAmount, &inv.TaxAmount, &inv.NetAmount,
		&inv.Currency, &inv.PONumber, &inv.POMatched, &status, &processingStatus,
		&inv.ConfidenceScore, &inv.IsTouchless, &extracted,
		&validation, &inv.EarlyPaymentDiscount, &inv.GLAccount, &inv.CostCenter, &inv.DocumentPath, &inv.DocumentFormat,
		&approvalStatus, &inv.ApprovalLevel, &inv.ApproverID, &inv.ApprovedBy, &inv.ApprovedAt,
		&inv.RejectionReason, &inv.Notes,
		&inv.ProcessingError, &inv.ProcessingTimeSeconds, &inv.UploadedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.InvoiceNumber = number.String
	inv.SupplierID = supplierID.String
	inv.Status = domain.InvoiceStatus(status)
	inv.ProcessingStatus = domain.ProcessingStatus(processingStatus)
	inv.ApprovalStatus = domain.ApprovalStatus(approvalStatus)
	if len(extracted) > 0 {
		inv.ExtractedData = json.RawMessage(extracted)
	}
	inv.ValidationErrors = []string{}
	if len(validation) > 0 {
		if err := json.Unmarshal(validation, &inv.ValidationErrors); err != nil {
			return domain.Invoice{}, fmt.Errorf("unmarshal validation errors: %w", err)
		}
	}
	return inv, nil
}

func percent(part, whole, places int) float64 {
	if whole == 0 {
		return 0
	}
	return round(float64(part)/float64(whole)*100, places)
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
