package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

var invoiceColumnNames = []string{
	"id", "invoice_number", "supplier_id", "invoice_date", "due_date", "total_amount", "tax_amount", "net_amount",
	"currency", "po_number", "po_matched", "status", "processing_status", "confidence_score", "is_touchless", "extracted_data",
	"validation_errors", "early_payment_discount", "gl_account", "cost_center", "document_path", "document_format",
	"approval_status", "approval_level", "approver_id", "approved_by", "approved_at", "rejection_reason", "notes",
	"processing_error", "processing_time_seconds", "uploaded_by", "created_at", "updated_at",
}

func newInvoiceRepoWithMock(t *testing.T) (*InvoiceRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewInvoiceRepository(db)
	repo.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return repo, mock, func() { _ = db.Close() }
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(schemaLockID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInvoiceGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newInvoiceRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM invoices WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInvoiceGetByIDScansNullableColumns(t *testing.T) {
	repo, mock, done := newInvoiceRepoWithMock(t)
	defer done()

	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(invoiceColumnNames).AddRow(
		"inv-1", nil, nil, nil, nil, "0.00", "0.00", "0.00",
		"USD", "", false, "pending", "inbox", 0.0, false, nil,
		[]byte(`[]`), "0.00", "", "", "abc_invoice.pdf", "pdf",
		"pending", "", nil, nil, nil, "", "",
		"", 0.0, int64(1), created, created,
	)
	mock.ExpectQuery("FROM invoices WHERE id").WithArgs("inv-1").WillReturnRows(rows)

	inv, err := repo.GetByID(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if inv.InvoiceNumber != "" || inv.InvoiceDate != nil || inv.ApproverID != nil {
		t.Fatalf("expected empty optional fields, got %+v", inv)
	}
	if inv.ProcessingStatus != domain.ProcessingInbox || inv.DocumentFormat != "pdf" {
		t.Fatalf("unexpected invoice: %+v", inv)
	}
	if len(inv.ExtractedData) != 0 {
		t.Fatalf("expected no extracted data, got %s", inv.ExtractedData)
	}
}

func TestInvoiceUpdateProcessingStatusReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newInvoiceRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE invoices").
		WithArgs("missing", string(domain.ProcessingInProgress), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateProcessingStatus(context.Background(), "missing", domain.ProcessingInProgress, "")
	if !domain.IsKind(err, domain.ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInvoiceSaveMapsUniqueViolationToConflict(t *testing.T) {
	repo, mock, done := newInvoiceRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE invoices SET").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	err := repo.Save(context.Background(), &domain.Invoice{ID: "inv-1", InvoiceNumber: "INV-1"})
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestInvoiceExistsByNumber(t *testing.T) {
	repo, mock, done := newInvoiceRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("INV-1", "inv-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.ExistsByNumber(context.Background(), "INV-1", "inv-2")
	if err != nil {
		t.Fatalf("ExistsByNumber() error = %v", err)
	}
	if !ok {
		t.Fatalf("expected invoice number to exist")
	}
}

func TestInvoiceStatsComputesTouchlessRate(t *testing.T) {
	repo, mock, done := newInvoiceRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM invoices").
		WillReturnRows(sqlmock.NewRows([]string{"total", "pending", "approved", "rejected", "touchless", "avg"}).
			AddRow(3, 1, 2, 0, 1, 4.256))

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalInvoices != 3 || stats.ApprovedInvoices != 2 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.TouchlessRate != 33.33 {
		t.Fatalf("expected touchless rate 33.33, got %v", stats.TouchlessRate)
	}
	if stats.AvgProcessingTime != 4.26 {
		t.Fatalf("expected avg 4.26, got %v", stats.AvgProcessingTime)
	}
}

func TestInvoiceDashboardUsesWindow(t *testing.T) {
	repo, mock, done := newInvoiceRepoWithMock(t)
	defer done()

	since := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("WHERE created_at >=").
		WithArgs(since, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f", "g", "h"}).
			AddRow(4, 3, 12.34, 2, 1, 1.06, 1, "1500.50"))

	m, err := repo.Dashboard(context.Background(), 30)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if m.IncomingInvoices != 4 || m.TouchlessBookings != 75 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if m.RealizedCashDiscounts != 50 || m.DaysPayableOutstanding != 12.3 || m.InvoiceCycleTime != 1.1 {
		t.Fatalf("unexpected derived metrics: %+v", m)
	}
	if !m.OpenPayables.Equal(decimal.RequireFromString("1500.50")) {
		t.Fatalf("unexpected open payables %s", m.OpenPayables)
	}
}

func TestInvoiceLedgerLinesExpandsAccountingEntries(t *testing.T) {
	repo, mock, done := newInvoiceRepoWithMock(t)
	defer done()

	record := []byte(`{"accounting_entries":[
		{"account":"5000","cost_center":"CC-100","debit":100,"credit":0,"description":"Acme"},
		{"account":"2000","cost_center":"","debit":0,"credit":100,"description":"AP - Acme"}
	]}`)
	mock.ExpectQuery("FROM invoices").
		WithArgs(string(domain.InvoiceStatusApproved)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoice_number", "currency", "extracted_data"}).
			AddRow("inv-1", "INV-1", "USD", record))

	lines, err := repo.LedgerLines(context.Background(), domain.InvoiceStatusApproved)
	if err != nil {
		t.Fatalf("LedgerLines() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Entry.Account != "5000" || !lines[1].Entry.Credit.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected lines: %+v", lines)
	}
	if lines[1].InvoiceNumber != "INV-1" {
		t.Fatalf("expected invoice number on line, got %+v", lines[1])
	}
}

func TestInvoiceLedgerLinesFallsBackToRecordNumber(t *testing.T) {
	repo, mock, done := newInvoiceRepoWithMock(t)
	defer done()

	record := []byte(`{"invoice_number":"INV-9","accounting_entries":[
		{"account":"5000","cost_center":"CC-100","debit":10,"credit":0,"description":"Acme"}
	]}`)
	mock.ExpectQuery("FROM invoices").
		WithArgs(string(domain.InvoiceStatusApproved)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoice_number", "currency", "extracted_data"}).
			AddRow("inv-2", "", "EUR", record))

	lines, err := repo.LedgerLines(context.Background(), domain.InvoiceStatusApproved)
	if err != nil {
		t.Fatalf("LedgerLines() error = %v", err)
	}
	if len(lines) != 1 || lines[0].InvoiceNumber != "INV-9" {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestInvoiceArgsStoreDuplicateWithoutNumber(t *testing.T) {
	args, err := invoiceArgs(&domain.Invoice{
		ID:                   "inv-2",
		EarlyPaymentDiscount: decimal.NewFromInt(2),
		ExtractedData:        []byte(`{"invoice_number":"INV-1","duplicate_detected":true}`),
	})
	if err != nil {
		t.Fatalf("invoiceArgs() error = %v", err)
	}
	if args[1] != nil {
		t.Fatalf("invoice_number arg = %v, want NULL", args[1])
	}
	if d, ok := args[17].(decimal.Decimal); !ok || !d.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("early_payment_discount arg = %v", args[17])
	}
}
