package workflow

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

func newTestProcessor(t *testing.T, ext *fakeExtractor, dups fakeDuplicates) *Processor {
	t.Helper()
	p, err := NewProcessor(Options{
		Source:     &fakeTextSource{text: "invoice text"},
		Extractor:  ext,
		Duplicates: dups,
	})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	return p
}

func smallInvoiceFields() domain.ExtractedFields {
	fields := validFields()
	fields.TotalAmount = decimal.NewNullDecimal(decimal.NewFromInt(550))
	fields.TaxAmount = decimal.NewNullDecimal(decimal.NewFromInt(50))
	fields.NetAmount = decimal.NewNullDecimal(decimal.NewFromInt(500))
	fields.InvoiceDate = day(2025, 1, 10)
	fields.DueDate = day(2025, 2, 9)
	return fields
}

func TestNewProcessorRequiresExtractor(t *testing.T) {
	if _, err := NewProcessor(Options{}); err == nil {
		t.Fatalf("expected error without extractor")
	}
}

func TestProcessorTouchlessInvoice(t *testing.T) {
	p := newTestProcessor(t, &fakeExtractor{fields: smallInvoiceFields()}, fakeDuplicates{})
	rec, err := p.Process(context.Background(), Document{InvoiceID: "inv-1", Path: "inv-1_a.pdf", Format: "pdf"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if rec.Route != domain.RouteContinue {
		t.Fatalf("Route = %q", rec.Route)
	}
	if rec.GLAccount != "5000" || len(rec.AccountingEntries) != 3 {
		t.Fatalf("coding = %q with %d entries", rec.GLAccount, len(rec.AccountingEntries))
	}
	if !rec.IsTouchless || rec.FinalStatus != domain.InvoiceStatusApproved || rec.ProcessingStatus != domain.ProcessingCompleted {
		t.Fatalf("touchless=%v final=%q processing=%q", rec.IsTouchless, rec.FinalStatus, rec.ProcessingStatus)
	}
	if rec.CurrentStep != domain.StepCompleted || rec.ProcessedAt == nil || rec.ProcessingTime < 0 {
		t.Fatalf("step=%q processedAt=%v time=%v", rec.CurrentStep, rec.ProcessedAt, rec.ProcessingTime)
	}
}

func TestProcessorSmallInvoiceWithoutPurchaseOrderGoesToManager(t *testing.T) {
	fields := smallInvoiceFields()
	fields.PONumber = ""

	p := newTestProcessor(t, &fakeExtractor{fields: fields}, fakeDuplicates{})
	rec, err := p.Process(context.Background(), Document{InvoiceID: "inv-7"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if rec.Route != domain.RouteContinue {
		t.Fatalf("Route = %q", rec.Route)
	}
	if rec.IsTouchless || !rec.RequiresApproval {
		t.Fatalf("touchless=%v requiresApproval=%v", rec.IsTouchless, rec.RequiresApproval)
	}
	if rec.ApprovalLevel != domain.ApprovalLevelManager {
		t.Fatalf("ApprovalLevel = %q, want manager", rec.ApprovalLevel)
	}
	if rec.ApproverID == nil || *rec.ApproverID != 2 {
		t.Fatalf("ApproverID = %v, want 2", rec.ApproverID)
	}
	if rec.ProcessingStatus != domain.ProcessingPendingApproval {
		t.Fatalf("ProcessingStatus = %q", rec.ProcessingStatus)
	}
}

func TestProcessorLargeInvoiceAwaitsApproval(t *testing.T) {
	fields := validFields()
	fields.InvoiceDate = day(2025, 1, 10)
	fields.DueDate = day(2025, 2, 9)

	p := newTestProcessor(t, &fakeExtractor{fields: fields}, fakeDuplicates{})
	rec, err := p.Process(context.Background(), Document{InvoiceID: "inv-2"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if rec.ApprovalLevel != domain.ApprovalLevelManager {
		t.Fatalf("ApprovalLevel = %q", rec.ApprovalLevel)
	}
	if rec.FinalStatus != domain.InvoiceStatusPending || rec.ProcessingStatus != domain.ProcessingPendingApproval {
		t.Fatalf("final=%q processing=%q", rec.FinalStatus, rec.ProcessingStatus)
	}
}

func TestProcessorFraudSkipsCoding(t *testing.T) {
	fields := validFields()
	future := time.Now().AddDate(1, 0, 0)
	fields.InvoiceDate = &future
	due := future.AddDate(0, 1, 0)
	fields.DueDate = &due

	p := newTestProcessor(t, &fakeExtractor{fields: fields}, fakeDuplicates{})
	rec, err := p.Process(context.Background(), Document{InvoiceID: "inv-3"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if rec.Route != domain.RouteReject {
		t.Fatalf("Route = %q", rec.Route)
	}
	if rec.GLAccount != "" || len(rec.AccountingEntries) != 0 {
		t.Fatalf("coding must be skipped, got %q with %d entries", rec.GLAccount, len(rec.AccountingEntries))
	}
	if rec.FinalStatus != domain.InvoiceStatusRejected || rec.ProcessingStatus != domain.ProcessingRejectedFraud {
		t.Fatalf("final=%q processing=%q", rec.FinalStatus, rec.ProcessingStatus)
	}
}

func TestProcessorExtractionFailureEndsInClarification(t *testing.T) {
	p := newTestProcessor(t, &fakeExtractor{err: errors.New("model down")}, fakeDuplicates{})
	rec, err := p.Process(context.Background(), Document{InvoiceID: "inv-4"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if !reflect.DeepEqual(rec.ProcessingErrors, []string{"OCR error: extract fields: model down"}) {
		t.Fatalf("ProcessingErrors = %v", rec.ProcessingErrors)
	}
	if rec.Route != domain.RouteClarification || rec.ProcessingStatus != domain.ProcessingPendingClarification {
		t.Fatalf("route=%q processing=%q", rec.Route, rec.ProcessingStatus)
	}
	if rec.FinalStatus != domain.InvoiceStatusPending {
		t.Fatalf("FinalStatus = %q", rec.FinalStatus)
	}
}

func TestProcessorInlineText(t *testing.T) {
	ext := &fakeExtractor{fields: validFields()}
	p := newTestProcessor(t, ext, fakeDuplicates{})

	if _, err := p.Process(context.Background(), Document{InvoiceID: "inv-5", Text: "from cli"}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if ext.got != "from cli" {
		t.Fatalf("extractor got %q", ext.got)
	}
}

func TestProcessorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestProcessor(t, &fakeExtractor{fields: validFields()}, fakeDuplicates{})
	rec, err := p.Process(ctx, Document{InvoiceID: "inv-6"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Process() error = %v, want context.Canceled", err)
	}
	if rec == nil || rec.CurrentStep != domain.StepInitialized {
		t.Fatalf("unexpected record %+v", rec)
	}
}
