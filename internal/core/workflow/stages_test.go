package workflow

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

type fakeTextSource struct {
	text  string
	err   error
	calls int
}

func (f *fakeTextSource) Text(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeExtractor struct {
	fields domain.ExtractedFields
	err    error
	got    string
}

func (f *fakeExtractor) ExtractFields(_ context.Context, text string) (domain.ExtractedFields, error) {
	f.got = text
	return f.fields, f.err
}

type fakeDuplicates struct {
	dup bool
	err error
}

func (f fakeDuplicates) IsDuplicate(context.Context, *domain.ProcessingRecord) (bool, error) {
	return f.dup, f.err
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func validFields() domain.ExtractedFields {
	return domain.ExtractedFields{
		InvoiceNumber: "INV-2026-001",
		SupplierName:  "Acme Cloud Services",
		SupplierTaxID: "DE123456789",
		InvoiceDate:   day(2026, 1, 10),
		DueDate:       day(2026, 2, 9),
		TotalAmount:   decimal.NewNullDecimal(decimal.RequireFromString("1100.00")),
		TaxAmount:     decimal.NewNullDecimal(decimal.RequireFromString("100.00")),
		NetAmount:     decimal.NewNullDecimal(decimal.RequireFromString("1000.00")),
		Currency:      "EUR",
		PONumber:      "PO-4711",
	}
}

func extractedRecord(fields domain.ExtractedFields) *domain.ProcessingRecord {
	rec := domain.NewProcessingRecord("inv-1", "inv-1_a.pdf", "pdf")
	rec.ApplyExtraction(fields)
	rec.ConfidenceScore = DefaultExtractionConfidence
	return rec
}

func newTestValidation(dups fakeDuplicates, poPrefix string) *ValidationStage {
	s := NewValidationStage(dups, poPrefix)
	s.now = func() time.Time { return fixedNow }
	return s
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func runStage(t *testing.T, stage interface {
	Run(context.Context, *domain.ProcessingRecord) error
}, rec *domain.ProcessingRecord) {
	t.Helper()
	if err := stage.Run(context.Background(), rec); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestExtractionStageUsesTextSource(t *testing.T) {
	src := &fakeTextSource{text: "Invoice INV-2026-001"}
	ext := &fakeExtractor{fields: validFields()}
	stage := NewExtractionStage(src, ext, 0)

	rec := domain.NewProcessingRecord("inv-1", "inv-1_a.pdf", "pdf")
	runStage(t, stage, rec)

	if src.calls != 1 || ext.got != "Invoice INV-2026-001" {
		t.Fatalf("source calls = %d, extractor got %q", src.calls, ext.got)
	}
	if rec.CurrentStep != domain.StepOCRCompleted {
		t.Fatalf("CurrentStep = %q", rec.CurrentStep)
	}
	if !approxEqual(rec.ConfidenceScore, 0.98) {
		t.Fatalf("ConfidenceScore = %v", rec.ConfidenceScore)
	}
	if rec.InvoiceNumber != "INV-2026-001" || rec.Currency != "EUR" {
		t.Fatalf("number=%q currency=%q", rec.InvoiceNumber, rec.Currency)
	}
	if rec.LineItems == nil {
		t.Fatalf("LineItems must not be nil")
	}
	if !rec.EarlyPaymentDiscount.IsZero() {
		t.Fatalf("EarlyPaymentDiscount = %s, want 0 when not offered", rec.EarlyPaymentDiscount)
	}
}

func TestExtractionStageKeepsEarlyPaymentDiscount(t *testing.T) {
	fields := validFields()
	fields.EarlyPaymentDiscount = decimal.NewNullDecimal(decimal.NewFromInt(2))
	rec := domain.NewProcessingRecord("inv-1", "", "txt")
	rec.DocumentText = "Early Payment Discount: 2% if paid within 10 days"

	runStage(t, NewExtractionStage(&fakeTextSource{}, &fakeExtractor{fields: fields}, 0), rec)
	if !rec.EarlyPaymentDiscount.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("EarlyPaymentDiscount = %s, want 2", rec.EarlyPaymentDiscount)
	}
}

func TestExtractionStagePrefersInlineText(t *testing.T) {
	src := &fakeTextSource{text: "ignored"}
	ext := &fakeExtractor{fields: domain.ExtractedFields{}}
	stage := NewExtractionStage(src, ext, 0.9)

	rec := domain.NewProcessingRecord("inv-1", "", "txt")
	rec.DocumentText = "inline text"
	runStage(t, stage, rec)

	if src.calls != 0 || ext.got != "inline text" {
		t.Fatalf("source calls = %d, extractor got %q", src.calls, ext.got)
	}
	if rec.Currency != domain.DefaultCurrency {
		t.Fatalf("Currency = %q", rec.Currency)
	}
	if !rec.TotalAmount.Valid || !rec.TotalAmount.Decimal.IsZero() {
		t.Fatalf("TotalAmount = %+v, want valid zero", rec.TotalAmount)
	}
	if !approxEqual(rec.ConfidenceScore, 0.9) {
		t.Fatalf("ConfidenceScore = %v", rec.ConfidenceScore)
	}
}

func TestExtractionStageFailureIsRecorded(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeTextSource
		ext  *fakeExtractor
		want string
	}{
		{name: "source error", src: &fakeTextSource{err: errors.New("disk gone")}, ext: &fakeExtractor{}, want: "OCR error: read document text: disk gone"},
		{name: "blank text", src: &fakeTextSource{text: "  \n"}, ext: &fakeExtractor{}, want: "OCR error: document contains no text"},
		{name: "extractor error", src: &fakeTextSource{text: "x"}, ext: &fakeExtractor{err: errors.New("model down")}, want: "OCR error: extract fields: model down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := NewExtractionStage(tt.src, tt.ext, 0)
			rec := domain.NewProcessingRecord("inv-1", "p", "pdf")
			runStage(t, stage, rec)

			if !reflect.DeepEqual(rec.ProcessingErrors, []string{tt.want}) {
				t.Fatalf("ProcessingErrors = %v", rec.ProcessingErrors)
			}
			if rec.CurrentStep != "ocr_failed" || rec.ConfidenceScore != 0 {
				t.Fatalf("step=%q confidence=%v", rec.CurrentStep, rec.ConfidenceScore)
			}
		})
	}
}

func TestValidationStageCleanInvoice(t *testing.T) {
	rec := extractedRecord(validFields())
	runStage(t, newTestValidation(fakeDuplicates{}, ""), rec)

	if !rec.IsValid || len(rec.ValidationErrors) != 0 {
		t.Fatalf("valid=%v errors=%v", rec.IsValid, rec.ValidationErrors)
	}
	if !rec.POMatched || rec.POData == nil {
		t.Fatalf("po matched=%v data=%v", rec.POMatched, rec.POData)
	}
	if !rec.POData.AuthorizedAmount.Equal(decimal.NewFromInt(1100)) {
		t.Fatalf("AuthorizedAmount = %s", rec.POData.AuthorizedAmount)
	}
	if rec.ClarificationNeeded || !approxEqual(rec.ConfidenceScore, 0.98) {
		t.Fatalf("clarification=%v confidence=%v", rec.ClarificationNeeded, rec.ConfidenceScore)
	}
	if rec.CurrentStep != domain.StepValidationCompleted {
		t.Fatalf("CurrentStep = %q", rec.CurrentStep)
	}
	if got := RouteAfterValidation(rec); got != domain.RouteContinue {
		t.Fatalf("RouteAfterValidation() = %q", got)
	}
}

func TestValidationStageTaxToleranceIsOneCent(t *testing.T) {
	fields := validFields()
	fields.TotalAmount = decimal.NewNullDecimal(decimal.RequireFromString("1100.009"))
	rec := extractedRecord(fields)
	runStage(t, newTestValidation(fakeDuplicates{}, ""), rec)
	if !rec.IsValid {
		t.Fatalf("sub-cent difference must pass, errors=%v", rec.ValidationErrors)
	}

	fields.TotalAmount = decimal.NewNullDecimal(decimal.RequireFromString("1100.01"))
	rec = extractedRecord(fields)
	runStage(t, newTestValidation(fakeDuplicates{}, ""), rec)
	if !reflect.DeepEqual(rec.ValidationErrors, []string{MsgTaxMismatch}) {
		t.Fatalf("ValidationErrors = %v", rec.ValidationErrors)
	}
}

func TestValidationStageTaxMismatchNeedsClarification(t *testing.T) {
	fields := validFields()
	fields.TotalAmount = decimal.NewNullDecimal(decimal.NewFromInt(1200))
	rec := extractedRecord(fields)

	runStage(t, newTestValidation(fakeDuplicates{}, ""), rec)

	if rec.IsValid || !reflect.DeepEqual(rec.ValidationErrors, []string{MsgTaxMismatch}) {
		t.Fatalf("valid=%v errors=%v", rec.IsValid, rec.ValidationErrors)
	}
	if !rec.ClarificationNeeded || rec.ClarificationMessage != "Invoice validation issues: Tax calculation mismatch" {
		t.Fatalf("clarification=%v message=%q", rec.ClarificationNeeded, rec.ClarificationMessage)
	}
	if !approxEqual(rec.ConfidenceScore, 0.88) {
		t.Fatalf("ConfidenceScore = %v", rec.ConfidenceScore)
	}
	if got := RouteAfterValidation(rec); got != domain.RouteClarification {
		t.Fatalf("RouteAfterValidation() = %q", got)
	}
}

func TestValidationStageFraudRoutesToReject(t *testing.T) {
	fields := validFields()
	fields.InvoiceDate = day(2026, 4, 1)
	fields.DueDate = day(2026, 3, 15)
	rec := extractedRecord(fields)

	runStage(t, newTestValidation(fakeDuplicates{}, ""), rec)

	if !rec.FraudDetected {
		t.Fatalf("FraudDetected = false")
	}
	if !reflect.DeepEqual(rec.ValidationErrors, []string{MsgFutureInvoiceDate, MsgDueBeforeInvoice}) {
		t.Fatalf("ValidationErrors = %v", rec.ValidationErrors)
	}
	if rec.ClarificationNeeded || rec.ClarificationMessage != "" {
		t.Fatalf("clarification=%v message=%q", rec.ClarificationNeeded, rec.ClarificationMessage)
	}
	if got := RouteAfterValidation(rec); got != domain.RouteReject {
		t.Fatalf("RouteAfterValidation() = %q", got)
	}
}

func TestValidationStageDuplicateAndPurchaseOrder(t *testing.T) {
	fields := validFields()
	fields.PONumber = "ORDER-1"
	rec := extractedRecord(fields)

	runStage(t, newTestValidation(fakeDuplicates{dup: true}, ""), rec)

	if !rec.DuplicateDetected || rec.POMatched || rec.POData != nil {
		t.Fatalf("duplicate=%v poMatched=%v poData=%v", rec.DuplicateDetected, rec.POMatched, rec.POData)
	}
	if !reflect.DeepEqual(rec.ValidationErrors, []string{MsgDuplicate, MsgPOMismatch}) {
		t.Fatalf("ValidationErrors = %v", rec.ValidationErrors)
	}
	if !approxEqual(rec.ConfidenceScore, 0.78) {
		t.Fatalf("ConfidenceScore = %v", rec.ConfidenceScore)
	}
}

func TestValidationStageCustomPOPrefix(t *testing.T) {
	fields := validFields()
	fields.PONumber = "BE-99"
	rec := extractedRecord(fields)

	runStage(t, newTestValidation(fakeDuplicates{}, "BE-"), rec)
	if !rec.POMatched {
		t.Fatalf("POMatched = false for custom prefix")
	}
}

func TestValidationStageDuplicateCheckErrorIsNotAValidationError(t *testing.T) {
	rec := extractedRecord(validFields())
	runStage(t, newTestValidation(fakeDuplicates{err: errors.New("redis down")}, ""), rec)

	if !rec.IsValid {
		t.Fatalf("IsValid = false, errors=%v", rec.ValidationErrors)
	}
	if !reflect.DeepEqual(rec.ProcessingErrors, []string{"Duplicate check error: redis down"}) {
		t.Fatalf("ProcessingErrors = %v", rec.ProcessingErrors)
	}
}

func TestValidationStageEmptyExtraction(t *testing.T) {
	rec := extractedRecord(domain.ExtractedFields{})
	runStage(t, newTestValidation(fakeDuplicates{}, ""), rec)

	want := []string{
		MsgAmountInvalid,
		"Missing field: invoice_number",
		"Missing field: supplier_name",
		"Missing field: invoice_date",
		"Missing field: due_date",
		"Missing field: total_amount",
	}
	if !reflect.DeepEqual(rec.ValidationErrors, want) {
		t.Fatalf("ValidationErrors = %v, want %v", rec.ValidationErrors, want)
	}
	if !approxEqual(rec.ConfidenceScore, 0.38) {
		t.Fatalf("ConfidenceScore = %v", rec.ConfidenceScore)
	}
	if !strings.HasPrefix(rec.ClarificationMessage, "Invoice validation issues: Amount validation failed; Missing field") {
		t.Fatalf("ClarificationMessage = %q", rec.ClarificationMessage)
	}
}

func TestValidationConfidenceNeverNegative(t *testing.T) {
	rec := extractedRecord(domain.ExtractedFields{})
	rec.ConfidenceScore = 0.2
	runStage(t, newTestValidation(fakeDuplicates{}, ""), rec)
	if rec.ConfidenceScore != 0 {
		t.Fatalf("ConfidenceScore = %v, want 0", rec.ConfidenceScore)
	}
}

func TestRouteAfterValidationErrorLimit(t *testing.T) {
	rec := domain.NewProcessingRecord("1", "", "")
	rec.IsValid = false
	rec.ValidationErrors = []string{"a", "b", "c"}
	if got := RouteAfterValidation(rec); got != domain.RouteContinue {
		t.Fatalf("three errors: route = %q", got)
	}

	rec.ValidationErrors = append(rec.ValidationErrors, "d")
	if got := RouteAfterValidation(rec); got != domain.RouteClarification {
		t.Fatalf("four errors: route = %q", got)
	}
}

func TestCodingStageRules(t *testing.T) {
	tests := []struct {
		supplier   string
		account    string
		costCenter string
	}{
		{supplier: "Acme Cloud Services", account: "5000", costCenter: "CC-100"},
		{supplier: "AWS EMEA SARL", account: "5000", costCenter: "CC-100"},
		{supplier: "Baker Legal LLP", account: "5100", costCenter: "CC-600"},
		{supplier: "Bright Media GmbH", account: "5400", costCenter: "CC-300"},
		{supplier: "Office Depot", account: "6000", costCenter: "CC-600"},
		{supplier: "", account: "6000", costCenter: "CC-600"},
	}

	for _, tt := range tests {
		t.Run(tt.supplier, func(t *testing.T) {
			fields := validFields()
			fields.SupplierName = tt.supplier
			rec := extractedRecord(fields)

			runStage(t, NewCodingStage(nil), rec)
			if rec.GLAccount != tt.account || rec.CostCenter != tt.costCenter {
				t.Fatalf("coding = %q/%q, want %q/%q", rec.GLAccount, rec.CostCenter, tt.account, tt.costCenter)
			}
			if rec.CurrentStep != domain.StepCodingCompleted {
				t.Fatalf("CurrentStep = %q", rec.CurrentStep)
			}
		})
	}
}

func TestCodingStageEntries(t *testing.T) {
	rec := extractedRecord(validFields())
	runStage(t, NewCodingStage(nil), rec)

	if len(rec.AccountingEntries) != 3 {
		t.Fatalf("got %d entries, want 3", len(rec.AccountingEntries))
	}
	debit, tax, credit := rec.AccountingEntries[0], rec.AccountingEntries[1], rec.AccountingEntries[2]

	if debit.Account != "5000" || !debit.Debit.Equal(decimal.NewFromInt(1000)) || debit.Description != "Invoice INV-2026-001 - Acme Cloud Services" {
		t.Fatalf("debit entry = %+v", debit)
	}
	if tax.Account != "1500" || !tax.Debit.Equal(decimal.NewFromInt(100)) || tax.Description != "Tax - Invoice INV-2026-001" {
		t.Fatalf("tax entry = %+v", tax)
	}
	if credit.Account != "2000" || !credit.Credit.Equal(decimal.NewFromInt(1100)) || credit.Description != "AP - Acme Cloud Services" {
		t.Fatalf("credit entry = %+v", credit)
	}
	for _, e := range rec.AccountingEntries {
		if e.CostCenter != "CC-100" {
			t.Fatalf("entry %q cost center = %q", e.Account, e.CostCenter)
		}
	}
}

func TestCodingStageSkipsZeroTax(t *testing.T) {
	fields := validFields()
	fields.TaxAmount = decimal.NewNullDecimal(decimal.Zero)
	fields.TotalAmount = fields.NetAmount
	fields.SupplierName = ""
	rec := extractedRecord(fields)

	runStage(t, NewCodingStage(nil), rec)
	if len(rec.AccountingEntries) != 2 {
		t.Fatalf("got %d entries, want 2", len(rec.AccountingEntries))
	}
	if got := rec.AccountingEntries[1].Description; got != "AP - Unknown" {
		t.Fatalf("credit description = %q", got)
	}
}

func TestCodingStageWithoutDefaultFails(t *testing.T) {
	book, err := LoadCodeBook(strings.NewReader(`
tax_account: "1500"
payable_account: "2000"
rules:
  - name: it
    keywords: [software]
    gl_account: "5000"
    cost_center: CC-100
`))
	if err != nil {
		t.Fatalf("LoadCodeBook() error = %v", err)
	}

	fields := validFields()
	fields.SupplierName = "Plain Supplies"
	rec := extractedRecord(fields)

	runStage(t, NewCodingStage(book), rec)
	if rec.CurrentStep != "coding_failed" {
		t.Fatalf("CurrentStep = %q", rec.CurrentStep)
	}
	if len(rec.ProcessingErrors) != 1 || !strings.HasPrefix(rec.ProcessingErrors[0], "Coding error: ") {
		t.Fatalf("ProcessingErrors = %v", rec.ProcessingErrors)
	}
	if len(rec.AccountingEntries) != 0 {
		t.Fatalf("AccountingEntries = %v", rec.AccountingEntries)
	}
}

func TestLoadCodeBookRejectsInvalidInput(t *testing.T) {
	if _, err := LoadCodeBook(strings.NewReader("tax_account: \"1500\"\nunknown_key: 1\n")); err == nil {
		t.Fatalf("expected error for unknown key")
	}

	_, err := LoadCodeBook(strings.NewReader(`
tax_account: "1500"
payable_account: "2000"
rules:
  - name: empty
    gl_account: "5000"
    cost_center: CC-100
`))
	if err == nil || !strings.Contains(err.Error(), "has no keywords") {
		t.Fatalf("LoadCodeBook() error = %v, want keyword error", err)
	}
}

func TestApprovalPolicyTiers(t *testing.T) {
	policy := DefaultApprovalPolicy(0)
	tests := []struct {
		amount string
		want   string
	}{
		{"0", domain.ApprovalLevelAuto},
		{"999.99", domain.ApprovalLevelAuto},
		{"1000", domain.ApprovalLevelManager},
		{"4999.99", domain.ApprovalLevelManager},
		{"5000", domain.ApprovalLevelDirector},
		{"19999.99", domain.ApprovalLevelDirector},
		{"20000", domain.ApprovalLevelCFO},
		{"250000", domain.ApprovalLevelCFO},
	}
	for _, tt := range tests {
		if got := policy.LevelFor(decimal.RequireFromString(tt.amount)); got != tt.want {
			t.Fatalf("LevelFor(%s) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func smallValidRecord() *domain.ProcessingRecord {
	fields := validFields()
	fields.TotalAmount = decimal.NewNullDecimal(decimal.RequireFromString("550.00"))
	fields.TaxAmount = decimal.NewNullDecimal(decimal.RequireFromString("50.00"))
	fields.NetAmount = decimal.NewNullDecimal(decimal.RequireFromString("500.00"))
	rec := extractedRecord(fields)
	rec.POMatched = true
	return rec
}

func TestApprovalStageTouchless(t *testing.T) {
	rec := smallValidRecord()
	runStage(t, NewApprovalStage(DefaultApprovalPolicy(0)), rec)

	if !rec.IsTouchless || rec.RequiresApproval || rec.ApproverID != nil {
		t.Fatalf("touchless=%v requiresApproval=%v approver=%v", rec.IsTouchless, rec.RequiresApproval, rec.ApproverID)
	}
	if rec.ApprovalLevel != domain.ApprovalLevelAuto {
		t.Fatalf("ApprovalLevel = %q", rec.ApprovalLevel)
	}
	if !rec.ApprovalThreshold.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("ApprovalThreshold = %s", rec.ApprovalThreshold)
	}
	if rec.CurrentStep != domain.StepApprovalDetermined {
		t.Fatalf("CurrentStep = %q", rec.CurrentStep)
	}
}

func TestApprovalStageTouchlessGate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rec *domain.ProcessingRecord)
	}{
		{name: "low confidence", mutate: func(rec *domain.ProcessingRecord) { rec.ConfidenceScore = 0.94 }},
		{name: "no purchase order", mutate: func(rec *domain.ProcessingRecord) { rec.POMatched = false }},
		{name: "invalid", mutate: func(rec *domain.ProcessingRecord) { rec.IsValid = false }},
		{name: "already flagged", mutate: func(rec *domain.ProcessingRecord) { rec.MarkRequiresApproval() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := smallValidRecord()
			tt.mutate(rec)
			runStage(t, NewApprovalStage(DefaultApprovalPolicy(0)), rec)

			if rec.IsTouchless || !rec.RequiresApproval {
				t.Fatalf("touchless=%v requiresApproval=%v", rec.IsTouchless, rec.RequiresApproval)
			}
			// Below the manager tier a reviewed invoice still needs a manager.
			if rec.ApprovalLevel != domain.ApprovalLevelManager {
				t.Fatalf("ApprovalLevel = %q, want manager", rec.ApprovalLevel)
			}
			if rec.ApproverID == nil || *rec.ApproverID != 2 {
				t.Fatalf("ApproverID = %v, want 2", rec.ApproverID)
			}
		})
	}
}

func TestApprovalStageAssignsApproverByTier(t *testing.T) {
	tests := []struct {
		total    string
		level    string
		approver int64
	}{
		{"1500", domain.ApprovalLevelManager, 2},
		{"7500", domain.ApprovalLevelDirector, 3},
		{"25000", domain.ApprovalLevelCFO, 1},
	}
	for _, tt := range tests {
		t.Run(tt.total, func(t *testing.T) {
			rec := smallValidRecord()
			rec.TotalAmount = decimal.NewNullDecimal(decimal.RequireFromString(tt.total))
			runStage(t, NewApprovalStage(DefaultApprovalPolicy(0)), rec)

			if !rec.RequiresApproval || rec.ApprovalLevel != tt.level {
				t.Fatalf("requiresApproval=%v level=%q, want %q", rec.RequiresApproval, rec.ApprovalLevel, tt.level)
			}
			if rec.ApproverID == nil || *rec.ApproverID != tt.approver {
				t.Fatalf("ApproverID = %v, want %d", rec.ApproverID, tt.approver)
			}
		})
	}
}

func TestApprovalStageFraudEscalatesToDirector(t *testing.T) {
	rec := smallValidRecord()
	rec.FraudDetected = true
	runStage(t, NewApprovalStage(DefaultApprovalPolicy(0)), rec)

	if !rec.RequiresApproval || rec.IsTouchless {
		t.Fatalf("requiresApproval=%v touchless=%v", rec.RequiresApproval, rec.IsTouchless)
	}
	if rec.ApprovalLevel != domain.ApprovalLevelDirector {
		t.Fatalf("ApprovalLevel = %q", rec.ApprovalLevel)
	}
	if rec.ApproverID == nil || *rec.ApproverID != 3 {
		t.Fatalf("ApproverID = %v, want 3", rec.ApproverID)
	}
}

func TestApprovalStageDuplicateRequiresApproval(t *testing.T) {
	rec := smallValidRecord()
	rec.DuplicateDetected = true
	runStage(t, NewApprovalStage(DefaultApprovalPolicy(0)), rec)
	if !rec.RequiresApproval || rec.IsTouchless {
		t.Fatalf("requiresApproval=%v touchless=%v", rec.RequiresApproval, rec.IsTouchless)
	}
	if rec.ApprovalLevel != domain.ApprovalLevelManager {
		t.Fatalf("ApprovalLevel = %q, want manager", rec.ApprovalLevel)
	}
}

func TestFinalizeOutcomePriority(t *testing.T) {
	tests := []struct {
		name       string
		rec        domain.ProcessingRecord
		status     domain.InvoiceStatus
		processing domain.ProcessingStatus
	}{
		{
			name:       "fraud beats everything",
			rec:        domain.ProcessingRecord{FraudDetected: true, ClarificationNeeded: true, RequiresApproval: true, IsTouchless: true},
			status:     domain.InvoiceStatusRejected,
			processing: domain.ProcessingRejectedFraud,
		},
		{
			name:       "clarification beats approval",
			rec:        domain.ProcessingRecord{ClarificationNeeded: true, RequiresApproval: true},
			status:     domain.InvoiceStatusPending,
			processing: domain.ProcessingPendingClarification,
		},
		{
			name:       "approval beats touchless",
			rec:        domain.ProcessingRecord{RequiresApproval: true, IsTouchless: true},
			status:     domain.InvoiceStatusPending,
			processing: domain.ProcessingPendingApproval,
		},
		{
			name:       "touchless",
			rec:        domain.ProcessingRecord{IsTouchless: true},
			status:     domain.InvoiceStatusApproved,
			processing: domain.ProcessingCompleted,
		},
		{
			name:       "review",
			rec:        domain.ProcessingRecord{},
			status:     domain.InvoiceStatusPending,
			processing: domain.ProcessingPendingReview,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			stage := NewFinalizeStage()
			stage.now = func() time.Time { return fixedNow }
			runStage(t, stage, &rec)

			if rec.FinalStatus != tt.status || rec.ProcessingStatus != tt.processing {
				t.Fatalf("final=%q processing=%q, want %q/%q", rec.FinalStatus, rec.ProcessingStatus, tt.status, tt.processing)
			}
			if rec.CurrentStep != domain.StepCompleted {
				t.Fatalf("CurrentStep = %q", rec.CurrentStep)
			}
			if rec.ProcessedAt == nil || !rec.ProcessedAt.Equal(fixedNow) {
				t.Fatalf("ProcessedAt = %v", rec.ProcessedAt)
			}
		})
	}
}
