package workflow

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
)

const (
	StageValidation = "validation"

	DefaultPOPrefix = "PO-"

	confidencePenaltyPerError = 0.1
	clarificationErrorLimit   = 3
)

var taxTolerance = decimal.New(1, -2)

// Validation messages. They are stored verbatim on the record and shown to reviewers.
const (
	MsgTaxMismatch       = "Tax calculation mismatch"
	MsgAmountInvalid     = "Amount validation failed"
	MsgDuplicate         = "Duplicate invoice detected"
	MsgFutureInvoiceDate = "Invoice date is in the future"
	MsgDueBeforeInvoice  = "Due date is before invoice date"
	MsgPOMismatch        = "Purchase Order mismatch or not found"
	msgMissingField      = "Missing field: "
	msgClarification     = "Invoice validation issues: "
)

type ValidationStage struct {
	duplicates ports.DuplicateDetector
	poPrefix   string
	now        func() time.Time
}

func NewValidationStage(duplicates ports.DuplicateDetector, poPrefix string) *ValidationStage {
	if poPrefix == "" {
		poPrefix = DefaultPOPrefix
	}
	return &ValidationStage{
		duplicates: duplicates,
		poPrefix:   poPrefix,
		now:        time.Now,
	}
}

func (s *ValidationStage) Name() string { return StageValidation }

func (s *ValidationStage) Run(ctx context.Context, rec *domain.ProcessingRecord) error {
	errs := make([]string, 0)

	if !taxConsistent(rec) {
		errs = append(errs, MsgTaxMismatch)
	}
	if !amountsPositive(rec) {
		errs = append(errs, MsgAmountInvalid)
	}
	for _, field := range missingFields(rec) {
		errs = append(errs, msgMissingField+field)
	}

	if s.duplicates != nil {
		dup, err := s.duplicates.IsDuplicate(ctx, rec)
		switch {
		case err != nil:
			rec.AddProcessingError("Duplicate check error: " + err.Error())
		case dup:
			errs = append(errs, MsgDuplicate)
			rec.DuplicateDetected = true
		}
	}

	if indicators := s.fraudIndicators(rec); len(indicators) > 0 {
		errs = append(errs, indicators...)
		rec.FraudDetected = true
	}

	if rec.PONumber != "" {
		rec.POMatched = s.matchPurchaseOrder(rec)
		if !rec.POMatched {
			errs = append(errs, MsgPOMismatch)
		}
	}

	rec.ValidationErrors = errs
	rec.IsValid = len(errs) == 0

	if len(errs) > 0 {
		rec.ConfidenceScore = math.Max(0, rec.ConfidenceScore-float64(len(errs))*confidencePenaltyPerError)
	}
	if len(errs) > 0 && !rec.FraudDetected {
		rec.ClarificationNeeded = true
		rec.ClarificationMessage = msgClarification + strings.Join(errs, "; ")
	}

	rec.CurrentStep = domain.StepValidationCompleted
	return nil
}

func taxConsistent(rec *domain.ProcessingRecord) bool {
	return rec.Net().Add(rec.Tax()).Sub(rec.Total()).Abs().LessThan(taxTolerance)
}

func amountsPositive(rec *domain.ProcessingRecord) bool {
	return rec.Total().IsPositive() && !rec.Tax().IsNegative() && rec.Net().IsPositive()
}

func missingFields(rec *domain.ProcessingRecord) []string {
	var missing []string
	if strings.TrimSpace(rec.InvoiceNumber) == "" {
		missing = append(missing, "invoice_number")
	}
	if strings.TrimSpace(rec.SupplierName) == "" {
		missing = append(missing, "supplier_name")
	}
	if rec.InvoiceDate == nil {
		missing = append(missing, "invoice_date")
	}
	if rec.DueDate == nil {
		missing = append(missing, "due_date")
	}
	if rec.Total().IsZero() {
		missing = append(missing, "total_amount")
	}
	return missing
}

func (s *ValidationStage) fraudIndicators(rec *domain.ProcessingRecord) []string {
	var indicators []string
	if rec.InvoiceDate != nil && rec.InvoiceDate.After(s.now()) {
		indicators = append(indicators, MsgFutureInvoiceDate)
	}
	if rec.InvoiceDate != nil && rec.DueDate != nil && rec.DueDate.Before(*rec.InvoiceDate) {
		indicators = append(indicators, MsgDueBeforeInvoice)
	}
	return indicators
}

// matchPurchaseOrder accepts any PO carrying the configured prefix and authorizes the full total.
// There is no purchase-order source to look the number up in, so the prefix is the whole check.
func (s *ValidationStage) matchPurchaseOrder(rec *domain.ProcessingRecord) bool {
	if !strings.HasPrefix(rec.PONumber, s.poPrefix) {
		return false
	}
	rec.POData = &domain.PurchaseOrder{
		PONumber:         rec.PONumber,
		AuthorizedAmount: rec.Total(),
		Status:           "approved",
	}
	return true
}

// RouteAfterValidation selects the edge taken once validation has run.
func RouteAfterValidation(rec *domain.ProcessingRecord) string {
	switch {
	case rec.FraudDetected:
		return domain.RouteReject
	case rec.ClarificationNeeded:
		return domain.RouteClarification
	case rec.IsValid:
		return domain.RouteContinue
	case len(rec.ValidationErrors) > clarificationErrorLimit:
		return domain.RouteClarification
	default:
		return domain.RouteContinue
	}
}
