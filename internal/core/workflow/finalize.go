package workflow

import (
	"context"
	"time"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

const StageFinalize = "finalize"

type FinalizeStage struct {
	now func() time.Time
}

func NewFinalizeStage() *FinalizeStage {
	return &FinalizeStage{now: time.Now}
}

func (s *FinalizeStage) Name() string { return StageFinalize }

func (s *FinalizeStage) Run(_ context.Context, rec *domain.ProcessingRecord) error {
	rec.FinalStatus, rec.ProcessingStatus = Outcome(rec)
	processedAt := s.now().UTC()
	rec.ProcessedAt = &processedAt
	rec.CurrentStep = domain.StepCompleted
	return nil
}

// Outcome classifies a record. Fraud wins over clarification, which wins over
// pending approval, which wins over touchless booking.
func Outcome(rec *domain.ProcessingRecord) (domain.InvoiceStatus, domain.ProcessingStatus) {
	switch {
	case rec.FraudDetected:
		return domain.InvoiceStatusRejected, domain.ProcessingRejectedFraud
	case rec.ClarificationNeeded:
		return domain.InvoiceStatusPending, domain.ProcessingPendingClarification
	case rec.RequiresApproval:
		return domain.InvoiceStatusPending, domain.ProcessingPendingApproval
	case rec.IsTouchless:
		return domain.InvoiceStatusApproved, domain.ProcessingCompleted
	default:
		return domain.InvoiceStatusPending, domain.ProcessingPendingReview
	}
}
