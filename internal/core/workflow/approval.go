package workflow

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

const (
	StageApproval = "approval"

	DefaultTouchlessThreshold = 0.95
)

// ApprovalTier maps amounts below Limit to Level. Tiers are checked in order.
type ApprovalTier struct {
	Limit decimal.Decimal
	Level string
}

// ApprovalPolicy holds the amount tiers, the touchless gate and the approver directory.
type ApprovalPolicy struct {
	Tiers              []ApprovalTier
	TopLevel           string
	TouchlessThreshold float64
	Approvers          map[string]int64
	DefaultApprover    int64
}

func DefaultApprovalPolicy(touchlessThreshold float64) ApprovalPolicy {
	if touchlessThreshold <= 0 {
		touchlessThreshold = DefaultTouchlessThreshold
	}
	return ApprovalPolicy{
		Tiers: []ApprovalTier{
			{Limit: decimal.NewFromInt(1000), Level: domain.ApprovalLevelAuto},
			{Limit: decimal.NewFromInt(5000), Level: domain.ApprovalLevelManager},
			{Limit: decimal.NewFromInt(20000), Level: domain.ApprovalLevelDirector},
		},
		TopLevel:           domain.ApprovalLevelCFO,
		TouchlessThreshold: touchlessThreshold,
		Approvers: map[string]int64{
			domain.ApprovalLevelManager:  2,
			domain.ApprovalLevelDirector: 3,
			domain.ApprovalLevelCFO:      1,
		},
		DefaultApprover: 1,
	}
}

// LevelFor returns the approval level for an amount.
func (p ApprovalPolicy) LevelFor(amount decimal.Decimal) string {
	for _, tier := range p.Tiers {
		if amount.LessThan(tier.Limit) {
			return tier.Level
		}
	}
	return p.TopLevel
}

func (p ApprovalPolicy) approverFor(level string) int64 {
	if id, ok := p.Approvers[level]; ok {
		return id
	}
	return p.DefaultApprover
}

type ApprovalStage struct {
	policy ApprovalPolicy
}

func NewApprovalStage(policy ApprovalPolicy) *ApprovalStage {
	return &ApprovalStage{policy: policy}
}

func (s *ApprovalStage) Name() string { return StageApproval }

func (s *ApprovalStage) Run(_ context.Context, rec *domain.ProcessingRecord) error {
	total := rec.Total()
	level := s.policy.LevelFor(total)

	touchless := level == domain.ApprovalLevelAuto &&
		rec.IsValid &&
		rec.ConfidenceScore >= s.policy.TouchlessThreshold &&
		!rec.FraudDetected &&
		rec.POMatched

	if touchless {
		rec.IsTouchless = true
	} else {
		rec.MarkRequiresApproval()
	}

	if rec.FraudDetected {
		rec.MarkRequiresApproval()
		level = domain.ApprovalLevelDirector
	}
	if rec.DuplicateDetected || len(rec.ValidationErrors) > 0 {
		rec.MarkRequiresApproval()
	}
	if rec.RequiresApproval {
		rec.IsTouchless = false
		// Auto is reserved for touchless bookings; a review below that tier goes to a manager.
		if level == domain.ApprovalLevelAuto {
			level = domain.ApprovalLevelManager
		}
		approver := s.policy.approverFor(level)
		rec.ApproverID = &approver
	}

	rec.ApprovalLevel = level
	rec.ApprovalThreshold = total
	rec.CurrentStep = domain.StepApprovalDetermined
	return nil
}
