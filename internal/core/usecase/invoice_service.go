package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
)

// DashboardWindowDays is the look-back window of the dashboard metrics.
const DashboardWindowDays = 30

var maxDiscountPercent = decimal.NewFromInt(100)

type InvoiceServiceUseCase struct {
	invoices ports.InvoiceRepository
	audit    ports.AuditLog
	exporter ports.LedgerExporter
	now      func() time.Time
}

func NewInvoiceServiceUseCase(
	invoices ports.InvoiceRepository,
	audit ports.AuditLog,
	exporter ports.LedgerExporter,
) *InvoiceServiceUseCase {
	return &InvoiceServiceUseCase{
		invoices: invoices,
		audit:    audit,
		exporter: exporter,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *InvoiceServiceUseCase) List(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	skip, limit, err := normalizePage("list invoices", filter.Skip, filter.Limit)
	if err != nil {
		return nil, err
	}
	if filter.Status != "" && !validInvoiceStatus(filter.Status) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list invoices", fmt.Errorf("unknown status %q", filter.Status))
	}
	filter.Skip, filter.Limit = skip, limit

	items, err := uc.invoices.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return items, nil
}

func (uc *InvoiceServiceUseCase) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := uc.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (uc *InvoiceServiceUseCase) Update(ctx context.Context, user *domain.User, id string, update domain.InvoiceUpdate) (*domain.Invoice, error) {
	if update.IsEmpty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update invoice", errors.New("no fields to update"))
	}
	if update.Status != nil && !validInvoiceStatus(*update.Status) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update invoice", fmt.Errorf("unknown status %q", *update.Status))
	}
	if update.ProcessingStatus != nil && !validProcessingStatus(*update.ProcessingStatus) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update invoice", fmt.Errorf("unknown processing_status %q", *update.ProcessingStatus))
	}

	if d := update.EarlyPaymentDiscount; d != nil && (d.IsNegative() || d.GreaterThan(maxDiscountPercent)) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update invoice", fmt.Errorf("early_payment_discount %s is outside 0..100", d))
	}

	inv, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	update.Apply(inv)
	inv.UpdatedAt = uc.now()

	if err := uc.invoices.Save(ctx, inv); err != nil {
		return nil, fmt.Errorf("save invoice: %w", err)
	}
	if err := appendAudit(ctx, uc.audit, domain.EntityInvoice, inv.ID, domain.ActionInvoiceUpdated, userID(user), map[string]any{
		"update": update,
	}); err != nil {
		return nil, err
	}
	return inv, nil
}

func (uc *InvoiceServiceUseCase) Approve(ctx context.Context, user *domain.User, id string) (*domain.Invoice, error) {
	inv, err := uc.pendingInvoice(ctx, "approve invoice", id)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	approver := userID(user)
	inv.Status = domain.InvoiceStatusApproved
	inv.ApprovalStatus = domain.ApprovalApproved
	inv.ProcessingStatus = domain.ProcessingCompleted
	inv.ApprovedBy = &approver
	inv.ApprovedAt = &now
	inv.UpdatedAt = now

	if err := uc.invoices.Save(ctx, inv); err != nil {
		return nil, fmt.Errorf("save approved invoice: %w", err)
	}
	if err := appendAudit(ctx, uc.audit, domain.EntityInvoice, inv.ID, domain.ActionInvoiceApproved, approver, nil); err != nil {
		return nil, err
	}
	return inv, nil
}

func (uc *InvoiceServiceUseCase) Reject(ctx context.Context, user *domain.User, id, reason string) (*domain.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reject invoice", errors.New("reason is required"))
	}
	inv, err := uc.pendingInvoice(ctx, "reject invoice", id)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	inv.Status = domain.InvoiceStatusRejected
	inv.ApprovalStatus = domain.ApprovalRejected
	inv.ProcessingStatus = domain.ProcessingCompleted
	inv.RejectionReason = reason
	inv.UpdatedAt = now

	if err := uc.invoices.Save(ctx, inv); err != nil {
		return nil, fmt.Errorf("save rejected invoice: %w", err)
	}
	if err := appendAudit(ctx, uc.audit, domain.EntityInvoice, inv.ID, domain.ActionInvoiceRejected, userID(user), map[string]any{
		"reason": reason,
	}); err != nil {
		return nil, err
	}
	return inv, nil
}

func (uc *InvoiceServiceUseCase) pendingInvoice(ctx context.Context, op, id string) (*domain.Invoice, error) {
	inv, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvoiceStatusPending {
		return nil, domain.WrapError(domain.ErrConflict, op, fmt.Errorf("invoice is %s, not pending", inv.Status))
	}
	switch inv.ProcessingStatus {
	case domain.ProcessingInbox, domain.ProcessingInProgress:
		return nil, domain.WrapError(domain.ErrConflict, op, fmt.Errorf("invoice is still %s", inv.ProcessingStatus))
	}
	return inv, nil
}

// Record returns the processing record stored with the invoice.
func (uc *InvoiceServiceUseCase) Record(ctx context.Context, id string) (*domain.ProcessingRecord, error) {
	inv, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(inv.ExtractedData) == 0 {
		return nil, domain.WrapError(domain.ErrConflict, "get processing record", errors.New("invoice has not been processed yet"))
	}
	var rec domain.ProcessingRecord
	if err := json.Unmarshal(inv.ExtractedData, &rec); err != nil {
		return nil, fmt.Errorf("decode processing record: %w", err)
	}
	return &rec, nil
}

func (uc *InvoiceServiceUseCase) AuditTrail(ctx context.Context, id string) ([]domain.AuditEntry, error) {
	if _, err := uc.Get(ctx, id); err != nil {
		return nil, err
	}
	entries, err := uc.audit.ListByEntity(ctx, domain.EntityInvoice, id)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

func (uc *InvoiceServiceUseCase) Stats(ctx context.Context) (domain.InvoiceStats, error) {
	stats, err := uc.invoices.Stats(ctx)
	if err != nil {
		return domain.InvoiceStats{}, fmt.Errorf("invoice stats: %w", err)
	}
	return stats, nil
}

func (uc *InvoiceServiceUseCase) Dashboard(ctx context.Context) (domain.DashboardMetrics, error) {
	metrics, err := uc.invoices.Dashboard(ctx, DashboardWindowDays)
	if err != nil {
		return domain.DashboardMetrics{}, fmt.Errorf("dashboard metrics: %w", err)
	}
	return metrics, nil
}

// ExportLedger writes the accounting entries of all approved invoices.
func (uc *InvoiceServiceUseCase) ExportLedger(ctx context.Context, w io.Writer) error {
	if uc.exporter == nil {
		return errors.New("ledger exporter is not configured")
	}
	lines, err := uc.invoices.LedgerLines(ctx, domain.InvoiceStatusApproved)
	if err != nil {
		return fmt.Errorf("load ledger lines: %w", err)
	}
	if err := uc.exporter.Export(ctx, lines, w); err != nil {
		return fmt.Errorf("export ledger: %w", err)
	}
	return nil
}

func validInvoiceStatus(s domain.InvoiceStatus) bool {
	switch s {
	case domain.InvoiceStatusPending, domain.InvoiceStatusApproved, domain.InvoiceStatusRejected:
		return true
	}
	return false
}

func validProcessingStatus(s domain.ProcessingStatus) bool {
	switch s {
	case domain.ProcessingInbox, domain.ProcessingInProgress, domain.ProcessingPendingClarification,
		domain.ProcessingPendingApproval, domain.ProcessingPendingReview, domain.ProcessingCompleted,
		domain.ProcessingRejectedFraud, domain.ProcessingFailed:
		return true
	}
	return false
}
