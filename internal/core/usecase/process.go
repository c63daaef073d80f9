package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
	"github.com/kirillkom/ap-automation/internal/core/workflow"
)

const (
	defaultPaymentDays  = 30
	unknownSupplierName = "Unknown"
)

// InvoiceWorkflow runs the stage graph over one stored document.
type InvoiceWorkflow interface {
	Process(ctx context.Context, doc workflow.Document) (*domain.ProcessingRecord, error)
}

type ProcessInvoiceUseCase struct {
	invoices  ports.InvoiceRepository
	suppliers ports.SupplierRepository
	audit     ports.AuditLog
	workflow  InvoiceWorkflow
	observer  ports.ProcessObserver
	now       func() time.Time
}

func NewProcessInvoiceUseCase(
	invoices ports.InvoiceRepository,
	suppliers ports.SupplierRepository,
	audit ports.AuditLog,
	wf InvoiceWorkflow,
	observer ports.ProcessObserver,
) *ProcessInvoiceUseCase {
	return &ProcessInvoiceUseCase{
		invoices:  invoices,
		suppliers: suppliers,
		audit:     audit,
		workflow:  wf,
		observer:  observer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ProcessInvoiceUseCase) ProcessByID(ctx context.Context, invoiceID string) error {
	if err := uc.markStatus(ctx, invoiceID, domain.ProcessingInProgress, ""); err != nil {
		return fmt.Errorf("set processing_status=processing: %w", err)
	}

	inv, rec, err := uc.processPipeline(ctx, invoiceID)
	if err != nil {
		if failErr := uc.markFailed(ctx, invoiceID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := appendAudit(ctx, uc.audit, domain.EntityInvoice, inv.ID, domain.ActionInvoiceProcessed, domain.SystemUserID, map[string]any{
		"processing_status": rec.ProcessingStatus,
		"is_touchless":      rec.IsTouchless,
		"confidence_score":  rec.ConfidenceScore,
	}); err != nil {
		return err
	}
	return nil
}

func (uc *ProcessInvoiceUseCase) processPipeline(ctx context.Context, invoiceID string) (*domain.Invoice, *domain.ProcessingRecord, error) {
	inv, err := uc.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch invoice by id: %w", err)
	}

	rec, err := uc.workflow.Process(ctx, workflow.Document{
		InvoiceID: inv.ID,
		Path:      inv.DocumentPath,
		Format:    inv.DocumentFormat,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("run invoice workflow: %w", err)
	}
	if uc.observer != nil {
		uc.observer.ObserveRecord(rec)
	}

	supplierID, err := uc.resolveSupplier(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	rec.SupplierID = supplierID

	if err := uc.applyRecord(inv, rec); err != nil {
		return nil, nil, err
	}
	if err := uc.invoices.Save(ctx, inv); err != nil {
		return nil, nil, fmt.Errorf("save processed invoice: %w", err)
	}
	return inv, rec, nil
}

// resolveSupplier finds the supplier by tax id and registers an unverified one when unknown.
func (uc *ProcessInvoiceUseCase) resolveSupplier(ctx context.Context, rec *domain.ProcessingRecord) (string, error) {
	if rec.SupplierTaxID != "" {
		existing, err := uc.suppliers.GetByTaxID(ctx, rec.SupplierTaxID)
		switch {
		case err == nil:
			return existing.ID, nil
		case !domain.IsKind(err, domain.ErrSupplierNotFound):
			return "", fmt.Errorf("lookup supplier by tax id: %w", err)
		}
	}

	now := uc.now()
	supplier := &domain.Supplier{
		ID:        uuid.NewString(),
		Name:      rec.SupplierName,
		TaxID:     rec.SupplierTaxID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if supplier.Name == "" {
		supplier.Name = unknownSupplierName
	}
	if supplier.TaxID == "" {
		supplier.TaxID = fmt.Sprintf("TEMP-%d", now.UnixNano())
	}
	if err := uc.suppliers.Create(ctx, supplier); err != nil {
		return "", fmt.Errorf("create supplier: %w", err)
	}
	return supplier.ID, nil
}

func (uc *ProcessInvoiceUseCase) applyRecord(inv *domain.Invoice, rec *domain.ProcessingRecord) error {
	now := uc.now()

	// A duplicate keeps its number only in the processing record so the
	// unique invoice_number column stays with the first booking.
	switch {
	case rec.DuplicateDetected:
		inv.InvoiceNumber = ""
	case rec.InvoiceNumber == "":
		inv.InvoiceNumber = fmt.Sprintf("INV-%d", now.UnixNano())
	default:
		inv.InvoiceNumber = rec.InvoiceNumber
	}
	inv.SupplierID = rec.SupplierID
	inv.InvoiceDate = rec.InvoiceDate
	if inv.InvoiceDate == nil {
		d := now
		inv.InvoiceDate = &d
	}
	inv.DueDate = rec.DueDate
	if inv.DueDate == nil {
		d := now.AddDate(0, 0, defaultPaymentDays)
		inv.DueDate = &d
	}

	inv.TotalAmount = rec.Total()
	inv.TaxAmount = rec.Tax()
	inv.NetAmount = rec.Net()
	inv.Currency = rec.Currency
	if inv.Currency == "" {
		inv.Currency = domain.DefaultCurrency
	}
	inv.PONumber = rec.PONumber
	inv.EarlyPaymentDiscount = rec.EarlyPaymentDiscount
	inv.POMatched = rec.POMatched

	inv.Status = rec.FinalStatus
	inv.ProcessingStatus = rec.ProcessingStatus
	inv.ConfidenceScore = rec.ConfidenceScore
	inv.IsTouchless = rec.IsTouchless
	inv.ValidationErrors = rec.ValidationErrors
	inv.GLAccount = rec.GLAccount
	inv.CostCenter = rec.CostCenter
	inv.ApprovalLevel = rec.ApprovalLevel
	inv.ApproverID = rec.ApproverID
	inv.ProcessingTimeSeconds = rec.ProcessingTime
	inv.ProcessingError = strings.Join(rec.ProcessingErrors, "; ")

	switch inv.Status {
	case domain.InvoiceStatusApproved:
		inv.ApprovalStatus = domain.ApprovalApproved
	case domain.InvoiceStatusRejected:
		inv.ApprovalStatus = domain.ApprovalRejected
	default:
		inv.ApprovalStatus = domain.ApprovalPending
	}
	if rec.IsTouchless {
		system := domain.SystemUserID
		inv.ApprovedBy = &system
		inv.ApprovedAt = &now
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal processing record: %w", err)
	}
	inv.ExtractedData = raw
	inv.UpdatedAt = now
	return nil
}

func (uc *ProcessInvoiceUseCase) markStatus(ctx context.Context, invoiceID string, status domain.ProcessingStatus, errMessage string) error {
	return uc.invoices.UpdateProcessingStatus(ctx, invoiceID, status, errMessage)
}

func (uc *ProcessInvoiceUseCase) markFailed(ctx context.Context, invoiceID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, invoiceID, domain.ProcessingFailed, processErr.Error())
}
