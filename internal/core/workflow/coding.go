package workflow

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

const (
	StageCoding = "coding"

	unknownSupplier = "Unknown"
)

type CodingStage struct {
	book *CodeBook
}

func NewCodingStage(book *CodeBook) *CodingStage {
	if book == nil {
		book = DefaultCodeBook()
	}
	return &CodingStage{book: book}
}

func (s *CodingStage) Name() string { return StageCoding }

func (s *CodingStage) Run(_ context.Context, rec *domain.ProcessingRecord) error {
	supplier := rec.SupplierName
	if supplier == "" {
		supplier = unknownSupplier
	}

	target, err := s.book.Lookup(supplier)
	if err != nil {
		rec.AddProcessingError("Coding error: " + err.Error())
		rec.CurrentStep = StageCoding + "_failed"
		return nil
	}

	rec.GLAccount = target.GLAccount
	rec.CostCenter = target.CostCenter
	rec.AccountingEntries = s.entries(rec, supplier)
	rec.CurrentStep = domain.StepCodingCompleted
	return nil
}

// entries builds the double-entry set: expense debit, optional input-tax debit, payable credit.
func (s *CodingStage) entries(rec *domain.ProcessingRecord, supplier string) []domain.AccountingEntry {
	entries := make([]domain.AccountingEntry, 0, 3)
	entries = append(entries, domain.AccountingEntry{
		Account:     rec.GLAccount,
		CostCenter:  rec.CostCenter,
		Debit:       rec.Net(),
		Credit:      decimal.Zero,
		Description: fmt.Sprintf("Invoice %s - %s", rec.InvoiceNumber, supplier),
	})

	if rec.Tax().IsPositive() {
		entries = append(entries, domain.AccountingEntry{
			Account:     s.book.TaxAccount,
			CostCenter:  rec.CostCenter,
			Debit:       rec.Tax(),
			Credit:      decimal.Zero,
			Description: fmt.Sprintf("Tax - Invoice %s", rec.InvoiceNumber),
		})
	}

	entries = append(entries, domain.AccountingEntry{
		Account:     s.book.PayableAccount,
		CostCenter:  rec.CostCenter,
		Debit:       decimal.Zero,
		Credit:      rec.Total(),
		Description: fmt.Sprintf("AP - %s", supplier),
	})
	return entries
}
