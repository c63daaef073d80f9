package dedup

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

type numberLookup interface {
	ExistsByNumber(ctx context.Context, invoiceNumber, excludeID string) (bool, error)
}

// RepositoryDetector treats any other stored invoice with the same number as a duplicate.
type RepositoryDetector struct {
	invoices numberLookup
}

func NewRepositoryDetector(invoices numberLookup) *RepositoryDetector {
	return &RepositoryDetector{invoices: invoices}
}

func (d *RepositoryDetector) IsDuplicate(ctx context.Context, rec *domain.ProcessingRecord) (bool, error) {
	number := strings.TrimSpace(rec.InvoiceNumber)
	if number == "" {
		return false, nil
	}
	exists, err := d.invoices.ExistsByNumber(ctx, number, rec.InvoiceID)
	if err != nil {
		return false, fmt.Errorf("lookup invoice number: %w", err)
	}
	return exists, nil
}

// Disabled never reports duplicates.
type Disabled struct{}

func (Disabled) IsDuplicate(context.Context, *domain.ProcessingRecord) (bool, error) {
	return false, nil
}
