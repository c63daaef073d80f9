package ports

import (
	"context"
	"io"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

// InvoiceRepository persists invoice rows and answers reporting queries.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	List(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)
	Save(ctx context.Context, inv *domain.Invoice) error
	UpdateProcessingStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMessage string) error
	ExistsByNumber(ctx context.Context, invoiceNumber, excludeID string) (bool, error)
	Stats(ctx context.Context) (domain.InvoiceStats, error)
	Dashboard(ctx context.Context, window int) (domain.DashboardMetrics, error)
	LedgerLines(ctx context.Context, status domain.InvoiceStatus) ([]domain.LedgerLine, error)
}

// SupplierRepository persists suppliers.
type SupplierRepository interface {
	Create(ctx context.Context, s *domain.Supplier) error
	GetByID(ctx context.Context, id string) (*domain.Supplier, error)
	GetByTaxID(ctx context.Context, taxID string) (*domain.Supplier, error)
	List(ctx context.Context, skip, limit int) ([]domain.Supplier, error)
	Save(ctx context.Context, s *domain.Supplier) error
}

// UserDirectory resolves the demo user accounts.
type UserDirectory interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// AuditLog appends and reads audit entries.
type AuditLog interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditEntry, error)
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes upload events.
type MessageQueue interface {
	PublishInvoiceUploaded(ctx context.Context, invoiceID string) error
	SubscribeInvoiceUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// TextSource turns a stored document into plain text.
type TextSource interface {
	Text(ctx context.Context, documentPath, documentFormat string) (string, error)
}

// FieldExtractor asks a generative model for structured invoice fields.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string) (domain.ExtractedFields, error)
}

// DuplicateDetector reports whether the record describes an already known invoice.
type DuplicateDetector interface {
	IsDuplicate(ctx context.Context, rec *domain.ProcessingRecord) (bool, error)
}

// LedgerExporter renders ledger lines for ERP import.
type LedgerExporter interface {
	Export(ctx context.Context, lines []domain.LedgerLine, w io.Writer) error
}

// ProcessObserver receives workflow outcomes for metrics.
type ProcessObserver interface {
	ObserveRecord(rec *domain.ProcessingRecord)
}
