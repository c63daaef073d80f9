package ports

import (
	"context"
	"io"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

// InvoiceIngestor is the inbound contract for invoice upload orchestration.
type InvoiceIngestor interface {
	Upload(ctx context.Context, user *domain.User, filename, contentType string, body io.Reader) (*domain.Invoice, error)
}

// InvoiceProcessor is the inbound contract for running the workflow on a stored invoice.
type InvoiceProcessor interface {
	ProcessByID(ctx context.Context, invoiceID string) error
}

// InvoiceService is the inbound read/write model behind the invoice routes.
type InvoiceService interface {
	List(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)
	Get(ctx context.Context, id string) (*domain.Invoice, error)
	Update(ctx context.Context, user *domain.User, id string, update domain.InvoiceUpdate) (*domain.Invoice, error)
	Approve(ctx context.Context, user *domain.User, id string) (*domain.Invoice, error)
	Reject(ctx context.Context, user *domain.User, id, reason string) (*domain.Invoice, error)
	Record(ctx context.Context, id string) (*domain.ProcessingRecord, error)
	AuditTrail(ctx context.Context, id string) ([]domain.AuditEntry, error)
	Stats(ctx context.Context) (domain.InvoiceStats, error)
	Dashboard(ctx context.Context) (domain.DashboardMetrics, error)
	ExportLedger(ctx context.Context, w io.Writer) error
}

// SupplierService is the inbound contract behind the supplier routes.
type SupplierService interface {
	Create(ctx context.Context, user *domain.User, s domain.Supplier) (*domain.Supplier, error)
	List(ctx context.Context, skip, limit int) ([]domain.Supplier, error)
	Get(ctx context.Context, id string) (*domain.Supplier, error)
	Update(ctx context.Context, user *domain.User, id string, update domain.SupplierUpdate) (*domain.Supplier, error)
	Deactivate(ctx context.Context, user *domain.User, id string) error
}

// Authenticator resolves the caller from a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, bearerToken string) (*domain.User, error)
}
