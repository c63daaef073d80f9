package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/ap-automation/internal/config"
	"github.com/kirillkom/ap-automation/internal/core/domain"
)

var testUsers = map[string]*domain.User{
	"admin":    {ID: 1, Username: "admin", Role: domain.RoleAdmin, IsActive: true},
	"finance":  {ID: 2, Username: "finance", Role: domain.RoleFinanceManager, IsActive: true},
	"approver": {ID: 3, Username: "approver", Role: domain.RoleApprover, IsActive: true},
	"viewer":   {ID: 4, Username: "viewer", Role: domain.RoleViewer, IsActive: true},
}

type authFake struct{}

func (authFake) Authenticate(_ context.Context, token string) (*domain.User, error) {
	user, ok := testUsers[strings.TrimPrefix(token, "mock-token-")]
	if !ok {
		return nil, domain.WrapError(domain.ErrUnauthorized, "authenticate", errors.New("unknown token"))
	}
	return user, nil
}

type ingestFake struct {
	lastFilename string
	lastUser     *domain.User
	err          error
}

func (f *ingestFake) Upload(_ context.Context, user *domain.User, filename, _ string, body io.Reader) (*domain.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("empty file"))
	}
	f.lastFilename = filename
	f.lastUser = user
	return &domain.Invoice{
		ID:               "inv-1",
		Status:           domain.InvoiceStatusPending,
		ProcessingStatus: domain.ProcessingInbox,
		DocumentFormat:   "pdf",
	}, nil
}

type invoiceServiceFake struct {
	err        error
	lastFilter domain.InvoiceFilter
	lastReason string
	lastUpdate domain.InvoiceUpdate
	calls      []string
}

func (f *invoiceServiceFake) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *invoiceServiceFake) List(_ context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	f.lastFilter = filter
	if err := f.record("list"); err != nil {
		return nil, err
	}
	return []domain.Invoice{{ID: "inv-1"}}, nil
}

func (f *invoiceServiceFake) Get(_ context.Context, id string) (*domain.Invoice, error) {
	if err := f.record("get"); err != nil {
		return nil, err
	}
	return &domain.Invoice{ID: id}, nil
}

func (f *invoiceServiceFake) Update(_ context.Context, _ *domain.User, id string, update domain.InvoiceUpdate) (*domain.Invoice, error) {
	f.lastUpdate = update
	if err := f.record("update"); err != nil {
		return nil, err
	}
	return &domain.Invoice{ID: id}, nil
}

func (f *invoiceServiceFake) Approve(_ context.Context, _ *domain.User, id string) (*domain.Invoice, error) {
	if err := f.record("approve"); err != nil {
		return nil, err
	}
	return &domain.Invoice{ID: id, Status: domain.InvoiceStatusApproved}, nil
}

func (f *invoiceServiceFake) Reject(_ context.Context, _ *domain.User, id, reason string) (*domain.Invoice, error) {
	f.lastReason = reason
	if err := f.record("reject"); err != nil {
		return nil, err
	}
	return &domain.Invoice{ID: id, Status: domain.InvoiceStatusRejected}, nil
}

func (f *invoiceServiceFake) Record(_ context.Context, id string) (*domain.ProcessingRecord, error) {
	if err := f.record("record"); err != nil {
		return nil, err
	}
	return domain.NewProcessingRecord(id, "x.pdf", "pdf"), nil
}

func (f *invoiceServiceFake) AuditTrail(context.Context, string) ([]domain.AuditEntry, error) {
	if err := f.record("audit"); err != nil {
		return nil, err
	}
	return []domain.AuditEntry{{Action: domain.ActionInvoiceUploaded}}, nil
}

func (f *invoiceServiceFake) Stats(context.Context) (domain.InvoiceStats, error) {
	return domain.InvoiceStats{TotalInvoices: 3}, f.record("stats")
}

func (f *invoiceServiceFake) Dashboard(context.Context) (domain.DashboardMetrics, error) {
	return domain.DashboardMetrics{IncomingInvoices: 2}, f.record("dashboard")
}

func (f *invoiceServiceFake) ExportLedger(_ context.Context, w io.Writer) error {
	if err := f.record("export"); err != nil {
		return err
	}
	_, err := w.Write([]byte("PK-workbook"))
	return err
}

type supplierServiceFake struct {
	err     error
	created domain.Supplier
	calls   []string
}

func (f *supplierServiceFake) Create(_ context.Context, _ *domain.User, s domain.Supplier) (*domain.Supplier, error) {
	f.calls = append(f.calls, "create")
	if f.err != nil {
		return nil, f.err
	}
	f.created = s
	s.ID = "sup-1"
	return &s, nil
}

func (f *supplierServiceFake) List(context.Context, int, int) ([]domain.Supplier, error) {
	f.calls = append(f.calls, "list")
	return []domain.Supplier{{ID: "sup-1"}}, f.err
}

func (f *supplierServiceFake) Get(_ context.Context, id string) (*domain.Supplier, error) {
	f.calls = append(f.calls, "get")
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Supplier{ID: id}, nil
}

func (f *supplierServiceFake) Update(_ context.Context, _ *domain.User, id string, _ domain.SupplierUpdate) (*domain.Supplier, error) {
	f.calls = append(f.calls, "update")
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Supplier{ID: id}, nil
}

func (f *supplierServiceFake) Deactivate(context.Context, *domain.User, string) error {
	f.calls = append(f.calls, "deactivate")
	return f.err
}

type testEnv struct {
	ingest    *ingestFake
	invoices  *invoiceServiceFake
	suppliers *supplierServiceFake
	handler   http.Handler
}

func newTestEnv(cfg config.Config) *testEnv {
	env := &testEnv{
		ingest:    &ingestFake{},
		invoices:  &invoiceServiceFake{},
		suppliers: &supplierServiceFake{},
	}
	env.handler = NewRouter(cfg, authFake{}, env.ingest, env.invoices, env.suppliers).Handler()
	return env
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestEnv(cfg).handler
}
