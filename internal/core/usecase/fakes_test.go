package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/workflow"
)

type statusCall struct {
	status domain.ProcessingStatus
	errMsg string
}

type invoiceRepoFake struct {
	mu          sync.Mutex
	items       map[string]domain.Invoice
	createErr   error
	saveErr     error
	getErr      error
	statusCalls []statusCall
	stats       domain.InvoiceStats
	dashboard   domain.DashboardMetrics
	window      int
	ledger      []domain.LedgerLine
	lastFilter  domain.InvoiceFilter

	// uniqueNumbers mirrors the UNIQUE invoice_number column.
	uniqueNumbers bool
}

func newInvoiceRepoFake(items ...domain.Invoice) *invoiceRepoFake {
	f := &invoiceRepoFake{items: map[string]domain.Invoice{}}
	for _, inv := range items {
		f.items[inv.ID] = inv
	}
	return f
}

func (f *invoiceRepoFake) Create(_ context.Context, inv *domain.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.items[inv.ID] = *inv
	return nil
}

func (f *invoiceRepoFake) GetByID(_ context.Context, id string) (*domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	inv, ok := f.items[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvoiceNotFound, "get invoice", errors.New(id))
	}
	return &inv, nil
}

func (f *invoiceRepoFake) List(_ context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	f.lastFilter = filter
	out := make([]domain.Invoice, 0, len(f.items))
	for _, inv := range f.items {
		if filter.Status == "" || inv.Status == filter.Status {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *invoiceRepoFake) Save(_ context.Context, inv *domain.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.uniqueNumbers && inv.InvoiceNumber != "" {
		for id, other := range f.items {
			if id != inv.ID && other.InvoiceNumber == inv.InvoiceNumber {
				return domain.WrapError(domain.ErrConflict, "save invoice", errors.New(inv.InvoiceNumber))
			}
		}
	}
	f.items[inv.ID] = *inv
	return nil
}

func (f *invoiceRepoFake) UpdateProcessingStatus(_ context.Context, id string, status domain.ProcessingStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if inv, ok := f.items[id]; ok {
		inv.ProcessingStatus = status
		inv.ProcessingError = errMessage
		f.items[id] = inv
	}
	return nil
}

func (f *invoiceRepoFake) ExistsByNumber(context.Context, string, string) (bool, error) {
	return false, nil
}

func (f *invoiceRepoFake) Stats(context.Context) (domain.InvoiceStats, error) { return f.stats, nil }

func (f *invoiceRepoFake) Dashboard(_ context.Context, window int) (domain.DashboardMetrics, error) {
	f.window = window
	return f.dashboard, nil
}

func (f *invoiceRepoFake) LedgerLines(context.Context, domain.InvoiceStatus) ([]domain.LedgerLine, error) {
	return f.ledger, nil
}

type supplierRepoFake struct {
	items     map[string]domain.Supplier
	lookupErr error
	created   []domain.Supplier
}

func newSupplierRepoFake(items ...domain.Supplier) *supplierRepoFake {
	f := &supplierRepoFake{items: map[string]domain.Supplier{}}
	for _, s := range items {
		f.items[s.ID] = s
	}
	return f
}

func (f *supplierRepoFake) Create(_ context.Context, s *domain.Supplier) error {
	f.items[s.ID] = *s
	f.created = append(f.created, *s)
	return nil
}

func (f *supplierRepoFake) GetByID(_ context.Context, id string) (*domain.Supplier, error) {
	s, ok := f.items[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrSupplierNotFound, "get supplier", errors.New(id))
	}
	return &s, nil
}

func (f *supplierRepoFake) GetByTaxID(_ context.Context, taxID string) (*domain.Supplier, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, s := range f.items {
		if s.TaxID == taxID {
			return &s, nil
		}
	}
	return nil, domain.WrapError(domain.ErrSupplierNotFound, "get supplier by tax id", errors.New(taxID))
}

func (f *supplierRepoFake) List(context.Context, int, int) ([]domain.Supplier, error) {
	out := make([]domain.Supplier, 0, len(f.items))
	for _, s := range f.items {
		out = append(out, s)
	}
	return out, nil
}

func (f *supplierRepoFake) Save(_ context.Context, s *domain.Supplier) error {
	f.items[s.ID] = *s
	return nil
}

type auditFake struct {
	entries []domain.AuditEntry
	err     error
}

func (f *auditFake) Append(_ context.Context, entry domain.AuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *auditFake) ListByEntity(_ context.Context, entityType, entityID string) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range f.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *auditFake) actions() []string {
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type storageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

type queueFake struct {
	invoiceID string
	err       error
}

func (f *queueFake) PublishInvoiceUploaded(_ context.Context, invoiceID string) error {
	if f.err != nil {
		return f.err
	}
	f.invoiceID = invoiceID
	return nil
}

func (f *queueFake) SubscribeInvoiceUploaded(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type workflowFake struct {
	rec *domain.ProcessingRecord
	err error
	got workflow.Document
}

func (f *workflowFake) Process(_ context.Context, doc workflow.Document) (*domain.ProcessingRecord, error) {
	f.got = doc
	if f.err != nil {
		return nil, f.err
	}
	rec := *f.rec
	rec.InvoiceID = doc.InvoiceID
	return &rec, nil
}

type observerFake struct {
	records []*domain.ProcessingRecord
}

func (f *observerFake) ObserveRecord(rec *domain.ProcessingRecord) {
	f.records = append(f.records, rec)
}

type exporterFake struct {
	lines []domain.LedgerLine
}

func (f *exporterFake) Export(_ context.Context, lines []domain.LedgerLine, w io.Writer) error {
	f.lines = lines
	_, err := io.WriteString(w, "xlsx")
	return err
}

type userDirFake struct {
	users map[string]domain.User
	err   error
}

func (f *userDirFake) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[username]
	if !ok {
		return nil, domain.WrapError(domain.ErrUserNotFound, "get user", errors.New(username))
	}
	return &u, nil
}
