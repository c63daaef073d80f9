package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
)

type invoicesFake struct {
	ports.InvoiceService
	lastFilter domain.InvoiceFilter
	err        error
}

func (f *invoicesFake) List(_ context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Invoice{{ID: "inv-1", Status: domain.InvoiceStatusPending}}, nil
}

func (f *invoicesFake) Get(_ context.Context, id string) (*domain.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Invoice{ID: id}, nil
}

func (f *invoicesFake) Stats(context.Context) (domain.InvoiceStats, error) {
	return domain.InvoiceStats{TotalInvoices: 7, TouchlessRate: 42.5}, f.err
}

func (f *invoicesFake) Dashboard(context.Context) (domain.DashboardMetrics, error) {
	return domain.DashboardMetrics{IncomingInvoices: 5}, f.err
}

func (f *invoicesFake) ExportLedger(context.Context, io.Writer) error { return nil }

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) != 1 {
		t.Fatalf("expected a single content item, got %+v", res)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestListInvoicesPassesFilter(t *testing.T) {
	fake := &invoicesFake{}
	s := NewServer(fake)

	res, err := s.listInvoices(context.Background(), callRequest(map[string]any{
		"status": "pending",
		"skip":   float64(10),
		"limit":  float64(5),
	}))
	if err != nil {
		t.Fatalf("listInvoices() error = %v", err)
	}
	want := domain.InvoiceFilter{Status: domain.InvoiceStatusPending, Skip: 10, Limit: 5}
	if fake.lastFilter != want {
		t.Fatalf("unexpected filter %+v", fake.lastFilter)
	}
	var items []domain.Invoice
	if err := json.Unmarshal([]byte(resultText(t, res)), &items); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(items) != 1 || items[0].ID != "inv-1" {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestGetInvoiceRequiresID(t *testing.T) {
	s := NewServer(&invoicesFake{})

	res, err := s.getInvoice(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("getInvoice() error = %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for missing id")
	}
}

func TestGetInvoiceReportsServiceError(t *testing.T) {
	s := NewServer(&invoicesFake{err: domain.WrapError(domain.ErrInvoiceNotFound, "get invoice", errors.New("id=nope"))})

	res, err := s.getInvoice(context.Background(), callRequest(map[string]any{"id": "nope"}))
	if err != nil {
		t.Fatalf("getInvoice() error = %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "not found") {
		t.Fatalf("expected not found tool error, got %+v", res)
	}
}

func TestStatsAndDashboardTools(t *testing.T) {
	s := NewServer(&invoicesFake{})

	res, err := s.invoiceStats(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("invoiceStats() error = %v", err)
	}
	if !strings.Contains(resultText(t, res), `"total_invoices":7`) {
		t.Fatalf("unexpected stats payload %s", resultText(t, res))
	}

	res, err = s.dashboardMetrics(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("dashboardMetrics() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error %s", resultText(t, res))
	}
}
