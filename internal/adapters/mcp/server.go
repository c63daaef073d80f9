// Package mcpadapter exposes read-only invoice queries as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
)

const (
	serverName    = "ap-automation"
	serverVersion = "1.0.0"
)

type Server struct {
	invoices ports.InvoiceService
	mcp      *server.MCPServer
}

func NewServer(invoices ports.InvoiceService) *Server {
	s := &Server{
		invoices: invoices,
		mcp:      server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.mcp.AddTool(mcp.NewTool("list_invoices",
		mcp.WithDescription("List invoices, newest first, optionally filtered by approval status."),
		mcp.WithString("status",
			mcp.Description("Approval status filter"),
			mcp.Enum(string(domain.InvoiceStatusPending), string(domain.InvoiceStatusApproved), string(domain.InvoiceStatusRejected)),
		),
		mcp.WithNumber("skip", mcp.Description("Number of invoices to skip")),
		mcp.WithNumber("limit", mcp.Description("Page size, 1 to 100")),
	), s.listInvoices)
	s.mcp.AddTool(mcp.NewTool("get_invoice",
		mcp.WithDescription("Fetch a single invoice by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Invoice id")),
	), s.getInvoice)
	s.mcp.AddTool(mcp.NewTool("invoice_stats",
		mcp.WithDescription("Invoice counts, touchless rate and average processing time."),
	), s.invoiceStats)
	s.mcp.AddTool(mcp.NewTool("dashboard_metrics",
		mcp.WithDescription("Accounts payable dashboard metrics for the last 30 days."),
	), s.dashboardMetrics)
	return s
}

// ServeStdio blocks serving MCP over stdin/stdout. Errors are logged through logger.
func (s *Server) ServeStdio(logger *slog.Logger) error {
	return server.ServeStdio(s.mcp, server.WithErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)))
}

func (s *Server) listInvoices(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := domain.InvoiceFilter{
		Status: domain.InvoiceStatus(req.GetString("status", "")),
		Skip:   req.GetInt("skip", 0),
		Limit:  req.GetInt("limit", 0),
	}
	items, err := s.invoices.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) getInvoice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	inv, err := s.invoices.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(inv)
}

func (s *Server) invoiceStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.invoices.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}

func (s *Server) dashboardMetrics(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.invoices.Dashboard(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}
