package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kirillkom/ap-automation/internal/config"
	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
	"github.com/kirillkom/ap-automation/internal/observability/metrics"
)

const serviceName = "ap-api"

// multipart framing allowance on top of the file size limit
const multipartOverhead = 1 << 20

var (
	writeRoles    = []domain.Role{domain.RoleAdmin, domain.RoleFinanceManager, domain.RoleApprover}
	financeRoles  = []domain.Role{domain.RoleAdmin, domain.RoleFinanceManager}
	adminOnlyRole = []domain.Role{domain.RoleAdmin}
)

type Router struct {
	cfg       config.Config
	auth      ports.Authenticator
	ingest    ports.InvoiceIngestor
	invoices  ports.InvoiceService
	suppliers ports.SupplierService
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	auth ports.Authenticator,
	ingest ports.InvoiceIngestor,
	invoices ports.InvoiceService,
	suppliers ports.SupplierService,
) *Router {
	return &Router{
		cfg:       cfg,
		auth:      auth,
		ingest:    ingest,
		invoices:  invoices,
		suppliers: suppliers,
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", rt.root).Methods(http.MethodGet)
	r.HandleFunc("/health", rt.health).Methods(http.MethodGet)
	r.HandleFunc("/openapi.yaml", rt.openAPIDocument).Methods(http.MethodGet)
	if rt.metrics != nil {
		r.Handle("/metrics", rt.metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	validator, err := newRequestValidator()
	if err != nil {
		// The document is embedded, so this only fails on a broken build.
		panic(err)
	}
	api.Use(validator.middleware)

	invoices := api.PathPrefix("/invoices").Subrouter()
	invoices.HandleFunc("/upload", rt.authorize(rt.uploadInvoice)).Methods(http.MethodPost)
	invoices.HandleFunc("/stats/overview", rt.authorize(rt.invoiceStats)).Methods(http.MethodGet)
	invoices.HandleFunc("/dashboard/metrics", rt.authorize(rt.dashboardMetrics)).Methods(http.MethodGet)
	invoices.HandleFunc("/export.xlsx", rt.authorize(rt.exportLedger, financeRoles...)).Methods(http.MethodGet)
	invoices.HandleFunc("", rt.authorize(rt.listInvoices)).Methods(http.MethodGet)
	invoices.HandleFunc("/{id}", rt.authorize(rt.getInvoice)).Methods(http.MethodGet)
	invoices.HandleFunc("/{id}", rt.authorize(rt.updateInvoice, writeRoles...)).Methods(http.MethodPut)
	invoices.HandleFunc("/{id}/approve", rt.authorize(rt.approveInvoice, writeRoles...)).Methods(http.MethodPost)
	invoices.HandleFunc("/{id}/reject", rt.authorize(rt.rejectInvoice, writeRoles...)).Methods(http.MethodPost)
	invoices.HandleFunc("/{id}/record", rt.authorize(rt.invoiceRecord)).Methods(http.MethodGet)
	invoices.HandleFunc("/{id}/audit", rt.authorize(rt.invoiceAudit)).Methods(http.MethodGet)

	suppliers := api.PathPrefix("/suppliers").Subrouter()
	suppliers.HandleFunc("", rt.authorize(rt.listSuppliers)).Methods(http.MethodGet)
	suppliers.HandleFunc("", rt.authorize(rt.createSupplier, financeRoles...)).Methods(http.MethodPost)
	suppliers.HandleFunc("/{id}", rt.authorize(rt.getSupplier)).Methods(http.MethodGet)
	suppliers.HandleFunc("/{id}", rt.authorize(rt.updateSupplier, financeRoles...)).Methods(http.MethodPut)
	suppliers.HandleFunc("/{id}", rt.authorize(rt.deactivateSupplier, adminOnlyRole...)).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	var handler http.Handler = r
	if rt.cfg.APIBackpressureMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIBackpressureMaxInFlight,
			time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "ap-automation",
		"docs":    "/openapi.yaml",
	})
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPISpec)
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode body", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}
