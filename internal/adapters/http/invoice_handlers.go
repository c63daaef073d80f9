package httpadapter

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (rt *Router) uploadInvoice(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes+multipartOverhead)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	inv, err := rt.ingest.Upload(
		r.Context(),
		userFromContext(r.Context()),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(fileHeader.Size)
	}
	writeJSON(w, http.StatusAccepted, inv)
}

func (rt *Router) listInvoices(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := bindPage(w, r)
	if !ok {
		return
	}
	var status string
	if err := runtime.BindQueryParameter("form", true, false, "status", r.URL.Query(), &status); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	items, err := rt.invoices.List(r.Context(), domain.InvoiceFilter{
		Status: domain.InvoiceStatus(status),
		Skip:   skip,
		Limit:  limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (rt *Router) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := rt.invoices.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (rt *Router) updateInvoice(w http.ResponseWriter, r *http.Request) {
	var update domain.InvoiceUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, err)
		return
	}
	inv, err := rt.invoices.Update(r.Context(), userFromContext(r.Context()), pathID(r), update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (rt *Router) approveInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := rt.invoices.Approve(r.Context(), userFromContext(r.Context()), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (rt *Router) rejectInvoice(w http.ResponseWriter, r *http.Request) {
	var reason string
	if err := runtime.BindQueryParameter("form", true, true, "reason", r.URL.Query(), &reason); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	inv, err := rt.invoices.Reject(r.Context(), userFromContext(r.Context()), pathID(r), reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (rt *Router) invoiceRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := rt.invoices.Record(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) invoiceAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := rt.invoices.AuditTrail(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (rt *Router) invoiceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.invoices.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) dashboardMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := rt.invoices.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (rt *Router) exportLedger(w http.ResponseWriter, r *http.Request) {
	// Buffered so a failed export still gets a JSON error instead of a truncated file.
	var buf bytes.Buffer
	if err := rt.invoices.ExportLedger(r.Context(), &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func bindPage(w http.ResponseWriter, r *http.Request) (skip, limit int, ok bool) {
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "skip", query, &skip); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return 0, 0, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return 0, 0, false
	}
	return skip, limit, true
}
