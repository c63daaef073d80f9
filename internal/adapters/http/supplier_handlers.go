package httpadapter

import (
	"net/http"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

type createSupplierRequest struct {
	Name                string `json:"name"`
	TaxID               string `json:"tax_id"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	Address             string `json:"address"`
	Country             string `json:"country"`
	DefaultPaymentTerms string `json:"default_payment_terms"`
}

func (rt *Router) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req createSupplierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s, err := rt.suppliers.Create(r.Context(), userFromContext(r.Context()), domain.Supplier{
		Name:                req.Name,
		TaxID:               req.TaxID,
		Email:               req.Email,
		Phone:               req.Phone,
		Address:             req.Address,
		Country:             req.Country,
		DefaultPaymentTerms: req.DefaultPaymentTerms,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (rt *Router) listSuppliers(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := bindPage(w, r)
	if !ok {
		return
	}
	items, err := rt.suppliers.List(r.Context(), skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (rt *Router) getSupplier(w http.ResponseWriter, r *http.Request) {
	s, err := rt.suppliers.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (rt *Router) updateSupplier(w http.ResponseWriter, r *http.Request) {
	var update domain.SupplierUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, err)
		return
	}
	s, err := rt.suppliers.Update(r.Context(), userFromContext(r.Context()), pathID(r), update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (rt *Router) deactivateSupplier(w http.ResponseWriter, r *http.Request) {
	if err := rt.suppliers.Deactivate(r.Context(), userFromContext(r.Context()), pathID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
