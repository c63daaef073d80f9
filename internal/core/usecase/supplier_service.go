package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
)

type SupplierServiceUseCase struct {
	suppliers ports.SupplierRepository
	audit     ports.AuditLog
	now       func() time.Time
}

func NewSupplierServiceUseCase(suppliers ports.SupplierRepository, audit ports.AuditLog) *SupplierServiceUseCase {
	return &SupplierServiceUseCase{
		suppliers: suppliers,
		audit:     audit,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *SupplierServiceUseCase) Create(ctx context.Context, user *domain.User, s domain.Supplier) (*domain.Supplier, error) {
	s.Name = strings.TrimSpace(s.Name)
	s.TaxID = strings.TrimSpace(s.TaxID)
	if s.Name == "" || s.TaxID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create supplier", errors.New("name and tax_id are required"))
	}

	_, err := uc.suppliers.GetByTaxID(ctx, s.TaxID)
	switch {
	case err == nil:
		return nil, domain.WrapError(domain.ErrConflict, "create supplier", fmt.Errorf("tax id %s already registered", s.TaxID))
	case !domain.IsKind(err, domain.ErrSupplierNotFound):
		return nil, fmt.Errorf("lookup supplier by tax id: %w", err)
	}

	now := uc.now()
	s.ID = uuid.NewString()
	s.IsActive = true
	s.CreatedAt = now
	s.UpdatedAt = now

	if err := uc.suppliers.Create(ctx, &s); err != nil {
		return nil, fmt.Errorf("create supplier: %w", err)
	}
	if err := appendAudit(ctx, uc.audit, domain.EntitySupplier, s.ID, domain.ActionSupplierCreated, userID(user), map[string]any{
		"name":   s.Name,
		"tax_id": s.TaxID,
	}); err != nil {
		return nil, err
	}
	return &s, nil
}

func (uc *SupplierServiceUseCase) List(ctx context.Context, skip, limit int) ([]domain.Supplier, error) {
	skip, limit, err := normalizePage("list suppliers", skip, limit)
	if err != nil {
		return nil, err
	}
	items, err := uc.suppliers.List(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return items, nil
}

func (uc *SupplierServiceUseCase) Get(ctx context.Context, id string) (*domain.Supplier, error) {
	s, err := uc.suppliers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get supplier: %w", err)
	}
	return s, nil
}

func (uc *SupplierServiceUseCase) Update(ctx context.Context, user *domain.User, id string, update domain.SupplierUpdate) (*domain.Supplier, error) {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update supplier", errors.New("name must not be empty"))
	}
	s, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	update.Apply(s)
	s.UpdatedAt = uc.now()

	if err := uc.suppliers.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save supplier: %w", err)
	}
	if err := appendAudit(ctx, uc.audit, domain.EntitySupplier, s.ID, domain.ActionSupplierUpdated, userID(user), map[string]any{
		"update": update,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Deactivate soft-deletes the supplier; invoices keep referencing it.
func (uc *SupplierServiceUseCase) Deactivate(ctx context.Context, user *domain.User, id string) error {
	s, err := uc.Get(ctx, id)
	if err != nil {
		return err
	}
	s.IsActive = false
	s.UpdatedAt = uc.now()
	if err := uc.suppliers.Save(ctx, s); err != nil {
		return fmt.Errorf("save supplier: %w", err)
	}
	return appendAudit(ctx, uc.audit, domain.EntitySupplier, s.ID, domain.ActionSupplierDeactivate, userID(user), nil)
}
