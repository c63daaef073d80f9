package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

const supplierColumns = `id, name, tax_id, email, phone, address, country, default_payment_terms,
	is_active, is_verified, risk_score, created_at, updated_at`

type SupplierRepository struct {
	db *sql.DB
}

func NewSupplierRepository(db *sql.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

func (r *SupplierRepository) Create(ctx context.Context, s *domain.Supplier) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO suppliers (`+supplierColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		s.ID, s.Name, s.TaxID, s.Email, s.Phone, s.Address, s.Country, s.DefaultPaymentTerms,
		s.IsActive, s.IsVerified, s.RiskScore, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "insert supplier",
				fmt.Errorf("tax id %q already registered", s.TaxID))
		}
		return fmt.Errorf("insert supplier: %w", err)
	}
	return nil
}

func (r *SupplierRepository) GetByID(ctx context.Context, id string) (*domain.Supplier, error) {
	return r.getOne(ctx, "id", id)
}

func (r *SupplierRepository) GetByTaxID(ctx context.Context, taxID string) (*domain.Supplier, error) {
	return r.getOne(ctx, "tax_id", taxID)
}

func (r *SupplierRepository) getOne(ctx context.Context, column, value string) (*domain.Supplier, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE `+column+` = $1`, value)
	s, err := scanSupplier(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSupplierNotFound, "get supplier", fmt.Errorf("%s=%s", column, value))
		}
		return nil, fmt.Errorf("scan supplier: %w", err)
	}
	return &s, nil
}

func (r *SupplierRepository) List(ctx context.Context, skip, limit int) ([]domain.Supplier, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+supplierColumns+`
FROM suppliers
ORDER BY name
OFFSET $1 LIMIT $2
`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Supplier, 0, limit)
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suppliers: %w", err)
	}
	return out, nil
}

func (r *SupplierRepository) Save(ctx context.Context, s *domain.Supplier) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE suppliers
SET name = $2, email = $3, phone = $4, address = $5, country = $6, default_payment_terms = $7,
	is_active = $8, is_verified = $9, risk_score = $10, updated_at = $11
WHERE id = $1
`, s.ID, s.Name, s.Email, s.Phone, s.Address, s.Country, s.DefaultPaymentTerms,
		s.IsActive, s.IsVerified, s.RiskScore, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save supplier: %w", err)
	}
	return expectOneRow(result, domain.ErrSupplierNotFound, "save supplier", s.ID)
}

func scanSupplier(row rowScanner) (domain.Supplier, error) {
	var s domain.Supplier
	err := row.Scan(
		&s.ID, &s.Name, &s.TaxID, &s.Email, &s.Phone, &s.Address, &s.Country, &s.DefaultPaymentTerms,
		&s.IsActive, &s.IsVerified, &s.RiskScore, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}
