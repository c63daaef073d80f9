package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	var details interface{}
	if len(entry.Details) > 0 {
		details = []byte(entry.Details)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_log (id, entity_type, entity_id, action, user_id, details, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.UserID, details, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, entity_type, entity_id, action, user_id, details, created_at
FROM audit_log
WHERE entity_type = $1 AND entity_id = $2
ORDER BY created_at
`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var e domain.AuditEntry
		var details []byte
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
