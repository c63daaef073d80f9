package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
)

func appendAudit(
	ctx context.Context,
	log ports.AuditLog,
	entityType, entityID, action string,
	userID int64,
	details map[string]any,
) error {
	if log == nil {
		return nil
	}
	entry := domain.AuditEntry{
		ID:         uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     userID,
		CreatedAt:  time.Now().UTC(),
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		entry.Details = raw
	}
	if err := log.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry %s: %w", action, err)
	}
	return nil
}

func userID(user *domain.User) int64 {
	if user == nil {
		return domain.SystemUserID
	}
	return user.ID
}

const maxPageSize = 100

func normalizePage(op string, skip, limit int) (int, int, error) {
	if skip < 0 {
		return 0, 0, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("skip must be >= 0, got %d", skip))
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	return skip, limit, nil
}
