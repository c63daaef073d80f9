package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
)

const DefaultMaxUploadBytes int64 = 10 << 20

var allowedExtensions = []string{".pdf", ".xml", ".png", ".jpg", ".jpeg", ".txt"}

type IngestInvoiceUseCase struct {
	invoices ports.InvoiceRepository
	audit    ports.AuditLog
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	inline   ports.InvoiceProcessor
	maxBytes int64
}

// NewIngestInvoiceUseCase wires the upload flow. When inline is non-nil uploads are
// processed synchronously and queue may be nil.
func NewIngestInvoiceUseCase(
	invoices ports.InvoiceRepository,
	audit ports.AuditLog,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	inline ports.InvoiceProcessor,
	maxBytes int64,
) *IngestInvoiceUseCase {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &IngestInvoiceUseCase{
		invoices: invoices,
		audit:    audit,
		storage:  storage,
		queue:    queue,
		inline:   inline,
		maxBytes: maxBytes,
	}
}

func (uc *IngestInvoiceUseCase) Upload(
	ctx context.Context,
	user *domain.User,
	filename, contentType string,
	body io.Reader,
) (*domain.Invoice, error) {
	format, err := documentFormat(filename)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(body, uc.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(raw)) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload invoice",
			fmt.Errorf("file exceeds %d bytes", uc.maxBytes))
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload invoice", errors.New("empty file"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	inv := &domain.Invoice{
		ID:               id,
		Currency:         domain.DefaultCurrency,
		Status:           domain.InvoiceStatusPending,
		ProcessingStatus: domain.ProcessingInbox,
		ApprovalStatus:   domain.ApprovalPending,
		ValidationErrors: []string{},
		DocumentPath:     storageKey,
		DocumentFormat:   format,
		UploadedBy:       userID(user),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := uc.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice row: %w", err)
	}

	if err := appendAudit(ctx, uc.audit, domain.EntityInvoice, inv.ID, domain.ActionInvoiceUploaded, inv.UploadedBy, map[string]any{
		"filename":     filename,
		"content_type": contentType,
		"size":         len(raw),
	}); err != nil {
		return nil, err
	}

	if uc.inline != nil {
		if err := uc.inline.ProcessByID(ctx, inv.ID); err != nil {
			return nil, fmt.Errorf("process invoice inline: %w", err)
		}
		processed, err := uc.invoices.GetByID(ctx, inv.ID)
		if err != nil {
			return nil, fmt.Errorf("reload processed invoice: %w", err)
		}
		return processed, nil
	}

	if err := uc.queue.PublishInvoiceUploaded(ctx, inv.ID); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}

	return inv, nil
}

func documentFormat(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(allowedExtensions, ext) {
		return "", domain.WrapError(domain.ErrInvalidInput, "upload invoice",
			fmt.Errorf("file type %q not allowed; allowed: %s", ext, strings.Join(allowedExtensions, ", ")))
	}
	format := strings.TrimPrefix(ext, ".")
	if format == "jpeg" {
		format = "jpg"
	}
	return format, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "invoice.bin"
	}
	return base
}
