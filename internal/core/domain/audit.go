package domain

import (
	"encoding/json"
	"time"
)

const (
	EntityInvoice  = "invoice"
	EntitySupplier = "supplier"
)

const (
	ActionInvoiceUploaded    = "invoice.uploaded"
	ActionInvoiceProcessed   = "invoice.processed"
	ActionInvoiceUpdated     = "invoice.updated"
	ActionInvoiceApproved    = "invoice.approved"
	ActionInvoiceRejected    = "invoice.rejected"
	ActionSupplierCreated    = "supplier.created"
	ActionSupplierUpdated    = "supplier.updated"
	ActionSupplierDeactivate = "supplier.deactivated"
)

type AuditEntry struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Action     string          `json:"action"`
	UserID     int64           `json:"user_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
