// Package dedup implements the duplicate invoice detectors used by the validation stage.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

// Fingerprint identifies an invoice by issuer and number. It is empty when the
// record carries no invoice number, in which case no duplicate check is possible.
func Fingerprint(rec *domain.ProcessingRecord) string {
	number := strings.ToLower(strings.TrimSpace(rec.InvoiceNumber))
	if number == "" {
		return ""
	}
	issuer := strings.TrimSpace(rec.SupplierTaxID)
	if issuer == "" {
		issuer = rec.SupplierName
	}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(issuer)) + "|" + number))
	return hex.EncodeToString(sum[:])
}
