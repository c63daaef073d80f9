package invoicefields

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02.01.2006",
	"01/02/2006",
}

type payload struct {
	InvoiceNumber *string    `json:"invoice_number"`
	SupplierName  *string    `json:"supplier_name"`
	SupplierTaxID *string    `json:"supplier_tax_id"`
	InvoiceDate   *string    `json:"invoice_date"`
	DueDate       *string    `json:"due_date"`
	TotalAmount   amount     `json:"total_amount"`
	TaxAmount     amount     `json:"tax_amount"`
	NetAmount     amount     `json:"net_amount"`
	Currency      *string    `json:"currency"`
	PONumber      *string    `json:"po_number"`
	LineItems     []lineItem `json:"line_items"`

	EarlyPaymentDiscount amount `json:"early_payment_discount"`
}

type lineItem struct {
	Description string `json:"description"`
	Quantity    amount `json:"quantity"`
	UnitPrice   amount `json:"unit_price"`
	Total       amount `json:"total"`
}

// amount accepts JSON numbers, null and strings such as "$1,500.00".
type amount struct {
	decimal.NullDecimal
}

func (a *amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		a.Valid = false
		return nil
	}
	if unquoted, ok := strings.CutPrefix(raw, `"`); ok {
		raw = strings.TrimSuffix(unquoted, `"`)
		raw = strings.Map(func(r rune) rune {
			switch {
			case r >= '0' && r <= '9', r == '.', r == '-':
				return r
			default:
				return -1
			}
		}, raw)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("parse amount %s: %w", string(data), err)
	}
	a.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

// ExtractJSONObject trims anything outside the outermost braces, e.g. markdown fences.
func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// Parse decodes a model response into extracted fields.
func Parse(raw string) (domain.ExtractedFields, error) {
	var p payload
	if err := json.Unmarshal([]byte(ExtractJSONObject(raw)), &p); err != nil {
		return domain.ExtractedFields{}, fmt.Errorf("parse invoice json: %w", err)
	}

	fields := domain.ExtractedFields{
		InvoiceNumber: str(p.InvoiceNumber),
		SupplierName:  str(p.SupplierName),
		SupplierTaxID: str(p.SupplierTaxID),
		TotalAmount:   p.TotalAmount.NullDecimal,
		TaxAmount:     p.TaxAmount.NullDecimal,
		NetAmount:     p.NetAmount.NullDecimal,
		Currency:      strings.ToUpper(str(p.Currency)),
		PONumber:      str(p.PONumber),
		LineItems:     make([]domain.LineItem, 0, len(p.LineItems)),

		EarlyPaymentDiscount: p.EarlyPaymentDiscount.NullDecimal,
	}

	var err error
	if fields.InvoiceDate, err = parseDate(str(p.InvoiceDate)); err != nil {
		return domain.ExtractedFields{}, fmt.Errorf("invoice_date: %w", err)
	}
	if fields.DueDate, err = parseDate(str(p.DueDate)); err != nil {
		return domain.ExtractedFields{}, fmt.Errorf("due_date: %w", err)
	}

	for _, li := range p.LineItems {
		fields.LineItems = append(fields.LineItems, domain.LineItem{
			Description: strings.TrimSpace(li.Description),
			Quantity:    li.Quantity.Decimal,
			UnitPrice:   li.UnitPrice.Decimal,
			Total:       li.Total.Decimal,
		})
	}
	return fields, nil
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", value)
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
