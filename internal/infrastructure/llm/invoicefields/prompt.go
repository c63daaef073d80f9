// Package invoicefields holds the extraction prompt and the tolerant JSON decoding
// shared by the generative field extractors.
package invoicefields

import "unicode/utf8"

const maxSnippet = 12000

// BuildPrompt returns the instruction plus the (truncated) invoice text.
func BuildPrompt(text string) string {
	snippet := text
	if len(snippet) > maxSnippet {
		cut := maxSnippet
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut]
	}

	return `You are an invoice data extraction engine.
Return one strict JSON object with keys:
invoice_number (string), supplier_name (string), supplier_tax_id (string),
invoice_date (YYYY-MM-DD), due_date (YYYY-MM-DD),
total_amount (number), tax_amount (number), net_amount (number),
currency (ISO 4217 code), po_number (string),
early_payment_discount (number, percent offered for early payment, e.g. 2 for "2% within 10 days"),
line_items (array of objects with description, quantity, unit_price, total).
Use null for any field that is not present. No markdown, no extra keys.

Invoice:
` + snippet
}
