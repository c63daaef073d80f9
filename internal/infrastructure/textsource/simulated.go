package textsource

import "context"

// SampleInvoiceText is a fixed invoice used when extraction runs in simulation mode.
const SampleInvoiceText = `INVOICE

Invoice Number: INV-2024-001
Invoice Date: 2024-01-15
Due Date: 2024-02-15

Supplier:
Tech Solutions Inc.
Tax ID: 12-3456789

Bill To:
PERFO Corporation

Items:
1. Cloud Services - Monthly Subscription
   Quantity: 1
   Unit Price: $1,500.00
   Total: $1,500.00

2. Support Package - Premium
   Quantity: 1
   Unit Price: $500.00
   Total: $500.00

Subtotal: $2,000.00
Tax (10%): $200.00
Total: $2,200.00

Purchase Order: PO-2024-045

Payment Terms: Net 30
Early Payment Discount: 2% if paid within 10 days`

// Simulated ignores the stored document and always returns SampleInvoiceText.
type Simulated struct{}

func (Simulated) Text(context.Context, string, string) (string, error) {
	return SampleInvoiceText, nil
}
