package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Invoice struct {
	Number        string
	ContractId    string
	Period        string // "YYYY-MM", "" when unknown
	Amount        decimal.Decimal
	PaymentStatus string
	PaidAt        Date
	RowRef        int
}

// IsPartial reports a PARTIAL* payment status.
func (i Invoice) IsPartial() bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(i.PaymentStatus)), "PARTIAL")
}

// IsPaid reports a plain PAID status, not partial, unpaid or pending.
func (i Invoice) IsPaid() bool {
	s := strings.ToUpper(strings.TrimSpace(i.PaymentStatus))
	if !strings.Contains(s, "PAID") {
		return false
	}
	return !strings.Contains(s, "PARTIAL") && !strings.Contains(s, "UNPAID") && !strings.Contains(s, "PENDING")
}

type Receipt struct {
	Number                   string
	ContractId               string
	PaymentDate              Date
	Amount                   decimal.Decimal
	InvoiceNumber            string
	AdditionalInvoiceNumbers []string
	PaymentReference         string
	RowRef                   int
}

// Overrides are the external category tables plus enrichment lookups.
type Overrides struct {
	// BySku is keyed by normalized SKU.
	BySku map[string]string
	// ByContract is keyed by ContractOverrideKey.
	ByContract map[string]string
	// SalesPeople is keyed by normalized contract id.
	SalesPeople map[string]string
	// Partners is keyed by normalized customer name.
	Partners map[string]string
}

// ContractOverrideKey is "contractId|customer|sku|qty" over normalized parts.
func ContractOverrideKey(contractId, customer, sku string, qty int) string {
	return strings.Join([]string{
		strings.ToUpper(strings.TrimSpace(contractId)),
		normalizeKeyName(customer),
		strings.ToUpper(strings.TrimSpace(sku)),
		itoa(qty),
	}, "|")
}
