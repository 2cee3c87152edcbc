package models

import (
	"github.com/shopspring/decimal"
)

type LineType string

const (
	LineUpfront     LineType = "UPFRONT"
	LineNormal      LineType = "NORMAL"
	LineUnscheduled LineType = "UNSCHEDULED"
)

const (
	MissingInvoiceNumber = "Missing"

	LedgerStatusPaid      = "Paid"
	LedgerStatusPartial   = "Partially Paid"
	LedgerStatusUnpaid    = "Unpaid"
	LedgerStatusMissing   = "Missing Invoice"
	LedgerStatusFullyPaid = "Fully Paid"
)

// LedgerEntry is one (contract, period) line of the account statement.
type LedgerEntry struct {
	ContractKey     string
	ContractIds     string
	CustomerName    string
	StartDate       Date
	Period          string
	PeriodLabel     string
	LineType        LineType
	InvoiceNumber   string
	// Expected is the scheduled amount, set on the first line of a period only.
	Expected        decimal.Decimal
	Debit           decimal.Decimal
	Credit          decimal.Decimal
	RunningInvoiced decimal.Decimal
	RunningPaid     decimal.Decimal
	Balance         decimal.Decimal
	Status          string
	ReceiptNumbers  []string
	ReceiptDates    []Date
}

func (e LedgerEntry) IsMissing() bool {
	return e.InvoiceNumber == MissingInvoiceNumber
}

// ContractLedger is the end state of one contract's ledger walk.
type ContractLedger struct {
	Contract             *CanonicalContract
	Entries              []LedgerEntry
	Invoiced             decimal.Decimal
	Paid                 decimal.Decimal
	Outstanding          decimal.Decimal
	ExpectedTotal        decimal.Decimal
	LifetimePaid         decimal.Decimal
	FullyPaid            bool
	ScheduleUndetermined bool
}

// ContractSummary is the coarse per-contract roll-up of invoices and receipts.
type ContractSummary struct {
	Contract     *CanonicalContract
	Invoiced     decimal.Decimal
	Paid         decimal.Decimal
	Outstanding  decimal.Decimal
	LastBalance  decimal.Decimal
	HasLedger    bool
	LastPaidDate Date
	InvoiceCount int
}

// MonthSummary compares expected and actual billing for one period.
type MonthSummary struct {
	Period       string
	Expected     decimal.Decimal
	Invoiced     decimal.Decimal
	Paid         decimal.Decimal
	Variance     decimal.Decimal
	InvoiceCount int
	MissingCount int
}
