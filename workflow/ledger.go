package workflow

import (
	"iter"
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"github.com/shopspring/decimal"
)

// ledgerState carries the running totals of one contract walk.
type ledgerState struct {
	invoiced    decimal.Decimal
	paid        decimal.Decimal
	outstanding decimal.Decimal
	cap         decimal.Decimal
	clamp       bool
}

// apply books one line. Invoiced and outstanding never exceed the contract value.
func (l *ledgerState) apply(debit, credit decimal.Decimal) {
	l.invoiced = l.invoiced.Add(debit)
	l.paid = l.paid.Add(credit)
	if l.clamp {
		l.invoiced = decimal.Min(l.invoiced, l.cap)
	}
	l.outstanding = l.invoiced.Sub(l.paid)
	if l.clamp {
		l.outstanding = decimal.Min(l.outstanding, l.cap)
	}
}

func paymentLabel(inv models.Invoice) string {
	switch {
	case inv.IsPartial():
		return models.LedgerStatusPartial
	case inv.IsPaid():
		return models.LedgerStatusPaid
	default:
		return models.LedgerStatusUnpaid
	}
}

// WalkContract runs the ledger state machine over one contract's schedule
// and its invoices in period order. Invoices outside the schedule are booked
// as UNSCHEDULED lines in their own period; invoices without a period come last.
func WalkContract(c *models.CanonicalContract, ix *InvoiceIndex, monthCap int, tolerance decimal.Decimal) models.ContractLedger {
	aliases := c.AliasIds()
	invoices := ix.Claim(c, ix.ForContract(aliases))

	firstPeriod := ""
	lifetimePaid := decimal.Zero
	periods := map[string]bool{}
	for _, st := range invoices {
		lifetimePaid = lifetimePaid.Add(st.Credit())
		p := st.Invoice.Period
		periods[p] = true
		if p != "" && (firstPeriod == "" || p < firstPeriod) {
			firstPeriod = p
		}
	}

	sched := BuildSchedule(c, firstPeriod, monthCap)
	lines := make(map[string]ScheduleLine, len(sched.Lines))
	for _, l := range sched.Lines {
		lines[l.Period] = l
		periods[l.Period] = true
	}
	expectedTotal := sched.Total()
	fullyPaid := lifetimePaid.GreaterThanOrEqual(expectedTotal.Sub(tolerance))

	ordered := make([]string, 0, len(periods))
	for p := range periods {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		// unknown period last
		if (ordered[i] == "") != (ordered[j] == "") {
			return ordered[j] == ""
		}
		return ordered[i] < ordered[j]
	})

	state := ledgerState{cap: c.ContractValue, clamp: c.ContractValue.IsPositive()}
	out := models.ContractLedger{
		Contract:             c,
		ExpectedTotal:        expectedTotal,
		LifetimePaid:         lifetimePaid,
		FullyPaid:            fullyPaid,
		ScheduleUndetermined: sched.Undetermined,
	}
	base := models.LedgerEntry{
		ContractKey:  c.Key,
		ContractIds:  c.ContractIdList(),
		CustomerName: c.CustomerName,
		StartDate:    c.StartDate,
	}

	for _, p := range ordered {
		line, scheduled := lines[p]
		entry := base
		entry.Period = p
		entry.PeriodLabel = utils.MonthLabel(p)
		if p == "" {
			entry.PeriodLabel = models.NotAvailable
		}

		found := ix.Claim(c, ix.ForPeriod(aliases, p))
		if len(found) > 0 {
			for n, st := range found {
				e := entry
				e.LineType = models.LineUnscheduled
				if scheduled {
					e.LineType = line.Type
					if n == 0 {
						e.Expected = line.Expected
					}
				}
				credit := st.Credit()
				state.apply(st.Invoice.Amount, credit)
				e.InvoiceNumber = st.Invoice.Number
				e.Debit = st.Invoice.Amount
				e.Credit = credit
				e.Status = paymentLabel(st.Invoice)
				e.ReceiptNumbers = st.ReceiptNumbers
				e.ReceiptDates = st.ReceiptDates
				e.RunningInvoiced, e.RunningPaid, e.Balance = state.invoiced, state.paid, state.outstanding
				out.Entries = append(out.Entries, e)
			}
			continue
		}

		if !scheduled || line.Expected.IsZero() {
			continue
		}
		entry.LineType = line.Type
		entry.Expected = line.Expected
		if fullyPaid {
			entry.InvoiceNumber = models.NotAvailable
			entry.Debit = decimal.Zero
			entry.Status = models.LedgerStatusFullyPaid
		} else {
			state.apply(line.Expected, decimal.Zero)
			entry.InvoiceNumber = models.MissingInvoiceNumber
			entry.Debit = line.Expected
			entry.Status = models.LedgerStatusMissing
		}
		entry.Credit = decimal.Zero
		entry.RunningInvoiced, entry.RunningPaid, entry.Balance = state.invoiced, state.paid, state.outstanding
		out.Entries = append(out.Entries, entry)
	}

	out.Invoiced, out.Paid, out.Outstanding = state.invoiced, state.paid, state.outstanding
	return out
}

// BuildLedgers walks every contract and orders the result by customer name,
// contract id, then start date.
func BuildLedgers(contracts []*models.CanonicalContract, ix *InvoiceIndex, monthCap int, tolerance decimal.Decimal) []models.ContractLedger {
	out := make([]models.ContractLedger, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, WalkContract(c, ix, monthCap, tolerance))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Contract, out[j].Contract
		if cmp := strings.Compare(strings.ToUpper(a.CustomerName), strings.ToUpper(b.CustomerName)); cmp != 0 {
			return cmp < 0
		}
		if cmp := strings.Compare(a.ContractIdList(), b.ContractIdList()); cmp != 0 {
			return cmp < 0
		}
		return models.CompareDates(a.StartDate, b.StartDate) < 0
	})
	return out
}

// LedgerRows flattens ledgers in order for streaming writers.
func LedgerRows(ledgers []models.ContractLedger) iter.Seq[models.LedgerEntry] {
	return func(yield func(models.LedgerEntry) bool) {
		for _, l := range ledgers {
			for _, e := range l.Entries {
				if !yield(e) {
					return
				}
			}
		}
	}
}
