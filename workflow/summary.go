package workflow

import (
	"sort"

	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"github.com/shopspring/decimal"
)

// Summarise rolls invoices and receipts up per contract, independent of the
// line ledger. ledgers supplies the last running balance when one exists.
func Summarise(contracts []*models.CanonicalContract, ledgers []models.ContractLedger, ix *InvoiceIndex) []models.ContractSummary {
	lastBalance := make(map[*models.CanonicalContract]decimal.Decimal, len(ledgers))
	for _, l := range ledgers {
		if n := len(l.Entries); n > 0 {
			lastBalance[l.Contract] = l.Entries[n-1].Balance
		}
	}

	out := make([]models.ContractSummary, 0, len(contracts))
	for _, c := range contracts {
		s := models.ContractSummary{Contract: c}
		for _, st := range ix.Claim(c, ix.ForContract(c.AliasIds())) {
			s.InvoiceCount++
			s.Invoiced = s.Invoiced.Add(st.Invoice.Amount)
			s.Paid = s.Paid.Add(st.Credit())
			for _, d := range append([]models.Date{st.Invoice.PaidAt}, st.ReceiptDates...) {
				if d.Known() && (!s.LastPaidDate.Known() || models.CompareDates(d, s.LastPaidDate) > 0) {
					s.LastPaidDate = d
				}
			}
		}
		s.Outstanding = s.Invoiced.Sub(s.Paid)
		if b, ok := lastBalance[c]; ok {
			s.LastBalance, s.HasLedger = b, true
		}
		out = append(out, s)
	}
	return out
}

// MonthlyComparison aggregates ledger lines into expected vs actual per period.
func MonthlyComparison(ledgers []models.ContractLedger) []models.MonthSummary {
	byPeriod := map[string]*models.MonthSummary{}
	for _, l := range ledgers {
		for _, e := range l.Entries {
			if e.Period == "" {
				continue
			}
			m, ok := byPeriod[e.Period]
			if !ok {
				m = &models.MonthSummary{Period: e.Period}
				byPeriod[e.Period] = m
			}
			m.Expected = m.Expected.Add(e.Expected)
			switch {
			case e.IsMissing():
				m.MissingCount++
			case e.Status == models.LedgerStatusFullyPaid:
			default:
				m.InvoiceCount++
				m.Invoiced = m.Invoiced.Add(e.Debit)
				m.Paid = m.Paid.Add(e.Credit)
			}
		}
	}
	out := make([]models.MonthSummary, 0, len(byPeriod))
	for _, m := range byPeriod {
		m.Variance = m.Invoiced.Sub(m.Expected)
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}
