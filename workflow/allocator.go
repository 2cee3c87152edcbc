package workflow

import (
	"sort"

	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"github.com/shopspring/decimal"
)

// InvoiceState is an invoice plus what receipts have paid against it.
type InvoiceState struct {
	Invoice        models.Invoice
	Allocated      decimal.Decimal
	ReceiptNumbers []string
	ReceiptDates   []models.Date
}

// Remaining is the amount still open for allocation.
func (s *InvoiceState) Remaining() decimal.Decimal {
	r := s.Invoice.Amount.Sub(s.Allocated)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Allocation is one slice of a receipt applied to an invoice.
type Allocation struct {
	ReceiptNumber string
	InvoiceNumber string
	Amount        decimal.Decimal
}

// InvoiceIndex is built once per run from the invoice table.
type InvoiceIndex struct {
	states     []*InvoiceState
	byNumber   map[string]*InvoiceState
	byPeriod   map[string][]*InvoiceState
	byContract map[string][]*InvoiceState
	// owner is the contract an invoice was booked against.
	owner map[*InvoiceState]*models.CanonicalContract
	// DuplicateNumbers counts invoice numbers seen more than once.
	DuplicateNumbers int
}

func periodKey(contractId, period string) string {
	return utils.NormalizeId(contractId) + "|" + period
}

func NewInvoiceIndex(invoices []models.Invoice) *InvoiceIndex {
	ix := &InvoiceIndex{
		byNumber:   make(map[string]*InvoiceState, len(invoices)),
		byPeriod:   make(map[string][]*InvoiceState),
		byContract: make(map[string][]*InvoiceState),
		owner:      make(map[*InvoiceState]*models.CanonicalContract),
	}
	for _, inv := range invoices {
		st := &InvoiceState{Invoice: inv}
		ix.states = append(ix.states, st)
		num := utils.NormalizeId(inv.Number)
		if _, dup := ix.byNumber[num]; dup {
			ix.DuplicateNumbers++
		} else {
			ix.byNumber[num] = st
		}
		pk := periodKey(inv.ContractId, inv.Period)
		ix.byPeriod[pk] = append(ix.byPeriod[pk], st)
		cid := utils.NormalizeId(inv.ContractId)
		ix.byContract[cid] = append(ix.byContract[cid], st)
	}
	return ix
}

func (ix *InvoiceIndex) ByNumber(number string) (*InvoiceState, bool) {
	st, ok := ix.byNumber[utils.NormalizeId(number)]
	return st, ok
}

// ForPeriod returns invoices of any alias id in one period, in input order.
func (ix *InvoiceIndex) ForPeriod(aliasIds []string, period string) []*InvoiceState {
	var out []*InvoiceState
	for _, id := range aliasIds {
		out = append(out, ix.byPeriod[periodKey(id, period)]...)
	}
	sortByRow(out)
	return out
}

// ForContract returns every invoice of any alias id, in input order.
func (ix *InvoiceIndex) ForContract(aliasIds []string) []*InvoiceState {
	var out []*InvoiceState
	seen := map[string]bool{}
	for _, id := range aliasIds {
		nid := utils.NormalizeId(id)
		if seen[nid] {
			continue
		}
		seen[nid] = true
		out = append(out, ix.byContract[nid]...)
	}
	sortByRow(out)
	return out
}

// Claim keeps the invoices that belong to c, taking unowned ones for it. An
// invoice is booked against the first contract that claims it.
func (ix *InvoiceIndex) Claim(c *models.CanonicalContract, states []*InvoiceState) []*InvoiceState {
	out := states[:0:0]
	for _, st := range states {
		owner, taken := ix.owner[st]
		if !taken {
			ix.owner[st] = c
			owner = c
		}
		if owner == c {
			out = append(out, st)
		}
	}
	return out
}

func sortByRow(states []*InvoiceState) {
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].Invoice.RowRef < states[j].Invoice.RowRef
	})
}

// CandidateInvoices lists the invoice numbers a receipt pays, in order:
// primary, additional, then the payment reference when neither is given.
func CandidateInvoices(r models.Receipt) []string {
	var out []string
	if !utils.IsBlank(r.InvoiceNumber) {
		out = append(out, utils.SplitList(r.InvoiceNumber, ',', ';')...)
	}
	out = append(out, r.AdditionalInvoiceNumbers...)
	if len(out) == 0 && !utils.IsBlank(r.PaymentReference) {
		out = append(out, utils.SplitList(r.PaymentReference, ',', ';')...)
	}
	seen := map[string]bool{}
	uniq := out[:0]
	for _, n := range out {
		k := utils.NormalizeId(n)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		uniq = append(uniq, n)
	}
	return uniq
}

// AllocationResult summarizes one Allocate call.
type AllocationResult struct {
	Allocations    []Allocation
	Unallocated    map[string]decimal.Decimal
	UnknownNumbers int
}

// Allocate distributes receipts first-come-first-served over their candidate
// invoices. Receipts are taken by payment date with unknown dates last; input
// order breaks ties. Any amount left after the candidates is dropped.
func (ix *InvoiceIndex) Allocate(receipts []models.Receipt) AllocationResult {
	ordered := make([]models.Receipt, len(receipts))
	copy(ordered, receipts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return models.CompareDates(ordered[i].PaymentDate, ordered[j].PaymentDate) < 0
	})

	res := AllocationResult{Unallocated: map[string]decimal.Decimal{}}
	for _, r := range ordered {
		remaining := r.Amount
		for _, number := range CandidateInvoices(r) {
			if !remaining.IsPositive() {
				break
			}
			st, ok := ix.ByNumber(number)
			if !ok {
				res.UnknownNumbers++
				continue
			}
			amount := decimal.Min(remaining, st.Remaining())
			if !amount.IsPositive() {
				continue
			}
			st.Allocated = st.Allocated.Add(amount)
			st.ReceiptNumbers = append(st.ReceiptNumbers, r.Number)
			st.ReceiptDates = append(st.ReceiptDates, r.PaymentDate)
			remaining = remaining.Sub(amount)
			res.Allocations = append(res.Allocations, Allocation{
				ReceiptNumber: r.Number,
				InvoiceNumber: st.Invoice.Number,
				Amount:        amount,
			})
		}
		if remaining.IsPositive() {
			res.Unallocated[r.Number] = res.Unallocated[r.Number].Add(remaining)
		}
	}
	return res
}

// Credit is what an invoice contributes to the paid total: the receipt
// allocation for PARTIAL statuses, the full amount for PAID, else zero.
func (s *InvoiceState) Credit() decimal.Decimal {
	switch {
	case s.Invoice.IsPartial():
		return s.Allocated
	case s.Invoice.IsPaid():
		return s.Invoice.Amount
	default:
		return decimal.Zero
	}
}
