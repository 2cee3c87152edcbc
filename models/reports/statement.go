package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/contract_ledger/tablestore"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"github.com/shopspring/decimal"
)

var ErrNoContracts = errors.New("no matching contracts")

// StatementTotals are summed over every requested contract.
type StatementTotals struct {
	Invoiced    decimal.Decimal `json:"invoiced"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// CustomerStatement is the account statement of one or more contracts,
// assembled from the published output tables.
type CustomerStatement struct {
	ContractIds   []string            `json:"contractIds"`
	CustomerName  string              `json:"customerName"`
	Contracts     []map[string]string `json:"contracts"`
	Summary       []map[string]string `json:"summary"`
	DetailHeaders []string            `json:"detailHeaders"`
	Details       []map[string]string `json:"details"`
	Totals        StatementTotals     `json:"totals"`
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if n := utils.NormalizeId(id); n != "" {
			set[n] = true
		}
	}
	return set
}

// cellMatches compares a cell holding one or several comma separated ids.
func cellMatches(cell any, want map[string]bool) bool {
	s := utils.CellString(cell)
	if want[utils.NormalizeId(s)] {
		return true
	}
	for _, part := range utils.SplitList(s, ',') {
		if want[utils.NormalizeId(part)] {
			return true
		}
	}
	return false
}

func rowMap(headers []string, row tablestore.Row) map[string]string {
	m := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			m[h] = utils.CellString(row[i])
		} else {
			m[h] = ""
		}
	}
	return m
}

func matchingRows(t *tablestore.Table, want map[string]bool, fields ...string) []map[string]string {
	if t == nil {
		return nil
	}
	idx := tablestore.NewHeaderIndex(t.Name, t.Headers)
	var out []map[string]string
	for _, row := range t.Rows {
		for _, f := range fields {
			if cellMatches(idx.Cell(row, f), want) {
				out = append(out, rowMap(t.Headers, row))
				break
			}
		}
	}
	return out
}

// LookupStatement collects contract, summary and ledger rows for ids.
// views holds Contract View; ledger holds the statement tables.
func LookupStatement(ctx context.Context, views, ledger tablestore.Store, ids []string) (*CustomerStatement, error) {
	want := idSet(ids)
	if len(want) == 0 {
		return nil, ErrNoContracts
	}

	cv, err := tablestore.ReadOptional(ctx, views, TableContractView)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TableContractView, err)
	}
	summary, err := tablestore.ReadOptional(ctx, ledger, TableSummarised)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TableSummarised, err)
	}
	details, err := tablestore.ReadPaginated(ctx, ledger, TableAccountStatement)
	if err != nil && !errors.Is(err, tablestore.ErrTableNotFound) {
		return nil, fmt.Errorf("read %s: %w", TableAccountStatement, err)
	}

	st := &CustomerStatement{
		ContractIds: ids,
		Contracts:   matchingRows(cv, want, "contract key", "site id", "contract ids"),
		Summary:     matchingRows(summary, want, "contract id"),
	}
	if details != nil {
		st.DetailHeaders = details.Headers
		st.Details = matchingRows(details, want, "contract id")
	}
	if len(st.Contracts) == 0 && len(st.Summary) == 0 && len(st.Details) == 0 {
		return nil, ErrNoContracts
	}

	for _, group := range [][]map[string]string{st.Contracts, st.Summary, st.Details} {
		if len(group) > 0 && st.CustomerName == "" {
			st.CustomerName = group[0]["Customer Name"]
		}
	}

	if len(st.Summary) > 0 {
		for _, s := range st.Summary {
			st.Totals.Invoiced = st.Totals.Invoiced.Add(moneyCell(s["Total Invoiced"]))
			st.Totals.Paid = st.Totals.Paid.Add(moneyCell(s["Total Paid"]))
			st.Totals.Outstanding = st.Totals.Outstanding.Add(moneyCell(s["Outstanding"]))
		}
	} else {
		for _, d := range st.Details {
			if d["Invoice Number"] == "Missing" {
				continue
			}
			st.Totals.Invoiced = st.Totals.Invoiced.Add(moneyCell(d["Debit"]))
			st.Totals.Paid = st.Totals.Paid.Add(moneyCell(d["Credit"]))
		}
		st.Totals.Outstanding = st.Totals.Invoiced.Sub(st.Totals.Paid)
	}
	return st, nil
}

func moneyCell(s string) decimal.Decimal {
	d, _ := utils.ToMoney(strings.TrimSpace(s))
	return d
}
