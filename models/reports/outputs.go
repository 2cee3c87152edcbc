package reports

import (
	"strings"

	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/tablestore"
	"github.com/shopspring/decimal"
)

// Output tables.
const (
	TableContractView       = "Contract View"
	TableAccountStatement   = "Account Statement"
	TableSummarised         = "Account Statement - summarised"
	TableExpectedVsActual   = "Expected vs Actual"
	TableMissingInvoices    = "Missing Invoices"
	TableOutstandingBalance = "Outstanding Balance"
	TableMergeLog           = "Merge Log"
)

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return models.NotAvailable
	}
	return s
}

func intOrNA(n int) any {
	if n <= 0 {
		return models.NotAvailable
	}
	return n
}

func money(d decimal.Decimal) any {
	return d.Round(2)
}

func joinDates(dates []models.Date) string {
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		parts = append(parts, d.Display())
	}
	return strings.Join(parts, ", ")
}

var ContractViewHeaders = []string{
	"Contract Key", "Site ID", "Contract IDs", "Legacy Order ID", "Customer Name", "Segment",
	"Package", "Quantity", "Status", "Start Date", "End Date", "Period", "Unit Price",
	"Monthly Rate", "Contract Value", "Leading Months", "Tailing Months", "Category",
	"Sales Person", "Partner", "Delivery Address", "Source Sheet", "Match Method",
	"Renewal Of", "Flags",
}

func ContractViewRow(c *models.CanonicalContract) tablestore.Row {
	return tablestore.Row{
		c.Key,
		orNA(c.SiteId),
		orNA(strings.Join(c.ContractIds, ", ")),
		orNA(c.LegacyOrderId),
		orNA(c.CustomerName),
		orNA(c.Segment),
		orNA(c.Package()),
		c.Quantity,
		orNA(c.Status),
		c.StartDate.Display(),
		c.EndDate.Display(),
		intOrNA(c.PeriodMonths),
		money(c.UnitPrice),
		money(c.MonthlyRate),
		money(c.ContractValue),
		c.LeadingMonths,
		c.TailingMonths,
		c.Category,
		orNA(c.SalesPerson),
		orNA(c.Partner),
		orNA(c.DeliveryAddress),
		orNA(c.SourceSheet),
		string(c.MatchMethod),
		c.RenewalOf,
		strings.Join(c.Flags, "; "),
	}
}

func ContractViewRows(contracts []*models.CanonicalContract) []tablestore.Row {
	rows := make([]tablestore.Row, 0, len(contracts))
	for _, c := range contracts {
		rows = append(rows, ContractViewRow(c))
	}
	return rows
}

var AccountStatementHeaders = []string{
	"Customer Name", "Contract ID", "Start Date", "Period", "Line Type", "Invoice Number",
	"Expected", "Debit", "Credit", "Total Invoiced", "Total Paid", "Balance", "Status",
	"Receipt Numbers", "Receipt Dates",
}

func LedgerEntryRow(e models.LedgerEntry) tablestore.Row {
	return tablestore.Row{
		e.CustomerName,
		e.ContractIds,
		e.StartDate.Display(),
		e.PeriodLabel,
		string(e.LineType),
		e.InvoiceNumber,
		money(e.Expected),
		money(e.Debit),
		money(e.Credit),
		money(e.RunningInvoiced),
		money(e.RunningPaid),
		money(e.Balance),
		e.Status,
		strings.Join(e.ReceiptNumbers, ", "),
		joinDates(e.ReceiptDates),
	}
}

func AccountStatementRows(ledgers []models.ContractLedger) []tablestore.Row {
	var rows []tablestore.Row
	for _, l := range ledgers {
		for _, e := range l.Entries {
			rows = append(rows, LedgerEntryRow(e))
		}
	}
	return rows
}

var SummarisedHeaders = []string{
	"Customer Name", "Contract ID", "Status", "Contract Value", "Total Invoiced", "Total Paid",
	"Outstanding", "Last Balance", "Last Paid Date", "Invoice Count",
}

func SummarisedRows(summaries []models.ContractSummary) []tablestore.Row {
	rows := make([]tablestore.Row, 0, len(summaries))
	for _, s := range summaries {
		var last any = models.NotAvailable
		if s.HasLedger {
			last = money(s.LastBalance)
		}
		rows = append(rows, tablestore.Row{
			s.Contract.CustomerName,
			s.Contract.ContractIdList(),
			orNA(s.Contract.Status),
			money(s.Contract.ContractValue),
			money(s.Invoiced),
			money(s.Paid),
			money(s.Outstanding),
			last,
			s.LastPaidDate.Display(),
			s.InvoiceCount,
		})
	}
	return rows
}

var ExpectedVsActualHeaders = []string{
	"Period", "Expected", "Invoiced", "Paid", "Variance", "Invoice Count", "Missing Count",
}

func ExpectedVsActualRows(months []models.MonthSummary) []tablestore.Row {
	rows := make([]tablestore.Row, 0, len(months))
	for _, m := range months {
		rows = append(rows, tablestore.Row{
			m.Period,
			money(m.Expected),
			money(m.Invoiced),
			money(m.Paid),
			money(m.Variance),
			m.InvoiceCount,
			m.MissingCount,
		})
	}
	return rows
}

var MissingInvoicesHeaders = []string{
	"Customer Name", "Contract ID", "Period", "Line Type", "Expected", "Balance",
}

func MissingInvoiceRows(ledgers []models.ContractLedger) []tablestore.Row {
	var rows []tablestore.Row
	for _, l := range ledgers {
		for _, e := range l.Entries {
			if !e.IsMissing() {
				continue
			}
			rows = append(rows, tablestore.Row{
				e.CustomerName, e.ContractIds, e.PeriodLabel, string(e.LineType), money(e.Expected), money(e.Balance),
			})
		}
	}
	return rows
}

var OutstandingBalanceHeaders = []string{
	"Customer Name", "Contract ID", "Status", "Contract Value", "Expected", "Invoiced", "Paid",
	"Outstanding", "Fully Paid", "Schedule",
}

func OutstandingBalanceRows(ledgers []models.ContractLedger) []tablestore.Row {
	rows := make([]tablestore.Row, 0, len(ledgers))
	for _, l := range ledgers {
		schedule := "Determined"
		if l.ScheduleUndetermined {
			schedule = "Undetermined"
		}
		rows = append(rows, tablestore.Row{
			l.Contract.CustomerName,
			l.Contract.ContractIdList(),
			orNA(l.Contract.Status),
			money(l.Contract.ContractValue),
			money(l.ExpectedTotal),
			money(l.Invoiced),
			money(l.Paid),
			money(l.Outstanding),
			l.FullyPaid,
			schedule,
		})
	}
	return rows
}

var MergeLogHeaders = []string{
	"Group Key", "Merged IDs", "Original ID", "Table", "Row", "Source", "Renewal Of", "Flags",
}

// MergeLogRows emits one row per source record of every group.
func MergeLogRows(groups []*models.ContractGroup) []tablestore.Row {
	var rows []tablestore.Row
	for _, g := range groups {
		for _, src := range g.Sources {
			rows = append(rows, tablestore.Row{
				g.Key,
				strings.Join(g.Ids, ", "),
				src.OriginalId,
				src.Table,
				src.RowRef,
				src.Source,
				g.RenewalOf,
				strings.Join(g.Flags, "; "),
			})
		}
	}
	return rows
}
