package models

import (
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/tablestore"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"github.com/shopspring/decimal"
)

// Input tables.
const (
	TableSiteContracts     = "Contracts (Site)"
	TableSheetContracts    = "Contracts (Sheet)"
	TableInvoices          = "Invoices"
	TableReceipts          = "Receipts"
	TableSales             = "Sales"
	TablePartners          = "Partners"
	TableSkuOverrides      = "SKU Overrides"
	TableContractOverrides = "Contract Overrides"
)

// Header names; aliases are '|' separated.
const (
	colSiteId          = "site id|site"
	colContractId      = "contract id|contract no|contract number"
	colLegacyOrderId   = "legacy order id|legacy order|order id"
	colCustomerName    = "customer name|customer"
	colSegment         = "segment|customer segment|customer type"
	colPackage         = "package|sku|package/sku"
	colQuantity        = "quantity|qty"
	colStatus          = "status|contract status"
	colStartDate       = "start date|start"
	colEndDate         = "end date|end"
	colPeriod          = "period|period (months)|contract period"
	colUnitPrice       = "unit price|price|monthly price"
	colLeadingMonths   = "leading months|leading"
	colTailingMonths   = "tailing months|tailing|trailing months"
	colDeliveryAddress = "delivery address|address"
	colSource          = "source|source sheet"

	colInvoiceNumber     = "invoice number|invoice no|invoice"
	colBillingPeriod     = "billing period|period|month"
	colAmount            = "amount|total"
	colPaymentStatus     = "payment status|status"
	colPaidAt            = "paid at|paid date"
	colReceiptNumber     = "receipt number|receipt no|receipt"
	colPaymentDate       = "payment date|date"
	colAdditionalInvoice = "additional invoice numbers|additional invoices"
	colPaymentReference  = "payment reference|reference"

	colSalesPerson = "sales person|salesperson|sales"
	colPartner     = "partner"
	colCategory    = "category"
)

// ParseStats counts non-blank cells that failed lenient parsing.
type ParseStats struct {
	MoneyParseFailures int
	DateParseFailures  int
}

func (s *ParseStats) money(v any) decimal.Decimal {
	d, ok := utils.ToMoney(v)
	if !ok && s != nil && !utils.IsBlank(utils.CellString(v)) {
		s.MoneyParseFailures++
	}
	return d
}

func (s *ParseStats) date(v any, statusHint string) Date {
	d := ParseDate(v, statusHint)
	if !d.Known() && s != nil && !utils.IsBlank(utils.CellString(v)) {
		s.DateParseFailures++
	}
	return d
}

func intCell(v any) int {
	n, _ := utils.ToInt(v)
	return n
}

func text(idx tablestore.HeaderIndex, row tablestore.Row, field string) string {
	s := utils.CellString(idx.Cell(row, field))
	if utils.IsBlank(s) {
		return ""
	}
	return s
}

func isMonthHeader(h string) bool {
	_, err := time.Parse("2006-01", h)
	return err == nil
}

// LoadContracts reads a contract source table. Rows without an id and a
// customer are skipped.
func LoadContracts(t *tablestore.Table, kind RecordKind, stats *ParseStats) ([]ContractRecord, error) {
	idx := tablestore.NewHeaderIndex(t.Name, t.Headers)
	idField := colContractId
	if kind == RecordKindSite {
		idField = colSiteId
	}
	if err := idx.Require(idField, colCustomerName, colPackage, colQuantity, colStatus, colStartDate); err != nil {
		return nil, err
	}
	monthCols := tablestore.Columns(t.Headers, isMonthHeader)

	var out []ContractRecord
	for i, row := range t.Rows {
		status := text(idx, row, colStatus)
		rec := ContractRecord{
			Kind:            kind,
			LegacyOrderId:   text(idx, row, colLegacyOrderId),
			CustomerName:    text(idx, row, colCustomerName),
			Segment:         text(idx, row, colSegment),
			Package:         strings.ToUpper(text(idx, row, colPackage)),
			Quantity:        intCell(idx.Cell(row, colQuantity)),
			Status:          status,
			StartDate:       stats.date(idx.Cell(row, colStartDate), status),
			EndDate:         stats.date(idx.Cell(row, colEndDate), status),
			PeriodMonths:    intCell(idx.Cell(row, colPeriod)),
			UnitPrice:       stats.money(idx.Cell(row, colUnitPrice)),
			LeadingMonths:   intCell(idx.Cell(row, colLeadingMonths)),
			TailingMonths:   intCell(idx.Cell(row, colTailingMonths)),
			DeliveryAddress: text(idx, row, colDeliveryAddress),
			Source:          text(idx, row, colSource),
			Table:           t.Name,
			RowRef:          i + 2,
		}
		if kind == RecordKindSite {
			rec.SiteId = text(idx, row, colSiteId)
			rec.ContractId = text(idx, row, colContractId)
		} else {
			rec.ContractId = text(idx, row, colContractId)
		}
		if rec.Source == "" {
			rec.Source = t.Name
		}
		if rec.Id() == "" && rec.CustomerName == "" {
			continue
		}
		for _, c := range monthCols {
			if c >= len(row) || utils.IsBlank(utils.CellString(row[c])) {
				continue
			}
			if rec.PeriodInvoices == nil {
				rec.PeriodInvoices = make(map[string]decimal.Decimal)
			}
			rec.PeriodInvoices[strings.TrimSpace(t.Headers[c])] = stats.money(row[c])
		}
		out = append(out, rec)
	}
	return out, nil
}

func LoadInvoices(t *tablestore.Table, stats *ParseStats) ([]Invoice, error) {
	idx := tablestore.NewHeaderIndex(t.Name, t.Headers)
	if err := idx.Require(colInvoiceNumber, colContractId, colBillingPeriod, colAmount, colPaymentStatus); err != nil {
		return nil, err
	}
	var out []Invoice
	for i, row := range t.Rows {
		number := text(idx, row, colInvoiceNumber)
		if number == "" {
			continue
		}
		period, ok := utils.ParseMonthKey(idx.Cell(row, colBillingPeriod))
		if !ok && stats != nil && !utils.IsBlank(utils.CellString(idx.Cell(row, colBillingPeriod))) {
			stats.DateParseFailures++
		}
		out = append(out, Invoice{
			Number:        number,
			ContractId:    text(idx, row, colContractId),
			Period:        period,
			Amount:        stats.money(idx.Cell(row, colAmount)),
			PaymentStatus: text(idx, row, colPaymentStatus),
			PaidAt:        stats.date(idx.Cell(row, colPaidAt), ""),
			RowRef:        i + 2,
		})
	}
	return out, nil
}

func LoadReceipts(t *tablestore.Table, stats *ParseStats) ([]Receipt, error) {
	idx := tablestore.NewHeaderIndex(t.Name, t.Headers)
	if err := idx.Require(colReceiptNumber, colContractId, colPaymentDate, colAmount); err != nil {
		return nil, err
	}
	var out []Receipt
	for i, row := range t.Rows {
		number := text(idx, row, colReceiptNumber)
		if number == "" {
			continue
		}
		out = append(out, Receipt{
			Number:                   number,
			ContractId:               text(idx, row, colContractId),
			PaymentDate:              stats.date(idx.Cell(row, colPaymentDate), ""),
			Amount:                   stats.money(idx.Cell(row, colAmount)),
			InvoiceNumber:            text(idx, row, colInvoiceNumber),
			AdditionalInvoiceNumbers: utils.SplitList(text(idx, row, colAdditionalInvoice), ',', ';', '\n'),
			PaymentReference:         text(idx, row, colPaymentReference),
			RowRef:                   i + 2,
		})
	}
	return out, nil
}

// LoadOverrides reads the optional lookup tables. Nil tables count as empty.
func LoadOverrides(skus, contracts, sales, partners *tablestore.Table) (Overrides, error) {
	o := Overrides{
		BySku:       map[string]string{},
		ByContract:  map[string]string{},
		SalesPeople: map[string]string{},
		Partners:    map[string]string{},
	}
	if err := eachRow(skus, []string{colPackage, colCategory}, func(idx tablestore.HeaderIndex, row tablestore.Row) {
		sku := utils.NormalizeId(text(idx, row, colPackage))
		if cat := text(idx, row, colCategory); sku != "" && cat != "" {
			o.BySku[sku] = strings.ToUpper(cat)
		}
	}); err != nil {
		return o, err
	}
	if err := eachRow(contracts, []string{colContractId, colCustomerName, colPackage, colQuantity, colCategory}, func(idx tablestore.HeaderIndex, row tablestore.Row) {
		key := ContractOverrideKey(text(idx, row, colContractId), text(idx, row, colCustomerName),
			text(idx, row, colPackage), intCell(idx.Cell(row, colQuantity)))
		if cat := text(idx, row, colCategory); cat != "" {
			o.ByContract[key] = strings.ToUpper(cat)
		}
	}); err != nil {
		return o, err
	}
	if err := eachRow(sales, []string{colContractId, colSalesPerson}, func(idx tablestore.HeaderIndex, row tablestore.Row) {
		if id := utils.NormalizeId(text(idx, row, colContractId)); id != "" {
			o.SalesPeople[id] = text(idx, row, colSalesPerson)
		}
	}); err != nil {
		return o, err
	}
	if err := eachRow(partners, []string{colCustomerName, colPartner}, func(idx tablestore.HeaderIndex, row tablestore.Row) {
		if name := utils.NormalizeName(text(idx, row, colCustomerName)); name != "" {
			o.Partners[name] = text(idx, row, colPartner)
		}
	}); err != nil {
		return o, err
	}
	return o, nil
}

func eachRow(t *tablestore.Table, required []string, fn func(tablestore.HeaderIndex, tablestore.Row)) error {
	if t == nil || len(t.Headers) == 0 {
		return nil
	}
	idx := tablestore.NewHeaderIndex(t.Name, t.Headers)
	if err := idx.Require(required...); err != nil {
		return err
	}
	for _, row := range t.Rows {
		fn(idx, row)
	}
	return nil
}
