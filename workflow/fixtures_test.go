package workflow

import (
	"io"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func day(y int, m time.Month, d int) models.Date {
	return models.DateOf(y, m, d)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sheetRecord(id, customer, pkg string, qty int, start models.Date, source string) models.ContractRecord {
	return models.ContractRecord{
		Kind:         models.RecordKindSheet,
		ContractId:   id,
		CustomerName: customer,
		Package:      pkg,
		Quantity:     qty,
		StartDate:    start,
		PeriodMonths: 12,
		UnitPrice:    dec("100"),
		Status:       "LIVE",
		Source:       source,
		Table:        models.TableSheetContracts,
	}
}

func siteGroup(siteId, legacy, customer, pkg string, qty int, start models.Date) *models.ContractGroup {
	rec := models.ContractRecord{
		Kind:          models.RecordKindSite,
		SiteId:        siteId,
		LegacyOrderId: legacy,
		CustomerName:  customer,
		Package:       pkg,
		Quantity:      qty,
		StartDate:     start,
		PeriodMonths:  12,
		UnitPrice:     dec("100"),
		Status:        "LIVE",
		Table:         models.TableSiteContracts,
	}
	return &models.ContractGroup{Key: siteId, Record: rec, Ids: []string{siteId}, Sources: []models.SourceRef{rec.Ref()}}
}

func sheetGroup(id, customer, pkg string, qty int, start models.Date) *models.ContractGroup {
	rec := sheetRecord(id, customer, pkg, qty, start, "Sheet A")
	return &models.ContractGroup{Key: id, Record: rec, Ids: []string{id}, Sources: []models.SourceRef{rec.Ref()}}
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

func monthlyContract(key string, start models.Date, period int, rate string) *models.CanonicalContract {
	c := &models.CanonicalContract{
		Key:          key,
		ContractIds:  []string{key},
		CustomerName: "Acme",
		Skus:         []string{"SRLP1"},
		Quantity:     1,
		Status:       models.StatusLive,
		StartDate:    start,
		PeriodMonths: period,
		UnitPrice:    dec(rate),
		MonthlyRate:  dec(rate),
	}
	c.ContractValue = c.MonthlyRate.Mul(decimal.NewFromInt(int64(period)))
	return c
}

func invoice(number, contractId, period, amount, status string, row int) models.Invoice {
	return models.Invoice{Number: number, ContractId: contractId, Period: period, Amount: dec(amount), PaymentStatus: status, RowRef: row}
}
