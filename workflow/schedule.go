package workflow

import (
	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"github.com/shopspring/decimal"
)

type ScheduleLine struct {
	Period   string
	Type     models.LineType
	Expected decimal.Decimal
}

// Schedule is the expected billing of one contract in period order.
type Schedule struct {
	Lines []ScheduleLine
	End   models.Date
	// Undetermined is set when neither an end date nor a period is known;
	// Lines then holds at most the first known period, with no expected charge.
	Undetermined bool
}

func (s Schedule) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.Expected)
	}
	return total
}

// ScheduleEnd is the explicit end date, else start + (period-1) months.
func ScheduleEnd(c *models.CanonicalContract) models.Date {
	if c.EndDate.Known() {
		return c.EndDate
	}
	if c.StartDate.Known() && c.PeriodMonths > 0 {
		return models.NewDate(utils.AddMonths(c.StartDate.Time(), c.PeriodMonths-1))
	}
	return models.Date{}
}

// BuildSchedule derives the expected charges of c. firstInvoicePeriod is the
// earliest invoiced period and anchors an undetermined schedule.
func BuildSchedule(c *models.CanonicalContract, firstInvoicePeriod string, monthCap int) Schedule {
	end := ScheduleEnd(c)
	if !c.StartDate.Known() || !end.Known() {
		s := Schedule{Undetermined: true}
		period := firstInvoicePeriod
		if period == "" {
			period = c.StartDate.MonthKey()
		}
		if period != "" {
			s.Lines = []ScheduleLine{{Period: period, Type: models.LineNormal, Expected: decimal.Zero}}
		}
		return s
	}

	months := utils.MonthsBetween(c.StartDate.Time(), end.Time(), monthCap)
	s := Schedule{End: end}
	if len(months) == 0 {
		s.Undetermined = true
		return s
	}

	clamp := c.ContractValue.IsPositive()
	invoiced := decimal.Zero
	take := func(amount decimal.Decimal) decimal.Decimal {
		if clamp {
			remaining := c.ContractValue.Sub(invoiced)
			if remaining.IsNegative() {
				remaining = decimal.Zero
			}
			amount = decimal.Min(amount, remaining)
		}
		invoiced = invoiced.Add(amount)
		return amount
	}

	upfront := -1
	if n := c.LeadingMonths + c.TailingMonths; n > 0 {
		amount := take(c.MonthlyRate.Mul(decimal.NewFromInt(int64(n))))
		s.Lines = append(s.Lines, ScheduleLine{Period: months[0], Type: models.LineUpfront, Expected: amount})
		upfront = 0
	}

	last := max(0, len(months)-c.TailingMonths)
	for i := c.LeadingMonths; i < last; i++ {
		amount := take(c.MonthlyRate)
		if upfront >= 0 && months[i] == s.Lines[upfront].Period {
			s.Lines[upfront].Expected = s.Lines[upfront].Expected.Add(amount)
			continue
		}
		s.Lines = append(s.Lines, ScheduleLine{Period: months[i], Type: models.LineNormal, Expected: amount})
	}
	return s
}
