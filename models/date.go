package models

import (
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/utils"
)

const NotAvailable = "N/A"

// Date is a calendar day that may be unknown. The zero value is unknown.
type Date struct {
	t     time.Time
	known bool
}

func NewDate(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return Date{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), known: true}
}

func DateOf(year int, month time.Month, day int) Date {
	return NewDate(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate wraps utils.NormalizeDate; unparseable input is unknown.
func ParseDate(value any, statusHint string) Date {
	t, ok := utils.NormalizeDate(value, statusHint)
	if !ok {
		return Date{}
	}
	return NewDate(t)
}

func (d Date) Known() bool     { return d.known }
func (d Date) Time() time.Time { return d.t }
func (d Date) Year() int       { return d.t.Year() }

// String is "" when unknown.
func (d Date) String() string {
	if !d.known {
		return ""
	}
	return d.t.Format("2006-01-02")
}

// Display renders unknown as "N/A" for output tables.
func (d Date) Display() string {
	if !d.known {
		return NotAvailable
	}
	return d.String()
}

// MonthKey is "" when unknown.
func (d Date) MonthKey() string {
	if !d.known {
		return ""
	}
	return utils.MonthKey(d.t)
}

func (d Date) Equal(o Date) bool {
	return d.known == o.known && d.t.Equal(o.t)
}

// DaysBetween is the absolute day distance; ok is false if either is unknown.
func DaysBetween(a, b Date) (int, bool) {
	if !a.known || !b.known {
		return 0, false
	}
	days := int(a.t.Sub(b.t).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days, true
}

// CompareDates orders ascending with unknown dates last.
func CompareDates(a, b Date) int {
	switch {
	case !a.known && !b.known:
		return 0
	case !a.known:
		return 1
	case !b.known:
		return -1
	}
	return a.t.Compare(b.t)
}

// CompareDatesDesc orders descending with unknown dates still last.
func CompareDatesDesc(a, b Date) int {
	switch {
	case !a.known && !b.known:
		return 0
	case !a.known:
		return 1
	case !b.known:
		return -1
	}
	return b.t.Compare(a.t)
}
