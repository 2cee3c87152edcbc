package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// Cell values arrive as whatever the store returns: strings from xlsx and
// formatted Sheets reads, float64 from unformatted Sheets reads, native Go
// values from the memory store.

// CellString renders a cell as trimmed text. nil renders as "".
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format("2006-01-02")
	case decimal.Decimal:
		return x.String()
	case fmt.Stringer:
		return strings.TrimSpace(x.String())
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// NormalizeId is an opaque comparison key for contract and invoice ids.
func NormalizeId(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeName keeps only letters and digits, uppercased. Matching only, never display.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsBlank treats the display sentinel "N/A" the same as an empty cell.
func IsBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "N/A") || s == "-"
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"2006/01/02",
	"02-01-2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2006",
	"January 2006",
	"2006-01",
}

// Sheets and Excel serial dates count days from 1899-12-30.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func parseOneDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if IsBlank(s) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsMixedEndedLiveStatus matches status text describing both an ended and a live
// contract, e.g. "END CONTRACT / LIVE".
func IsMixedEndedLiveStatus(status string) bool {
	s := strings.ToUpper(status)
	return strings.Contains(s, "LIVE") && (strings.Contains(s, "END") || strings.Contains(s, "INACTIVE"))
}

// NormalizeDate accepts a native date, a serial number, an ISO string or
// dd/mm/yyyy. Cells holding several dates (newline, ";" or "|" separated)
// resolve to the latest date when statusHint is a mixed ended-and-live status,
// otherwise to the first parseable one. ok is false for unparseable input.
func NormalizeDate(value any, statusHint string) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return dateOnly(v), true
	case float64:
		return serialDate(v)
	case int:
		return serialDate(float64(v))
	}

	raw := CellString(value)
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == ';' || r == '|'
	})
	if len(parts) <= 1 {
		if t, ok := parseOneDate(raw); ok {
			return t, true
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return serialDate(f)
		}
		return time.Time{}, false
	}

	latest := IsMixedEndedLiveStatus(statusHint)
	var out time.Time
	found := false
	for _, p := range parts {
		t, ok := parseOneDate(p)
		if !ok {
			continue
		}
		if !latest {
			return t, true
		}
		if !found || t.After(out) {
			out = t
			found = true
		}
	}
	return out, found
}

func serialDate(f float64) (time.Time, bool) {
	// Plausible window: 1954..2119. Anything else is a quantity, not a date.
	if f < 20000 || f > 80000 {
		return time.Time{}, false
	}
	return serialEpoch.AddDate(0, 0, int(f)), true
}

// ToMoney strips everything but digits, '.' and '-' and parses the rest.
// Malformed input yields zero with ok=false; callers log and continue.
func ToMoney(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	}

	s := CellString(value)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ToInt parses quantities and month counts. "3 months" reads as 3.
func ToInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case float64:
		return int(math.Round(v)), true
	}
	d, ok := ToMoney(value)
	if !ok {
		return 0, false
	}
	return int(d.Round(0).IntPart()), true
}

// MonthKey formats a date as "YYYY-MM".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ParseMonthKey accepts "YYYY-MM" and any date NormalizeDate understands.
func ParseMonthKey(value any) (string, bool) {
	s := CellString(value)
	if t, err := time.Parse("2006-01", s); err == nil {
		return MonthKey(t), true
	}
	t, ok := NormalizeDate(value, "")
	if !ok {
		return "", false
	}
	return MonthKey(t), true
}

// FirstOfMonth truncates to the first day of t's month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths moves whole calendar months from the first of t's month.
func AddMonths(t time.Time, n int) time.Time {
	return FirstOfMonth(t).AddDate(0, n, 0)
}

// MonthsBetween lists month keys from start to end inclusive, at most limit
// entries. An end before start yields nil.
func MonthsBetween(start, end time.Time, limit int) []string {
	from := FirstOfMonth(start)
	to := FirstOfMonth(end)
	if to.Before(from) || limit <= 0 {
		return nil
	}
	var out []string
	for m := from; !m.After(to) && len(out) < limit; m = m.AddDate(0, 1, 0) {
		out = append(out, MonthKey(m))
	}
	return out
}

// MonthLabel renders "2022-01" as "Jan 2022".
func MonthLabel(monthKey string) string {
	t, err := time.Parse("2006-01", monthKey)
	if err != nil {
		return monthKey
	}
	return t.Format("Jan 2006")
}
