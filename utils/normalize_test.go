package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		name   string
		in     any
		status string
		want   string
		ok     bool
	}{
		{"iso", "2023-02-01", "", "2023-02-01", true},
		{"day first", "31/12/2023", "", "2023-12-31", true},
		{"serial float", 44927.0, "", "2023-01-01", true},
		{"serial text", "44927", "", "2023-01-01", true},
		{"native", time.Date(2023, 5, 6, 13, 0, 0, 0, time.UTC), "", "2023-05-06", true},
		{"multi first", "2023-01-01\n2024-06-30", "LIVE", "2023-01-01", true},
		{"multi latest when ended and live", "2023-01-01\n2024-06-30", "END CONTRACT / LIVE", "2024-06-30", true},
		{"small number is not a date", 12.0, "", "", false},
		{"sentinel", "N/A", "", "", false},
		{"garbage", "soon", "", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeDate(tc.in, tc.status)
		if ok != tc.ok {
			t.Fatalf("%s: expected ok=%v, got %v", tc.name, tc.ok, ok)
		}
		if ok && got.Format("2006-01-02") != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got.Format("2006-01-02"))
		}
	}
}

func TestToMoney(t *testing.T) {
	cases := []struct {
		in   any
		want string
		ok   bool
	}{
		{"MMK 1,234.50", "1234.5", true},
		{"-20,000", "-20000", true},
		{1500.25, "1500.25", true},
		{7, "7", true},
		{decimal.NewFromInt(3), "3", true},
		{"", "0", false},
		{"abc", "0", false},
		{nil, "0", false},
	}
	for _, tc := range cases {
		got, ok := ToMoney(tc.in)
		if ok != tc.ok || got.String() != tc.want {
			t.Fatalf("ToMoney(%v) expected (%s,%v), got (%s,%v)", tc.in, tc.want, tc.ok, got, ok)
		}
	}
}

func TestToInt(t *testing.T) {
	cases := []struct {
		in   any
		want int
	}{
		{"3 months", 3},
		{12.0, 12},
		{"2.6", 3},
		{5, 5},
	}
	for _, tc := range cases {
		if got, _ := ToInt(tc.in); got != tc.want {
			t.Fatalf("ToInt(%v) expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestMonthsBetween(t *testing.T) {
	start := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC)

	got := MonthsBetween(start, end, 36)
	if len(got) != 3 || got[0] != "2023-01" || got[2] != "2023-03" {
		t.Fatalf("expected Jan..Mar, got %v", got)
	}
	if got := MonthsBetween(start, end, 2); len(got) != 2 {
		t.Fatalf("expected limit to cap at 2, got %v", got)
	}
	if got := MonthsBetween(end, start, 36); got != nil {
		t.Fatalf("expected nil for reversed range, got %v", got)
	}
	if got := AddMonths(start, 11); MonthKey(got) != "2023-12" {
		t.Fatalf("expected 2023-12, got %s", MonthKey(got))
	}
}

func TestNormalizeHelpers(t *testing.T) {
	if got := NormalizeName("Acme Co., Ltd."); got != "ACMECOLTD" {
		t.Fatalf("NormalizeName expected ACMECOLTD, got %s", got)
	}
	if got := NormalizeId("  so-1001 "); got != "SO-1001" {
		t.Fatalf("NormalizeId expected SO-1001, got %s", got)
	}
	for _, s := range []string{"", "  ", "N/A", "n/a", "-"} {
		if !IsBlank(s) {
			t.Fatalf("IsBlank(%q) expected true", s)
		}
	}
	if got := CellString(3.0); got != "3" {
		t.Fatalf("CellString(3.0) expected 3, got %s", got)
	}
	if got := MonthLabel("2022-01"); got != "Jan 2022" {
		t.Fatalf("MonthLabel expected Jan 2022, got %s", got)
	}
	if key, ok := ParseMonthKey("2022-07-19"); !ok || key != "2022-07" {
		t.Fatalf("ParseMonthKey expected 2022-07, got %s %v", key, ok)
	}
	if got := SplitList("INV1, INV2;;INV3", ',', ';'); len(got) != 3 {
		t.Fatalf("SplitList expected 3 parts, got %v", got)
	}
	if got := FirstNonBlank("", "N/A", " x "); got != "x" {
		t.Fatalf("FirstNonBlank expected x, got %q", got)
	}
}
