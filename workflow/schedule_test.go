package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/models"
)

func TestBuildSchedule_LeadingAndTailing(t *testing.T) {
	c := monthlyContract("C1", day(2023, time.January, 1), 12, "100")
	c.LeadingMonths, c.TailingMonths = 2, 1

	s := BuildSchedule(c, "", 36)
	if s.Undetermined {
		t.Fatalf("schedule should be determined")
	}
	if len(s.Lines) != 10 {
		t.Fatalf("expected 1 upfront + 9 normal lines, got %d", len(s.Lines))
	}
	first := s.Lines[0]
	if first.Type != models.LineUpfront || first.Period != "2023-01" || !first.Expected.Equal(dec("300")) {
		t.Fatalf("unexpected upfront line %+v", first)
	}
	if s.Lines[1].Period != "2023-03" || s.Lines[9].Period != "2023-11" {
		t.Fatalf("normal lines should run Mar..Nov, got %s..%s", s.Lines[1].Period, s.Lines[9].Period)
	}
	if !s.Total().Equal(c.ContractValue) {
		t.Fatalf("expected total %s, got %s", c.ContractValue, s.Total())
	}
	if s.End.String() != "2023-12-01" {
		t.Fatalf("expected end start+11 months, got %s", s.End)
	}
}

func TestBuildSchedule_LeadingLongerThanSchedule(t *testing.T) {
	c := monthlyContract("C1", day(2023, time.January, 1), 1, "100")
	c.LeadingMonths = 2

	s := BuildSchedule(c, "", 36)
	if len(s.Lines) != 1 {
		t.Fatalf("expected a single upfront line, got %d", len(s.Lines))
	}
	if s.Lines[0].Type != models.LineUpfront || !s.Lines[0].Expected.Equal(dec("100")) {
		t.Fatalf("upfront must clamp to contract value 100, got %+v", s.Lines[0])
	}
}

func TestBuildSchedule_TailingLongerThanSchedule(t *testing.T) {
	c := monthlyContract("C1", day(2023, time.January, 1), 3, "100")
	c.TailingMonths = 5

	s := BuildSchedule(c, "", 36)
	if len(s.Lines) != 1 || !s.Total().Equal(dec("300")) {
		t.Fatalf("expected one clamped upfront line of 300, got %+v", s.Lines)
	}
}

func TestBuildSchedule_TailingOnlyFoldsFirstMonth(t *testing.T) {
	c := monthlyContract("C1", day(2023, time.January, 1), 4, "100")
	c.TailingMonths = 2

	s := BuildSchedule(c, "", 36)
	want := []struct {
		period string
		typ    models.LineType
		amount string
	}{
		{"2023-01", models.LineUpfront, "300"},
		{"2023-02", models.LineNormal, "100"},
	}
	if len(s.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %+v", len(want), s.Lines)
	}
	for i, w := range want {
		l := s.Lines[i]
		if l.Period != w.period || l.Type != w.typ || !l.Expected.Equal(dec(w.amount)) {
			t.Fatalf("line %d: expected %s %s %s, got %+v", i, w.period, w.typ, w.amount, l)
		}
	}
	if !s.Total().Equal(c.ContractValue) {
		t.Fatalf("expected total %s, got %s", c.ContractValue, s.Total())
	}
}

func TestBuildSchedule_MonthCap(t *testing.T) {
	c := monthlyContract("C1", day(2023, time.January, 1), 60, "10")

	s := BuildSchedule(c, "", 36)
	if len(s.Lines) != 36 {
		t.Fatalf("expected 36 capped lines, got %d", len(s.Lines))
	}
}

func TestBuildSchedule_Undetermined(t *testing.T) {
	c := monthlyContract("C1", day(2023, time.April, 10), 0, "100")

	s := BuildSchedule(c, "2023-05", 36)
	if !s.Undetermined {
		t.Fatalf("schedule without end or period must be undetermined")
	}
	if len(s.Lines) != 1 || s.Lines[0].Period != "2023-05" {
		t.Fatalf("expected a single line at the first invoiced period, got %+v", s.Lines)
	}
	if !s.Lines[0].Expected.IsZero() {
		t.Fatalf("undetermined line must not expect a charge, got %s", s.Lines[0].Expected)
	}

	s = BuildSchedule(c, "", 36)
	if len(s.Lines) != 1 || s.Lines[0].Period != "2023-04" {
		t.Fatalf("expected a single line at the start month, got %+v", s.Lines)
	}
}

func TestBuildSchedule_ClampStopsCharges(t *testing.T) {
	c := monthlyContract("C1", day(2023, time.January, 1), 4, "100")
	c.ContractValue = dec("250")

	s := BuildSchedule(c, "", 36)
	want := []string{"100", "100", "50", "0"}
	if len(s.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(s.Lines))
	}
	for i, w := range want {
		if !s.Lines[i].Expected.Equal(dec(w)) {
			t.Fatalf("line %d expected %s, got %s", i, w, s.Lines[i].Expected)
		}
	}
}
