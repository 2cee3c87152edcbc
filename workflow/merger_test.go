package workflow

import (
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"github.com/shopspring/decimal"
)

const sme = "SME (ALL)"

func TestMerge_AuthoritativeSourceReplacesWholesale(t *testing.T) {
	start := day(2023, time.January, 1)
	plain := sheetRecord("C1", "Acme Ltd", "SRLP1", 2, start, "Sheet A")
	plain.Segment = "Retail"
	plain.Status = "INACTIVE-A"
	auth := sheetRecord("C2", " ACME LTD ", "SRLP1", 2, start, sme)
	auth.UnitPrice = dec("120")

	groups := NewMerger(sme, quietLogger()).Merge([]models.ContractRecord{plain, auth})
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if !g.Record.UnitPrice.Equal(dec("120")) {
		t.Fatalf("expected authoritative unit price 120, got %s", g.Record.UnitPrice)
	}
	if g.Record.Status != "LIVE" {
		t.Fatalf("expected authoritative status LIVE, got %q", g.Record.Status)
	}
	if g.Record.Segment != "" {
		t.Fatalf("wholesale replace must not keep non-authoritative fields, got segment %q", g.Record.Segment)
	}
	if len(g.Ids) != 2 || g.Ids[0] != "C1" || g.Ids[1] != "C2" {
		t.Fatalf("expected ids [C1 C2], got %v", g.Ids)
	}
	if !hasFlag(g.Flags, "Replaced non-SME with SME (ALL) data") {
		t.Fatalf("expected replacement flag, got %v", g.Flags)
	}
}

func TestMerge_ReplaceClearsEarlierConflicts(t *testing.T) {
	start := day(2023, time.January, 1)
	a := sheetRecord("C1", "Acme Ltd", "SRLP1", 2, start, "Sheet A")
	b := sheetRecord("C1", "Acme Ltd", "SRLP1", 2, start, "Sheet B")
	b.UnitPrice = dec("90")
	auth := sheetRecord("C2", "Acme Ltd", "SRLP1", 2, start, sme)

	groups := NewMerger(sme, quietLogger()).Merge([]models.ContractRecord{a, b, auth})
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	for _, f := range groups[0].Flags {
		if strings.HasPrefix(f, "Conflict") {
			t.Fatalf("authoritative replace must drop earlier conflicts, got %v", groups[0].Flags)
		}
	}
}

func TestMerge_GroupingKeepsPunctuationInNames(t *testing.T) {
	start := day(2023, time.January, 1)
	a := sheetRecord("C1", "Acme Ltd", "SRLP1", 2, start, "Sheet A")
	b := sheetRecord("C2", "acme ltd ", "SRLP1", 2, start, "Sheet A")
	c := sheetRecord("C3", "Acme Ltd.", "SRLP1", 2, start, "Sheet A")

	groups := NewMerger(sme, quietLogger()).Merge([]models.ContractRecord{a, b, c})
	if len(groups) != 2 {
		t.Fatalf("expected case and spacing to group but punctuation to split, got %d groups", len(groups))
	}
	if len(groups[0].Ids) != 2 || len(groups[1].Ids) != 1 {
		t.Fatalf("expected ids split 2/1, got %v and %v", groups[0].Ids, groups[1].Ids)
	}
}

func TestMerge_AuthoritativeFirstIsKept(t *testing.T) {
	start := day(2023, time.January, 1)
	auth := sheetRecord("C2", "Acme Ltd", "SRLP1", 2, start, sme)
	auth.UnitPrice = dec("120")
	plain := sheetRecord("C1", "Acme Ltd", "SRLP1", 2, start, "Sheet A")

	groups := NewMerger(sme, quietLogger()).Merge([]models.ContractRecord{auth, plain})
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if !groups[0].Record.UnitPrice.Equal(dec("120")) {
		t.Fatalf("expected authoritative record kept, got unit price %s", groups[0].Record.UnitPrice)
	}
	if !hasFlag(groups[0].Flags, "Replaced non-SME with SME (ALL) data") {
		t.Fatalf("expected replacement flag, got %v", groups[0].Flags)
	}
}

func TestMerge_RenewalNeverJoinsBase(t *testing.T) {
	start := day(2023, time.March, 1)
	base := sheetRecord("C100", "Acme", "SRLP1", 1, start, "Sheet A")
	renewal := sheetRecord("C100-1", "Acme", "SRLP1", 1, start, "Sheet A")

	groups := NewMerger(sme, quietLogger()).Merge([]models.ContractRecord{base, renewal})
	if len(groups) != 2 {
		t.Fatalf("expected base and renewal as separate groups, got %d", len(groups))
	}
	r := groups[1]
	if r.RenewalOf != "C100" {
		t.Fatalf("expected RenewalOf C100, got %q", r.RenewalOf)
	}
	if !hasFlag(r.Flags, "Renewal from C100") {
		t.Fatalf("expected renewal flag, got %v", r.Flags)
	}
	if len(groups[0].Flags) != 0 {
		t.Fatalf("base group must stay unflagged, got %v", groups[0].Flags)
	}
}

func TestMerge_FieldwiseFillsBlanksAndFlagsConflicts(t *testing.T) {
	start := day(2023, time.May, 1)
	a := sheetRecord("C1", "Beta", "SRDT2", 1, start, "Sheet A")
	a.Status = "LIVE"
	b := sheetRecord("C1", "Beta", "SRDT2", 1, start, "Sheet B")
	b.Status = "INACTIVE-A"
	b.DeliveryAddress = "No. 5 Road"

	groups := NewMerger(sme, quietLogger()).Merge([]models.ContractRecord{a, b})
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if g.Record.Status != "LIVE" {
		t.Fatalf("expected first status kept, got %q", g.Record.Status)
	}
	if g.Record.DeliveryAddress != "No. 5 Road" {
		t.Fatalf("expected blank address filled, got %q", g.Record.DeliveryAddress)
	}
	if !hasFlag(g.Flags, "Conflict: Status") {
		t.Fatalf("expected status conflict flag, got %v", g.Flags)
	}
	if len(g.Ids) != 1 {
		t.Fatalf("duplicate ids must collapse, got %v", g.Ids)
	}
}

func TestMerge_BlankPackageUsesRelaxedKey(t *testing.T) {
	start := day(2023, time.June, 1)
	a := sheetRecord("C1", "Gamma", "SAPLP1", 3, start, "Sheet A")
	b := sheetRecord("C9", "Gamma", "", 3, start, "Sheet B")

	groups := NewMerger(sme, quietLogger()).Merge([]models.ContractRecord{a, b})
	if len(groups) != 1 {
		t.Fatalf("expected blank-package row to join by name, qty and date, got %d groups", len(groups))
	}
}

func TestMerge_TrailingBlock(t *testing.T) {
	cases := []struct {
		name       string
		aInvoices  map[string]decimal.Decimal
		bInvoices  map[string]decimal.Decimal
		wantGroups int
		wantFlag   string
	}{
		{
			name:       "merged",
			aInvoices:  map[string]decimal.Decimal{"2023-01": dec("100")},
			bInvoices:  map[string]decimal.Decimal{"2023-02": dec("100")},
			wantGroups: 1,
			wantFlag:   "Merged by trailing numbers (1234)",
		},
		{
			name:       "numeric conflict aborts",
			aInvoices:  map[string]decimal.Decimal{"2023-01": dec("100")},
			bInvoices:  map[string]decimal.Decimal{"2023-01": dec("200")},
			wantGroups: 2,
			wantFlag:   "Numeric conflict in 2023-01 blocked merge by trailing numbers (1234)",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := sheetRecord("ABC-1234", "Delta", "SRLP1", 1, day(2023, time.January, 1), "Sheet A")
			a.PeriodInvoices = tc.aInvoices
			b := sheetRecord("XYZ1234", "Delta", "SRLP1", 1, day(2023, time.January, 15), "Sheet B")
			b.PeriodInvoices = tc.bInvoices

			groups := NewMerger(sme, quietLogger()).Merge([]models.ContractRecord{a, b})
			if len(groups) != tc.wantGroups {
				t.Fatalf("expected %d groups, got %d", tc.wantGroups, len(groups))
			}
			if !hasFlag(groups[0].Flags, tc.wantFlag) {
				t.Fatalf("expected flag %q, got %v", tc.wantFlag, groups[0].Flags)
			}
			if tc.wantGroups == 1 {
				if len(groups[0].Ids) != 2 {
					t.Fatalf("expected both ids on merged group, got %v", groups[0].Ids)
				}
				if len(groups[0].Record.PeriodInvoices) != 2 {
					t.Fatalf("expected period invoices unioned, got %v", groups[0].Record.PeriodInvoices)
				}
			}
		})
	}
}

func TestTrailingBlockAndRenewalBase(t *testing.T) {
	blocks := []struct {
		id   string
		want string
		ok   bool
	}{
		{"SO-2023-00077", "00077", true},
		{"C12", "", false},
		{"ABC", "", false},
		{"X999", "999", true},
	}
	for _, tc := range blocks {
		got, ok := TrailingBlock(tc.id)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("TrailingBlock(%q) expected (%q,%v), got (%q,%v)", tc.id, tc.want, tc.ok, got, ok)
		}
	}
	renewals := []struct {
		id   string
		want string
		ok   bool
	}{
		{"C100-1", "C100", true},
		{"C100-12", "", false},
		{"-1", "", false},
		{"C100", "", false},
	}
	for _, tc := range renewals {
		got, ok := RenewalBase(tc.id)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("RenewalBase(%q) expected (%q,%v), got (%q,%v)", tc.id, tc.want, tc.ok, got, ok)
		}
	}
}
