package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
	"bitbucket.org/mmdatafocus/contract_ledger/models"
)

func newTestIntegrator(overrides models.Overrides) *Integrator {
	cfg := config.DefaultReconcileConfig()
	cfg.ExcludedCustomers = []string{"Blocked Co"}
	cfg.TestAllowSubstring = "TESTBED"
	return NewIntegrator(cfg, PassthroughStatus{}, overrides, quietLogger())
}

func TestLegacyMatchScore(t *testing.T) {
	cases := []struct {
		name     string
		a, b     models.Date
		skuMatch bool
		want     int
	}{
		{"same day", day(2023, time.January, 1), day(2023, time.January, 1), false, 0},
		{"ten days", day(2023, time.January, 1), day(2023, time.January, 11), false, 10},
		{"sku bonus", day(2023, time.January, 1), day(2023, time.January, 11), true, 10 - SkuMatchBonus},
		{"unknown date", models.Date{}, day(2023, time.January, 11), false, unknownDateDelta},
	}
	for _, tc := range cases {
		if got := LegacyMatchScore(tc.a, tc.b, tc.skuMatch); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestLegacyTokens(t *testing.T) {
	got := LegacyTokens("so/12345-ab-ABCDE")
	if len(got) != 2 || got[0] != "12345" || got[1] != "ABCDE" {
		t.Fatalf("expected [12345 ABCDE], got %v", got)
	}
}

func TestIntegrate_MatchCascade(t *testing.T) {
	start := day(2023, time.February, 1)
	cases := []struct {
		name   string
		site   *models.ContractGroup
		sheets []*models.ContractGroup
		want   models.MatchMethod
		wantId string
	}{
		{
			name:   "legacy id",
			site:   siteGroup("S1", "SO-2023-00077", "Acme", "SRLP1", 1, start),
			sheets: []*models.ContractGroup{sheetGroup("SO-2023-00077", "Acme Ltd", "SRLP1", 1, start)},
			want:   models.MatchLegacyId,
			wantId: "SO-2023-00077",
		},
		{
			name: "smart legacy prefers sku match over closer date",
			site: siteGroup("S1", "SO/77777/X", "Acme", "SRLP1", 1, start),
			sheets: []*models.ContractGroup{
				sheetGroup("Q-77777", "Acme", "SAPDT9", 1, day(2023, time.February, 3)),
				sheetGroup("R-77777", "Acme", "SRLP1", 1, day(2023, time.March, 1)),
			},
			want:   models.MatchSmartLegacy,
			wantId: "R-77777",
		},
		{
			name:   "full scan",
			site:   siteGroup("S1", "", "Acme", "SRLP1+SRDT1", 2, start),
			sheets: []*models.ContractGroup{sheetGroup("K1", "Acme", "SRDT1", 2, start)},
			want:   models.MatchFullScan,
			wantId: "K1",
		},
		{
			name:   "name quantity date window",
			site:   siteGroup("S1", "", "Acme", "SRLP1", 2, start),
			sheets: []*models.ContractGroup{sheetGroup("K2", "ACME", "SAPLP1", 2, day(2023, time.March, 15))},
			want:   models.MatchNameQtyDate,
			wantId: "K2",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			contracts, stats := newTestIntegrator(models.Overrides{}).Integrate([]*models.ContractGroup{tc.site}, tc.sheets)
			var matched *models.CanonicalContract
			for _, c := range contracts {
				if c.SiteId == "S1" {
					matched = c
				}
			}
			if matched == nil {
				t.Fatalf("site contract missing from %d contracts", len(contracts))
			}
			if matched.MatchMethod != tc.want {
				t.Fatalf("expected method %s, got %s", tc.want, matched.MatchMethod)
			}
			found := false
			for _, id := range matched.ContractIds {
				if id == tc.wantId {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %s among contract ids, got %v", tc.wantId, matched.ContractIds)
			}
			if stats.Matched[tc.want] != 1 {
				t.Fatalf("expected one %s match in stats, got %v", tc.want, stats.Matched)
			}
		})
	}
}

func TestIntegrate_UnmatchedBothSidesSurvive(t *testing.T) {
	start := day(2023, time.February, 1)
	site := siteGroup("S1", "", "Acme", "SRLP1", 1, start)
	sheet := sheetGroup("K9", "Zeta", "SRLP1", 4, start)

	contracts, stats := newTestIntegrator(models.Overrides{}).Integrate([]*models.ContractGroup{site}, []*models.ContractGroup{sheet})
	if len(contracts) != 2 || stats.SiteOnly != 1 || stats.SheetOnly != 1 {
		t.Fatalf("expected one site-only and one sheet-only contract, got %d contracts stats=%+v", len(contracts), stats)
	}
	for _, c := range contracts {
		if c.Key == "" {
			t.Fatalf("contract without key: %+v", c)
		}
	}
}

func TestIntegrate_DerivedValues(t *testing.T) {
	site := siteGroup("S1", "", "Acme", "SRLP1", 3, day(2023, time.January, 1))
	site.Record.PeriodMonths = 0
	site.Record.EndDate = day(2023, time.June, 30)
	site.Record.UnitPrice = dec("50")

	contracts, _ := newTestIntegrator(models.Overrides{}).Integrate([]*models.ContractGroup{site}, nil)
	c := contracts[0]
	if !c.MonthlyRate.Equal(dec("150")) {
		t.Fatalf("expected monthly rate 150, got %s", c.MonthlyRate)
	}
	if !c.ContractValue.Equal(dec("900")) {
		t.Fatalf("expected contract value over 6 derived months = 900, got %s", c.ContractValue)
	}
	if c.Category != "A" {
		t.Fatalf("expected prefix category A, got %q", c.Category)
	}
}

func TestIntegrate_ExclusionsAndOverrides(t *testing.T) {
	start := day(2023, time.February, 1)
	overrides := models.Overrides{
		BySku:       map[string]string{"ZZ1": "C"},
		ByContract:  map[string]string{models.ContractOverrideKey("S4", "Omega", "YY1", 1): models.CategoryExclude},
		SalesPeople: map[string]string{"S3": "Aye Aye"},
		Partners:    map[string]string{"KAPPA": "Partner One"},
	}
	sites := []*models.ContractGroup{
		siteGroup("S1", "", "Test Co", "SRLP1", 1, start),
		siteGroup("S2", "", "Testbed Labs", "SRLP1", 1, start),
		siteGroup("S3", "", "Kappa", "ZZ1", 1, start),
		siteGroup("S4", "", "Omega", "YY1", 1, start),
		siteGroup("S5", "", "Blocked Co.", "SRLP1", 1, start),
		siteGroup("S6", "", "Sigma", "TESTSKU", 1, start),
	}
	contracts, stats := newTestIntegrator(overrides).Integrate(sites, nil)

	byKey := map[string]*models.CanonicalContract{}
	for _, c := range contracts {
		byKey[c.Key] = c
	}
	for _, dropped := range []string{"S1", "S4", "S5", "S6"} {
		if _, ok := byKey[dropped]; ok {
			t.Fatalf("expected %s to be excluded", dropped)
		}
	}
	if stats.Excluded != 4 {
		t.Fatalf("expected 4 exclusions, got %d", stats.Excluded)
	}
	if _, ok := byKey["S2"]; !ok {
		t.Fatalf("allow-listed test substring must be kept")
	}
	k := byKey["S3"]
	if k == nil || k.Category != "C" {
		t.Fatalf("expected SKU override category C, got %+v", k)
	}
	if k.SalesPerson != "Aye Aye" || k.Partner != "Partner One" {
		t.Fatalf("expected enrichment, got sales=%q partner=%q", k.SalesPerson, k.Partner)
	}
}

func TestIntegrate_FilterAndSort(t *testing.T) {
	old := siteGroup("S1", "", "Acme", "SRLP1", 1, day(2020, time.January, 1))
	old.Record.Status = "INACTIVE-A"
	oldLive := siteGroup("S2", "", "Acme", "SRLP1", 2, day(2020, time.February, 1))
	recent := siteGroup("S3", "", "Acme", "SRLP1", 3, day(2024, time.January, 1))
	unknown := siteGroup("S4", "", "Acme", "SRLP1", 4, models.Date{})
	other := siteGroup("S5", "", "Beta", "SRLP1", 1, day(2023, time.January, 1))

	contracts, stats := newTestIntegrator(models.Overrides{}).Integrate(
		[]*models.ContractGroup{old, oldLive, other, unknown, recent}, nil)
	if stats.FilteredOld != 1 {
		t.Fatalf("expected one contract filtered by start year, got %d", stats.FilteredOld)
	}
	var keys []string
	for _, c := range contracts {
		keys = append(keys, c.Key)
	}
	want := []string{"S3", "S2", "S4", "S5"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, keys)
		}
	}
	for _, c := range contracts {
		if c.Key == "S4" && !hasFlag(c.Flags, "Start date unknown") {
			t.Fatalf("expected unknown start flag, got %v", c.Flags)
		}
	}
}

func TestDateDrivenStatus(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC) }
	s := NewStatusStrategy(config.StatusStrategyDateDriven, now)
	cases := []struct {
		raw        string
		start, end models.Date
		want       string
	}{
		{"Live", day(2024, time.July, 1), day(2025, time.June, 30), models.StatusPending},
		{"LIVE", day(2023, time.January, 1), day(2023, time.December, 31), models.StatusOverdue},
		{"END CONTRACT", day(2023, time.January, 1), day(2023, time.December, 31), models.StatusInactive},
		{"LIVE", day(2024, time.January, 1), day(2024, time.December, 31), models.StatusLive},
	}
	for _, tc := range cases {
		if got := s.MapStatus(tc.raw, tc.start, tc.end); got != tc.want {
			t.Fatalf("MapStatus(%q) expected %s, got %s", tc.raw, tc.want, got)
		}
	}
	if got := (PassthroughStatus{}).MapStatus("Live / pending", models.Date{}, models.Date{}); got != models.StatusLive {
		t.Fatalf("expected LIVE, got %s", got)
	}
}

func TestIntegrate_UnknownSkuFallsBackToOther(t *testing.T) {
	sites := []*models.ContractGroup{siteGroup("S1", "", "Acme", "QQ9", 1, day(2023, time.February, 1))}
	contracts, stats := newTestIntegrator(models.Overrides{}).Integrate(sites, nil)
	if len(contracts) != 1 || stats.Excluded != 0 {
		t.Fatalf("unknown sku must keep the contract, got %d contracts and %d exclusions", len(contracts), stats.Excluded)
	}
	if contracts[0].Category != models.CategoryOther {
		t.Fatalf("expected category %s, got %q", models.CategoryOther, contracts[0].Category)
	}
}

func TestIntegrate_DuplicateKeysBookInvoiceOnce(t *testing.T) {
	sites := []*models.ContractGroup{
		siteGroup("SX", "", "Acme", "SRLP1", 1, day(2023, time.January, 1)),
		siteGroup("SX", "", "Acme", "SRLP1", 1, day(2023, time.January, 2)),
	}
	contracts, stats := newTestIntegrator(models.Overrides{}).Integrate(sites, nil)
	if len(contracts) != 2 || stats.DuplicateKeys != 1 {
		t.Fatalf("expected 2 contracts and 1 duplicate key, got %d and %d", len(contracts), stats.DuplicateKeys)
	}
	if contracts[0].Key != "SX" || contracts[1].Key != "SX#2" {
		t.Fatalf("expected keys SX and SX#2, got %s and %s", contracts[0].Key, contracts[1].Key)
	}
	for _, c := range contracts {
		if !hasFlag(c.Flags, "Duplicate key SX") {
			t.Fatalf("expected duplicate key flag on %s, got %v", c.Key, c.Flags)
		}
	}

	ix := NewInvoiceIndex([]models.Invoice{invoice("INV1", "SX", "2023-01", "100", "PAID", 2)})
	ledgers := BuildLedgers(contracts, ix, 36, tolerance)
	booked := 0
	for e := range LedgerRows(ledgers) {
		if e.InvoiceNumber == "INV1" {
			booked++
		}
	}
	if booked != 1 {
		t.Fatalf("expected INV1 booked once, got %d", booked)
	}
	counted := 0
	for _, s := range Summarise(contracts, ledgers, ix) {
		counted += s.InvoiceCount
	}
	if counted != 1 {
		t.Fatalf("expected INV1 summarised once, got %d", counted)
	}
}
