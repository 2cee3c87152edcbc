package workflow

import (
	"fmt"
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// IntegrationStats counts how site and sheet groups were joined.
type IntegrationStats struct {
	Matched     map[models.MatchMethod]int `json:"matched"`
	SiteOnly    int                        `json:"site_only"`
	SheetOnly   int                        `json:"sheet_only"`
	Excluded    int                        `json:"excluded"`
	FilteredOld int                        `json:"filtered_old"`
	// DuplicateKeys counts contracts whose key was already taken.
	DuplicateKeys int `json:"duplicate_keys"`
}

// Integrator joins site-sourced and sheet-sourced groups into canonical contracts.
type Integrator struct {
	cfg        config.ReconcileConfig
	status     StatusStrategy
	classifier *Classifier
	exclusions Exclusions
	overrides  models.Overrides
	logger     *logrus.Logger
}

func NewIntegrator(cfg config.ReconcileConfig, status StatusStrategy, overrides models.Overrides, logger *logrus.Logger) *Integrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if status == nil {
		status = PassthroughStatus{}
	}
	return &Integrator{
		cfg:        cfg,
		status:     status,
		classifier: NewClassifier(cfg.CategoryPrefixes, overrides),
		exclusions: NewExclusions(cfg.ExcludedCustomers, cfg.TestAllowSubstring),
		overrides:  overrides,
		logger:     logger,
	}
}

// Integrate returns canonical contracts grouped by customer, most recent first.
func (in *Integrator) Integrate(siteGroups, sheetGroups []*models.ContractGroup) ([]*models.CanonicalContract, IntegrationStats) {
	stats := IntegrationStats{Matched: map[models.MatchMethod]int{}}
	ix := newSheetIndex(sheetGroups)

	var contracts []*models.CanonicalContract
	for _, site := range siteGroups {
		i, method := ix.match(site, in.cfg.LegacyMatchWindow)
		var sheet *models.ContractGroup
		if i >= 0 {
			ix.used[i] = true
			sheet = ix.groups[i]
			stats.Matched[method]++
		} else {
			method = models.MatchSiteOnly
			stats.SiteOnly++
		}
		contracts = append(contracts, in.build(site, sheet, method))
	}
	for i, sheet := range sheetGroups {
		if ix.used[i] {
			continue
		}
		stats.SheetOnly++
		contracts = append(contracts, in.build(nil, sheet, models.MatchSheetOnly))
	}

	kept := contracts[:0]
	for _, c := range contracts {
		if drop, reason := in.exclusions.Excluded(c); drop {
			stats.Excluded++
			in.logger.WithFields(logrus.Fields{"contract": c.Key, "reason": reason}).Debug("contract excluded")
			continue
		}
		c.Category = in.classifier.Classify(c)
		if c.Category == models.CategoryExclude {
			stats.Excluded++
			in.logger.WithFields(logrus.Fields{"contract": c.Key, "reason": "category override"}).Debug("contract excluded")
			continue
		}
		in.enrich(c)
		kept = append(kept, c)
	}

	out := in.filterAndSort(kept, &stats)
	uniqueKeys(out, &stats)
	in.logger.WithFields(logrus.Fields{
		"site_groups":  len(siteGroups),
		"sheet_groups": len(sheetGroups),
		"contracts":    len(out),
		"site_only":    stats.SiteOnly,
		"sheet_only":   stats.SheetOnly,
		"excluded":     stats.Excluded,
	}).Info("contract integration complete")
	return out, stats
}

// uniqueKeys keeps the first contract's key and suffixes later holders of
// the same key with "#n". Every contract involved is flagged.
func uniqueKeys(contracts []*models.CanonicalContract, stats *IntegrationStats) {
	first := map[string]*models.CanonicalContract{}
	count := map[string]int{}
	for _, c := range contracts {
		k := utils.NormalizeId(c.Key)
		if k == "" {
			continue
		}
		count[k]++
		owner, taken := first[k]
		if !taken {
			first[k] = c
			continue
		}
		flag := "Duplicate key " + owner.Key
		owner.Flags = utils.UniqueSlice(append(owner.Flags, flag))
		c.Flags = utils.UniqueSlice(append(c.Flags, flag))
		c.Key = fmt.Sprintf("%s#%d", owner.Key, count[k])
		stats.DuplicateKeys++
	}
}

func pickString(values ...string) string {
	return utils.FirstNonBlank(values...)
}

func pickInt(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func pickDate(values ...models.Date) models.Date {
	for _, v := range values {
		if v.Known() {
			return v
		}
	}
	return models.Date{}
}

func pickMoney(values ...decimal.Decimal) decimal.Decimal {
	for _, v := range values {
		if !v.IsZero() {
			return v
		}
	}
	return decimal.Zero
}

// build resolves fields site first, then sheet. Either side may be nil.
func (in *Integrator) build(site, sheet *models.ContractGroup, method models.MatchMethod) *models.CanonicalContract {
	var s, h models.ContractRecord
	if site != nil {
		s = site.Record
	}
	if sheet != nil {
		h = sheet.Record
	}

	c := &models.CanonicalContract{
		LegacyOrderId:   pickString(s.LegacyOrderId, h.LegacyOrderId),
		CustomerName:    pickString(s.CustomerName, h.CustomerName),
		Segment:         pickString(s.Segment, h.Segment),
		Quantity:        pickInt(s.Quantity, h.Quantity),
		StartDate:       pickDate(s.StartDate, h.StartDate),
		EndDate:         pickDate(s.EndDate, h.EndDate),
		PeriodMonths:    pickInt(s.PeriodMonths, h.PeriodMonths),
		UnitPrice:       pickMoney(s.UnitPrice, h.UnitPrice),
		LeadingMonths:   pickInt(s.LeadingMonths, h.LeadingMonths),
		TailingMonths:   pickInt(s.TailingMonths, h.TailingMonths),
		DeliveryAddress: pickString(s.DeliveryAddress, h.DeliveryAddress),
		SourceSheet:     pickString(s.Source, h.Source),
		MatchMethod:     method,
		PeriodInvoices:  h.PeriodInvoices,
	}
	c.Status = in.status.MapStatus(pickString(s.Status, h.Status), c.StartDate, c.EndDate)

	var ids []string
	if site != nil {
		if len(site.Ids) > 0 {
			c.SiteId = site.Ids[0]
			c.Key = c.SiteId
			ids = append(ids, site.Ids[1:]...)
		}
		if s.ContractId != "" {
			ids = append(ids, s.ContractId)
		}
		c.Sources = append(c.Sources, site.Sources...)
		c.Flags = append(c.Flags, site.Flags...)
		c.RenewalOf = site.RenewalOf
	}
	if sheet != nil {
		ids = append(ids, sheet.Ids...)
		c.Sources = append(c.Sources, sheet.Sources...)
		c.Flags = append(c.Flags, sheet.Flags...)
		if c.RenewalOf == "" {
			c.RenewalOf = sheet.RenewalOf
		}
	}
	c.ContractIds = utils.UniqueSlice(ids)
	if c.Key == "" && len(c.ContractIds) > 0 {
		c.Key = c.ContractIds[0]
	}
	c.Flags = utils.UniqueSlice(c.Flags)

	for _, pkg := range []string{s.Package, h.Package} {
		for _, sku := range utils.SplitList(pkg, ',', '+', ';') {
			c.Skus = append(c.Skus, utils.NormalizeId(sku))
		}
	}
	c.Skus = utils.UniqueSlice(c.Skus)

	c.MonthlyRate = decimal.NewFromInt(int64(c.Quantity)).Mul(c.UnitPrice)
	if period := EffectivePeriod(c); period > 0 {
		c.ContractValue = c.MonthlyRate.Mul(decimal.NewFromInt(int64(period)))
	}
	if !c.StartDate.Known() {
		c.Flags = append(c.Flags, "Start date unknown")
	}
	return c
}

// EffectivePeriod is the explicit period, else the inclusive month count
// between known start and end dates, else 0.
func EffectivePeriod(c *models.CanonicalContract) int {
	if c.PeriodMonths > 0 {
		return c.PeriodMonths
	}
	if c.StartDate.Known() && c.EndDate.Known() {
		start, end := c.StartDate.Time(), c.EndDate.Time()
		n := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
		if n > 0 {
			return n
		}
	}
	return 0
}

func (in *Integrator) enrich(c *models.CanonicalContract) {
	for _, id := range c.AliasIds() {
		if sp, ok := in.overrides.SalesPeople[utils.NormalizeId(id)]; ok {
			c.SalesPerson = sp
			break
		}
	}
	if p, ok := in.overrides.Partners[utils.NormalizeName(c.CustomerName)]; ok {
		c.Partner = p
	}
}

type customerBlock struct {
	name      string
	contracts []*models.CanonicalContract
}

// filterAndSort groups by customer, sorts by start date descending with
// unknown dates last, and keeps contracts from MinStartYear onward or LIVE.
func (in *Integrator) filterAndSort(contracts []*models.CanonicalContract, stats *IntegrationStats) []*models.CanonicalContract {
	blocks := map[string]*customerBlock{}
	var order []*customerBlock
	for _, c := range contracts {
		if c.StartDate.Known() && c.StartDate.Year() < in.cfg.MinStartYear && c.Status != models.StatusLive {
			stats.FilteredOld++
			continue
		}
		key := utils.NormalizeName(c.CustomerName)
		b, ok := blocks[key]
		if !ok {
			b = &customerBlock{name: key}
			blocks[key] = b
			order = append(order, b)
		}
		b.contracts = append(b.contracts, c)
	}

	for _, b := range order {
		sort.SliceStable(b.contracts, func(i, j int) bool {
			if cmp := models.CompareDatesDesc(b.contracts[i].StartDate, b.contracts[j].StartDate); cmp != 0 {
				return cmp < 0
			}
			return strings.Compare(b.contracts[i].Key, b.contracts[j].Key) < 0
		})
	}
	sort.SliceStable(order, func(i, j int) bool {
		if cmp := models.CompareDatesDesc(order[i].contracts[0].StartDate, order[j].contracts[0].StartDate); cmp != 0 {
			return cmp < 0
		}
		return order[i].name < order[j].name
	})

	out := make([]*models.CanonicalContract, 0, len(contracts))
	for _, b := range order {
		out = append(out, b.contracts...)
	}
	return out
}
