package workflow

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ResolutionPolicy decides how a record joins a group that already exists.
type ResolutionPolicy int

const (
	// Keep leaves the group untouched: it already holds authoritative data.
	Keep ResolutionPolicy = iota
	// ReplaceWholesale swaps the group's record for the incoming authoritative one.
	ReplaceWholesale
	// FieldwiseMerge fills blanks and records conflicting values.
	FieldwiseMerge
)

func (p ResolutionPolicy) String() string {
	switch p {
	case Keep:
		return "keep"
	case ReplaceWholesale:
		return "replace-wholesale"
	default:
		return "fieldwise-merge"
	}
}

// Conflict field names, in the order they are reported.
var conflictFieldOrder = []string{
	"Package", "Status", "Start Date", "End Date", "Period", "Unit Price", "Segment",
	"Leading Months", "Tailing Months", "Legacy Order ID", "Delivery Address", "Period Invoices",
}

var renewalPattern = regexp.MustCompile(`^(.+)-1$`)

// RenewalBase returns the base id of a renewal id ("C100-1" -> "C100").
func RenewalBase(id string) (string, bool) {
	m := renewalPattern.FindStringSubmatch(strings.TrimSpace(id))
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// TrailingBlock returns the final run of digits of an id when it has at least three.
func TrailingBlock(id string) (string, bool) {
	id = strings.TrimSpace(id)
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	block := id[i:]
	if len(block) < 3 {
		return "", false
	}
	return block, true
}

// Merger collapses raw contract rows into contract groups. Its indexes live
// for one Merge call.
type Merger struct {
	authoritativeSource string
	logger              *logrus.Logger

	groups   []*groupState
	fullIdx  map[string]*groupState
	relaxIdx map[string]*groupState
	renewals map[string]*groupState
}

type groupState struct {
	group     *models.ContractGroup
	conflicts map[string]bool
	removed   bool
}

func NewMerger(authoritativeSource string, logger *logrus.Logger) *Merger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Merger{authoritativeSource: authoritativeSource, logger: logger}
}

func (m *Merger) isAuthoritative(source string) bool {
	return m.authoritativeSource != "" && strings.EqualFold(strings.TrimSpace(source), m.authoritativeSource)
}

// Policy picks how incoming joins a group currently holding current.
func (m *Merger) Policy(current, incoming models.ContractRecord) ResolutionPolicy {
	curAuth := m.isAuthoritative(current.Source)
	inAuth := m.isAuthoritative(incoming.Source)
	switch {
	case inAuth && !curAuth:
		return ReplaceWholesale
	case curAuth && !inAuth:
		return Keep
	default:
		return FieldwiseMerge
	}
}

func groupKeys(r models.ContractRecord) (full, relaxed string, blankPackage bool) {
	name := strings.ToUpper(strings.TrimSpace(r.CustomerName))
	pkg := utils.NormalizeId(r.Package)
	qty := strconv.Itoa(r.Quantity)
	date := r.StartDate.String()
	relaxed = strings.Join([]string{name, qty, date}, "|")
	full = strings.Join([]string{name, pkg, qty, date}, "|")
	return full, relaxed, pkg == ""
}

// Merge runs the grouping pass then the trailing-block pass. Groups come back
// in the order their first record was seen.
func (m *Merger) Merge(records []models.ContractRecord) []*models.ContractGroup {
	m.groups = nil
	m.fullIdx = make(map[string]*groupState)
	m.relaxIdx = make(map[string]*groupState)
	m.renewals = make(map[string]*groupState)

	for _, rec := range records {
		m.add(rec)
	}
	m.mergeTrailingBlocks()

	out := make([]*models.ContractGroup, 0, len(m.groups))
	for _, gs := range m.groups {
		if gs.removed {
			continue
		}
		if len(gs.conflicts) > 0 {
			var fields []string
			for _, f := range conflictFieldOrder {
				if gs.conflicts[f] {
					fields = append(fields, f)
				}
			}
			gs.group.AddFlag("Conflict: " + strings.Join(fields, ", "))
		}
		out = append(out, gs.group)
	}
	m.logger.WithFields(logrus.Fields{
		"records": len(records),
		"groups":  len(out),
	}).Info("contract merge complete")
	return out
}

func (m *Merger) newGroup(key string, rec models.ContractRecord) *groupState {
	g := &models.ContractGroup{Key: key, Record: rec}
	if rec.PeriodInvoices != nil {
		g.Record.PeriodInvoices = make(map[string]decimal.Decimal, len(rec.PeriodInvoices))
		for k, v := range rec.PeriodInvoices {
			g.Record.PeriodInvoices[k] = v
		}
	}
	g.AddId(rec.Id())
	g.Sources = append(g.Sources, rec.Ref())
	gs := &groupState{group: g, conflicts: map[string]bool{}}
	m.groups = append(m.groups, gs)
	return gs
}

func (m *Merger) add(rec models.ContractRecord) {
	full, relaxed, blankPkg := groupKeys(rec)

	// Renewals never join their base contract's group.
	if base, ok := RenewalBase(rec.Id()); ok {
		key := full + "|R|" + utils.NormalizeId(rec.Id())
		if gs, ok := m.renewals[key]; ok {
			m.join(gs, rec)
			return
		}
		gs := m.newGroup(key, rec)
		gs.group.RenewalOf = base
		gs.group.AddFlag("Renewal from " + base)
		m.renewals[key] = gs
		return
	}

	if blankPkg {
		if gs, ok := m.relaxIdx[relaxed]; ok {
			m.join(gs, rec)
			return
		}
		gs := m.newGroup(relaxed, rec)
		m.relaxIdx[relaxed] = gs
		return
	}

	if gs, ok := m.fullIdx[full]; ok {
		m.join(gs, rec)
		return
	}
	gs := m.newGroup(full, rec)
	m.fullIdx[full] = gs
	if _, taken := m.relaxIdx[relaxed]; !taken {
		m.relaxIdx[relaxed] = gs
	}
}

func (m *Merger) join(gs *groupState, rec models.ContractRecord) {
	g := gs.group
	g.AddId(rec.Id())
	g.Sources = append(g.Sources, rec.Ref())

	policy := m.Policy(g.Record, rec)
	switch policy {
	case ReplaceWholesale:
		ids, sources, flags := g.Ids, g.Sources, g.Flags
		g.Record = rec
		g.Ids, g.Sources, g.Flags = ids, sources, flags
		gs.conflicts = map[string]bool{}
		g.AddFlag(m.replacedFlag())
		m.logger.WithFields(logrus.Fields{
			"group":  g.Key,
			"id":     rec.Id(),
			"source": rec.Source,
		}).Info("authoritative source replaced group data")
	case Keep:
		g.AddFlag(m.replacedFlag())
	case FieldwiseMerge:
		mergeFields(gs, rec)
	}
}

func (m *Merger) replacedFlag() string {
	return fmt.Sprintf("Replaced non-SME with %s data", m.authoritativeSource)
}

// mergeFields keeps the first non-empty value per field and notes disagreements.
func mergeFields(gs *groupState, rec models.ContractRecord) {
	cur := &gs.group.Record
	str := func(field string, dst *string, in string) {
		switch {
		case in == "":
		case *dst == "":
			*dst = in
		case !strings.EqualFold(*dst, in):
			gs.conflicts[field] = true
		}
	}
	num := func(field string, dst *int, in int) {
		switch {
		case in == 0:
		case *dst == 0:
			*dst = in
		case *dst != in:
			gs.conflicts[field] = true
		}
	}
	date := func(field string, dst *models.Date, in models.Date) {
		switch {
		case !in.Known():
		case !dst.Known():
			*dst = in
		case !dst.Equal(in):
			gs.conflicts[field] = true
		}
	}

	str("Package", &cur.Package, rec.Package)
	str("Status", &cur.Status, rec.Status)
	date("Start Date", &cur.StartDate, rec.StartDate)
	date("End Date", &cur.EndDate, rec.EndDate)
	num("Period", &cur.PeriodMonths, rec.PeriodMonths)
	switch {
	case rec.UnitPrice.IsZero():
	case cur.UnitPrice.IsZero():
		cur.UnitPrice = rec.UnitPrice
	case !cur.UnitPrice.Equal(rec.UnitPrice):
		gs.conflicts["Unit Price"] = true
	}
	str("Segment", &cur.Segment, rec.Segment)
	num("Leading Months", &cur.LeadingMonths, rec.LeadingMonths)
	num("Tailing Months", &cur.TailingMonths, rec.TailingMonths)
	str("Legacy Order ID", &cur.LegacyOrderId, rec.LegacyOrderId)
	str("Delivery Address", &cur.DeliveryAddress, rec.DeliveryAddress)
	if cur.ContractId == "" {
		cur.ContractId = rec.ContractId
	}
	if cur.SiteId == "" {
		cur.SiteId = rec.SiteId
	}

	for period, amount := range rec.PeriodInvoices {
		if cur.PeriodInvoices == nil {
			cur.PeriodInvoices = make(map[string]decimal.Decimal)
		}
		existing, ok := cur.PeriodInvoices[period]
		if !ok {
			cur.PeriodInvoices[period] = amount
		} else if !existing.Equal(amount) {
			gs.conflicts["Period Invoices"] = true
		}
	}
}

// mergeTrailingBlocks folds groups whose ids share a trailing digit block
// into the earlier group when customer, quantity and package agree.
func (m *Merger) mergeTrailingBlocks() {
	byBlock := make(map[string][]*groupState)
	for _, gs := range m.groups {
		g := gs.group
		if g.RenewalOf != "" || len(g.Ids) == 0 {
			continue
		}
		block, ok := TrailingBlock(g.Ids[0])
		if !ok {
			continue
		}
		target := findTrailingPartner(byBlock[block], g)
		if target == nil {
			byBlock[block] = append(byBlock[block], gs)
			continue
		}
		if period, clash := periodInvoiceClash(target.group.Record, g.Record); clash {
			flag := fmt.Sprintf("Numeric conflict in %s blocked merge by trailing numbers (%s)", period, block)
			target.group.AddFlag(flag)
			g.AddFlag(flag)
			m.logger.WithFields(logrus.Fields{
				"block":  block,
				"period": period,
				"ids":    append(append([]string{}, target.group.Ids...), g.Ids...),
			}).Warn("trailing-block merge aborted")
			byBlock[block] = append(byBlock[block], gs)
			continue
		}

		t := target.group
		for _, id := range g.Ids {
			t.AddId(id)
		}
		t.Sources = append(t.Sources, g.Sources...)
		for _, f := range g.Flags {
			t.AddFlag(f)
		}
		mergeFields(target, g.Record)
		for f := range gs.conflicts {
			target.conflicts[f] = true
		}
		t.AddFlag(fmt.Sprintf("Merged by trailing numbers (%s)", block))
		gs.removed = true
	}
}

func findTrailingPartner(candidates []*groupState, g *models.ContractGroup) *groupState {
	name := utils.NormalizeName(g.Record.CustomerName)
	pkg := utils.NormalizeId(g.Record.Package)
	for _, c := range candidates {
		if c.removed {
			continue
		}
		r := c.group.Record
		if utils.NormalizeName(r.CustomerName) != name || r.Quantity != g.Record.Quantity {
			continue
		}
		other := utils.NormalizeId(r.Package)
		if pkg != "" && other != "" && pkg != other {
			continue
		}
		return c
	}
	return nil
}

func periodInvoiceClash(a, b models.ContractRecord) (string, bool) {
	periods := make([]string, 0, len(b.PeriodInvoices))
	for period := range b.PeriodInvoices {
		periods = append(periods, period)
	}
	sort.Strings(periods)
	for _, period := range periods {
		if existing, ok := a.PeriodInvoices[period]; ok && !existing.Equal(b.PeriodInvoices[period]) {
			return period, true
		}
	}
	return "", false
}
