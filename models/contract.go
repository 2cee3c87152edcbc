package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

type RecordKind string

const (
	RecordKindSite  RecordKind = "site"
	RecordKindSheet RecordKind = "sheet"
)

const (
	StatusLive     = "LIVE"
	StatusInactive = "INACTIVE"
	StatusPending  = "PENDING"
	StatusOverdue  = "OVERDUE"
)

const (
	CategoryOther   = "OTHER"
	CategoryExclude = "EXCLUDE"
)

// SourceRef points back at the input row a merged value came from.
type SourceRef struct {
	OriginalId string `json:"originalId"`
	Table      string `json:"table"`
	RowRef     int    `json:"rowRef"`
	Source     string `json:"source,omitempty"`
}

// ContractRecord is one raw contract row before merging.
type ContractRecord struct {
	Kind            RecordKind
	SiteId          string
	ContractId      string
	LegacyOrderId   string
	CustomerName    string
	Segment         string
	Package         string
	Quantity        int
	Status          string
	StartDate       Date
	EndDate         Date
	PeriodMonths    int
	UnitPrice       decimal.Decimal
	LeadingMonths   int
	TailingMonths   int
	DeliveryAddress string
	Source          string
	// PeriodInvoices holds per-period invoice cells keyed by "YYYY-MM".
	PeriodInvoices map[string]decimal.Decimal
	Table          string
	RowRef         int
}

// Id is the site id for site rows and the contract id otherwise.
func (r ContractRecord) Id() string {
	if r.Kind == RecordKindSite && r.SiteId != "" {
		return r.SiteId
	}
	if r.ContractId != "" {
		return r.ContractId
	}
	return r.SiteId
}

func (r ContractRecord) Ref() SourceRef {
	return SourceRef{OriginalId: r.Id(), Table: r.Table, RowRef: r.RowRef, Source: r.Source}
}

// ContractGroup is the merger's output: one group per distinct contract.
type ContractGroup struct {
	Key       string
	Record    ContractRecord
	Ids       []string
	Sources   []SourceRef
	Flags     []string
	RenewalOf string
}

func (g *ContractGroup) AddFlag(flag string) {
	for _, f := range g.Flags {
		if f == flag {
			return
		}
	}
	g.Flags = append(g.Flags, flag)
}

func (g *ContractGroup) AddId(id string) {
	if id == "" {
		return
	}
	for _, existing := range g.Ids {
		if strings.EqualFold(existing, id) {
			return
		}
	}
	g.Ids = append(g.Ids, id)
}

type MatchMethod string

const (
	MatchLegacyId    MatchMethod = "legacy-id"
	MatchSmartLegacy MatchMethod = "smart-legacy"
	MatchFullScan    MatchMethod = "full-scan"
	MatchNameQtyDate MatchMethod = "name-qty-date"
	MatchSiteOnly    MatchMethod = "site-only"
	MatchSheetOnly   MatchMethod = "sheet-only"
)

// CanonicalContract is one real-world contract after merge and integration.
// It is not modified once the integrator returns it.
type CanonicalContract struct {
	Key             string
	SiteId          string
	ContractIds     []string
	LegacyOrderId   string
	CustomerName    string
	Segment         string
	Skus            []string
	Quantity        int
	Status          string
	StartDate       Date
	EndDate         Date
	PeriodMonths    int
	UnitPrice       decimal.Decimal
	MonthlyRate     decimal.Decimal
	ContractValue   decimal.Decimal
	LeadingMonths   int
	TailingMonths   int
	DeliveryAddress string
	SourceSheet     string
	Category        string
	Flags           []string
	RenewalOf       string
	MatchMethod     MatchMethod
	Sources         []SourceRef
	SalesPerson     string
	Partner         string
	// PeriodInvoices carries the sheet's per-period invoice cells.
	PeriodInvoices map[string]decimal.Decimal
}

// AliasIds lists every id this contract answers to, key first.
func (c CanonicalContract) AliasIds() []string {
	seen := map[string]bool{}
	var out []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		k := strings.ToUpper(id)
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, id)
	}
	add(c.Key)
	add(c.SiteId)
	for _, id := range c.ContractIds {
		add(id)
	}
	return out
}

func (c CanonicalContract) ContractIdList() string {
	if len(c.ContractIds) == 0 {
		return c.Key
	}
	return strings.Join(c.ContractIds, ", ")
}

func (c CanonicalContract) Package() string {
	return strings.Join(c.Skus, ", ")
}
