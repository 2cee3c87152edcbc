package workflow

import (
	"strings"

	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
)

const (
	// SkuMatchBonus outweighs any realistic start-date distance.
	SkuMatchBonus = 100000
	// unknownDateDelta scores a candidate whose distance cannot be measured.
	unknownDateDelta  = 50000
	minLegacyTokenLen = 5
)

// LegacyMatchScore ranks a smart-lookup candidate; lower is better.
func LegacyMatchScore(siteStart, sheetStart models.Date, skuMatch bool) int {
	delta, ok := models.DaysBetween(siteStart, sheetStart)
	if !ok {
		delta = unknownDateDelta
	}
	if skuMatch {
		delta -= SkuMatchBonus
	}
	return delta
}

// LegacyTokens splits a legacy order id on '/' and '-' and keeps tokens
// longer than four characters.
func LegacyTokens(id string) []string {
	parts := strings.FieldsFunc(utils.NormalizeId(id), func(r rune) bool {
		return r == '/' || r == '-'
	})
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) >= minLegacyTokenLen {
			out = append(out, p)
		}
	}
	return utils.UniqueSlice(out)
}

// NamesCorrespond compares normalized customer names, allowing one to contain the other.
func NamesCorrespond(a, b string) bool {
	na, nb := utils.NormalizeName(a), utils.NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

func skuSet(pkg string) []string {
	var out []string
	for _, s := range utils.SplitList(pkg, ',', '+', '/', ';') {
		out = append(out, utils.NormalizeId(s))
	}
	return out
}

// SkusMatch is true when the packages share at least one SKU.
func SkusMatch(a, b string) bool {
	as, bs := skuSet(a), skuSet(b)
	for _, x := range as {
		for _, y := range bs {
			if x == y {
				return true
			}
		}
	}
	return false
}

// sheetIndex holds the sheet-sourced groups for one integration run.
type sheetIndex struct {
	groups  []*models.ContractGroup
	used    []bool
	byId    map[string][]int
	byToken map[string][]int
}

func newSheetIndex(groups []*models.ContractGroup) *sheetIndex {
	ix := &sheetIndex{
		groups:  groups,
		used:    make([]bool, len(groups)),
		byId:    make(map[string][]int),
		byToken: make(map[string][]int),
	}
	for i, g := range groups {
		for _, id := range g.Ids {
			nid := utils.NormalizeId(id)
			ix.byId[nid] = appendIdx(ix.byId[nid], i)
			for _, tok := range LegacyTokens(id) {
				ix.byToken[tok] = appendIdx(ix.byToken[tok], i)
			}
		}
	}
	return ix
}

func appendIdx(list []int, i int) []int {
	if n := len(list); n > 0 && list[n-1] == i {
		return list
	}
	return append(list, i)
}

// match runs the lookup cascade for one site group. It returns -1 when no
// unused sheet group qualifies.
func (ix *sheetIndex) match(site *models.ContractGroup, windowDays int) (int, models.MatchMethod) {
	rec := site.Record
	legacy := utils.NormalizeId(rec.LegacyOrderId)

	if legacy != "" {
		for _, i := range ix.byId[legacy] {
			if !ix.used[i] && NamesCorrespond(rec.CustomerName, ix.groups[i].Record.CustomerName) {
				return i, models.MatchLegacyId
			}
		}

		best, bestScore := -1, 0
		for _, tok := range LegacyTokens(legacy) {
			for _, i := range ix.byToken[tok] {
				cand := ix.groups[i].Record
				if ix.used[i] || !NamesCorrespond(rec.CustomerName, cand.CustomerName) {
					continue
				}
				score := LegacyMatchScore(rec.StartDate, cand.StartDate, SkusMatch(rec.Package, cand.Package))
				if best < 0 || score < bestScore || (score == bestScore && i < best) {
					best, bestScore = i, score
				}
			}
		}
		if best >= 0 {
			return best, models.MatchSmartLegacy
		}
	}

	for i, g := range ix.groups {
		cand := g.Record
		if ix.used[i] || !NamesCorrespond(rec.CustomerName, cand.CustomerName) {
			continue
		}
		if SkusMatch(rec.Package, cand.Package) && rec.Quantity == cand.Quantity &&
			rec.StartDate.Known() && rec.StartDate.String() == cand.StartDate.String() {
			return i, models.MatchFullScan
		}
	}

	name := utils.NormalizeName(rec.CustomerName)
	best, bestDelta := -1, 0
	for i, g := range ix.groups {
		cand := g.Record
		if ix.used[i] || name == "" || utils.NormalizeName(cand.CustomerName) != name || rec.Quantity != cand.Quantity {
			continue
		}
		delta, ok := models.DaysBetween(rec.StartDate, cand.StartDate)
		if !ok || delta > windowDays {
			continue
		}
		if best < 0 || delta < bestDelta {
			best, bestDelta = i, delta
		}
	}
	if best >= 0 {
		return best, models.MatchNameQtyDate
	}
	return -1, ""
}
