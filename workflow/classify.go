package workflow

import (
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
)

// Classifier maps SKUs to product categories by prefix, then by override tables.
type Classifier struct {
	prefixes  []string
	byPrefix  map[string]string
	overrides models.Overrides
}

func NewClassifier(prefixes map[string]string, overrides models.Overrides) *Classifier {
	c := &Classifier{byPrefix: make(map[string]string, len(prefixes)), overrides: overrides}
	for p, cat := range prefixes {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		c.byPrefix[p] = cat
		c.prefixes = append(c.prefixes, p)
	}
	// longest prefix first, ties alphabetical
	sort.Slice(c.prefixes, func(i, j int) bool {
		if len(c.prefixes[i]) != len(c.prefixes[j]) {
			return len(c.prefixes[i]) > len(c.prefixes[j])
		}
		return c.prefixes[i] < c.prefixes[j]
	})
	return c
}

// PrefixCategory returns the built-in category of one SKU, or OTHER.
func (c *Classifier) PrefixCategory(sku string) string {
	sku = utils.NormalizeId(sku)
	for _, p := range c.prefixes {
		if strings.HasPrefix(sku, p) {
			return c.byPrefix[p]
		}
	}
	return models.CategoryOther
}

// Classify resolves the contract's category. An EXCLUDE result means the
// contract must be dropped.
func (c *Classifier) Classify(contract *models.CanonicalContract) string {
	for _, sku := range contract.Skus {
		if cat := c.PrefixCategory(sku); cat != models.CategoryOther {
			return cat
		}
	}
	for _, sku := range contract.Skus {
		if cat, ok := c.overrides.BySku[utils.NormalizeId(sku)]; ok {
			return cat
		}
	}
	for _, id := range contract.AliasIds() {
		for _, sku := range contract.Skus {
			key := models.ContractOverrideKey(id, contract.CustomerName, sku, contract.Quantity)
			if cat, ok := c.overrides.ByContract[key]; ok {
				return cat
			}
		}
	}
	return models.CategoryOther
}

// Exclusions drops test data and denylisted customers.
type Exclusions struct {
	denied      map[string]bool
	allowSubstr string
}

func NewExclusions(deniedCustomers []string, testAllowSubstring string) Exclusions {
	e := Exclusions{denied: make(map[string]bool), allowSubstr: strings.ToUpper(strings.TrimSpace(testAllowSubstring))}
	for _, name := range deniedCustomers {
		if n := utils.NormalizeName(name); n != "" {
			e.denied[n] = true
		}
	}
	return e
}

func (e Exclusions) isTest(s string) bool {
	s = strings.ToUpper(s)
	if !strings.Contains(s, "TEST") {
		return false
	}
	return e.allowSubstr == "" || !strings.Contains(s, e.allowSubstr)
}

// Excluded reports whether the contract must be dropped and why.
func (e Exclusions) Excluded(c *models.CanonicalContract) (bool, string) {
	if e.denied[utils.NormalizeName(c.CustomerName)] {
		return true, "denylisted customer"
	}
	if e.isTest(c.CustomerName) {
		return true, "test customer"
	}
	for _, sku := range c.Skus {
		if e.isTest(sku) {
			return true, "test sku"
		}
	}
	return false, ""
}
