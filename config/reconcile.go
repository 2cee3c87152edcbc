package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ReconcileConfig carries every tunable of the reconciliation engine. It is
// built once per run and passed explicitly; the engine never reads env itself.
type ReconcileConfig struct {
	// MonthCap bounds monthsBetween so a bad end date cannot produce a runaway schedule.
	MonthCap            int             `validate:"min=1,max=600"`
	LedgerTableRowCap   int             `validate:"min=1"`
	WriteBatchSize      int             `validate:"min=1"`
	MinStartYear        int             `validate:"gte=1900"`
	FullyPaidTolerance  decimal.Decimal `validate:"-"`
	LegacyMatchWindow   int             `validate:"gte=0"`
	AuthoritativeSource string          `validate:"required"`
	StatusStrategy      string          `validate:"oneof=passthrough date-driven"`
	ExcludedCustomers   []string
	TestAllowSubstring  string
	// CategoryPrefixes maps an SKU prefix to its product category; longest prefix wins.
	CategoryPrefixes map[string]string `validate:"required"`
}

func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		MonthCap:            36,
		LedgerTableRowCap:   50000,
		WriteBatchSize:      1000,
		MinStartYear:        2022,
		FullyPaidTolerance:  decimal.NewFromInt(1),
		LegacyMatchWindow:   90,
		AuthoritativeSource: "SME (ALL)",
		StatusStrategy:      StatusStrategyPassthrough,
		CategoryPrefixes: map[string]string{
			"SRLP":     "A",
			"SRDT":     "A",
			"SRIPAD87": "A",
			"SAPLP":    "B",
			"SAPDT":    "B",
		},
	}
}

// LoadReconcileConfig overlays env variables on DefaultReconcileConfig and validates the result.
func LoadReconcileConfig() (ReconcileConfig, error) {
	cfg := DefaultReconcileConfig()
	cfg.MonthCap = intFromEnv("MONTH_CAP", cfg.MonthCap)
	cfg.LedgerTableRowCap = intFromEnv("LEDGER_TABLE_ROW_CAP", cfg.LedgerTableRowCap)
	cfg.WriteBatchSize = intFromEnv("WRITE_BATCH_SIZE", cfg.WriteBatchSize)
	cfg.MinStartYear = intFromEnv("MIN_START_YEAR", cfg.MinStartYear)
	cfg.LegacyMatchWindow = intFromEnv("LEGACY_MATCH_WINDOW_DAYS", cfg.LegacyMatchWindow)
	cfg.StatusStrategy = StatusStrategy()

	if v := strings.TrimSpace(os.Getenv("FULLY_PAID_TOLERANCE")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return cfg, fmt.Errorf("FULLY_PAID_TOLERANCE: %w", err)
		}
		cfg.FullyPaidTolerance = d
	}
	if v := strings.TrimSpace(os.Getenv("AUTHORITATIVE_SOURCE")); v != "" {
		cfg.AuthoritativeSource = v
	}
	if v := strings.TrimSpace(os.Getenv("EXCLUDED_CUSTOMERS")); v != "" {
		cfg.ExcludedCustomers = splitAndTrim(v)
	}
	cfg.TestAllowSubstring = strings.TrimSpace(os.Getenv("TEST_ALLOW_SUBSTRING"))
	if v := strings.TrimSpace(os.Getenv("CATEGORY_PREFIXES")); v != "" {
		prefixes, err := parseCategoryPrefixes(v)
		if err != nil {
			return cfg, err
		}
		cfg.CategoryPrefixes = prefixes
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid reconcile config: %w", err)
	}
	return cfg, nil
}

// parseCategoryPrefixes reads "SRLP=A,SAPLP=B".
func parseCategoryPrefixes(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range splitAndTrim(raw) {
		prefix, category, ok := strings.Cut(pair, "=")
		prefix = strings.ToUpper(strings.TrimSpace(prefix))
		category = strings.TrimSpace(category)
		if !ok || prefix == "" || category == "" {
			return nil, fmt.Errorf("CATEGORY_PREFIXES: bad entry %q", pair)
		}
		out[prefix] = category
	}
	return out, nil
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IntFromEnv is exported for cmd tools that share the same defaults handling.
func IntFromEnv(key string, def int) int {
	return intFromEnv(key, def)
}

// BoolFromEnv is exported for cmd tools.
func BoolFromEnv(key string, def bool) bool {
	return envBoolDefault(key, def)
}

