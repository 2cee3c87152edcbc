package tablestore

import (
	"fmt"
	"strings"
)

// HeaderIndex maps normalized header text to column positions.
type HeaderIndex struct {
	table string
	cols  map[string]int
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

func NewHeaderIndex(table string, headers []string) HeaderIndex {
	cols := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return HeaderIndex{table: table, cols: cols}
}

// Col resolves a field name. Aliases are separated by '|', e.g. "contract id|contract no".
func (h HeaderIndex) Col(field string) (int, bool) {
	for _, alias := range strings.Split(field, "|") {
		if i, ok := h.cols[normalizeHeader(alias)]; ok {
			return i, true
		}
	}
	return -1, false
}

// Require fails with ErrMissingHeader naming the first absent field.
func (h HeaderIndex) Require(fields ...string) error {
	for _, f := range fields {
		if _, ok := h.Col(f); !ok {
			return fmt.Errorf("%w: table %q has no %q column", ErrMissingHeader, h.table, f)
		}
	}
	return nil
}

// Cell returns the row value for field, nil when the column or cell is absent.
func (h HeaderIndex) Cell(row Row, field string) any {
	i, ok := h.Col(field)
	if !ok || i >= len(row) {
		return nil
	}
	return row[i]
}

// Columns lists header positions matching pred, in column order.
func Columns(headers []string, pred func(string) bool) []int {
	var out []int
	for i, h := range headers {
		if pred(strings.TrimSpace(h)) {
			out = append(out, i)
		}
	}
	return out
}
