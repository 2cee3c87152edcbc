package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"bitbucket.org/mmdatafocus/contract_ledger/tablestore"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
)

// Natural key columns of the Contract View.
var contractViewKeyFields = []string{"customer name", "contract ids", "package", "quantity", "source sheet"}

type IncrementalResult struct {
	Deleted     int  `json:"deleted"`
	Updated     int  `json:"updated"`
	Appended    int  `json:"appended"`
	FullRewrite bool `json:"full_rewrite"`
}

// NaturalKey joins the key columns as customer|contractIds|package|qty|sourceSheet.
func NaturalKey(idx tablestore.HeaderIndex, row tablestore.Row) string {
	parts := make([]string, len(contractViewKeyFields))
	for i, f := range contractViewKeyFields {
		parts[i] = utils.NormalizeId(utils.CellString(idx.Cell(row, f)))
	}
	return strings.Join(parts, "|")
}

// keyRows assigns every row a unique key; repeats get "#2", "#3"... in row order.
func keyRows(idx tablestore.HeaderIndex, rows []tablestore.Row) ([]string, map[string]int) {
	seen := map[string]int{}
	keys := make([]string, len(rows))
	pos := make(map[string]int, len(rows))
	for i, r := range rows {
		k := NaturalKey(idx, r)
		seen[k]++
		if n := seen[k]; n > 1 {
			k = fmt.Sprintf("%s#%d", k, n)
		}
		keys[i] = k
		pos[k] = i
	}
	return keys, pos
}

func sameRow(a, b tablestore.Row) bool {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		var x, y any
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if utils.CellString(x) != utils.CellString(y) {
			return false
		}
	}
	return true
}

// ApplyIncremental brings table in line with desired by deleting, updating
// and appending rows keyed by NaturalKey. Deletes go first, row positions
// are re-read before updates, appends go last. Stores without row editing,
// a missing table or a changed header fall back to a full rewrite.
func ApplyIncremental(ctx context.Context, store tablestore.Store, table string, headers []string, desired []tablestore.Row, batchSize int) (IncrementalResult, error) {
	var res IncrementalResult
	editor, canEdit := store.(tablestore.RowEditor)
	existing, err := store.ReadTable(ctx, table)
	if err != nil && !errors.Is(err, tablestore.ErrTableNotFound) {
		return res, err
	}
	if !canEdit || existing == nil || !slices.Equal(existing.Headers, headers) {
		res.FullRewrite = true
		res.Appended = len(desired)
		return res, tablestore.WriteRows(ctx, store, table, headers, desired, batchSize)
	}

	idx := tablestore.NewHeaderIndex(table, headers)
	desiredKeys, desiredPos := keyRows(idx, desired)
	existingKeys, _ := keyRows(idx, existing.Rows)

	var deletes []int
	for i, k := range existingKeys {
		if _, keep := desiredPos[k]; !keep {
			deletes = append(deletes, i)
		}
	}
	if len(deletes) > 0 {
		if err := editor.DeleteRows(ctx, table, deletes...); err != nil {
			return res, fmt.Errorf("delete rows: %w", err)
		}
		res.Deleted = len(deletes)
		existing, err = store.ReadTable(ctx, table)
		if err != nil {
			return res, err
		}
	}
	_, existingPos := keyRows(idx, existing.Rows)

	var appends []tablestore.Row
	for i, k := range desiredKeys {
		pos, ok := existingPos[k]
		if !ok {
			appends = append(appends, desired[i])
			continue
		}
		if sameRow(existing.Rows[pos], desired[i]) {
			continue
		}
		if err := editor.UpdateRow(ctx, table, pos, desired[i]); err != nil {
			return res, fmt.Errorf("update row %d: %w", pos, err)
		}
		res.Updated++
	}

	for batch := range tablestore.Batched(tablestore.SliceRows(appends), batchSize) {
		if err := editor.AppendRows(ctx, table, batch); err != nil {
			return res, fmt.Errorf("append rows: %w", err)
		}
		res.Appended += len(batch)
	}
	return res, nil
}
