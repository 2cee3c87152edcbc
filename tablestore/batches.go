package tablestore

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// SliceRows adapts a slice to a row sequence.
func SliceRows(rows []Row) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, r := range rows {
			if !yield(r) {
				return
			}
		}
	}
}

// Batched groups rows into batches of at most size rows. The result can be
// ranged over more than once when rows can.
func Batched(rows iter.Seq[Row], size int) iter.Seq[[]Row] {
	if size <= 0 {
		size = 1000
	}
	return func(yield func([]Row) bool) {
		batch := make([]Row, 0, size)
		for r := range rows {
			batch = append(batch, r)
			if len(batch) == size {
				if !yield(batch) {
					return
				}
				batch = make([]Row, 0, size)
			}
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}

// PageName returns "base" for page 1 and "base (n)" afterwards.
func PageName(base string, page int) string {
	if page <= 1 {
		return base
	}
	return fmt.Sprintf("%s (%d)", base, page)
}

// PageNumber reports which page of base a table name is, if any.
func PageNumber(base, name string) (int, bool) {
	if name == base {
		return 1, true
	}
	prefix := base + " ("
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ")") {
		return 0, false
	}
	n, err := strconv.Atoi(name[len(prefix) : len(name)-1])
	if err != nil || n < 2 {
		return 0, false
	}
	return n, true
}

// PagesOf lists existing page names of base in page order.
func PagesOf(ctx context.Context, store Store, base string) ([]string, error) {
	names, err := store.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	type page struct {
		name string
		n    int
	}
	var pages []page
	for _, name := range names {
		if n, ok := PageNumber(base, name); ok {
			pages = append(pages, page{name, n})
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.name)
	}
	return out, nil
}

// WritePaginated splits rows across tables of at most rowCap rows each and
// removes pages left over from a previous, longer write. It returns the
// number of pages written; an empty input still writes a header-only first page.
func WritePaginated(ctx context.Context, store Store, base string, headers []string, rows []Row, rowCap, batchSize int) (int, error) {
	if rowCap <= 0 {
		rowCap = len(rows)
	}
	pages := 0
	for start := 0; start < len(rows) || pages == 0; start += rowCap {
		end := min(start+rowCap, len(rows))
		pages++
		if err := WriteRows(ctx, store, PageName(base, pages), headers, rows[start:end], batchSize); err != nil {
			return pages - 1, fmt.Errorf("write page %d of %q: %w", pages, base, err)
		}
		if end >= len(rows) {
			break
		}
	}

	existing, err := PagesOf(ctx, store, base)
	if err != nil {
		return pages, err
	}
	for _, name := range existing {
		n, _ := PageNumber(base, name)
		if n > pages {
			if err := store.DeleteTable(ctx, name); err != nil {
				return pages, fmt.Errorf("delete stale page %q: %w", name, err)
			}
		}
	}
	return pages, nil
}

// ReadPaginated concatenates every page of base. Missing base yields ErrTableNotFound.
func ReadPaginated(ctx context.Context, store Store, base string) (*Table, error) {
	names, err := PagesOf(ctx, store, base)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, tableNotFound(base)
	}
	out := &Table{Name: base}
	for _, name := range names {
		t, err := store.ReadTable(ctx, name)
		if err != nil {
			return nil, err
		}
		if out.Headers == nil {
			out.Headers = slices.Clone(t.Headers)
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}
