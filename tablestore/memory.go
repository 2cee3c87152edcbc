package tablestore

import (
	"context"
	"iter"
	"slices"
	"sort"
	"sync"
)

// MemoryStore keeps tables in process. Reads return copies.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

func NewMemoryStore(tables ...*Table) *MemoryStore {
	m := &MemoryStore{tables: make(map[string]*Table)}
	for _, t := range tables {
		m.tables[t.Name] = cloneTable(t)
	}
	return m
}

func cloneTable(t *Table) *Table {
	out := &Table{Name: t.Name, Headers: slices.Clone(t.Headers), Rows: make([]Row, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = slices.Clone(r)
	}
	return out
}

func (m *MemoryStore) ReadTable(ctx context.Context, name string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[name]
	if !ok {
		return nil, tableNotFound(name)
	}
	return cloneTable(t), nil
}

func (m *MemoryStore) WriteTable(ctx context.Context, name string, headers []string, batches iter.Seq[[]Row]) error {
	t := &Table{Name: name, Headers: slices.Clone(headers)}
	for batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, r := range batch {
			t.Rows = append(t.Rows, slices.Clone(r))
		}
	}
	m.mu.Lock()
	m.tables[name] = t
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListTables(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for n := range m.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) DeleteTable(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, name)
	return nil
}

func (m *MemoryStore) DeleteRows(ctx context.Context, name string, rowIdx ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		return tableNotFound(name)
	}
	idx := slices.Clone(rowIdx)
	sort.Sort(sort.Reverse(sort.IntSlice(idx)))
	idx = slices.Compact(idx)
	for _, i := range idx {
		if i < 0 || i >= len(t.Rows) {
			return ErrRowOutOfRange
		}
		t.Rows = slices.Delete(t.Rows, i, i+1)
	}
	return nil
}

func (m *MemoryStore) UpdateRow(ctx context.Context, name string, rowIdx int, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		return tableNotFound(name)
	}
	if rowIdx < 0 || rowIdx >= len(t.Rows) {
		return ErrRowOutOfRange
	}
	t.Rows[rowIdx] = slices.Clone(row)
	return nil
}

func (m *MemoryStore) AppendRows(ctx context.Context, name string, rows []Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		return tableNotFound(name)
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, slices.Clone(r))
	}
	return nil
}
