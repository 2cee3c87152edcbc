// Package tablestore exposes spreadsheet documents as named tables of rows
// with an ordered header row.
package tablestore

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrMissingHeader = errors.New("required header missing")
	ErrRowOutOfRange = errors.New("row index out of range")
)

// Row holds cell values: string, float64, int, bool, time.Time or decimal.Decimal.
type Row []any

type Table struct {
	Name    string
	Headers []string
	Rows    []Row
}

// Store reads and wholesale-replaces named tables.
type Store interface {
	ReadTable(ctx context.Context, name string) (*Table, error)
	// WriteTable replaces the table with headers followed by every batch in order.
	// The table is created when absent.
	WriteTable(ctx context.Context, name string, headers []string, batches iter.Seq[[]Row]) error
	ListTables(ctx context.Context) ([]string, error)
	DeleteTable(ctx context.Context, name string) error
}

// RowEditor edits rows in place. Row indexes are 0-based data rows (header excluded).
type RowEditor interface {
	DeleteRows(ctx context.Context, name string, rowIdx ...int) error
	UpdateRow(ctx context.Context, name string, rowIdx int, row Row) error
	AppendRows(ctx context.Context, name string, rows []Row) error
}

func tableNotFound(name string) error {
	return fmt.Errorf("%w: %q", ErrTableNotFound, name)
}

// WriteRows writes an in-memory slice through the batching path.
func WriteRows(ctx context.Context, store Store, name string, headers []string, rows []Row, batchSize int) error {
	return store.WriteTable(ctx, name, headers, Batched(SliceRows(rows), batchSize))
}

// ReadOptional treats a missing table as empty.
func ReadOptional(ctx context.Context, store Store, name string) (*Table, error) {
	t, err := store.ReadTable(ctx, name)
	if errors.Is(err, ErrTableNotFound) {
		return &Table{Name: name}, nil
	}
	return t, err
}
