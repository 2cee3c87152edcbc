package tablestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestExcelStore_WriteReadReplace(t *testing.T) {
	ctx := context.Background()
	store := NewExcelStore(filepath.Join(t.TempDir(), "book.xlsx"))

	rows := []Row{
		{"C1", decimal.NewFromInt(100), time.Date(2022, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"C2", 50.5, nil},
	}
	if err := WriteRows(ctx, store, "Contract View", []string{"Contract ID", "Amount", "Start"}, rows, 1); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	names, _ := store.ListTables(ctx)
	if len(names) != 1 || names[0] != "Contract View" {
		t.Fatalf("expected only Contract View, got %v", names)
	}

	tbl, err := store.ReadTable(ctx, "Contract View")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(tbl.Rows) != 2 || tbl.Rows[0][0] != "C1" || tbl.Rows[0][1] != "100" || tbl.Rows[0][2] != "2022-01-15" {
		t.Fatalf("unexpected rows %v", tbl.Rows)
	}

	if err := WriteRows(ctx, store, "Contract View", []string{"Contract ID"}, []Row{{"C3"}}, 10); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	tbl, _ = store.ReadTable(ctx, "Contract View")
	if len(tbl.Rows) != 1 || tbl.Rows[0][0] != "C3" || len(tbl.Headers) != 1 {
		t.Fatalf("expected replaced table, got %+v", tbl)
	}
}

func TestExcelStore_EditAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewExcelStore(filepath.Join(t.TempDir(), "book.xlsx"))
	if err := WriteRows(ctx, store, "T", []string{"K"}, []Row{{"a"}, {"b"}, {"c"}}, 10); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	if err := store.DeleteRows(ctx, "T", 1); err != nil {
		t.Fatalf("DeleteRows: %v", err)
	}
	if err := store.UpdateRow(ctx, "T", 0, Row{"A"}); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}
	if err := store.AppendRows(ctx, "T", []Row{{"d"}}); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	tbl, _ := store.ReadTable(ctx, "T")
	if len(tbl.Rows) != 3 || tbl.Rows[0][0] != "A" || tbl.Rows[1][0] != "c" || tbl.Rows[2][0] != "d" {
		t.Fatalf("unexpected rows %v", tbl.Rows)
	}

	if err := store.DeleteTable(ctx, "T"); err != nil {
		t.Fatalf("DeleteTable: %v", err)
	}
	if _, err := store.ReadTable(ctx, "T"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}

func TestExcelStore_MissingWorkbook(t *testing.T) {
	store := NewExcelStore(filepath.Join(t.TempDir(), "absent.xlsx"))
	if _, err := store.ReadTable(context.Background(), "X"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}
