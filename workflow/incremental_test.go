package workflow

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/contract_ledger/tablestore"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
)

var viewHeaders = []string{"Customer Name", "Contract IDs", "Package", "Quantity", "Source Sheet", "Status"}

type readOnlyRows struct {
	tablestore.Store
}

func viewRow(customer, ids, pkg string, qty int, status string) tablestore.Row {
	return tablestore.Row{customer, ids, pkg, qty, "Sheet A", status}
}

func renderRows(t *tablestore.Table) []string {
	out := make([]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		line := ""
		for _, c := range r {
			line += utils.CellString(c) + "|"
		}
		out = append(out, line)
	}
	return out
}

func TestApplyIncremental_DeleteUpdateAppend(t *testing.T) {
	ctx := context.Background()
	store := tablestore.NewMemoryStore(&tablestore.Table{
		Name:    "View",
		Headers: viewHeaders,
		Rows: []tablestore.Row{
			viewRow("Acme", "C1", "SRLP1", 1, "LIVE"),
			viewRow("Beta", "C2", "SRLP1", 1, "LIVE"),
			viewRow("Gamma", "C3", "SRLP1", 2, "LIVE"),
		},
	})
	desired := []tablestore.Row{
		viewRow("Acme", "C1", "SRLP1", 1, "LIVE"),
		viewRow("Gamma", "C3", "SRLP1", 2, "INACTIVE"),
		viewRow("Delta", "C4", "SAPLP1", 1, "LIVE"),
	}

	res, err := ApplyIncremental(ctx, store, "View", viewHeaders, desired, 2)
	if err != nil {
		t.Fatalf("ApplyIncremental error: %v", err)
	}
	if res.FullRewrite || res.Deleted != 1 || res.Updated != 1 || res.Appended != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	got, _ := store.ReadTable(ctx, "View")
	want := renderRows(&tablestore.Table{Rows: desired})
	have := renderRows(got)
	if len(have) != len(want) {
		t.Fatalf("expected %v, got %v", want, have)
	}
	for i := range want {
		if have[i] != want[i] {
			t.Fatalf("row %d: expected %s, got %s", i, want[i], have[i])
		}
	}

	res, err = ApplyIncremental(ctx, store, "View", viewHeaders, desired, 2)
	if err != nil {
		t.Fatalf("second ApplyIncremental error: %v", err)
	}
	if res.Deleted+res.Updated+res.Appended != 0 {
		t.Fatalf("unchanged input must not touch the table, got %+v", res)
	}
}

func TestApplyIncremental_DuplicateKeysStayDistinct(t *testing.T) {
	ctx := context.Background()
	store := tablestore.NewMemoryStore(&tablestore.Table{
		Name:    "View",
		Headers: viewHeaders,
		Rows: []tablestore.Row{
			viewRow("Acme", "C1", "SRLP1", 1, "LIVE"),
			viewRow("Acme", "C1", "SRLP1", 1, "LIVE"),
		},
	})
	desired := []tablestore.Row{viewRow("Acme", "C1", "SRLP1", 1, "LIVE")}

	res, err := ApplyIncremental(ctx, store, "View", viewHeaders, desired, 10)
	if err != nil {
		t.Fatalf("ApplyIncremental error: %v", err)
	}
	if res.Deleted != 1 {
		t.Fatalf("expected the repeated key row deleted, got %+v", res)
	}
	got, _ := store.ReadTable(ctx, "View")
	if len(got.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got.Rows))
	}
}

func TestApplyIncremental_FullRewriteFallbacks(t *testing.T) {
	ctx := context.Background()
	desired := []tablestore.Row{viewRow("Acme", "C1", "SRLP1", 1, "LIVE")}
	cases := []struct {
		name  string
		store tablestore.Store
	}{
		{"missing table", tablestore.NewMemoryStore()},
		{"header change", tablestore.NewMemoryStore(&tablestore.Table{Name: "View", Headers: []string{"Customer Name"}})},
		{"no row editing", readOnlyRows{tablestore.NewMemoryStore(&tablestore.Table{Name: "View", Headers: viewHeaders})}},
	}
	for _, tc := range cases {
		res, err := ApplyIncremental(ctx, tc.store, "View", viewHeaders, desired, 10)
		if err != nil {
			t.Fatalf("%s: error %v", tc.name, err)
		}
		if !res.FullRewrite || res.Appended != 1 {
			t.Fatalf("%s: expected full rewrite, got %+v", tc.name, res)
		}
		got, err := tc.store.ReadTable(ctx, "View")
		if err != nil || len(got.Rows) != 1 {
			t.Fatalf("%s: expected rewritten table, got %v %v", tc.name, got, err)
		}
	}
}
