package tablestore

import (
	"errors"
	"testing"
)

func TestHeaderIndex_AliasesAndCase(t *testing.T) {
	h := NewHeaderIndex("Invoices", []string{" Invoice  Number ", "Contract No", "AMOUNT"})
	if i, ok := h.Col("invoice number"); !ok || i != 0 {
		t.Fatalf("expected invoice number at 0, got %d,%v", i, ok)
	}
	if i, ok := h.Col("contract id|contract no"); !ok || i != 1 {
		t.Fatalf("expected alias to resolve to 1, got %d,%v", i, ok)
	}
	if v := h.Cell(Row{"INV1", "C1"}, "amount"); v != nil {
		t.Fatalf("expected nil for short row, got %v", v)
	}
}

func TestHeaderIndex_RequireFailsFast(t *testing.T) {
	h := NewHeaderIndex("Receipts", []string{"Receipt Number", "Amount"})
	err := h.Require("receipt number", "payment date", "amount")
	if !errors.Is(err, ErrMissingHeader) {
		t.Fatalf("expected ErrMissingHeader, got %v", err)
	}
	if err := h.Require("receipt number", "amount"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
