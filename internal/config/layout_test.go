package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/guarantor/internal/merge"
)

func TestParseLayout_LettersAndNumbers(t *testing.T) {
	doc := `
yield_every: 250
guarantor:
  start_row: 3
  columns:
    cnic: E
    loan_cycle: 11
clients:
  columns:
    client_id: "a"
    cnic: AA
`
	l, err := ParseLayout([]byte(doc))
	if err != nil {
		t.Fatalf("ParseLayout() error = %v", err)
	}

	def := merge.DefaultLayout()

	if l.YieldEvery != 250 {
		t.Errorf("YieldEvery = %d, want 250", l.YieldEvery)
	}
	if l.Guarantor.StartRow != 3 {
		t.Errorf("Guarantor.StartRow = %d, want 3", l.Guarantor.StartRow)
	}
	if l.Guarantor.Columns.CNIC != 4 {
		t.Errorf("Guarantor CNIC = %d, want 4", l.Guarantor.Columns.CNIC)
	}
	if l.Guarantor.Columns.LoanCycle != 11 {
		t.Errorf("Guarantor LoanCycle = %d, want 11", l.Guarantor.Columns.LoanCycle)
	}
	if l.Guarantor.Columns.Name != def.Guarantor.Columns.Name {
		t.Errorf("Guarantor Name = %d, want default %d", l.Guarantor.Columns.Name, def.Guarantor.Columns.Name)
	}
	if l.Clients.StartRow != def.Clients.StartRow {
		t.Errorf("Clients.StartRow = %d, want default %d", l.Clients.StartRow, def.Clients.StartRow)
	}
	if l.Clients.Columns.ClientID != 0 {
		t.Errorf("Clients ClientID = %d, want 0", l.Clients.Columns.ClientID)
	}
	if l.Clients.Columns.CNIC != 26 {
		t.Errorf("Clients CNIC = %d, want 26", l.Clients.Columns.CNIC)
	}
}

func TestParseLayout_Empty(t *testing.T) {
	l, err := ParseLayout(nil)
	if err != nil {
		t.Fatalf("ParseLayout() error = %v", err)
	}
	if l != merge.DefaultLayout() {
		t.Errorf("ParseLayout(nil) = %+v, want defaults", l)
	}
}

func TestParseLayout_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "guarantor:\n  colums:\n    cnic: D\n"},
		{"bad letter", "clients:\n  columns:\n    cnic: \"D-1\"\n"},
		{"negative index", "clients:\n  columns:\n    cnic: -2\n"},
		{"negative start row", "guarantor:\n  start_row: -1\n"},
		{"list as column", "clients:\n  columns:\n    cnic: [1, 2]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLayout([]byte(tt.doc)); err == nil {
				t.Error("ParseLayout() expected error")
			}
		})
	}
}

func TestMarshalLayout_RoundTrip(t *testing.T) {
	data, err := MarshalLayout(merge.DefaultLayout())
	if err != nil {
		t.Fatalf("MarshalLayout() error = %v", err)
	}
	if !strings.Contains(string(data), "cnic: D") {
		t.Errorf("expected letter columns in:\n%s", data)
	}

	l, err := ParseLayout(data)
	if err != nil {
		t.Fatalf("ParseLayout() error = %v", err)
	}
	if l != merge.DefaultLayout() {
		t.Errorf("round trip = %+v, want defaults", l)
	}
}

func TestMergeConfigLayout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.yaml")
	if err := os.WriteFile(path, []byte("guarantor:\n  start_row: 5\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := MergeConfig{LayoutFile: path, GuarantorStartRow: -1, ClientStartRow: 1, YieldEvery: 50}
	l, err := cfg.Layout()
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	if l.Guarantor.StartRow != 5 {
		t.Errorf("Guarantor.StartRow = %d, want 5 from file", l.Guarantor.StartRow)
	}
	if l.Clients.StartRow != 1 {
		t.Errorf("Clients.StartRow = %d, want 1 from env override", l.Clients.StartRow)
	}
	if l.YieldEvery != 50 {
		t.Errorf("YieldEvery = %d, want 50", l.YieldEvery)
	}

	cfg.LayoutFile = filepath.Join(dir, "missing.yaml")
	if _, err := cfg.Layout(); err == nil {
		t.Error("Layout() expected error for missing file")
	}
}
