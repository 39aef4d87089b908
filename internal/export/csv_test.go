package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vatdesk/api/internal/testutil"
	"github.com/vatdesk/api/internal/vat"
)

func readAll(t *testing.T, b []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	return records
}

func TestWriteBreakdown(t *testing.T) {
	rows := []vat.CountryBreakdownRow{
		{Country: "DE", OSS: decimal.NewFromInt(100), Total: decimal.NewFromInt(100)},
		{
			Country:        "FR",
			DomesticB2C:    decimal.RequireFromString("-50"),
			Intracommunity: decimal.RequireFromString("200.5"),
			Total:          decimal.RequireFromString("150.5"),
		},
	}

	var buf bytes.Buffer
	if err := WriteBreakdown(&buf, rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := readAll(t, buf.Bytes())
	if len(records) != 4 {
		t.Fatalf("expected header, 2 rows and a total, got %d records", len(records))
	}
	if records[0][0] != "country" || len(records[0]) != len(BreakdownHeader) {
		t.Errorf("unexpected header: %v", records[0])
	}

	fr := records[2]
	if fr[0] != "FR" || fr[1] != "-50.00" || fr[3] != "200.50" || fr[7] != "150.50" {
		t.Errorf("unexpected FR row: %v", fr)
	}

	total := records[3]
	if total[0] != TotalLabel {
		t.Errorf("expected %s label, got %q", TotalLabel, total[0])
	}
	if total[4] != "100.00" || total[7] != "250.50" {
		t.Errorf("unexpected total row: %v", total)
	}
}

func TestWriteBreakdown_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBreakdown(&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := readAll(t, buf.Bytes())
	if len(records) != 2 {
		t.Fatalf("expected header and total only, got %d records", len(records))
	}
	if records[1][7] != "0.00" {
		t.Errorf("expected zero total, got %q", records[1][7])
	}
}

func TestWriteTransactions(t *testing.T) {
	engine := vat.NewEngine(nil, vat.DiagnosticOptions{})
	stream, err := engine.Classified(testutil.SampleExport(t), vat.MappingRules{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteTransactions(&buf, stream); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := readAll(t, buf.Bytes())
	if len(records) != len(stream)+1 {
		t.Fatalf("expected %d records, got %d", len(stream)+1, len(records))
	}

	refund := records[2]
	if refund[1] != "B2C-1" || refund[7] != "-50" || refund[10] != string(vat.RegimeDomesticB2C) {
		t.Errorf("unexpected refund line: %v", refund)
	}
}
