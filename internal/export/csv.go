// Package export renders analysis results as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/vatdesk/api/internal/vat"
)

// BreakdownHeader is the first line written by WriteBreakdown.
var BreakdownHeader = []string{
	"country", "domestic_b2c", "domestic_b2b", "intracommunity",
	"oss", "switzerland_voec", "residual", "total",
}

// TotalLabel marks the closing row of a breakdown export.
const TotalLabel = "TOTAL"

// WriteBreakdown writes one line per country followed by a TOTAL line summing
// each column.
func WriteBreakdown(w io.Writer, rows []vat.CountryBreakdownRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(BreakdownHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	var sum vat.CountryBreakdownRow
	sum.Country = TotalLabel
	for _, r := range rows {
		if err := cw.Write(breakdownRecord(r)); err != nil {
			return fmt.Errorf("writing %s: %w", r.Country, err)
		}
		sum.DomesticB2C = sum.DomesticB2C.Add(r.DomesticB2C)
		sum.DomesticB2B = sum.DomesticB2B.Add(r.DomesticB2B)
		sum.Intracommunity = sum.Intracommunity.Add(r.Intracommunity)
		sum.OSS = sum.OSS.Add(r.OSS)
		sum.SwitzerlandVOEC = sum.SwitzerlandVOEC.Add(r.SwitzerlandVOEC)
		sum.Residual = sum.Residual.Add(r.Residual)
		sum.Total = sum.Total.Add(r.Total)
	}
	if err := cw.Write(breakdownRecord(sum)); err != nil {
		return fmt.Errorf("writing total: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

func breakdownRecord(r vat.CountryBreakdownRow) []string {
	return []string{
		r.Country,
		money(r.DomesticB2C),
		money(r.DomesticB2B),
		money(r.Intracommunity),
		money(r.OSS),
		money(r.SwitzerlandVOEC),
		money(r.Residual),
		money(r.Total),
	}
}

// TransactionsHeader is the first line written by WriteTransactions.
var TransactionsHeader = []string{
	"line", "reference", "type", "scheme", "depart_country", "arrival_country",
	"buyer_vat_country", "amount", "currency", "country", "regime", "rule",
}

// WriteTransactions writes the classified stream, one line per transaction,
// with the signed amount at full precision.
func WriteTransactions(w io.Writer, stream []vat.ClassifiedTransaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(TransactionsHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, ct := range stream {
		tx, c := ct.Transaction, ct.Classification
		record := []string{
			strconv.Itoa(tx.Line),
			tx.ReferenceID,
			string(tx.Type),
			tx.TaxScheme,
			tx.DepartCountry,
			tx.ArrivalCountry,
			tx.BuyerVATCountry,
			tx.SignedAmount.String(),
			tx.Currency,
			c.Country,
			string(c.Regime),
			strconv.Itoa(c.Rule),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing line %d: %w", tx.Line, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
