package vat

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// Skip reasons.
const (
	SkipUnrecognizedType = "unrecognized transaction type"
	SkipInvalidDate      = "invalid date"
	SkipMalformedRow     = "malformed row"
)

// ParseResult is the normalized transaction stream plus the rows that were
// dropped on the way.
type ParseResult struct {
	Transactions []Transaction
	Skipped      []SkippedRow
	RowsRead     int
}

// ParseRows reads the post-header body and normalizes every non-blank row.
// Row-level problems never abort the run; the offending row is recorded in
// Skipped and parsing continues.
func ParseRows(body string, layout Layout, rules MappingRules) ParseResult {
	r := csv.NewReader(strings.NewReader(body))
	r.Comma = layout.Delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var res ParseResult
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				break
			}
			line := layout.HeaderLine + perr.StartLine
			res.RowsRead++
			res.Skipped = append(res.Skipped, SkippedRow{Line: line, Reason: fmt.Sprintf("%s: %v", SkipMalformedRow, err)})
			continue
		}
		if isBlankRecord(record) {
			continue
		}
		l, _ := r.FieldPos(0)
		line := layout.HeaderLine + l
		res.RowsRead++

		tx, reason := normalizeRecord(record, layout, rules)
		if reason != "" {
			res.Skipped = append(res.Skipped, SkippedRow{Line: line, Reason: reason})
			continue
		}
		tx.Line = line
		res.Transactions = append(res.Transactions, tx)
	}
	return res
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// normalizeRecord converts one raw record into a Transaction. A non-empty
// reason means the row must be skipped.
func normalizeRecord(record []string, layout Layout, rules MappingRules) (Transaction, string) {
	cell := func(field string) string {
		idx, ok := layout.Columns[field]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	txType, ok := ParseTransactionType(cell(FieldTransactionType))
	if !ok {
		return Transaction{}, SkipUnrecognizedType
	}

	date, err := ParseDate(cell(FieldDate))
	if err != nil {
		return Transaction{}, fmt.Sprintf("%s %q", SkipInvalidDate, strings.TrimSpace(cell(FieldDate)))
	}

	arrival := NormalizeCountry(cell(FieldArrivalCountry))
	if arrival == "" {
		arrival = NormalizeCountry(cell(FieldJurisdiction))
	}

	vatNumber := SanitizeVATNumber(cell(FieldBuyerVATNumber))
	if IsEmptyValue(vatNumber) {
		vatNumber = ""
	}
	// An empty buyer country cell means B2C even when a VAT number is
	// present; the number prefix only stands in when the column is absent.
	buyerCountry := ""
	if raw := cell(FieldBuyerVATCountry); !IsEmptyValue(raw) {
		buyerCountry = NormalizeCountry(raw)
	}
	if !layout.Has(FieldBuyerVATCountry) && len(vatNumber) >= 2 {
		buyerCountry = vatPrefixCountry(vatNumber[:2])
		if !isoCodePattern.MatchString(buyerCountry) {
			buyerCountry = ""
		}
	}

	vatAmount := ParseAmount(cell(FieldVATAmount))
	var excl decimal.Decimal
	if layout.Has(FieldAmountExclVAT) {
		excl = ParseAmount(cell(FieldAmountExclVAT))
	} else {
		excl = ParseAmount(cell(FieldAmountInclVAT)).Sub(vatAmount).Abs()
	}

	signed := excl
	if txType == TypeRefund {
		signed = excl.Neg()
	}

	return Transaction{
		ReferenceID:     strings.TrimSpace(cell(FieldReferenceID)),
		Type:            txType,
		TaxScheme:       NormalizeScheme(cell(FieldTaxScheme), rules.SchemeAliases),
		ArrivalCountry:  arrival,
		DepartCountry:   NormalizeCountry(cell(FieldDepartCountry)),
		BuyerVATCountry: buyerCountry,
		BuyerVATNumber:  vatNumber,
		AmountExclVAT:   excl,
		VATAmount:       vatAmount,
		SignedAmount:    signed,
		Currency:        NormalizeCurrency(cell(FieldCurrency)),
		Date:            date,
	}, ""
}
