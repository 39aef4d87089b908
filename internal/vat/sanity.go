package vat

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Tolerance is the maximum absolute difference accepted by the sanity
// equations.
var Tolerance = decimal.New(1, -2)

func withinTolerance(d decimal.Decimal) bool {
	return d.Abs().LessThan(Tolerance)
}

// CheckGlobal recomputes the scheme totals straight from the classified
// stream and compares them against the grand total and against the regime
// components held by the aggregator. Scheme totals follow the raw tax scheme,
// not the assigned regime, so a classifier fault shows up as a difference.
func CheckGlobal(stream []ClassifiedTransaction, agg *Aggregator) GlobalSanityResult {
	var grand, oss, regular, swiss, residual decimal.Decimal
	for _, ct := range stream {
		amount := ct.Transaction.SignedAmount
		grand = grand.Add(amount)
		switch ct.Transaction.TaxScheme {
		case SchemeUnionOSS:
			oss = oss.Add(amount)
		case SchemeRegular:
			regular = regular.Add(amount)
		case SchemeCHVOEC:
			swiss = swiss.Add(amount)
		default:
			residual = residual.Add(amount)
		}
	}

	b2c, _ := agg.RegimeTotal(RegimeDomesticB2C)
	b2b, _ := agg.RegimeTotal(RegimeDomesticB2B)
	intracom, _ := agg.RegimeTotal(RegimeIntracommunity)

	diffSum := grand.Sub(oss.Add(regular).Add(swiss).Add(residual))
	diffRegular := regular.Sub(b2c.Add(b2b).Add(intracom))

	breakdown := decimal.Zero
	var inconsistent []string
	for _, row := range agg.Rows() {
		breakdown = breakdown.Add(row.Total)
		if !row.Total.Equal(rowSum(row)) {
			inconsistent = append(inconsistent, row.Country)
		}
	}
	diffBreakdown := grand.Round(presentationPlaces).Sub(breakdown)

	return GlobalSanityResult{
		GrandTotal:                grand.Round(presentationPlaces),
		OSSTotal:                  oss.Round(presentationPlaces),
		RegularTotal:              regular.Round(presentationPlaces),
		SwitzerlandTotal:          swiss.Round(presentationPlaces),
		ResidualTotal:             residual.Round(presentationPlaces),
		B2CTotal:                  b2c.Round(presentationPlaces),
		B2BTotal:                  b2b.Round(presentationPlaces),
		IntracomTotal:             intracom.Round(presentationPlaces),
		DiffGrandTotalVsSum:       diffSum.Round(presentationPlaces),
		DiffRegularVsComponents:   diffRegular.Round(presentationPlaces),
		IsValid:                   withinTolerance(diffSum) && withinTolerance(diffRegular),
		DiffGrandTotalVsBreakdown: diffBreakdown,
		BreakdownConsistent:       withinTolerance(diffBreakdown) && len(inconsistent) == 0,
		InconsistentRows:          inconsistent,
	}
}

// rowSum adds the regime cells of a breakdown row.
func rowSum(row CountryBreakdownRow) decimal.Decimal {
	return row.DomesticB2C.
		Add(row.DomesticB2B).
		Add(row.Intracommunity).
		Add(row.OSS).
		Add(row.SwitzerlandVOEC).
		Add(row.Residual)
}

// CheckByCountry compares, for every depart country of a REGULAR transaction,
// the stream total of REGULAR transactions against b2c + b2b + intracom from
// the aggregator. Results are sorted by country code.
func CheckByCountry(stream []ClassifiedTransaction, agg *Aggregator) []CountrySanityResult {
	regular := make(map[string]decimal.Decimal)
	for _, ct := range stream {
		tx := ct.Transaction
		if tx.TaxScheme != SchemeRegular || tx.DepartCountry == "" {
			continue
		}
		regular[tx.DepartCountry] = regular[tx.DepartCountry].Add(tx.SignedAmount)
	}

	codes := make([]string, 0, len(regular))
	for code := range regular {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	results := make([]CountrySanityResult, 0, len(codes))
	for _, code := range codes {
		b2c := agg.CountryRegimeTotal(code, RegimeDomesticB2C)
		b2b := agg.CountryRegimeTotal(code, RegimeDomesticB2B)
		intracom := agg.CountryRegimeTotal(code, RegimeIntracommunity)
		diff := regular[code].Sub(b2c.Add(b2b).Add(intracom))

		results = append(results, CountrySanityResult{
			Country:       code,
			RegularTotal:  regular[code].Round(presentationPlaces),
			B2CTotal:      b2c.Round(presentationPlaces),
			B2BTotal:      b2b.Round(presentationPlaces),
			IntracomTotal: intracom.Round(presentationPlaces),
			Difference:    diff.Round(presentationPlaces),
			IsValid:       withinTolerance(diff),
		})
	}
	return results
}
