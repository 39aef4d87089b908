package vat

import (
	"sort"

	"github.com/shopspring/decimal"
)

// presentationPlaces is the number of decimal places used when materializing
// amounts into a report. Accumulation always runs at full precision.
const presentationPlaces = 2

// regimeOrder fixes the KPI card order.
var regimeOrder = []struct {
	regime Regime
	key    string
	title  string
}{
	{RegimeOSS, "oss", "OSS"},
	{RegimeDomesticB2C, "domesticB2C", "Domestic B2C"},
	{RegimeDomesticB2B, "domesticB2B", "Domestic B2B"},
	{RegimeIntracommunity, "intracommunity", "Intra-community"},
	{RegimeSwitzerlandVOEC, "switzerlandVoec", "Switzerland (VOEC)"},
	{RegimeResidual, "residual", "Residual"},
}

type bucket struct {
	amount decimal.Decimal
	count  int
}

func (b *bucket) add(amount decimal.Decimal) {
	b.amount = b.amount.Add(amount)
	b.count++
}

// Aggregator folds classified transactions into per-country, per-regime sums.
// The zero value is not usable; call NewAggregator.
type Aggregator struct {
	countries map[string]map[Regime]*bucket
	regimes   map[Regime]*bucket
	total     bucket
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		countries: make(map[string]map[Regime]*bucket),
		regimes:   make(map[Regime]*bucket),
	}
}

// Add adds the transaction's signed amount to exactly one regime bucket of its
// country.
func (a *Aggregator) Add(ct ClassifiedTransaction) {
	c := ct.Classification
	amount := ct.Transaction.SignedAmount

	row, ok := a.countries[c.Country]
	if !ok {
		row = make(map[Regime]*bucket)
		a.countries[c.Country] = row
	}
	cell, ok := row[c.Regime]
	if !ok {
		cell = &bucket{}
		row[c.Regime] = cell
	}
	cell.add(amount)

	rb, ok := a.regimes[c.Regime]
	if !ok {
		rb = &bucket{}
		a.regimes[c.Regime] = rb
	}
	rb.add(amount)

	a.total.add(amount)
}

// RegimeTotal returns the unrounded total and count for a regime.
func (a *Aggregator) RegimeTotal(r Regime) (decimal.Decimal, int) {
	b, ok := a.regimes[r]
	if !ok {
		return decimal.Zero, 0
	}
	return b.amount, b.count
}

// CountryRegimeTotal returns the unrounded total of a regime in one country.
func (a *Aggregator) CountryRegimeTotal(country string, r Regime) decimal.Decimal {
	if b, ok := a.countries[country][r]; ok {
		return b.amount
	}
	return decimal.Zero
}

// Total returns the unrounded grand total and the number of transactions added.
func (a *Aggregator) Total() (decimal.Decimal, int) {
	return a.total.amount, a.total.count
}

// Rows materializes the breakdown, sorted by country code and rounded to two
// decimals. A row total is its unrounded sum rounded once; the regime cells
// are then rounded so that they add up to exactly that total.
func (a *Aggregator) Rows() []CountryBreakdownRow {
	codes := make([]string, 0, len(a.countries))
	for code := range a.countries {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rows := make([]CountryBreakdownRow, 0, len(codes))
	for _, code := range codes {
		cells, total := roundCells(a.countries[code])
		rows = append(rows, CountryBreakdownRow{
			Country:         code,
			DomesticB2C:     cells[RegimeDomesticB2C],
			DomesticB2B:     cells[RegimeDomesticB2B],
			Intracommunity:  cells[RegimeIntracommunity],
			OSS:             cells[RegimeOSS],
			SwitzerlandVOEC: cells[RegimeSwitzerlandVOEC],
			Residual:        cells[RegimeResidual],
			Total:           total,
		})
	}
	return rows
}

// cent is the smallest presentation unit.
var cent = decimal.New(1, -presentationPlaces)

// roundCells rounds a country's regime sums with the largest-remainder method:
// each cell is rounded on its own, then the cent difference to the rounded
// row total is moved onto the cells whose rounding error was largest. Ties go
// to the earlier regime in regimeOrder.
func roundCells(buckets map[Regime]*bucket) (map[Regime]decimal.Decimal, decimal.Decimal) {
	cells := make(map[Regime]decimal.Decimal, len(regimeOrder))
	var present []Regime
	exact, rounded := decimal.Zero, decimal.Zero
	for _, ro := range regimeOrder {
		b, ok := buckets[ro.regime]
		if !ok {
			cells[ro.regime] = decimal.Zero
			continue
		}
		present = append(present, ro.regime)
		r := b.amount.Round(presentationPlaces)
		cells[ro.regime] = r
		exact = exact.Add(b.amount)
		rounded = rounded.Add(r)
	}

	total := exact.Round(presentationPlaces)
	steps := total.Sub(rounded).Div(cent).IntPart()
	for ; steps != 0; steps -= sign(steps) {
		step := cent
		if steps < 0 {
			step = cent.Neg()
		}
		// Pick the cell whose rounded value lags its exact value the most in
		// the direction of the step.
		var best Regime
		var bestErr decimal.Decimal
		for i, r := range present {
			err := buckets[r].amount.Sub(cells[r])
			if steps < 0 {
				err = err.Neg()
			}
			if i == 0 || err.GreaterThan(bestErr) {
				best, bestErr = r, err
			}
		}
		cells[best] = cells[best].Add(step)
	}
	return cells, total
}

func sign(n int64) int64 {
	if n < 0 {
		return -1
	}
	return 1
}

// KPICards returns one card per regime in a fixed order, followed by the
// grand total.
func (a *Aggregator) KPICards() []KPICard {
	cards := make([]KPICard, 0, len(regimeOrder)+1)
	for _, ro := range regimeOrder {
		amount, count := a.RegimeTotal(ro.regime)
		cards = append(cards, KPICard{
			Key:    ro.key,
			Title:  ro.title,
			Amount: amount.Round(presentationPlaces),
			Count:  count,
		})
	}
	cards = append(cards, KPICard{
		Key:    "total",
		Title:  "Total",
		Amount: a.total.amount.Round(presentationPlaces),
		Count:  a.total.count,
	})
	return cards
}

// RulesApplied reports how many transactions landed in each regime.
// Only classified transactions reach the aggregator, so the caller adds the
// rejected ones to UnclassifiedCount and TotalProcessed.
func (a *Aggregator) RulesApplied() RulesApplied {
	count := func(r Regime) int {
		_, n := a.RegimeTotal(r)
		return n
	}
	return RulesApplied{
		OSSCount:       count(RegimeOSS),
		B2CCount:       count(RegimeDomesticB2C),
		B2BCount:       count(RegimeDomesticB2B),
		IntracomCount:  count(RegimeIntracommunity),
		VOECCount:      count(RegimeSwitzerlandVOEC),
		ResidualCount:  count(RegimeResidual),
		TotalProcessed: a.total.count,
	}
}
