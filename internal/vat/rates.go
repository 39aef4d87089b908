package vat

import (
	"sync"

	"github.com/shopspring/decimal"
)

// RateCache is a thread-safe in-memory table of VAT rates indexed by country
// code, each country holding a map of rate_type -> rate percentage.
// Reads run concurrently; Load swaps the whole table.
type RateCache struct {
	mu    sync.RWMutex
	rates map[string]CountryVATRates // country_code -> CountryVATRates
}

// NewRateCache creates a new empty RateCache.
func NewRateCache() *RateCache {
	return &RateCache{
		rates: make(map[string]CountryVATRates),
	}
}

// NewDefaultRateCache creates a RateCache seeded with DefaultRates.
func NewDefaultRateCache() *RateCache {
	c := NewRateCache()
	c.Load(DefaultRates())
	return c
}

// Get retrieves a specific VAT rate for a country and rate type.
func (c *RateCache) Get(countryCode, rateType string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	country, ok := c.rates[countryCode]
	if !ok {
		return decimal.Zero, false
	}

	rate, ok := country.Rates[rateType]
	if !ok {
		return decimal.Zero, false
	}

	return rate, true
}

// GetCountryRates returns a copy of all rates known for a country.
func (c *RateCache) GetCountryRates(countryCode string) (CountryVATRates, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	country, ok := c.rates[countryCode]
	if !ok {
		return CountryVATRates{}, false
	}

	copied := CountryVATRates{
		CountryCode: country.CountryCode,
		Rates:       make(map[string]decimal.Decimal, len(country.Rates)),
	}
	for k, v := range country.Rates {
		copied.Rates[k] = v
	}

	return copied, true
}

// Load replaces the entire table with the given rates.
func (c *RateCache) Load(rates []VATRate) {
	newRates := make(map[string]CountryVATRates, 30)

	for _, r := range rates {
		country, ok := newRates[r.CountryCode]
		if !ok {
			country = CountryVATRates{
				CountryCode: r.CountryCode,
				Rates:       make(map[string]decimal.Decimal),
			}
		}
		country.Rates[r.RateType] = r.Rate
		newRates[r.CountryCode] = country
	}

	c.mu.Lock()
	c.rates = newRates
	c.mu.Unlock()
}

// CountryCount returns the number of countries in the table.
func (c *RateCache) CountryCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rates)
}

// RateCount returns the total number of individual rates in the table.
func (c *RateCache) RateCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, country := range c.rates {
		count += len(country.Rates)
	}
	return count
}

// Matches reports whether rate (a percentage) is within tolerance percentage
// points of any rate known for the country. known is false when the country
// is not in the table, in which case no verdict is possible.
func (c *RateCache) Matches(countryCode string, rate, tolerance decimal.Decimal) (matched, known bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	country, ok := c.rates[countryCode]
	if !ok || len(country.Rates) == 0 {
		return false, false
	}
	for _, r := range country.Rates {
		if r.Sub(rate).Abs().LessThanOrEqual(tolerance) {
			return true, true
		}
	}
	return false, true
}

// ImpliedRate returns vat / net * 100. ok is false when net is zero.
func ImpliedRate(net, vat decimal.Decimal) (decimal.Decimal, bool) {
	if net.IsZero() {
		return decimal.Zero, false
	}
	return vat.Div(net).Mul(hundred), true
}

var hundred = decimal.NewFromInt(100)

// Rate types for rates that changed recently. Marketplace reports for a past
// period still carry the old rate.
const (
	RateTypeStandardPrevious = "standard_previous"
	RateTypeReducedPrevious  = "reduced_previous"
)

// defaultRateTable lists standard and reduced rates for the EU member states,
// Switzerland, the United Kingdom and Norway.
var defaultRateTable = map[string]map[string]string{
	"AT": {RateTypeStandard: "20", RateTypeReduced: "10", RateTypeReducedAlt: "13"},
	"BE": {RateTypeStandard: "21", RateTypeReduced: "6", RateTypeReducedAlt: "12"},
	"BG": {RateTypeStandard: "20", RateTypeReduced: "9"},
	"HR": {RateTypeStandard: "25", RateTypeReduced: "5", RateTypeReducedAlt: "13"},
	"CY": {RateTypeStandard: "19", RateTypeReduced: "5", RateTypeReducedAlt: "9"},
	"CZ": {RateTypeStandard: "21", RateTypeReduced: "12", RateTypeReducedPrevious: "15", RateTypeSuperReduced: "10"},
	"DK": {RateTypeStandard: "25"},
	"EE": {RateTypeStandard: "24", RateTypeStandardPrevious: "22", RateTypeReduced: "9", RateTypeReducedAlt: "13"},
	"FI": {RateTypeStandard: "25.5", RateTypeStandardPrevious: "24", RateTypeReduced: "14", RateTypeReducedAlt: "10", RateTypeReducedPrevious: "13.5"},
	"FR": {RateTypeStandard: "20", RateTypeReduced: "10", RateTypeReducedAlt: "5.5", RateTypeSuperReduced: "2.1"},
	"DE": {RateTypeStandard: "19", RateTypeReduced: "7"},
	"GR": {RateTypeStandard: "24", RateTypeReduced: "13", RateTypeReducedAlt: "6"},
	"HU": {RateTypeStandard: "27", RateTypeReduced: "18", RateTypeReducedAlt: "5"},
	"IE": {RateTypeStandard: "23", RateTypeReduced: "13.5", RateTypeReducedAlt: "9", RateTypeSuperReduced: "4.8"},
	"IT": {RateTypeStandard: "22", RateTypeReduced: "10", RateTypeReducedAlt: "5", RateTypeSuperReduced: "4"},
	"LV": {RateTypeStandard: "21", RateTypeReduced: "12", RateTypeReducedAlt: "5"},
	"LT": {RateTypeStandard: "21", RateTypeReduced: "9", RateTypeReducedAlt: "5"},
	"LU": {RateTypeStandard: "17", RateTypeReduced: "8", RateTypeSuperReduced: "3", RateTypeParking: "14"},
	"MT": {RateTypeStandard: "18", RateTypeReduced: "7", RateTypeReducedAlt: "5"},
	"NL": {RateTypeStandard: "21", RateTypeReduced: "9"},
	"PL": {RateTypeStandard: "23", RateTypeReduced: "8", RateTypeReducedAlt: "5"},
	"PT": {RateTypeStandard: "23", RateTypeReduced: "13", RateTypeReducedAlt: "6"},
	"RO": {RateTypeStandard: "21", RateTypeStandardPrevious: "19", RateTypeReduced: "11", RateTypeReducedPrevious: "9", RateTypeReducedAlt: "5"},
	"SK": {RateTypeStandard: "23", RateTypeStandardPrevious: "20", RateTypeReduced: "19", RateTypeReducedAlt: "5", RateTypeReducedPrevious: "10"},
	"SI": {RateTypeStandard: "22", RateTypeReduced: "9.5", RateTypeReducedAlt: "5"},
	"ES": {RateTypeStandard: "21", RateTypeReduced: "10", RateTypeSuperReduced: "4"},
	"SE": {RateTypeStandard: "25", RateTypeReduced: "12", RateTypeReducedAlt: "6"},
	"CH": {RateTypeStandard: "8.1", RateTypeReduced: "2.6", RateTypeReducedAlt: "3.8", RateTypeStandardPrevious: "7.7"},
	"GB": {RateTypeStandard: "20", RateTypeReduced: "5"},
	"NO": {RateTypeStandard: "25", RateTypeReduced: "15", RateTypeReducedAlt: "12"},
}

// DefaultRates returns the built-in rate table as a flat list.
func DefaultRates() []VATRate {
	var rates []VATRate
	for code, byType := range defaultRateTable {
		for rateType, pct := range byType {
			rates = append(rates, VATRate{
				CountryCode: code,
				RateType:    rateType,
				Rate:        decimal.RequireFromString(pct),
			})
		}
	}
	return rates
}
