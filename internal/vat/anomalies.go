package vat

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DiagnosticOptions controls which optional checks the diagnostics run.
type DiagnosticOptions struct {
	RateCheck     bool
	RateTolerance decimal.Decimal // percentage points
}

// diagnostics collects anomalies alongside classification. It never changes
// a classification result.
type diagnostics struct {
	opts           DiagnosticOptions
	rates          *RateCache
	layout         Layout
	anomalies      []Anomaly
	unknownSchemes map[string]int
}

func newDiagnostics(layout Layout, rates *RateCache, opts DiagnosticOptions) *diagnostics {
	d := &diagnostics{
		opts:           opts,
		rates:          rates,
		layout:         layout,
		unknownSchemes: make(map[string]int),
	}
	if !layout.Has(FieldTaxScheme) {
		d.anomalies = append(d.anomalies, Anomaly{
			Type:        AnomalyMissingSchemeColumn,
			Description: "no tax scheme column found; every transaction falls to residual",
		})
	}
	return d
}

func reference(tx Transaction) string {
	if tx.ReferenceID != "" {
		return tx.ReferenceID
	}
	return fmt.Sprintf("line %d", tx.Line)
}

func (d *diagnostics) add(kind string, tx Transaction, format string, args ...any) {
	d.anomalies = append(d.anomalies, Anomaly{
		Type:        kind,
		Description: fmt.Sprintf(format, args...),
		ReferenceID: reference(tx),
	})
}

// unclassifiable records a transaction with no resolvable country.
func (d *diagnostics) unclassifiable(tx Transaction) {
	d.add(AnomalyUnclassifiable, tx, "line %d: no depart or arrival country, excluded from totals", tx.Line)
	d.observeScheme(tx)
}

// observe inspects a classified transaction.
func (d *diagnostics) observe(ct ClassifiedTransaction) {
	tx, c := ct.Transaction, ct.Classification
	d.observeScheme(tx)

	if tx.AmountExclVAT.IsZero() {
		d.add(AnomalyZeroAmount, tx, "line %d: VAT-exclusive amount is zero or unreadable", tx.Line)
	}

	switch c.Regime {
	case RegimeDomesticB2B, RegimeIntracommunity:
		if tx.BuyerVATNumber == "" {
			if d.layout.Has(FieldBuyerVATNumber) {
				d.add(AnomalyB2BMissingVATNumber, tx, "line %d: %s sale to a %s buyer without a VAT number",
					tx.Line, c.Regime, tx.BuyerVATCountry)
			}
		} else if !IsPlausibleVATNumber(tx.BuyerVATNumber) {
			d.add(AnomalyImplausibleVATNumber, tx, "line %d: buyer VAT number %q does not match the %s format",
				tx.Line, tx.BuyerVATNumber, tx.BuyerVATCountry)
		}
	}

	switch c.Regime {
	case RegimeIntracommunity:
		if tx.VATAmount.IsPositive() {
			d.add(AnomalyUnexpectedVATAmount, tx, "line %d: intra-community sale carries VAT of %s",
				tx.Line, tx.VATAmount.StringFixed(presentationPlaces))
		}
		if !inEUVATArea(tx.BuyerVATCountry) {
			d.add(AnomalyNonEUBuyer, tx, "line %d: intra-community sale to a buyer registered in %s, outside the EU",
				tx.Line, tx.BuyerVATCountry)
		}
	case RegimeDomesticB2C, RegimeDomesticB2B:
		if tx.ArrivalCountry != "" && tx.ArrivalCountry != tx.DepartCountry {
			d.add(AnomalyDepartArrivalMismatch, tx, "line %d: domestic sale departs %s but arrives in %s",
				tx.Line, tx.DepartCountry, tx.ArrivalCountry)
		}
	}

	if d.opts.RateCheck && d.rates != nil {
		switch c.Regime {
		case RegimeDomesticB2C, RegimeOSS, RegimeSwitzerlandVOEC:
			d.checkRate(tx, c.Country)
		}
	}
}

func (d *diagnostics) checkRate(tx Transaction, country string) {
	if tx.VATAmount.IsZero() {
		return
	}
	implied, ok := ImpliedRate(tx.AmountExclVAT, tx.VATAmount)
	if !ok {
		return
	}
	matched, known := d.rates.Matches(country, implied, d.opts.RateTolerance)
	if known && !matched {
		d.add(AnomalyVATRateMismatch, tx, "line %d: implied VAT rate %s%% matches no %s rate",
			tx.Line, implied.StringFixed(presentationPlaces), country)
	}
}

func (d *diagnostics) observeScheme(tx Transaction) {
	if !d.layout.Has(FieldTaxScheme) || IsKnownScheme(tx.TaxScheme) {
		return
	}
	d.unknownSchemes[tx.TaxScheme]++
}

// result returns the collected anomalies, with one summary entry per
// unrecognized scheme label appended in label order.
func (d *diagnostics) result() []Anomaly {
	labels := make([]string, 0, len(d.unknownSchemes))
	for label := range d.unknownSchemes {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make([]Anomaly, 0, len(d.anomalies)+len(labels))
	out = append(out, d.anomalies...)
	for _, label := range labels {
		shown := label
		if shown == "" {
			shown = "(empty)"
		}
		out = append(out, Anomaly{
			Type:        AnomalyUnknownScheme,
			Description: fmt.Sprintf("tax scheme %s not recognized on %d transaction(s); no scheme rule applies", shown, d.unknownSchemes[label]),
		})
	}
	return out
}

// inEUVATArea reports whether a buyer VAT country can receive an
// intra-community supply. Greek numbers carry EL and Northern Ireland traders
// registered under XI stay in the EU goods regime.
func inEUVATArea(code string) bool {
	return code == "XI" || IsEUMember(vatPrefixCountry(code))
}
