package vat

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultRateTolerance is the default allowed distance, in percentage points,
// between an implied VAT rate and a known rate.
var DefaultRateTolerance = decimal.NewFromFloat(0.5)

// Engine runs the full analysis pipeline: layout resolution, row
// normalization, classification, aggregation and sanity checks.
//
// An Engine holds only read-only state and is safe for concurrent use.
type Engine struct {
	rates *RateCache
	opts  DiagnosticOptions
}

// NewEngine creates a new analysis engine. rates may be nil, which disables
// the VAT rate check regardless of opts.
func NewEngine(rates *RateCache, opts DiagnosticOptions) *Engine {
	if opts.RateTolerance.IsZero() {
		opts.RateTolerance = DefaultRateTolerance
	}
	return &Engine{rates: rates, opts: opts}
}

// Analyze parses a delimited transaction export and builds the report.
//
// Structural problems (fewer than two lines, required columns missing) return
// an error and no report. Row-level problems are reported in SkippedRows and
// Anomalies and never abort the run. The result depends only on data and
// rules.
func (e *Engine) Analyze(data []byte, rules MappingRules) (Report, error) {
	layout, body, err := ResolveLayout(data, rules)
	if err != nil {
		return Report{}, fmt.Errorf("resolving layout: %w", err)
	}

	parsed := ParseRows(body, layout, rules)
	classified, unclassified, diag := e.classifyAll(parsed.Transactions, layout)

	agg := NewAggregator()
	for _, ct := range classified {
		agg.Add(ct)
	}

	applied := agg.RulesApplied()
	applied.UnclassifiedCount = unclassified
	applied.TotalProcessed += unclassified

	skipped := parsed.Skipped
	if skipped == nil {
		skipped = []SkippedRow{}
	}

	return Report{
		Breakdown:            agg.Rows(),
		KPICards:             agg.KPICards(),
		SanityCheckGlobal:    CheckGlobal(classified, agg),
		SanityCheckByCountry: CheckByCountry(classified, agg),
		RulesApplied:         applied,
		Anomalies:            diag.result(),
		SkippedRows:          skipped,
		Input: InputSummary{
			Delimiter:   DelimiterName(layout.Delimiter),
			Columns:     layout.Columns,
			RowsRead:    parsed.RowsRead,
			RowsSkipped: len(parsed.Skipped),
		},
	}, nil
}

// Classified runs layout resolution, parsing and classification only and
// returns the classified stream in source order. Transactions without a
// resolvable country are left out.
func (e *Engine) Classified(data []byte, rules MappingRules) ([]ClassifiedTransaction, error) {
	layout, body, err := ResolveLayout(data, rules)
	if err != nil {
		return nil, fmt.Errorf("resolving layout: %w", err)
	}
	parsed := ParseRows(body, layout, rules)
	classified, _, _ := e.classifyAll(parsed.Transactions, layout)
	return classified, nil
}

func (e *Engine) classifyAll(txs []Transaction, layout Layout) ([]ClassifiedTransaction, int, *diagnostics) {
	diag := newDiagnostics(layout, e.rates, e.opts)
	classified := make([]ClassifiedTransaction, 0, len(txs))
	unclassified := 0

	for _, tx := range txs {
		c, ok := Classify(tx)
		if !ok {
			unclassified++
			diag.unclassifiable(tx)
			continue
		}
		ct := ClassifiedTransaction{Transaction: tx, Classification: c}
		diag.observe(ct)
		classified = append(classified, ct)
	}
	return classified, unclassified, diag
}

// DelimiterName returns a printable name for a field delimiter.
func DelimiterName(d rune) string {
	if d == '\t' {
		return "tab"
	}
	return string(d)
}
