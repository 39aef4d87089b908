package vat

import (
	"encoding/csv"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrInsufficientInput = errors.New("input must contain a header line and at least one data line")
	ErrMissingColumns    = errors.New("required columns not found")
)

// MissingColumnsError lists the required logical columns that could not be
// resolved from the header line.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumns, strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumns }

// Canonical field names.
const (
	FieldTransactionType = "TRANSACTION_TYPE"
	FieldTaxScheme       = "TAX_REPORTING_SCHEME"
	FieldArrivalCountry  = "SALE_ARRIVAL_COUNTRY"
	FieldDepartCountry   = "SALE_DEPART_COUNTRY"
	FieldJurisdiction    = "TAXABLE_JURISDICTION"
	FieldBuyerVATCountry = "BUYER_VAT_NUMBER_COUNTRY"
	FieldBuyerVATNumber  = "BUYER_VAT_NUMBER"
	FieldAmountExclVAT   = "TOTAL_ACTIVITY_VALUE_AMT_VAT_EXCL"
	FieldVATAmount       = "TOTAL_ACTIVITY_VALUE_VAT_AMT"
	FieldAmountInclVAT   = "TOTAL_ACTIVITY_VALUE_AMT_VAT_INCL"
	FieldCurrency        = "TRANSACTION_CURRENCY_CODE"
	FieldReferenceID     = "TRANSACTION_EVENT_ID"
	FieldDate            = "TRANSACTION_COMPLETE_DATE"
)

// fieldSynonyms lists, per canonical field and in resolution order, the
// normalized header names that may hold it. The canonical name itself is
// always tried first.
var fieldSynonyms = []struct {
	field    string
	synonyms []string
}{
	{FieldTransactionType, []string{"TRANSACTION_TYPE", "TYPE_TRANSACTION", "TYPE_DE_TRANSACTION", "TX_TYPE", "TYPE"}},
	{FieldTaxScheme, []string{"TAX_REPORTING_SCHEME", "TAX_SCHEME", "VAT_SCHEME", "REGIME", "SCHEME"}},
	{FieldArrivalCountry, []string{"SALE_ARRIVAL_COUNTRY", "ARRIVAL_COUNTRY", "SHIP_TO_COUNTRY", "DESTINATION_COUNTRY", "PAYS_ARRIVEE", "PAYS_D'ARRIVEE", "PAYS_DESTINATION"}},
	{FieldDepartCountry, []string{"SALE_DEPART_COUNTRY", "DEPART_COUNTRY", "DEPARTURE_COUNTRY", "SHIP_FROM_COUNTRY", "ORIGIN_COUNTRY", "PAYS_DEPART", "PAYS_DE_DEPART"}},
	{FieldJurisdiction, []string{"TAXABLE_JURISDICTION", "JURISDICTION", "TAX_JURISDICTION", "COUNTRY", "PAYS"}},
	{FieldBuyerVATCountry, []string{"BUYER_VAT_NUMBER_COUNTRY", "BUYER_VAT_COUNTRY", "CUSTOMER_VAT_COUNTRY", "PAYS_TVA_ACHETEUR"}},
	{FieldBuyerVATNumber, []string{"BUYER_VAT_NUMBER", "BUYER_VAT", "CUSTOMER_VAT_NUMBER", "VAT_NUMBER", "NUMERO_TVA_ACHETEUR", "TVA_INTRACOM"}},
	{FieldAmountExclVAT, []string{"TOTAL_ACTIVITY_VALUE_AMT_VAT_EXCL", "AMOUNT_VAT_EXCL", "AMOUNT_EXCL_VAT", "NET_AMOUNT", "MONTANT_HT", "HT"}},
	{FieldVATAmount, []string{"TOTAL_ACTIVITY_VALUE_VAT_AMT", "VAT_AMOUNT", "VAT_AMT", "TAX_AMOUNT", "MONTANT_TVA", "TVA"}},
	{FieldAmountInclVAT, []string{"TOTAL_ACTIVITY_VALUE_AMT_VAT_INCL", "AMOUNT_VAT_INCL", "AMOUNT_INCL_VAT", "GROSS_AMOUNT", "MONTANT_TTC", "TTC"}},
	{FieldCurrency, []string{"TRANSACTION_CURRENCY_CODE", "CURRENCY_CODE", "CURRENCY", "DEVISE"}},
	{FieldReferenceID, []string{"TRANSACTION_EVENT_ID", "EVENT_ID", "TRANSACTION_ID", "ORDER_ID"}},
	{FieldDate, []string{"TRANSACTION_COMPLETE_DATE", "TAX_CALCULATION_DATE", "TRANSACTION_DATE", "COMPLETE_DATE", "DATE"}},
}

// IsKnownField reports whether name, once normalized, is a canonical field.
func IsKnownField(name string) bool {
	name = NormalizeHeader(name)
	for _, fs := range fieldSynonyms {
		if fs.field == name {
			return true
		}
	}
	return false
}

// Containment matching on very short synonyms (HT, TVA, TYPE) is too loose,
// so those only match exactly.
const minContainmentLength = 5

const (
	sampleLines         = 10
	minPlausibleColumns = 10
	defaultDelimiter    = '\t'
	utf8BOM             = "\ufeff"
)

var candidateDelimiters = []rune{'\t', ';', ','}

// Layout is the resolved shape of an input file.
type Layout struct {
	Delimiter  rune
	Headers    []string       // normalized header tokens in source order
	Columns    map[string]int // canonical field -> source column index
	HeaderLine int            // 1-based line of the header
}

// Has reports whether the canonical field was resolved.
func (l Layout) Has(field string) bool {
	_, ok := l.Columns[field]
	return ok
}

// DetectDelimiter picks the field separator by sampling up to ten non-empty
// lines. A delimiter is plausible when it yields more than ten columns on
// average; the most consistent plausible delimiter wins and ties go to the one
// producing more columns. Tab is returned when nothing is plausible.
func DetectDelimiter(lines []string) rune {
	var sample []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sample = append(sample, line)
		if len(sample) == sampleLines {
			break
		}
	}
	if len(sample) == 0 {
		return defaultDelimiter
	}

	best := defaultDelimiter
	bestConsistency := -1.0
	bestColumns := 0

	for _, d := range candidateDelimiters {
		counts := make(map[int]int)
		total := 0
		for _, line := range sample {
			n := len(SplitLine(line, d))
			counts[n]++
			total += n
		}
		avg := float64(total) / float64(len(sample))
		if avg <= minPlausibleColumns {
			continue
		}

		modal, modalFreq := 0, 0
		for n, freq := range counts {
			if freq > modalFreq || (freq == modalFreq && n > modal) {
				modal, modalFreq = n, freq
			}
		}
		consistency := float64(modalFreq) / float64(len(sample))

		if consistency > bestConsistency || (consistency == bestConsistency && modal > bestColumns) {
			best, bestConsistency, bestColumns = d, consistency, modal
		}
	}

	return best
}

// SplitLine splits a single line on delim, honoring double-quoted fields and
// doubled quotes inside them.
func SplitLine(line string, delim rune) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	fields, err := r.Read()
	if err != nil {
		return []string{line}
	}
	return fields
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeHeader strips BOM and quote artifacts, uppercases and collapses
// whitespace runs to underscores.
func NormalizeHeader(h string) string {
	h = strings.ReplaceAll(h, utf8BOM, "")
	h = strings.TrimSpace(h)
	h = strings.Trim(h, `"'`)
	h = strings.TrimSpace(h)
	h = strings.ToUpper(h)
	return whitespaceRun.ReplaceAllString(h, "_")
}

// ResolveColumns maps canonical fields to source column indices. User column
// overrides are applied first, then exact synonym matches, then containment
// matches. A source column is claimed by at most one field.
func ResolveColumns(headers []string, overrides map[string]string) map[string]int {
	columns := make(map[string]int)
	claimed := make(map[int]bool)

	claim := func(field string, idx int) {
		columns[field] = idx
		claimed[idx] = true
	}

	fields := make([]string, 0, len(overrides))
	for field := range overrides {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		want := NormalizeHeader(overrides[field])
		for i, h := range headers {
			if h == want && !claimed[i] {
				claim(NormalizeHeader(field), i)
				break
			}
		}
	}

	// Exact pass.
	for _, fs := range fieldSynonyms {
		if _, ok := columns[fs.field]; ok {
			continue
		}
	exact:
		for _, syn := range fs.synonyms {
			for i, h := range headers {
				if !claimed[i] && h == syn {
					claim(fs.field, i)
					break exact
				}
			}
		}
	}

	// Containment pass.
	for _, fs := range fieldSynonyms {
		if _, ok := columns[fs.field]; ok {
			continue
		}
	contains:
		for _, syn := range fs.synonyms {
			if len(syn) < minContainmentLength {
				continue
			}
			for i, h := range headers {
				if !claimed[i] && strings.Contains(h, syn) {
					claim(fs.field, i)
					break contains
				}
			}
		}
	}

	return columns
}

// ResolveLayout strips the BOM, detects the delimiter and resolves the header
// line. It returns the layout and the remaining text after the header.
func ResolveLayout(data []byte, rules MappingRules) (Layout, string, error) {
	text := strings.TrimPrefix(string(data), utf8BOM)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	headerIdx := -1
	nonEmpty := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if headerIdx < 0 {
			headerIdx = i
		}
		nonEmpty++
		if nonEmpty >= 2 {
			break
		}
	}
	if nonEmpty < 2 {
		return Layout{}, "", ErrInsufficientInput
	}

	delim := DetectDelimiter(lines[headerIdx:])

	raw := SplitLine(lines[headerIdx], delim)
	headers := make([]string, len(raw))
	for i, h := range raw {
		headers[i] = NormalizeHeader(h)
	}

	layout := Layout{
		Delimiter:  delim,
		Headers:    headers,
		Columns:    ResolveColumns(headers, rules.Columns),
		HeaderLine: headerIdx + 1,
	}

	if missing := missingRequired(layout); len(missing) > 0 {
		return Layout{}, "", &MissingColumnsError{Missing: missing}
	}

	body := strings.Join(lines[headerIdx+1:], "\n")
	return layout, body, nil
}

// missingRequired lists the required logical columns absent from the layout:
// a transaction type, a country (arrival, jurisdiction or depart) and an
// amount (VAT-exclusive or VAT-inclusive).
func missingRequired(l Layout) []string {
	var missing []string
	if !l.Has(FieldTransactionType) {
		missing = append(missing, FieldTransactionType)
	}
	if !l.Has(FieldArrivalCountry) && !l.Has(FieldJurisdiction) && !l.Has(FieldDepartCountry) {
		missing = append(missing, FieldArrivalCountry+"|"+FieldDepartCountry)
	}
	if !l.Has(FieldAmountExclVAT) && !l.Has(FieldAmountInclVAT) {
		missing = append(missing, FieldAmountExclVAT+"|"+FieldAmountInclVAT)
	}
	return missing
}
