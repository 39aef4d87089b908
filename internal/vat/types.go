package vat

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the normalized direction of a transaction row.
type TransactionType string

const (
	TypeSale   TransactionType = "SALE"
	TypeRefund TransactionType = "REFUND"
)

// Regime is the VAT regime a transaction is assigned to.
type Regime string

const (
	RegimeOSS             Regime = "OSS"
	RegimeDomesticB2C     Regime = "DOMESTIC_B2C"
	RegimeDomesticB2B     Regime = "DOMESTIC_B2B"
	RegimeIntracommunity  Regime = "INTRACOMMUNITY"
	RegimeSwitzerlandVOEC Regime = "SWITZERLAND_VOEC"
	RegimeResidual        Regime = "RESIDUAL"
)

// Canonical tax scheme labels.
const (
	SchemeUnionOSS = "UNION-OSS"
	SchemeRegular  = "REGULAR"
	SchemeCHVOEC   = "CH_VOEC"
)

// DefaultCurrency is assumed when a row carries no currency code.
const DefaultCurrency = "EUR"

// Transaction is a single source row after field normalization.
type Transaction struct {
	Line            int             // 1-based line in the source file
	ReferenceID     string          // TRANSACTION_EVENT_ID, if present
	Type            TransactionType // SALE or REFUND
	TaxScheme       string          // canonical or pass-through uppercased label
	ArrivalCountry  string          // ISO-2 or ""
	DepartCountry   string          // ISO-2 or ""
	BuyerVATCountry string          // ISO-2 or "" (empty means B2C)
	BuyerVATNumber  string          // sanitized, may be ""
	AmountExclVAT   decimal.Decimal // non-negative magnitude
	VATAmount       decimal.Decimal // non-negative magnitude
	SignedAmount    decimal.Decimal // AmountExclVAT, negated for refunds
	Currency        string
	Date            time.Time // zero when the file has no date column
}

// Classification is the outcome of running the rule cascade on a transaction.
type Classification struct {
	Country string
	Regime  Regime
	Rule    int // 1-6, the cascade rule that matched
}

// ClassifiedTransaction pairs a transaction with its classification.
type ClassifiedTransaction struct {
	Transaction    Transaction
	Classification Classification
}

// CountryBreakdownRow holds per-country sums of signed amounts by regime.
type CountryBreakdownRow struct {
	Country         string          `json:"country"`
	DomesticB2C     decimal.Decimal `json:"domesticB2C"`
	DomesticB2B     decimal.Decimal `json:"domesticB2B"`
	Intracommunity  decimal.Decimal `json:"intracommunity"`
	OSS             decimal.Decimal `json:"oss"`
	SwitzerlandVOEC decimal.Decimal `json:"switzerlandVoec"`
	Residual        decimal.Decimal `json:"residual"`
	Total           decimal.Decimal `json:"total"`
}

// KPICard is a flat per-regime total for dashboards.
type KPICard struct {
	Key    string          `json:"key"`
	Title  string          `json:"title"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// GlobalSanityResult is recomputed from the transaction stream and compared
// against the aggregated breakdown.
type GlobalSanityResult struct {
	GrandTotal              decimal.Decimal `json:"grandTotal"`
	OSSTotal                decimal.Decimal `json:"ossTotal"`
	RegularTotal            decimal.Decimal `json:"regularTotal"`
	SwitzerlandTotal        decimal.Decimal `json:"switzerlandTotal"`
	ResidualTotal           decimal.Decimal `json:"residualTotal"`
	B2CTotal                decimal.Decimal `json:"b2cTotal"`
	B2BTotal                decimal.Decimal `json:"b2bTotal"`
	IntracomTotal           decimal.Decimal `json:"intracomTotal"`
	DiffGrandTotalVsSum     decimal.Decimal `json:"diffGrandTotalVsSum"`
	DiffRegularVsComponents decimal.Decimal `json:"diffRegularVsComponents"`
	IsValid                 bool            `json:"isValid"`

	// Conservation check: grand total against the sum of breakdown row totals,
	// and every row total against the sum of its regime cells.
	DiffGrandTotalVsBreakdown decimal.Decimal `json:"diffGrandTotalVsBreakdown"`
	BreakdownConsistent       bool            `json:"breakdownConsistent"`
	InconsistentRows          []string        `json:"inconsistentRows,omitempty"`
}

// CountrySanityResult checks regular = b2c + b2b + intracom for one country.
type CountrySanityResult struct {
	Country       string          `json:"country"`
	RegularTotal  decimal.Decimal `json:"regularTotal"`
	B2CTotal      decimal.Decimal `json:"b2cTotal"`
	B2BTotal      decimal.Decimal `json:"b2bTotal"`
	IntracomTotal decimal.Decimal `json:"intracomTotal"`
	Difference    decimal.Decimal `json:"difference"`
	IsValid       bool            `json:"isValid"`
}

// RulesApplied counts how many transactions matched each cascade outcome.
type RulesApplied struct {
	OSSCount          int `json:"ossCount"`
	B2CCount          int `json:"b2cCount"`
	B2BCount          int `json:"b2bCount"`
	IntracomCount     int `json:"intracomCount"`
	VOECCount         int `json:"voecCount"`
	ResidualCount     int `json:"residualCount"`
	UnclassifiedCount int `json:"unclassifiedCount"`
	TotalProcessed    int `json:"totalProcessed"`
}

// Anomaly is a diagnostic raised for human review. It never changes a
// classification.
type Anomaly struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	ReferenceID string `json:"referenceId,omitempty"`
}

// SkippedRow records a source row that was dropped before classification.
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// InputSummary describes how the source file was read.
type InputSummary struct {
	Delimiter   string         `json:"delimiter"`
	Columns     map[string]int `json:"columns"` // canonical field -> source column index
	RowsRead    int            `json:"rowsRead"`
	RowsSkipped int            `json:"rowsSkipped"`
}

// Report is the full output of one analysis run.
type Report struct {
	Breakdown            []CountryBreakdownRow `json:"breakdown"`
	KPICards             []KPICard             `json:"kpiCards"`
	SanityCheckGlobal    GlobalSanityResult    `json:"sanityCheckGlobal"`
	SanityCheckByCountry []CountrySanityResult `json:"sanityCheckByCountry"`
	RulesApplied         RulesApplied          `json:"rulesApplied"`
	Anomalies            []Anomaly             `json:"anomalies"`
	SkippedRows          []SkippedRow          `json:"skippedRows"`
	Input                InputSummary          `json:"input"`
}

// MappingRules is a user-supplied override table. Columns maps a canonical
// field name (e.g. "SALE_DEPART_COUNTRY") to the raw header that holds it;
// SchemeAliases maps a raw scheme label to a canonical scheme.
type MappingRules struct {
	Columns       map[string]string `json:"columns,omitempty"`
	SchemeAliases map[string]string `json:"schemeAliases,omitempty"`
}

// Anomaly types.
const (
	AnomalyUnclassifiable        = "UNCLASSIFIABLE"
	AnomalyB2BMissingVATNumber   = "B2B_MISSING_VAT_NUMBER"
	AnomalyImplausibleVATNumber  = "IMPLAUSIBLE_VAT_NUMBER"
	AnomalyUnexpectedVATAmount   = "UNEXPECTED_VAT_AMOUNT"
	AnomalyDepartArrivalMismatch = "DEPART_ARRIVAL_MISMATCH"
	AnomalyUnknownScheme         = "UNKNOWN_SCHEME"
	AnomalyVATRateMismatch       = "VAT_RATE_MISMATCH"
	AnomalyMissingSchemeColumn   = "MISSING_SCHEME_COLUMN"
	AnomalyZeroAmount            = "ZERO_AMOUNT"
	AnomalyNonEUBuyer            = "NON_EU_INTRACOMMUNITY_BUYER"
)

// Known EU VAT rate types.
const (
	RateTypeStandard     = "standard"
	RateTypeReduced      = "reduced"
	RateTypeReducedAlt   = "reduced_alt"
	RateTypeSuperReduced = "super_reduced"
	RateTypeParking      = "parking"
)

// CountryVATRates holds all known rates for a single country.
type CountryVATRates struct {
	CountryCode string
	Rates       map[string]decimal.Decimal // rate_type -> rate percentage (e.g., "standard" -> 21.00)
}

// VATRate represents a single rate entry.
type VATRate struct {
	CountryCode string
	RateType    string
	Rate        decimal.Decimal
}
