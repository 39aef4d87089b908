package vat

import "strings"

// amazonHeader mirrors the column layout of a marketplace VAT transactions
// report.
var amazonHeader = []string{
	"UNIQUE_ACCOUNT_IDENTIFIER",
	"ACTIVITY_PERIOD",
	"SALES_CHANNEL",
	"MARKETPLACE",
	"TRANSACTION_TYPE",
	"TRANSACTION_EVENT_ID",
	"TAX_REPORTING_SCHEME",
	"TRANSACTION_COMPLETE_DATE",
	"SALE_DEPART_COUNTRY",
	"SALE_ARRIVAL_COUNTRY",
	"BUYER_VAT_NUMBER_COUNTRY",
	"BUYER_VAT_NUMBER",
	"TOTAL_ACTIVITY_VALUE_AMT_VAT_EXCL",
	"TOTAL_ACTIVITY_VALUE_VAT_AMT",
	"TOTAL_ACTIVITY_VALUE_AMT_VAT_INCL",
	"TRANSACTION_CURRENCY_CODE",
	"TAXABLE_JURISDICTION",
}

// testRow holds the cells a test cares about; everything else is filled with
// plausible constants.
type testRow struct {
	Type      string
	EventID   string
	Scheme    string
	Date      string
	Depart    string
	Arrival   string
	BuyerCtry string
	BuyerVAT  string
	Excl      string
	VAT       string
	Incl      string
	Currency  string
}

func (r testRow) cells() []string {
	return []string{
		"A1B2C3", "2025-01", "AFN", "amazon.de",
		r.Type, r.EventID, r.Scheme, r.Date,
		r.Depart, r.Arrival, r.BuyerCtry, r.BuyerVAT,
		r.Excl, r.VAT, r.Incl, r.Currency, "",
	}
}

// buildReport renders rows under the marketplace header using delim.
func buildReport(delim string, rows ...testRow) []byte {
	var b strings.Builder
	b.WriteString(strings.Join(amazonHeader, delim))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(strings.Join(r.cells(), delim))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// Rows used by the reference scenarios.
var (
	scenarioA = testRow{Type: "SALE", EventID: "A-1", Scheme: "UNION-OSS", Depart: "FR", Arrival: "DE", Excl: "100.00", VAT: "19.00", Currency: "EUR"}
	scenarioB = testRow{Type: "REFUND", EventID: "B-1", Scheme: "REGULAR", Depart: "FR", Arrival: "FR", Excl: "50.00", VAT: "10.00", Currency: "EUR"}
	scenarioC = testRow{Type: "SALE", EventID: "C-1", Scheme: "REGULAR", Depart: "FR", Arrival: "DE", BuyerCtry: "DE", BuyerVAT: "DE123456789", Excl: "200.00", VAT: "0.00", Currency: "EUR"}
	scenarioD = testRow{Type: "SALE", EventID: "D-1", Scheme: "REGULAR", Depart: "FR", Arrival: "FR", BuyerCtry: "FR", BuyerVAT: "FR12345678901", Excl: "300.00", VAT: "60.00", Currency: "EUR"}
)
