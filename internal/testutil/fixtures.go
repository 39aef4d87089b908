// Package testutil builds marketplace VAT exports for tests outside the vat
// package.
package testutil

import (
	"strings"
	"testing"
)

// Header is the column layout of a marketplace VAT transactions report.
var Header = []string{
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

// Row holds the cells a test cares about. Account, period, channel and
// marketplace are filled with constants.
type Row struct {
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

func (r Row) cells() []string {
	return []string{
		"A1B2C3", "2025-01", "AFN", "amazon.de",
		r.Type, r.EventID, r.Scheme, r.Date,
		r.Depart, r.Arrival, r.BuyerCtry, r.BuyerVAT,
		r.Excl, r.VAT, r.Incl, r.Currency, "",
	}
}

// Export renders rows under Header using delim.
func Export(delim string, rows ...Row) []byte {
	var b strings.Builder
	b.WriteString(strings.Join(Header, delim))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(strings.Join(r.cells(), delim))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// Sample rows covering every regime.
var (
	OSSSale          = Row{Type: "SALE", EventID: "OSS-1", Scheme: "UNION-OSS", Depart: "FR", Arrival: "DE", Excl: "100.00", VAT: "19.00", Currency: "EUR"}
	DomesticRefund   = Row{Type: "REFUND", EventID: "B2C-1", Scheme: "REGULAR", Depart: "FR", Arrival: "FR", Excl: "50.00", VAT: "10.00", Currency: "EUR"}
	IntracomSale     = Row{Type: "SALE", EventID: "IC-1", Scheme: "REGULAR", Depart: "FR", Arrival: "DE", BuyerCtry: "DE", BuyerVAT: "DE123456789", Excl: "200.00", VAT: "0.00", Currency: "EUR"}
	DomesticB2BSale  = Row{Type: "SALE", EventID: "B2B-1", Scheme: "REGULAR", Depart: "FR", Arrival: "FR", BuyerCtry: "FR", BuyerVAT: "FR12345678901", Excl: "300.00", VAT: "60.00", Currency: "EUR"}
	VOECSale         = Row{Type: "SALE", EventID: "CH-1", Scheme: "CH_VOEC", Depart: "DE", Arrival: "CH", Excl: "40.00", VAT: "3.24", Currency: "CHF"}
	DeemedResaleSale = Row{Type: "SALE", EventID: "R-1", Scheme: "DEEMED_RESELLER", Depart: "", Arrival: "IT", Excl: "10.00", VAT: "2.20", Currency: "EUR"}
)

// SampleExport returns a semicolon-delimited export with one row per regime.
// Its total is 600.00: OSS 100, domestic B2C -50, intra-community 200,
// domestic B2B 300, VOEC 40, residual 10.
func SampleExport(t testing.TB) []byte {
	t.Helper()
	return Export(";", OSSSale, DomesticRefund, IntracomSale, DomesticB2BSale, VOECSale, DeemedResaleSale)
}
