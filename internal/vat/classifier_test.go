package vat

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		tx          Transaction
		wantOK      bool
		wantCountry string
		wantRegime  Regime
		wantRule    int
	}{
		{
			name:        "oss goes to arrival country",
			tx:          Transaction{TaxScheme: SchemeUnionOSS, DepartCountry: "FR", ArrivalCountry: "DE"},
			wantOK:      true,
			wantCountry: "DE",
			wantRegime:  RegimeOSS,
			wantRule:    1,
		},
		{
			name:        "regular without buyer vat is domestic b2c",
			tx:          Transaction{TaxScheme: SchemeRegular, DepartCountry: "FR", ArrivalCountry: "FR"},
			wantOK:      true,
			wantCountry: "FR",
			wantRegime:  RegimeDomesticB2C,
			wantRule:    2,
		},
		{
			name:        "regular with same-country buyer is domestic b2b",
			tx:          Transaction{TaxScheme: SchemeRegular, DepartCountry: "FR", BuyerVATCountry: "FR"},
			wantOK:      true,
			wantCountry: "FR",
			wantRegime:  RegimeDomesticB2B,
			wantRule:    3,
		},
		{
			name:        "regular with foreign buyer is intracommunity",
			tx:          Transaction{TaxScheme: SchemeRegular, DepartCountry: "FR", ArrivalCountry: "DE", BuyerVATCountry: "DE"},
			wantOK:      true,
			wantCountry: "FR",
			wantRegime:  RegimeIntracommunity,
			wantRule:    4,
		},
		{
			name:        "voec goes to arrival country",
			tx:          Transaction{TaxScheme: SchemeCHVOEC, DepartCountry: "DE", ArrivalCountry: "CH"},
			wantOK:      true,
			wantCountry: "CH",
			wantRegime:  RegimeSwitzerlandVOEC,
			wantRule:    5,
		},
		{
			name:        "oss without arrival falls to residual on depart",
			tx:          Transaction{TaxScheme: SchemeUnionOSS, DepartCountry: "FR"},
			wantOK:      true,
			wantCountry: "FR",
			wantRegime:  RegimeResidual,
			wantRule:    6,
		},
		{
			name:        "regular without depart falls to residual on arrival",
			tx:          Transaction{TaxScheme: SchemeRegular, ArrivalCountry: "IT"},
			wantOK:      true,
			wantCountry: "IT",
			wantRegime:  RegimeResidual,
			wantRule:    6,
		},
		{
			name:        "unknown scheme prefers depart",
			tx:          Transaction{TaxScheme: "DEEMED_RESELLER", DepartCountry: "ES", ArrivalCountry: "PT"},
			wantOK:      true,
			wantCountry: "ES",
			wantRegime:  RegimeResidual,
			wantRule:    6,
		},
		{
			name:   "no country at all",
			tx:     Transaction{TaxScheme: SchemeUnionOSS},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.tx)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if got.Country != tt.wantCountry {
				t.Errorf("expected country %s, got %s", tt.wantCountry, got.Country)
			}
			if got.Regime != tt.wantRegime {
				t.Errorf("expected regime %s, got %s", tt.wantRegime, got.Regime)
			}
			if got.Rule != tt.wantRule {
				t.Errorf("expected rule %d, got %d", tt.wantRule, got.Rule)
			}
		})
	}
}
