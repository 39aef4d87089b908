package vat

// Classify assigns a transaction to exactly one regime and target country.
// Rules are evaluated in order and the first match wins:
//
//  1. UNION-OSS with an arrival country: OSS in the arrival country.
//  2. REGULAR with a depart country and no buyer VAT country: domestic B2C.
//  3. REGULAR where the buyer VAT country equals the depart country: domestic B2B.
//  4. REGULAR where the buyer VAT country differs: intra-community.
//  5. CH_VOEC with an arrival country: Switzerland VOEC.
//  6. Anything else with a depart or arrival country: residual, depart preferred.
//
// The second return value is false when no country can be resolved at all.
func Classify(tx Transaction) (Classification, bool) {
	switch {
	case tx.TaxScheme == SchemeUnionOSS && tx.ArrivalCountry != "":
		return Classification{Country: tx.ArrivalCountry, Regime: RegimeOSS, Rule: 1}, true

	case tx.TaxScheme == SchemeRegular && tx.DepartCountry != "":
		switch {
		case tx.BuyerVATCountry == "":
			return Classification{Country: tx.DepartCountry, Regime: RegimeDomesticB2C, Rule: 2}, true
		case tx.BuyerVATCountry == tx.DepartCountry:
			return Classification{Country: tx.DepartCountry, Regime: RegimeDomesticB2B, Rule: 3}, true
		default:
			return Classification{Country: tx.DepartCountry, Regime: RegimeIntracommunity, Rule: 4}, true
		}

	case tx.TaxScheme == SchemeCHVOEC && tx.ArrivalCountry != "":
		return Classification{Country: tx.ArrivalCountry, Regime: RegimeSwitzerlandVOEC, Rule: 5}, true
	}

	if tx.DepartCountry != "" {
		return Classification{Country: tx.DepartCountry, Regime: RegimeResidual, Rule: 6}, true
	}
	if tx.ArrivalCountry != "" {
		return Classification{Country: tx.ArrivalCountry, Regime: RegimeResidual, Rule: 6}, true
	}
	return Classification{}, false
}
