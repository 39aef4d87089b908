package vat

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// euMembers is the set of EU member states by ISO 3166-1 alpha-2 code.
var euMembers = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true, "CZ": true,
	"DK": true, "EE": true, "FI": true, "FR": true, "DE": true, "GR": true,
	"HU": true, "IE": true, "IT": true, "LV": true, "LT": true, "LU": true,
	"MT": true, "NL": true, "PL": true, "PT": true, "RO": true, "SK": true,
	"SI": true, "ES": true, "SE": true,
}

// IsEUMember reports whether code is an EU member state.
func IsEUMember(code string) bool {
	return euMembers[code]
}

// countryNames maps diacritic-folded, uppercased country names in English,
// French and the local language to their ISO-2 code.
var countryNames = map[string]string{
	"AUSTRIA": "AT", "AUTRICHE": "AT", "OSTERREICH": "AT",
	"BELGIUM": "BE", "BELGIQUE": "BE", "BELGIE": "BE", "BELGIEN": "BE",
	"BULGARIA": "BG", "BULGARIE": "BG",
	"CROATIA": "HR", "CROATIE": "HR", "HRVATSKA": "HR",
	"CYPRUS": "CY", "CHYPRE": "CY",
	"CZECH REPUBLIC": "CZ", "CZECHIA": "CZ", "TCHEQUIE": "CZ", "REPUBLIQUE TCHEQUE": "CZ", "CESKO": "CZ",
	"DENMARK": "DK", "DANEMARK": "DK",
	"ESTONIA": "EE", "ESTONIE": "EE", "EESTI": "EE",
	"FINLAND": "FI", "FINLANDE": "FI", "SUOMI": "FI",
	"FRANCE": "FR",
	"GERMANY": "DE", "ALLEMAGNE": "DE", "DEUTSCHLAND": "DE",
	"GREECE": "GR", "GRECE": "GR", "ELLADA": "GR",
	"HUNGARY": "HU", "HONGRIE": "HU", "MAGYARORSZAG": "HU",
	"IRELAND": "IE", "IRLANDE": "IE",
	"ITALY": "IT", "ITALIE": "IT", "ITALIA": "IT",
	"LATVIA": "LV", "LETTONIE": "LV", "LATVIJA": "LV",
	"LITHUANIA": "LT", "LITUANIE": "LT", "LIETUVA": "LT",
	"LUXEMBOURG": "LU", "LUXEMBURG": "LU",
	"MALTA": "MT", "MALTE": "MT",
	"NETHERLANDS": "NL", "THE NETHERLANDS": "NL", "PAYS-BAS": "NL", "PAYS BAS": "NL", "NEDERLAND": "NL", "HOLLAND": "NL",
	"POLAND": "PL", "POLOGNE": "PL", "POLSKA": "PL",
	"PORTUGAL": "PT",
	"ROMANIA": "RO", "ROUMANIE": "RO",
	"SLOVAKIA": "SK", "SLOVAQUIE": "SK", "SLOVENSKO": "SK",
	"SLOVENIA": "SI", "SLOVENIE": "SI", "SLOVENIJA": "SI",
	"SPAIN": "ES", "ESPAGNE": "ES", "ESPANA": "ES",
	"SWEDEN": "SE", "SUEDE": "SE", "SVERIGE": "SE",
	"UNITED KINGDOM": "GB", "ROYAUME-UNI": "GB", "ROYAUME UNI": "GB", "GREAT BRITAIN": "GB", "ENGLAND": "GB",
	"SWITZERLAND": "CH", "SUISSE": "CH", "SCHWEIZ": "CH", "SVIZZERA": "CH",
	"NORWAY": "NO", "NORVEGE": "NO", "NORGE": "NO",
}

// emptySentinels are the literal tokens that mean "no value" in buyer VAT
// columns, compared after trimming and uppercasing.
var emptySentinels = map[string]bool{
	"":       true,
	"(VIDE)": true,
	"NULL":   true,
	"N/A":    true,
	"-":      true,
	"—":      true,
	"NONE":   true,
}

// IsEmptyValue reports whether v is one of the empty sentinel tokens.
func IsEmptyValue(v string) bool {
	return emptySentinels[strings.ToUpper(strings.TrimSpace(v))]
}

var (
	isoCodePattern     = regexp.MustCompile(`^[A-Z]{2}$`)
	embeddedISOPattern = regexp.MustCompile(`\b[A-Z]{2}\b`)
)

// NormalizeCountry resolves a raw country cell to an ISO-2 code. Unknown
// names without an embedded two-letter token fall back to their first two
// characters; "" means the cell was empty or a single character.
func NormalizeCountry(raw string) string {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if IsEmptyValue(v) {
		return ""
	}
	if isoCodePattern.MatchString(v) {
		return v
	}
	if code, ok := countryNames[foldName(v)]; ok {
		return code
	}
	if m := embeddedISOPattern.FindString(v); m != "" {
		return m
	}

	prefix := []rune(v)
	if len(prefix) < 2 {
		return ""
	}
	return string(prefix[:2])
}

// foldName strips diacritics and collapses inner whitespace so that
// "ÖSTERREICH" and "Osterreich " hit the same table entry.
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(folded), " ")
}

// vatPrefixCountry maps a VAT number prefix to its ISO-2 country. Greece
// issues VAT numbers with the EL prefix.
func vatPrefixCountry(prefix string) string {
	switch prefix {
	case "EL":
		return "GR"
	case "XI":
		return "GB"
	}
	return prefix
}
