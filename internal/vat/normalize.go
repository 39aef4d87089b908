package vat

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidDate = errors.New("invalid date format")

var (
	europeanAmount     = regexp.MustCompile(`^\d{1,3}(\.\d{3})+,\d+$`)
	commaDecimalAmount = regexp.MustCompile(`^\d+,\d+$`)
	dotThousandsOnly   = regexp.MustCompile(`^\d{1,3}(\.\d{3}){2,}$`)
)

// ParseAmount converts a raw amount cell to a non-negative decimal. Currency
// symbols, signs and thousands separators are dropped; European (1.234,56) and
// plain comma-decimal (12,50) notations are accepted. Unparseable input yields
// zero.
func ParseAmount(raw string) decimal.Decimal {
	s := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == ',' || r == '.' {
			return r
		}
		return -1
	}, raw)

	switch {
	case europeanAmount.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case commaDecimalAmount.MatchString(s):
		s = strings.Replace(s, ",", ".", 1)
	case dotThousandsOnly.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Abs()
}

// ParseTransactionType maps free text to SALE or REFUND. The second return
// value is false when the cell is empty.
func ParseTransactionType(raw string) (TransactionType, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" {
		return "", false
	}
	if strings.Contains(v, "REFUND") || strings.Contains(v, "RETURN") {
		return TypeRefund, true
	}
	return TypeSale, true
}

// knownSchemes maps a compacted scheme label (separators removed) to its
// canonical spelling.
var knownSchemes = map[string]string{
	"UNIONOSS": SchemeUnionOSS,
	"OSS":      SchemeUnionOSS,
	"REGULAR":  SchemeRegular,
	"CHVOEC":   SchemeCHVOEC,
	"VOEC":     SchemeCHVOEC,
}

// NormalizeScheme canonicalizes a tax scheme label. aliases, if non-nil, are
// consulted first and keyed by the uppercased label. Unknown labels pass
// through uppercased.
func NormalizeScheme(raw string, aliases map[string]string) string {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" {
		return ""
	}
	if target, ok := aliases[v]; ok {
		return strings.ToUpper(strings.TrimSpace(target))
	}
	compact := strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, v)
	if canonical, ok := knownSchemes[compact]; ok {
		return canonical
	}
	return v
}

// IsKnownScheme reports whether s is one of the canonical scheme labels.
func IsKnownScheme(s string) bool {
	return s == SchemeUnionOSS || s == SchemeRegular || s == SchemeCHVOEC
}

// NormalizeCurrency uppercases a currency code, defaulting to EUR.
func NormalizeCurrency(raw string) string {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if IsEmptyValue(v) {
		return DefaultCurrency
	}
	return v
}

// dateFormats lists the layouts seen in marketplace exports.
var dateFormats = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"02-01-2006 15:04:05",
	"02/01/2006 15:04:05",
	"02-01-2006 15:04",
	"02/01/2006 15:04",
}

// ParseDate parses a date cell in any supported layout. An empty cell yields
// the zero time without error.
func ParseDate(raw string) (time.Time, error) {
	v := strings.TrimSpace(raw)
	if IsEmptyValue(v) {
		return time.Time{}, nil
	}
	for _, layout := range dateFormats {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}
