package vat

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain dot decimal", "100.00", "100"},
		{"european thousands", "1.234,56", "1234.56"},
		{"american thousands", "1,234.56", "1234.56"},
		{"comma decimal", "12,50", "12.5"},
		{"space thousands comma decimal", "1 234,56", "1234.56"},
		{"euro symbol", "€ 99.90", "99.9"},
		{"swiss apostrophe", "CHF 1'234.50", "1234.5"},
		{"negative becomes absolute", "-50.00", "50"},
		{"dot thousands only", "1.234.567", "1234567"},
		{"empty", "", "0"},
		{"garbage", "n/a", "0"},
		{"two dots unparseable", "1.2.3", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAmount(tt.in)
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("ParseAmount(%q): expected %s, got %s", tt.in, want, got)
			}
		})
	}
}

func TestParseTransactionType(t *testing.T) {
	tests := []struct {
		in     string
		want   TransactionType
		wantOK bool
	}{
		{"SALE", TypeSale, true},
		{"sales", TypeSale, true},
		{" Refund ", TypeRefund, true},
		{"RETURN", TypeRefund, true},
		{"CUSTOMER_RETURN", TypeRefund, true},
		{"FC_TRANSFER", TypeSale, true},
		{"", "", false},
		{"   ", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseTransactionType(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseTransactionType(%q): expected (%q, %v), got (%q, %v)", tt.in, tt.want, tt.wantOK, got, ok)
		}
	}
}

func TestNormalizeScheme(t *testing.T) {
	tests := []struct {
		in      string
		aliases map[string]string
		want    string
	}{
		{"UNION-OSS", nil, SchemeUnionOSS},
		{"Union-OSS", nil, SchemeUnionOSS},
		{"union_oss", nil, SchemeUnionOSS},
		{"regular", nil, SchemeRegular},
		{"CH-VOEC", nil, SchemeCHVOEC},
		{"ch_voec", nil, SchemeCHVOEC},
		{"deemed_reseller", nil, "DEEMED_RESELLER"},
		{"", nil, ""},
		{"domestic", map[string]string{"DOMESTIC": "regular"}, SchemeRegular},
	}

	for _, tt := range tests {
		if got := NormalizeScheme(tt.in, tt.aliases); got != tt.want {
			t.Errorf("NormalizeScheme(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	if got := NormalizeCurrency(" gbp "); got != "GBP" {
		t.Errorf("expected GBP, got %q", got)
	}
	if got := NormalizeCurrency(""); got != DefaultCurrency {
		t.Errorf("expected %s, got %q", DefaultCurrency, got)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{"2025-03-15", "15-03-2025", "15/03/2025", "15.03.2025", "2025/03/15"} {
		got, err := ParseDate(in)
		if err != nil {
			t.Errorf("ParseDate(%q): unexpected error: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q): expected %s, got %s", in, want, got)
		}
	}

	withTime, err := ParseDate("2025-03-15 10:30:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if withTime.Hour() != 10 || withTime.Minute() != 30 {
		t.Errorf("expected 10:30, got %s", withTime)
	}

	empty, err := ParseDate("")
	if err != nil || !empty.IsZero() {
		t.Errorf("expected zero time and no error for empty input, got %s, %v", empty, err)
	}

	if _, err := ParseDate("yesterday"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}
