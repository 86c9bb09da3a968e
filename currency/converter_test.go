package currency

import (
	"math"
	"strings"
	"testing"
)

type table map[string]float64

func (t table) Get(code string) float64 {
	if r, ok := t[code]; ok {
		return r
	}
	return 1
}

var testRates = table{"USD": 1, "EUR": 0.85, "GBP": 0.73, "JPY": 110, "INR": 74.5}

func TestConvert_Identity(t *testing.T) {
	c := NewConverter(testRates)
	for _, code := range []string{"USD", "EUR", "JPY", "XYZ"} {
		if got := c.Convert(123.45, code, code); got != 123.45 {
			t.Errorf("Convert(123.45, %s, %s) = %v, want 123.45", code, code, got)
		}
	}
}

func TestConvert_RoundTrip(t *testing.T) {
	c := NewConverter(testRates)
	pairs := [][2]string{{"USD", "EUR"}, {"EUR", "JPY"}, {"GBP", "INR"}, {"JPY", "USD"}}
	for _, p := range pairs {
		t.Run(p[0]+"-"+p[1], func(t *testing.T) {
			x := 1234.56
			back := c.Convert(c.Convert(x, p[0], p[1]), p[1], p[0])
			if math.Abs(back-x) > 1e-9*x {
				t.Errorf("round trip %s->%s->%s = %v, want %v", p[0], p[1], p[0], back, x)
			}
		})
	}
}

func TestConvert_Pivot(t *testing.T) {
	c := NewConverter(testRates)
	// 85 EUR is 100 USD is 11000 JPY.
	got := c.Convert(85, "EUR", "JPY")
	if math.Abs(got-11000) > 1e-6 {
		t.Errorf("Convert(85, EUR, JPY) = %v, want 11000", got)
	}
}

func TestFormat(t *testing.T) {
	c := NewConverter(table{"USD": 1, "EUR": 0.85, "JPY": 110})
	testCases := []struct {
		amount float64
		code   string
		want   string
	}{
		{100, "EUR", "€85.00"},
		{1234.5, "USD", "$1,234.50"},
		{-20, "USD", "-$20.00"},
		{85, "XYZ", "XYZ 85.00"},
		{1, "usd", "$1.00"},
	}
	for _, tc := range testCases {
		t.Run(tc.code, func(t *testing.T) {
			if got := c.Format(tc.amount, tc.code); got != tc.want {
				t.Errorf("Format(%v, %q) = %q, want %q", tc.amount, tc.code, got, tc.want)
			}
		})
	}
}

func TestFormat_NoMinorUnit(t *testing.T) {
	c := NewConverter(table{"USD": 1, "JPY": 110})
	got := c.Format(100, "JPY")
	if !strings.HasSuffix(got, "11,000") || strings.Contains(got, ".") {
		t.Errorf("Format(100, JPY) = %q, want no decimals and 11,000", got)
	}
}

func TestFormat_NeverPanics(t *testing.T) {
	c := NewConverter(nil)
	for _, v := range []float64{math.NaN(), math.Inf(1), 0, 1e12} {
		for _, code := range []string{"", "EUR", "???", "KRW"} {
			_ = c.Format(v, code)
		}
	}
}

func TestLookup(t *testing.T) {
	if len(Supported) != 17 {
		t.Errorf("len(Supported) = %d, want 17", len(Supported))
	}
	if c, ok := Lookup(" eur "); !ok || c.Symbol != "€" {
		t.Errorf("Lookup(eur) = %v, %v", c, ok)
	}
	if IsSupported("XYZ") {
		t.Error("IsSupported(XYZ) = true")
	}
}
