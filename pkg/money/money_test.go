package money

import "testing"

func TestToCentavos(t *testing.T) {
	cases := []struct {
		pesos float64
		want  int64
	}{
		{0, 0},
		{1, 100},
		{20, 2000},
		{1234.56, 123456},
		{0.1, 10},
		{0.015, 2},
		{2499.99, 249999},
	}
	for _, tc := range cases {
		if got := ToCentavos(tc.pesos); got != tc.want {
			t.Errorf("ToCentavos(%v) = %d, want %d", tc.pesos, got, tc.want)
		}
	}
}

func TestFromCentavos(t *testing.T) {
	if got := FromCentavos(123456); got != 1234.56 {
		t.Errorf("FromCentavos(123456) = %v, want 1234.56", got)
	}
	if got := FromCentavos(0); got != 0 {
		t.Errorf("FromCentavos(0) = %v, want 0", got)
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		centavos int64
		want     string
	}{
		{0, "PHP 0.00"},
		{2000, "PHP 20.00"},
		{123456, "PHP 1,234.56"},
		{100000000, "PHP 1,000,000.00"},
		{-150050, "PHP -1,500.50"},
	}
	for _, tc := range cases {
		if got := Format(tc.centavos); got != tc.want {
			t.Errorf("Format(%d) = %q, want %q", tc.centavos, got, tc.want)
		}
	}
}
