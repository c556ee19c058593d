package domain

import "testing"

func TestAmountArithmetic(t *testing.T) {
	a := MicroUSD(5_000_000)
	b := MicroUSD(1_500_000)

	if got := a.Add(b); got != MicroUSD(6_500_000) {
		t.Errorf("Add: got %d, want 6500000", got.Micros())
	}
	if got := a.Sub(b); got != MicroUSD(3_500_000) {
		t.Errorf("Sub: got %d, want 3500000", got.Micros())
	}
	if !b.Sub(a).IsNegative() {
		t.Error("expected negative amount")
	}
	if a.IsNegative() {
		t.Error("positive amount reported negative")
	}
}

func TestAmountString(t *testing.T) {
	cases := []struct {
		micros int64
		want   string
	}{
		{5_000_000, "5.000000"},
		{1, "0.000001"},
		{0, "0.000000"},
		{-1_234_567, "-1.234567"},
		{100_000, "0.100000"},
	}
	for _, tc := range cases {
		if got := MicroUSD(tc.micros).String(); got != tc.want {
			t.Errorf("String(%d): got %q, want %q", tc.micros, got, tc.want)
		}
	}
}
