package domain

import "fmt"

// Amount is a fixed-point monetary value counted in micro-units of currency.
// All arithmetic is integer arithmetic; there is no floating-point error to
// accumulate across millions of bid decisions.
type Amount int64

// MicroUSD constructs an Amount from a count of micro-dollars (1e-6 USD).
func MicroUSD(v int64) Amount { return Amount(v) }

// Micros returns the raw micro-unit count.
func (a Amount) Micros() int64 { return int64(a) }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return a + b }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return a - b }

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool { return a < 0 }

// String renders the amount as a decimal currency value, e.g. "5.000000".
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%06d", sign, v/1_000_000, v%1_000_000)
}
