package meter

import "math"

// CreditTracker is the non-negative prepaid balance in kWh.
type CreditTracker struct {
	balance float64
}

// NewCreditTracker normalizes a stored balance.
func NewCreditTracker(balance float64) CreditTracker {
	return CreditTracker{balance: normalize(balance)}
}

// Balance returns the current balance.
func (c CreditTracker) Balance() float64 { return c.balance }

// Credit adds units to the balance.
func (c *CreditTracker) Credit(units float64) {
	if units <= 0 || math.IsNaN(units) {
		return
	}
	c.balance += units
}

// Debit removes units, clamping at zero. Consumption beyond the balance is absorbed.
func (c *CreditTracker) Debit(units float64) {
	if units <= 0 || math.IsNaN(units) {
		return
	}
	c.balance = math.Max(0, c.balance-units)
}

// DaysRemaining divides the balance by the average daily consumption.
// ok is false when either is zero.
func (c CreditTracker) DaysRemaining(averageDaily float64) (days float64, ok bool) {
	if c.balance <= 0 || averageDaily <= 0 || math.IsNaN(averageDaily) {
		return 0, false
	}
	return c.balance / averageDaily, true
}

func normalize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
