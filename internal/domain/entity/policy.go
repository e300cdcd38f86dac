package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CheckEligibleAmount verifies an eligible amount against the monthly ceiling
// and the billed total. Values are compared exactly as they will be stored.
func CheckEligibleAmount(eligible, total float64, monthCount int) error {
	amount := decimal.NewFromFloat(eligible)
	if amount.IsNegative() {
		return fmt.Errorf("eligible amount %s is negative", amount.String())
	}

	ceiling := decimal.NewFromInt(int64(MonthlyCap * monthCount))
	if amount.GreaterThan(ceiling) {
		return fmt.Errorf("eligible amount %s exceeds the %d-month ceiling %s",
			amount.String(), monthCount, ceiling.StringFixed(2))
	}

	billed := decimal.NewFromFloat(total)
	if amount.GreaterThan(billed) {
		return fmt.Errorf("eligible amount %s exceeds the billed total %s",
			amount.String(), billed.String())
	}
	return nil
}

// SumEligible totals eligible amounts without float drift
func SumEligible(claims []*Claim) float64 {
	sum := decimal.Zero
	for _, c := range claims {
		sum = sum.Add(decimal.NewFromFloat(c.EligibleAmount))
	}
	f, _ := sum.Round(2).Float64()
	return f
}
