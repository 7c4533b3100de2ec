package escrow

import (
	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Split divides amount into the platform fee and the seller payout.
// The fee is rounded half-up to cents and the payout takes the remainder,
// so fee + payout == amount exactly.
func Split(amount, feePercent decimal.Decimal) (fee, payout decimal.Decimal, err error) {
	if amount.IsNegative() {
		return decimal.Zero, decimal.Zero, apperr.Validation("amount must not be negative")
	}
	if err := ValidateFeePercent(feePercent); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	fee = amount.Mul(feePercent).Div(hundred).Round(2)
	payout = amount.Sub(fee)
	return fee, payout, nil
}

func ValidateFeePercent(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return apperr.New(apperr.CodeConfig, "platform fee percent must be between 0 and 100")
	}
	return nil
}
