package core

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func CalcValue(amount decimal.Decimal, price decimal.Decimal, weight *decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsZero() {
		return decimal.Zero, nil
	}

	weighted := amount
	if weight != nil {
		weighted = amount.Mul(*weight)
	}

	return weighted.Mul(price), nil
}

func CalcAmount(value decimal.Decimal, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, errors.Wrapf(PriceUnavailable, "price %s", price)
	}
	return value.Div(price), nil
}

func CalcInterestPaymentForPeriod(apr decimal.Decimal, timeDelta uint64, value decimal.Decimal) decimal.Decimal {
	return value.Mul(apr).Mul(decimal.NewFromInt(int64(timeDelta))).Div(decimal.NewFromInt(SECONDS_PER_YEAR))
}

/*
const aprToApy = (apr: number, compoundingFrequency = HOURS_PER_YEAR) =>

	(1 + apr / compoundingFrequency) ** compoundingFrequency - 1;
*/
func AprToApy(apr decimal.Decimal) decimal.Decimal {
	hoursPerYear := decimal.NewFromFloat(HOURS_PER_YEAR)
	return (ONE.Add(apr.Div(hoursPerYear))).Pow(hoursPerYear).Sub(ONE).Round(8)
}

// PercentToRatio converts a client supplied percentage (150) to a ratio (1.5).
func PercentToRatio(percent decimal.Decimal) decimal.Decimal {
	return percent.Div(HUNDRED)
}

func RatioToPercent(ratio decimal.Decimal) decimal.Decimal {
	return ratio.Mul(HUNDRED)
}
