package core

import (
	"github.com/shopspring/decimal"
)

type LiquidationEvent struct {
	Borrower   string `json:"borrower"`
	Liquidator string `json:"liquidator"`

	CollateralSeized decimal.Decimal `json:"collateralSeized"`
	CollateralPrice  decimal.Decimal `json:"collateralPrice"`
	SeizedValue      decimal.Decimal `json:"seizedValue"`

	PreRatio  decimal.Decimal `json:"preRatio"`
	Threshold decimal.Decimal `json:"threshold"`
	Penalty   decimal.Decimal `json:"penalty"`

	PrincipalCleared decimal.Decimal `json:"principalCleared"`
	InterestCleared  decimal.Decimal `json:"interestCleared"`

	PenaltyValue          decimal.Decimal `json:"penaltyValue"`
	LiquidatorReward      decimal.Decimal `json:"liquidatorReward"`
	InsuranceContribution decimal.Decimal `json:"insuranceContribution"`
	InsuranceDraw         decimal.Decimal `json:"insuranceDraw"`
	BadDebt               decimal.Decimal `json:"badDebt"`

	RateVersion uint64 `json:"rateVersion"`
	Timestamp   int64  `json:"timestamp"`
}

func (e *LiquidationEvent) DebtCleared() decimal.Decimal {
	return e.PrincipalCleared.Add(e.InterestCleared)
}

// LossEvent reports debt neither collateral nor the insurance fund covered.
type LossEvent struct {
	Borrower  string          `json:"borrower"`
	Shortfall decimal.Decimal `json:"shortfall"`
	Covered   decimal.Decimal `json:"covered"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp int64           `json:"timestamp"`
}
