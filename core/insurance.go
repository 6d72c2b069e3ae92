package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
)

type (
	InsuranceFundStore interface {
		GetInsuranceFund(ctx context.Context) (*InsuranceFund, error)
	}

	InsuranceFund struct {
		Balance            decimal.Decimal `json:"balance"`
		TotalDeposited     decimal.Decimal `json:"totalDeposited"`
		TotalPenaltyIncome decimal.Decimal `json:"totalPenaltyIncome"`
		TotalDrawn         decimal.Decimal `json:"totalDrawn"`

		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}
)

func NewInsuranceFund(clk clock.Clock) *InsuranceFund {
	return &InsuranceFund{
		Balance:            decimal.Zero,
		TotalDeposited:     decimal.Zero,
		TotalPenaltyIncome: decimal.Zero,
		TotalDrawn:         decimal.Zero,
		CreatedAt:          clk.Now().Unix(),
		UpdatedAt:          clk.Now().Unix(),
	}
}

func (f *InsuranceFund) Clone() *InsuranceFund {
	c := *f
	return &c
}

func (f *InsuranceFund) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	f.Balance = f.Balance.Add(amount)
	f.TotalDeposited = f.TotalDeposited.Add(amount)
	return nil
}

func (f *InsuranceFund) AddPenaltyIncome(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	f.Balance = f.Balance.Add(amount)
	f.TotalPenaltyIncome = f.TotalPenaltyIncome.Add(amount)
}

func (f *InsuranceFund) DrawDown(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	if amount.GreaterThan(f.Balance) {
		return InsufficientReserve
	}
	f.Balance = f.Balance.Sub(amount)
	f.TotalDrawn = f.TotalDrawn.Add(amount)
	return nil
}

// ComputeCoverage splits a deficit into what the fund can absorb and what
// remains uncovered.
func (f *InsuranceFund) ComputeCoverage(deficit decimal.Decimal) (covered, remaining decimal.Decimal) {
	if !deficit.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	covered = decimal.Min(f.Balance, deficit)
	return covered, deficit.Sub(covered)
}

func (f *InsuranceFund) Touch(now int64) {
	f.UpdatedAt = now
}
