package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
)

type (
	PoolStore interface {
		GetPool(ctx context.Context) (*LendingPool, error)
	}

	LendingPool struct {
		TotalDeposited  decimal.Decimal `json:"totalDeposited"`
		TotalBorrowed   decimal.Decimal `json:"totalBorrowed"`
		TotalCollateral decimal.Decimal `json:"totalCollateral"`

		ReserveFactor  decimal.Decimal `json:"reserveFactor"`
		TotalReserves  decimal.Decimal `json:"totalReserves"`
		InterestEarned decimal.Decimal `json:"interestEarned"`
		BadDebt        decimal.Decimal `json:"badDebt"`

		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}
)

func NewLendingPool(clk clock.Clock, reserveFactor decimal.Decimal) *LendingPool {
	return &LendingPool{
		TotalDeposited:  decimal.Zero,
		TotalBorrowed:   decimal.Zero,
		TotalCollateral: decimal.Zero,
		ReserveFactor:   reserveFactor,
		TotalReserves:   decimal.Zero,
		InterestEarned:  decimal.Zero,
		BadDebt:         decimal.Zero,
		CreatedAt:       clk.Now().Unix(),
		UpdatedAt:       clk.Now().Unix(),
	}
}

func (p *LendingPool) Clone() *LendingPool {
	c := *p
	return &c
}

func (p *LendingPool) Utilization() decimal.Decimal {
	if p.TotalDeposited.IsZero() {
		return decimal.Zero
	}
	return p.TotalBorrowed.Div(p.TotalDeposited)
}

func (p *LendingPool) AvailableLiquidity() decimal.Decimal {
	return decimal.Max(decimal.Zero, p.TotalDeposited.Sub(p.TotalBorrowed))
}

func (p *LendingPool) CheckUtilizationRatio() error {
	if p.TotalDeposited.LessThan(p.TotalBorrowed) {
		return InsufficientLiquidity
	}
	return nil
}

func (p *LendingPool) ChangeDeposits(delta decimal.Decimal) {
	p.TotalDeposited = p.TotalDeposited.Add(delta)
}

func (p *LendingPool) ChangeBorrows(delta decimal.Decimal) {
	p.TotalBorrowed = p.TotalBorrowed.Add(delta)
	if p.TotalBorrowed.LessThan(EMPTY_BALANCE_THRESHOLD) {
		p.TotalBorrowed = decimal.Zero
	}
}

func (p *LendingPool) ChangeCollateral(delta decimal.Decimal) {
	p.TotalCollateral = p.TotalCollateral.Add(delta)
}

// BookInterest splits repaid interest between protocol reserves and lenders.
func (p *LendingPool) BookInterest(paid decimal.Decimal) (reserves, earned decimal.Decimal) {
	reserves = paid.Mul(p.ReserveFactor)
	earned = paid.Sub(reserves)
	p.TotalReserves = p.TotalReserves.Add(reserves)
	p.InterestEarned = p.InterestEarned.Add(earned)
	return reserves, earned
}

func (p *LendingPool) RecordBadDebt(amount decimal.Decimal) {
	p.BadDebt = p.BadDebt.Add(amount)
}

func ValidateReserveFactor(reserveFactor decimal.Decimal) error {
	if reserveFactor.IsNegative() || reserveFactor.GreaterThan(ONE) {
		return InvalidParams
	}
	return nil
}

func (p *LendingPool) Touch(now int64) {
	p.UpdatedAt = now
}
