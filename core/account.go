package core

import (
	"context"

	"github.com/DomeLiquid/lendcore/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	AccountStore interface {
		GetAccount(ctx context.Context, key string) (*Account, error)
		ListAccounts(ctx context.Context) ([]*Account, error)
	}

	Account struct {
		Id  uuid.UUID `json:"id"`
		Key string    `json:"key"`

		DepositedBalance  decimal.Decimal `json:"depositedBalance"`
		BorrowedPrincipal decimal.Decimal `json:"borrowedPrincipal"`
		AccruedInterest   decimal.Decimal `json:"accruedInterest"`
		CollateralBalance decimal.Decimal `json:"collateralBalance"`

		LastAccrualTimestamp int64           `json:"lastAccrualTimestamp"`
		RequestedRate        decimal.Decimal `json:"requestedRate"`
		RateVersion          uint64          `json:"rateVersion"`

		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}
)

func AccountId(key string) uuid.UUID {
	return utils.GenUuidFromStrings("account", key)
}

func NewAccount(clk clock.Clock, key string) *Account {
	now := clk.Now().Unix()
	return &Account{
		Id:                   AccountId(key),
		Key:                  key,
		DepositedBalance:     decimal.Zero,
		BorrowedPrincipal:    decimal.Zero,
		AccruedInterest:      decimal.Zero,
		CollateralBalance:    decimal.Zero,
		LastAccrualTimestamp: now,
		RequestedRate:        decimal.Zero,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// Owed is principal plus accrued interest. Callers accrue first.
func (a *Account) Owed() decimal.Decimal {
	return a.BorrowedPrincipal.Add(a.AccruedInterest)
}

func (a *Account) HasDebt() bool {
	return a.Owed().GreaterThan(ZERO_AMOUNT_THRESHOLD)
}

func (a *Account) Balance(kind BalanceKind) decimal.Decimal {
	switch kind {
	case BalanceDeposit:
		return a.DepositedBalance
	case BalanceCollateral:
		return a.CollateralBalance
	default:
		return decimal.Zero
	}
}

func (a *Account) Credit(kind BalanceKind, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	switch kind {
	case BalanceDeposit:
		a.DepositedBalance = a.DepositedBalance.Add(amount)
	case BalanceCollateral:
		a.CollateralBalance = a.CollateralBalance.Add(amount)
	default:
		return InvalidParams
	}
	return nil
}

func (a *Account) Debit(kind BalanceKind, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	if a.Balance(kind).LessThan(amount) {
		return InsufficientFunds
	}
	switch kind {
	case BalanceDeposit:
		a.DepositedBalance = a.DepositedBalance.Sub(amount)
	case BalanceCollateral:
		a.CollateralBalance = a.CollateralBalance.Sub(amount)
	default:
		return InvalidParams
	}
	return nil
}

func (a *Account) OpenLoan(amount decimal.Decimal, requestedRate decimal.Decimal) {
	a.BorrowedPrincipal = a.BorrowedPrincipal.Add(amount)
	a.RequestedRate = requestedRate
}

// ApplyRepayment pays accrued interest first and then principal. The amount
// must not exceed Owed. Principal dust left behind is forgiven and counted in
// principalPaid so the pool total drops by the same amount.
func (a *Account) ApplyRepayment(amount decimal.Decimal) (interestPaid, principalPaid decimal.Decimal) {
	interestPaid = decimal.Min(amount, a.AccruedInterest)
	principalPaid = amount.Sub(interestPaid)

	a.AccruedInterest = a.AccruedInterest.Sub(interestPaid)
	a.BorrowedPrincipal = a.BorrowedPrincipal.Sub(principalPaid)
	if a.BorrowedPrincipal.IsPositive() && a.BorrowedPrincipal.LessThan(EMPTY_BALANCE_THRESHOLD) && a.AccruedInterest.IsZero() {
		principalPaid = principalPaid.Add(a.BorrowedPrincipal)
		a.BorrowedPrincipal = decimal.Zero
	}
	return interestPaid, principalPaid
}

// ClearDebt zeroes the loan and returns what was cleared.
func (a *Account) ClearDebt() (principal, interest decimal.Decimal) {
	principal, interest = a.BorrowedPrincipal, a.AccruedInterest
	a.BorrowedPrincipal = decimal.Zero
	a.AccruedInterest = decimal.Zero
	return principal, interest
}

func (a *Account) CollateralValue(price decimal.Decimal) decimal.Decimal {
	value, _ := CalcValue(a.CollateralBalance, price, nil)
	return value
}

// CollateralRatio returns collateral value over owed. ok is false when there
// is no debt.
func (a *Account) CollateralRatio(price decimal.Decimal) (ratio decimal.Decimal, ok bool) {
	if !a.HasDebt() {
		return decimal.Zero, false
	}
	return a.CollateralValue(price).Div(a.Owed()), true
}

func (a *Account) Touch(now int64) {
	a.UpdatedAt = now
}
