package engine

import (
	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/ledger"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Loans struct {
	log    core.Log
	prices core.PriceFeed
}

func NewLoans(log core.Log, prices core.PriceFeed) *Loans {
	return &Loans{log: log, prices: prices}
}

type LoanResult struct {
	Account       *core.Account   `json:"account"`
	Accrued       decimal.Decimal `json:"accrued"`
	InterestPaid  decimal.Decimal `json:"interestPaid"`
	PrincipalPaid decimal.Decimal `json:"principalPaid"`
	Reserves      decimal.Decimal `json:"reserves"`
}

func (e *Loans) Lend(tx *ledger.Tx, lender string, amount decimal.Decimal) (*LoanResult, error) {
	if _, err := requireConfig(tx); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, core.InvalidAmount
	}

	account := tx.OpenOrGetAccount(lender)
	accrued, err := accrue(e.log, tx, account)
	if err != nil {
		return nil, err
	}
	if err := tx.Credit(lender, core.BalanceDeposit, amount); err != nil {
		return nil, err
	}

	pool := tx.Pool()
	pool.ChangeDeposits(amount)
	pool.Touch(tx.Now())

	tx.Emit(core.NewTransferIntent(tx.Clock(), core.ActionLend, lender, core.AssetLiquidity, core.DirectionIn, amount))
	e.log.Info().Msgf("lend %s: amount %s, deposited %s", lender, amount, account.DepositedBalance)
	return &LoanResult{Account: account, Accrued: accrued}, nil
}

func (e *Loans) Withdraw(tx *ledger.Tx, lender string, amount decimal.Decimal) (*LoanResult, error) {
	if _, err := requireConfig(tx); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, core.InvalidAmount
	}

	account, ok := tx.Account(lender)
	if !ok {
		return nil, core.InsufficientFunds
	}
	accrued, err := accrue(e.log, tx, account)
	if err != nil {
		return nil, err
	}
	if err := tx.Debit(lender, core.BalanceDeposit, amount); err != nil {
		return nil, err
	}

	pool := tx.Pool()
	pool.ChangeDeposits(amount.Neg())
	if err := pool.CheckUtilizationRatio(); err != nil {
		return nil, errors.Wrapf(err, "withdraw %s leaves %s available", amount, pool.AvailableLiquidity())
	}
	pool.Touch(tx.Now())

	tx.Emit(core.NewTransferIntent(tx.Clock(), core.ActionWithdraw, lender, core.AssetLiquidity, core.DirectionOut, amount))
	e.log.Info().Msgf("withdraw %s: amount %s, deposited %s", lender, amount, account.DepositedBalance)
	return &LoanResult{Account: account, Accrued: accrued}, nil
}

// Borrow opens or extends a loan against newly posted collateral. The
// requested rate is recorded but the pool rate always applies.
func (e *Loans) Borrow(tx *ledger.Tx, borrower string, amount, collateral, requestedRate decimal.Decimal) (*LoanResult, error) {
	cfg, err := requireConfig(tx)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() || !collateral.IsPositive() {
		return nil, core.InvalidAmount
	}
	if requestedRate.IsNegative() {
		return nil, errors.Wrap(core.InvalidParams, "negative requested rate")
	}

	account := tx.OpenOrGetAccount(borrower)
	accrued, err := accrue(e.log, tx, account)
	if err != nil {
		return nil, err
	}

	pool := tx.Pool()
	if amount.GreaterThan(pool.AvailableLiquidity()) {
		return nil, errors.Wrapf(core.InsufficientLiquidity, "borrow %s, available %s", amount, pool.AvailableLiquidity())
	}

	risk, err := core.NewRiskEngine(cfg.Risk, e.prices)
	if err != nil {
		return nil, err
	}
	newCollateral := account.CollateralBalance.Add(collateral)
	newDebt := account.Owed().Add(amount)
	if err := risk.CheckProjectedHealth(newCollateral, newDebt, core.Initial); err != nil {
		return nil, errors.Wrapf(err, "ratio %s below %s", risk.ProjectedRatio(newCollateral, newDebt), cfg.Risk.MinCollateralRatio)
	}

	if err := tx.Credit(borrower, core.BalanceCollateral, collateral); err != nil {
		return nil, err
	}
	account.OpenLoan(amount, requestedRate)
	pool.ChangeBorrows(amount)
	pool.ChangeCollateral(collateral)
	pool.Touch(tx.Now())

	rate := cfg.Rates.BorrowRate(pool.Utilization())
	if requestedRate.IsPositive() && !requestedRate.Equal(rate) {
		e.log.Info().Msgf("borrow %s: requested rate %s ignored, pool rate %s", borrower, requestedRate, rate)
	}

	tx.Emit(core.NewTransferIntent(tx.Clock(), core.ActionBorrow, borrower, core.AssetCollateral, core.DirectionIn, collateral))
	tx.Emit(core.NewTransferIntent(tx.Clock(), core.ActionBorrow, borrower, core.AssetLiquidity, core.DirectionOut, amount))
	e.log.Info().Msgf("borrow %s: amount %s, collateral %s, owed %s", borrower, amount, collateral, account.Owed())
	return &LoanResult{Account: account, Accrued: accrued}, nil
}

// Repay settles accrued interest first, then principal. Paying more than
// is owed is rejected.
func (e *Loans) Repay(tx *ledger.Tx, borrower string, amount decimal.Decimal) (*LoanResult, error) {
	if _, err := requireConfig(tx); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, core.InvalidAmount
	}

	account, ok := tx.Account(borrower)
	if !ok {
		return nil, core.NoOutstandingDebt
	}
	accrued, err := accrue(e.log, tx, account)
	if err != nil {
		return nil, err
	}
	if !account.HasDebt() {
		return nil, core.NoOutstandingDebt
	}
	if amount.GreaterThan(account.Owed()) {
		return nil, errors.Wrapf(core.OverpaymentRejected, "repay %s, owed %s", amount, account.Owed())
	}

	interestPaid, principalPaid := account.ApplyRepayment(amount)
	account.Touch(tx.Now())

	pool := tx.Pool()
	pool.ChangeBorrows(principalPaid.Neg())
	reserves, _ := pool.BookInterest(interestPaid)
	pool.Touch(tx.Now())

	tx.Emit(core.NewTransferIntent(tx.Clock(), core.ActionRepay, borrower, core.AssetLiquidity, core.DirectionIn, amount))
	e.log.Info().Msgf("repay %s: interest %s, principal %s, owed %s", borrower, interestPaid, principalPaid, account.Owed())
	return &LoanResult{
		Account:       account,
		Accrued:       accrued,
		InterestPaid:  interestPaid,
		PrincipalPaid: principalPaid,
		Reserves:      reserves,
	}, nil
}

func (e *Loans) WithdrawCollateral(tx *ledger.Tx, borrower string, amount decimal.Decimal) (*LoanResult, error) {
	cfg, err := requireConfig(tx)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, core.InvalidAmount
	}

	account, ok := tx.Account(borrower)
	if !ok {
		return nil, core.InsufficientFunds
	}
	accrued, err := accrue(e.log, tx, account)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(account.CollateralBalance) {
		return nil, core.InsufficientFunds
	}

	if account.HasDebt() {
		risk, err := core.NewRiskEngine(cfg.Risk, e.prices)
		if err != nil {
			return nil, err
		}
		remaining := account.CollateralBalance.Sub(amount)
		if err := risk.CheckProjectedHealth(remaining, account.Owed(), core.Initial); err != nil {
			return nil, errors.Wrapf(err, "ratio %s below %s", risk.ProjectedRatio(remaining, account.Owed()), cfg.Risk.MinCollateralRatio)
		}
	}

	if err := tx.Debit(borrower, core.BalanceCollateral, amount); err != nil {
		return nil, err
	}
	pool := tx.Pool()
	pool.ChangeCollateral(amount.Neg())
	pool.Touch(tx.Now())

	tx.Emit(core.NewTransferIntent(tx.Clock(), core.ActionWithdrawCollateral, borrower, core.AssetCollateral, core.DirectionOut, amount))
	e.log.Info().Msgf("withdraw collateral %s: amount %s, remaining %s", borrower, amount, account.CollateralBalance)
	return &LoanResult{Account: account, Accrued: accrued}, nil
}
