package engine

import (
	"testing"
	"time"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/ledger"
	"github.com/DomeLiquid/lendcore/store/memstore"
	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationsBeforeInitialize(t *testing.T) {
	l := ledger.New(clock.NewMock(), memstore.New())
	loans := NewLoans(core.NopLog(), core.NewStaticPriceFeed(core.ONE))

	_, err := loans.Lend(l.Begin(), "alice", d(1))
	assert.ErrorIs(t, err, core.NotInitialized)
	_, err = loans.Borrow(l.Begin(), "alice", d(1), d(2), decimal.Zero)
	assert.ErrorIs(t, err, core.NotInitialized)
}

func TestLendAndWithdraw(t *testing.T) {
	f := newFixture(t)
	f.lend(t, "alice", 1000)

	assert.True(t, f.account(t, "alice").DepositedBalance.Equal(d(1000)))
	assert.True(t, f.pool(t).TotalDeposited.Equal(d(1000)))

	err := f.run(t, func(tx *ledger.Tx) error {
		_, err := f.loans.Withdraw(tx, "alice", d(1001))
		return err
	})
	assert.ErrorIs(t, err, core.InsufficientFunds)

	require.NoError(t, f.run(t, func(tx *ledger.Tx) error {
		_, err := f.loans.Withdraw(tx, "alice", d(400))
		return err
	}))
	assert.True(t, f.account(t, "alice").DepositedBalance.Equal(d(600)))
	assert.True(t, f.pool(t).TotalDeposited.Equal(d(600)))
}

func TestLendRejectsNonPositive(t *testing.T) {
	f := newFixture(t)
	for _, amount := range []float64{0, -5} {
		err := f.run(t, func(tx *ledger.Tx) error {
			_, err := f.loans.Lend(tx, "alice", d(amount))
			return err
		})
		assert.ErrorIs(t, err, core.InvalidAmount)
	}
	_, ok := f.ledger.Account("alice")
	assert.False(t, ok)
}

func TestWithdrawCannotDrainBorrowedLiquidity(t *testing.T) {
	f := newFixture(t)
	f.lend(t, "alice", 1000)
	require.NoError(t, f.borrow(t, "bob", 800, 2000))

	err := f.run(t, func(tx *ledger.Tx) error {
		_, err := f.loans.Withdraw(tx, "alice", d(300))
		return err
	})
	assert.ErrorIs(t, err, core.InsufficientLiquidity)
	assert.True(t, f.account(t, "alice").DepositedBalance.Equal(d(1000)))
	assert.True(t, f.pool(t).TotalDeposited.Equal(d(1000)))
}

func TestBorrowScenario(t *testing.T) {
	f := newFixture(t)
	f.lend(t, "lender", 10000)

	// 2000 / 1000 = 200% clears the 150% requirement
	require.NoError(t, f.borrow(t, "borrower", 1000, 2000))

	pool := f.pool(t)
	assert.True(t, pool.TotalBorrowed.Equal(d(1000)))
	assert.True(t, pool.TotalCollateral.Equal(d(2000)))
	assert.True(t, pool.TotalBorrowed.LessThanOrEqual(pool.TotalDeposited))

	borrower := f.account(t, "borrower")
	assert.True(t, borrower.BorrowedPrincipal.Equal(d(1000)))
	assert.True(t, borrower.CollateralBalance.Equal(d(2000)))
}

func TestBorrowValidation(t *testing.T) {
	tests := []struct {
		name       string
		amount     float64
		collateral float64
		err        error
	}{
		{"zero amount", 0, 100, core.InvalidAmount},
		{"zero collateral", 100, 0, core.InvalidAmount},
		{"undercollateralized", 1000, 1400, core.UndercollateralizedRequest},
		{"exceeds liquidity", 6000, 20000, core.InsufficientLiquidity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.lend(t, "lender", 5000)

			err := f.borrow(t, "borrower", tt.amount, tt.collateral)
			assert.ErrorIs(t, err, tt.err)

			_, ok := f.ledger.Account("borrower")
			assert.False(t, ok)
			assert.True(t, f.pool(t).TotalBorrowed.IsZero())
		})
	}
}

func TestBorrowWithoutPrice(t *testing.T) {
	f := newFixture(t)
	f.lend(t, "lender", 5000)
	f.loans = NewLoans(core.NopLog(), core.NewStaticPriceFeed(decimal.Zero))

	assert.ErrorIs(t, f.borrow(t, "borrower", 100, 1000), core.PriceUnavailable)
}

func TestBorrowRepayInverse(t *testing.T) {
	f := newFixture(t)
	f.lend(t, "lender", 10000)
	require.NoError(t, f.borrow(t, "borrower", 1000, 2000))

	require.NoError(t, f.run(t, func(tx *ledger.Tx) error {
		res, err := f.loans.Repay(tx, "borrower", d(1000))
		if err != nil {
			return err
		}
		assert.True(t, res.PrincipalPaid.Equal(d(1000)))
		assert.True(t, res.InterestPaid.IsZero())
		return nil
	}))

	borrower := f.account(t, "borrower")
	assert.True(t, borrower.BorrowedPrincipal.IsZero())
	assert.True(t, borrower.AccruedInterest.IsZero())
	assert.True(t, f.pool(t).TotalBorrowed.IsZero())
}

func TestRepayErrors(t *testing.T) {
	f := newFixture(t)
	f.lend(t, "lender", 10000)

	repay := func(amount float64) error {
		return f.run(t, func(tx *ledger.Tx) error {
			_, err := f.loans.Repay(tx, "borrower", d(amount))
			return err
		})
	}

	assert.ErrorIs(t, repay(10), core.NoOutstandingDebt)
	require.NoError(t, f.borrow(t, "borrower", 1000, 2000))
	assert.ErrorIs(t, repay(1000.01), core.OverpaymentRejected)
	assert.ErrorIs(t, repay(0), core.InvalidAmount)
	assert.True(t, f.account(t, "borrower").BorrowedPrincipal.Equal(d(1000)))
}

func TestRepayPaysInterestFirst(t *testing.T) {
	f := newFixture(t)
	f.lend(t, "lender", 2000)

	// 10% flat borrow rate
	require.NoError(t, f.run(t, func(tx *ledger.Tx) error {
		_, err := f.governance.UpdateInterestRate(tx, d(0.1), decimal.Zero)
		return err
	}))
	require.NoError(t, f.borrow(t, "borrower", 1000, 2000))

	f.clk.Add(core.SECONDS_PER_YEAR * time.Second)

	require.NoError(t, f.run(t, func(tx *ledger.Tx) error {
		res, err := f.loans.Repay(tx, "borrower", d(150))
		if err != nil {
			return err
		}
		assert.True(t, res.Accrued.Equal(d(100)), "accrued %s", res.Accrued)
		assert.True(t, res.InterestPaid.Equal(d(100)))
		assert.True(t, res.PrincipalPaid.Equal(d(50)))
		assert.True(t, res.Reserves.Equal(d(10)))
		return nil
	}))

	borrower := f.account(t, "borrower")
	assert.True(t, borrower.BorrowedPrincipal.Equal(d(950)))
	assert.True(t, borrower.AccruedInterest.IsZero())

	pool := f.pool(t)
	assert.True(t, pool.TotalBorrowed.Equal(d(950)))
	assert.True(t, pool.TotalReserves.Equal(d(10)))
	assert.True(t, pool.InterestEarned.Equal(d(90)))
}

func TestRepayDustClearsPoolBorrows(t *testing.T) {
	f := newFixture(t)
	f.lend(t, "alice", 100)
	require.NoError(t, f.borrow(t, "bob", 1, 2))

	require.NoError(t, f.run(t, func(tx *ledger.Tx) error {
		res, err := f.loans.Repay(tx, "bob", decimal.RequireFromString("0.999999995"))
		if err == nil {
			assert.True(t, res.PrincipalPaid.Equal(d(1)), "principal %s", res.PrincipalPaid)
		}
		return err
	}))
	assert.True(t, f.account(t, "bob").BorrowedPrincipal.IsZero())
	assert.True(t, f.pool(t).TotalBorrowed.IsZero(), "borrowed %s", f.pool(t).TotalBorrowed)
}

func TestWithdrawCollateral(t *testing.T) {
	f := newFixture(t)
	f.lend(t, "lender", 10000)
	require.NoError(t, f.borrow(t, "borrower", 1000, 2000))

	withdraw := func(amount float64) error {
		return f.run(t, func(tx *ledger.Tx) error {
			_, err := f.loans.WithdrawCollateral(tx, "borrower", d(amount))
			return err
		})
	}

	// 1400 left would be 140%
	assert.ErrorIs(t, withdraw(600), core.UndercollateralizedRequest)
	assert.ErrorIs(t, withdraw(2001), core.InsufficientFunds)
	require.NoError(t, withdraw(500))
	assert.True(t, f.account(t, "borrower").CollateralBalance.Equal(d(1500)))
	assert.True(t, f.pool(t).TotalCollateral.Equal(d(1500)))
}

func TestBorrowEmitsIntents(t *testing.T) {
	f := newFixture(t)
	f.lend(t, "lender", 10000)

	tx := f.ledger.Begin()
	_, err := f.loans.Borrow(tx, "borrower", d(100), d(300), d(0.07))
	require.NoError(t, err)

	intents := tx.Intents()
	require.Len(t, intents, 2)
	assert.Equal(t, core.AssetCollateral, intents[0].Asset)
	assert.Equal(t, core.DirectionIn, intents[0].Direction)
	assert.True(t, intents[0].Amount.Equal(d(300)))
	assert.Equal(t, core.AssetLiquidity, intents[1].Asset)
	assert.Equal(t, core.DirectionOut, intents[1].Direction)
	assert.True(t, intents[1].Amount.Equal(d(100)))

	account, _ := tx.Account("borrower")
	assert.True(t, account.RequestedRate.Equal(d(0.07)))
	tx.Discard()
}

func TestCollateralInvariantAfterOperations(t *testing.T) {
	f := newFixture(t)
	f.lend(t, "lender", 10000)
	require.NoError(t, f.borrow(t, "a", 1000, 1500))
	require.NoError(t, f.borrow(t, "b", 2000, 5000))
	_ = f.borrow(t, "c", 3000, 3000)

	cfg, _ := f.ledger.Config()
	price, err := f.prices.CollateralPrice()
	require.NoError(t, err)
	for _, a := range f.ledger.Accounts() {
		if !a.HasDebt() {
			continue
		}
		ratio, _ := a.CollateralRatio(price)
		assert.True(t, ratio.GreaterThanOrEqual(cfg.Risk.MinCollateralRatio), "%s ratio %s", a.Key, ratio)
	}
	pool := f.pool(t)
	assert.True(t, pool.TotalBorrowed.LessThanOrEqual(pool.TotalDeposited))
}
