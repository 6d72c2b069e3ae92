package engine

import (
	"context"
	"testing"
	"time"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/ledger"
	"github.com/DomeLiquid/lendcore/store/memstore"
	"github.com/DomeLiquid/lendcore/utils"
	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	clk    *clock.Mock
	ledger *ledger.Ledger
	prices *core.StaticPriceFeed

	loans        *Loans
	insurance    *Insurance
	liquidations *Liquidations
	governance   *Governance
}

func d(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// newFixture builds an initialized ledger at price 1 with zero interest so
// balances stay exact unless a test sets rates.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := utils.NewMockClock(time.Unix(1_700_000_000, 0))

	boot := core.DefaultBootstrap()
	boot.Rates.BaseRate = decimal.Zero
	boot.Rates.RateMultiplier = decimal.Zero
	boot.Governance.VotingPeriod = 3600

	l := ledger.New(clk, memstore.New())
	tx := l.Begin()
	tx.SetConfig(core.NewProtocolConfig(clk, "admin", boot))
	tx.SetPool(core.NewLendingPool(clk, boot.ReserveFactor))
	tx.SetFund(core.NewInsuranceFund(clk))
	require.NoError(t, tx.Commit(context.Background()))

	log := core.NopLog()
	prices := core.NewStaticPriceFeed(core.ONE)
	insurance := NewInsurance(log)
	return &fixture{
		clk:          clk,
		ledger:       l,
		prices:       prices,
		loans:        NewLoans(log, prices),
		insurance:    insurance,
		liquidations: NewLiquidations(log, prices, insurance),
		governance:   NewGovernance(log),
	}
}

// run executes fn in a transaction and commits it only on success.
func (f *fixture) run(t *testing.T, fn func(tx *ledger.Tx) error) error {
	t.Helper()
	tx := f.ledger.Begin()
	if err := fn(tx); err != nil {
		tx.Discard()
		return err
	}
	require.NoError(t, tx.Commit(context.Background()))
	return nil
}

func (f *fixture) lend(t *testing.T, lender string, amount float64) {
	t.Helper()
	require.NoError(t, f.run(t, func(tx *ledger.Tx) error {
		_, err := f.loans.Lend(tx, lender, d(amount))
		return err
	}))
}

func (f *fixture) borrow(t *testing.T, borrower string, amount, collateral float64) error {
	t.Helper()
	return f.run(t, func(tx *ledger.Tx) error {
		_, err := f.loans.Borrow(tx, borrower, d(amount), d(collateral), decimal.Zero)
		return err
	})
}

func (f *fixture) account(t *testing.T, key string) *core.Account {
	t.Helper()
	a, ok := f.ledger.Account(key)
	require.True(t, ok, "account %s", key)
	return a
}

func (f *fixture) pool(t *testing.T) *core.LendingPool {
	t.Helper()
	p, ok := f.ledger.Pool()
	require.True(t, ok)
	return p
}

func (f *fixture) fund(t *testing.T) *core.InsuranceFund {
	t.Helper()
	fund, ok := f.ledger.Fund()
	require.True(t, ok)
	return fund
}
