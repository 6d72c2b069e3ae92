package protocol

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/ledger"
	"github.com/DomeLiquid/lendcore/metrics"
	"github.com/DomeLiquid/lendcore/store/memstore"
	"github.com/DomeLiquid/lendcore/utils"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCustodian struct {
	fail    error
	batches [][]*core.TransferIntent
}

func (c *recordingCustodian) Transfer(ctx context.Context, intents []*core.TransferIntent) error {
	c.batches = append(c.batches, intents)
	return c.fail
}

func d(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func newController(t *testing.T, opts ...Option) (*Controller, *clock.Mock, *recordingCustodian) {
	t.Helper()
	clk := utils.NewMockClock(time.Unix(1_700_000_000, 0))

	boot := core.DefaultBootstrap()
	boot.Rates.BaseRate = decimal.Zero
	boot.Rates.RateMultiplier = decimal.Zero
	boot.Governance.VotingPeriod = 3600

	custodian := &recordingCustodian{}
	l := ledger.New(clk, memstore.New())
	opts = append([]Option{
		WithBootstrap(boot),
		WithCustodian(custodian),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	}, opts...)
	c := New(clk, core.NopLog(), l, core.NewStaticPriceFeed(core.ONE), opts...)
	return c, clk, custodian
}

func initialized(t *testing.T) (*Controller, *clock.Mock, *recordingCustodian) {
	t.Helper()
	c, clk, custodian := newController(t)
	_, err := c.Initialize(context.Background(), "admin")
	require.NoError(t, err)
	return c, clk, custodian
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newController(t)

	_, err := c.Lend(ctx, "alice", d(10))
	assert.ErrorIs(t, err, core.NotInitialized)
	_, err = c.Initialize(ctx, "  ")
	assert.ErrorIs(t, err, core.Unauthorized)

	r, err := c.Initialize(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", r.Config.AdminKey)
	assert.Equal(t, uint64(1), r.ConfigVersion)

	_, err = c.Initialize(ctx, "admin")
	assert.ErrorIs(t, err, core.AlreadyInitialized)

	m, err := c.Market()
	require.NoError(t, err)
	assert.True(t, m.Pool.TotalDeposited.IsZero())
	assert.True(t, m.Price.Equal(core.ONE))
}

func TestInitializeExpectedAdmin(t *testing.T) {
	c, _, _ := newController(t, WithAdmin("root"))
	_, err := c.Initialize(context.Background(), "mallory")
	assert.ErrorIs(t, err, core.Unauthorized)

	r, err := c.Initialize(context.Background(), "root")
	require.NoError(t, err)
	assert.True(t, r.Config.IsAdmin("root"))
}

func TestLendBorrowRepayFlow(t *testing.T) {
	ctx := context.Background()
	c, _, custodian := initialized(t)

	r, err := c.Lend(ctx, "alice", d(1000))
	require.NoError(t, err)
	assert.True(t, r.Account.DepositedBalance.Equal(d(1000)))
	require.Len(t, r.Intents, 1)
	assert.Equal(t, core.DirectionIn, r.Intents[0].Direction)

	r, err = c.Borrow(ctx, "bob", d(100), d(150), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, r.Account.BorrowedPrincipal.Equal(d(100)))
	assert.Len(t, r.Intents, 2)

	_, err = c.Repay(ctx, "bob", d(101))
	assert.ErrorIs(t, err, core.OverpaymentRejected)

	r, err = c.Repay(ctx, "bob", d(100))
	require.NoError(t, err)
	assert.True(t, r.PrincipalPaid.Equal(d(100)))
	assert.False(t, r.Account.HasDebt())

	_, err = c.WithdrawCollateral(ctx, "bob", d(150))
	require.NoError(t, err)

	m, err := c.Market()
	require.NoError(t, err)
	assert.True(t, m.Pool.TotalBorrowed.IsZero())
	assert.True(t, m.Pool.TotalCollateral.IsZero())
	assert.True(t, m.Pool.TotalDeposited.Equal(d(1000)))

	assert.Len(t, custodian.batches, 4)
	confirmed, err := c.Intents(ctx, core.IntentConfirmed)
	require.NoError(t, err)
	assert.Len(t, confirmed, 5)
}

func TestAmountValidationByAsset(t *testing.T) {
	ctx := context.Background()
	c, _, _ := initialized(t)

	for _, amount := range []decimal.Decimal{decimal.Zero, d(-1), decimal.RequireFromString("0.000000001")} {
		_, err := c.Lend(ctx, "alice", amount)
		assert.ErrorIs(t, err, core.InvalidAmount, amount.String())
	}
}

func TestFailedOperationLeavesNoAudit(t *testing.T) {
	ctx := context.Background()
	c, _, custodian := initialized(t)

	_, err := c.Withdraw(ctx, "alice", d(1))
	assert.ErrorIs(t, err, core.InsufficientFunds)
	_, err = c.Borrow(ctx, "bob", d(10), d(100), decimal.Zero)
	assert.ErrorIs(t, err, core.InsufficientLiquidity)

	ops, err := c.Operates(ctx, "", 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, core.ActionInitialize, ops[0].Op)
	assert.Empty(t, custodian.batches)
	assert.Empty(t, c.Accounts())
}

func TestCustodianFailureMarksIntents(t *testing.T) {
	ctx := context.Background()
	c, _, custodian := initialized(t)
	custodian.fail = errors.New("custody offline")

	_, err := c.Lend(ctx, "alice", d(10))
	require.NoError(t, err)

	failed, err := c.Intents(ctx, core.IntentFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "custody offline", failed[0].Message)

	pos, err := c.Position("alice")
	require.NoError(t, err)
	assert.True(t, pos.Account.DepositedBalance.Equal(d(10)))
}

func TestAdminOperations(t *testing.T) {
	ctx := context.Background()
	c, _, _ := initialized(t)

	_, err := c.UpdateInterestRate(ctx, "alice", d(0.05), d(0.1))
	assert.ErrorIs(t, err, core.Unauthorized)
	_, err = c.SetCollateralPrice(ctx, "alice", d(2))
	assert.ErrorIs(t, err, core.Unauthorized)
	_, err = c.DepositToInsuranceFund(ctx, "alice", d(5))
	assert.ErrorIs(t, err, core.Unauthorized)

	r, err := c.UpdateInterestRate(ctx, "admin", d(0.05), d(0.1))
	require.NoError(t, err)
	assert.True(t, r.Config.Rates.BaseRate.Equal(d(0.05)))
	assert.Equal(t, uint64(2), r.ConfigVersion)

	_, err = c.SetCollateralPrice(ctx, "admin", decimal.Zero)
	assert.ErrorIs(t, err, core.InvalidParams)
	_, err = c.SetCollateralPrice(ctx, "admin", d(2))
	require.NoError(t, err)
	price, err := c.Price()
	require.NoError(t, err)
	assert.True(t, price.Equal(d(2)))

	r, err = c.DepositToInsuranceFund(ctx, "admin", d(50))
	require.NoError(t, err)
	assert.True(t, r.Fund.Balance.Equal(d(50)))

	_, err = c.LaunchGovernance(ctx, "admin")
	require.NoError(t, err)
	_, err = c.UpdateInterestRate(ctx, "admin", d(0.01), d(0.1))
	assert.ErrorIs(t, err, core.GovernanceRequired)
}

func TestAdminOperationsBeforeInitialize(t *testing.T) {
	c, _, _ := newController(t)
	_, err := c.UpdateInterestRate(context.Background(), "admin", d(0.05), d(0.1))
	assert.ErrorIs(t, err, core.NotInitialized)
	_, err = c.Position("alice")
	assert.ErrorIs(t, err, core.NotInitialized)
}

func TestLiquidationThroughController(t *testing.T) {
	ctx := context.Background()
	c, _, _ := initialized(t)

	_, err := c.Lend(ctx, "alice", d(1000))
	require.NoError(t, err)
	_, err = c.Borrow(ctx, "bob", d(100), d(150), decimal.Zero)
	require.NoError(t, err)

	_, err = c.Liquidate(ctx, "carol", "bob", d(150), d(10))
	assert.ErrorIs(t, err, core.PositionHealthy)

	_, err = c.SetCollateralPrice(ctx, "admin", d(0.8))
	require.NoError(t, err)

	pos, err := c.Position("bob")
	require.NoError(t, err)
	assert.True(t, pos.Liquidatable)
	assert.True(t, pos.CollateralRatio.Equal(d(1.2)))

	_, err = c.Liquidate(ctx, "bob", "bob", d(150), d(10))
	assert.ErrorIs(t, err, core.Unauthorized)

	r, err := c.Liquidate(ctx, "carol", "bob", d(150), d(10))
	require.NoError(t, err)
	require.NotNil(t, r.Liquidation)
	assert.True(t, r.Liquidation.DebtCleared().Equal(d(100)))
	assert.False(t, r.Account.HasDebt())

	ops, err := c.Operates(ctx, "carol", core.ActionLiquidate, 0, 0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "bob", ops[0].Extra.Target)
	require.NotNil(t, ops[0].Extra.Liquidation)
}

func TestGovernanceThroughController(t *testing.T) {
	ctx := context.Background()
	c, clk, _ := initialized(t)

	_, err := c.Lend(ctx, "alice", d(10))
	require.NoError(t, err)
	_, err = c.LaunchGovernance(ctx, "admin")
	require.NoError(t, err)

	change := core.ParamChange{
		Class:          core.ParamClassInterestRate,
		BaseRate:       decimal.NewNullDecimal(d(0.04)),
		RateMultiplier: decimal.NewNullDecimal(d(0.25)),
	}
	_, err = c.Propose(ctx, "mallory", change)
	assert.ErrorIs(t, err, core.Unauthorized)

	r, err := c.Propose(ctx, "alice", change)
	require.NoError(t, err)
	id := r.Proposal.Id

	_, err = c.Vote(ctx, "alice", id, true)
	require.NoError(t, err)
	_, err = c.Finalize(ctx, "mallory", id)
	assert.ErrorIs(t, err, core.VotingInProgress)

	clk.Add(time.Hour)
	r, err = c.Finalize(ctx, "mallory", id)
	require.NoError(t, err)
	assert.Equal(t, core.ProposalPassed, r.Proposal.State)

	r, err = c.Execute(ctx, "mallory", id)
	require.NoError(t, err)
	assert.Equal(t, core.ProposalExecuted, r.Proposal.State)
	assert.True(t, r.Config.Rates.BaseRate.Equal(d(0.04)))

	cfg, err := c.Config()
	require.NoError(t, err)
	assert.True(t, cfg.Rates.RateMultiplier.Equal(d(0.25)))

	p, err := c.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, core.ProposalExecuted, p.State)
	_, err = c.Proposal(42)
	assert.ErrorIs(t, err, core.ProposalNotFound)
}

func TestPositionAccruesWithoutCommitting(t *testing.T) {
	ctx := context.Background()
	c, clk, _ := initialized(t)

	_, err := c.UpdateInterestRate(ctx, "admin", d(0.1), decimal.Zero)
	require.NoError(t, err)
	_, err = c.Lend(ctx, "alice", d(1000))
	require.NoError(t, err)
	_, err = c.Borrow(ctx, "bob", d(100), d(300), decimal.Zero)
	require.NoError(t, err)

	clk.Add(time.Duration(core.SECONDS_PER_YEAR) * time.Second)

	pos, err := c.Position("bob")
	require.NoError(t, err)
	assert.True(t, pos.Account.AccruedInterest.IsPositive())
	assert.True(t, pos.Owed.GreaterThan(d(100)))

	stored := c.Accounts()
	require.Len(t, stored, 2)
	for _, a := range stored {
		assert.True(t, a.AccruedInterest.IsZero(), a.Key)
	}
}

func TestRateUpdateDoesNotRepricePastDebt(t *testing.T) {
	ctx := context.Background()
	c, clk, _ := initialized(t)

	_, err := c.UpdateInterestRate(ctx, "admin", d(0.02), decimal.Zero)
	require.NoError(t, err)
	_, err = c.Lend(ctx, "alice", d(2000))
	require.NoError(t, err)
	_, err = c.Borrow(ctx, "bob", d(1000), d(2000), decimal.Zero)
	require.NoError(t, err)

	clk.Add(time.Duration(core.SECONDS_PER_YEAR) * time.Second)
	_, err = c.UpdateInterestRate(ctx, "admin", d(10), decimal.Zero)
	require.NoError(t, err)

	pos, err := c.Position("bob")
	require.NoError(t, err)
	assert.True(t, pos.Account.AccruedInterest.Equal(d(20)), "accrued %s", pos.Account.AccruedInterest)

	clk.Add(time.Hour)
	pos, err = c.Position("bob")
	require.NoError(t, err)
	want := d(20).Add(core.CalcInterestPaymentForPeriod(d(10), 3600, d(1000)))
	assert.True(t, pos.Account.AccruedInterest.Equal(want), "accrued %s, want %s", pos.Account.AccruedInterest, want)
}

func TestConcurrentPriceUpdatesMatchAuditLog(t *testing.T) {
	ctx := context.Background()
	c, _, _ := initialized(t)

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		for i := 1; i <= 8; i++ {
			wg.Add(1)
			go func(price int64) {
				defer wg.Done()
				_, err := c.SetCollateralPrice(ctx, "admin", decimal.NewFromInt(price))
				assert.NoError(t, err)
			}(int64(i))
		}
		wg.Wait()

		ops, err := c.Operates(ctx, "", core.ActionSetPrice, 0, 1)
		require.NoError(t, err)
		require.Len(t, ops, 1)
		price, err := c.Price()
		require.NoError(t, err)
		assert.True(t, price.Equal(ops[0].Extra.Amount), "feed %s, audit %s", price, ops[0].Extra.Amount)
	}
}

func TestViewsDuringConcurrentLending(t *testing.T) {
	ctx := context.Background()
	c, _, _ := initialized(t)
	_, err := c.Lend(ctx, "alice", d(1))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, err := c.Lend(ctx, "alice", d(1))
			assert.NoError(t, err)
		}
	}()
	for i := 0; i < 50; i++ {
		m, err := c.Market()
		require.NoError(t, err)
		require.NotNil(t, m.Fund)
		assert.True(t, m.Pool.TotalDeposited.IsInteger())

		pos, err := c.Position("alice")
		require.NoError(t, err)
		assert.True(t, pos.Account.DepositedBalance.GreaterThanOrEqual(d(1)))
	}
	wg.Wait()

	m, err := c.Market()
	require.NoError(t, err)
	pos, err := c.Position("alice")
	require.NoError(t, err)
	assert.True(t, m.Pool.TotalDeposited.Equal(pos.Account.DepositedBalance))
	assert.True(t, m.Pool.TotalDeposited.Equal(d(51)))
}

func TestRestoreReplaysState(t *testing.T) {
	ctx := context.Background()
	clk := utils.NewMockClock(time.Unix(1_700_000_000, 0))
	store := memstore.New()

	c := New(clk, core.NopLog(), ledger.New(clk, store), core.NewStaticPriceFeed(core.ONE))
	_, err := c.Initialize(ctx, "admin")
	require.NoError(t, err)
	_, err = c.Lend(ctx, "alice", d(40))
	require.NoError(t, err)
	_, err = c.SetCollateralPrice(ctx, "admin", d(3))
	require.NoError(t, err)

	restored := New(clk, core.NopLog(), ledger.New(clk, store), core.NewStaticPriceFeed(core.ONE))
	require.NoError(t, restored.Restore(ctx))

	price, err := restored.Price()
	require.NoError(t, err)
	assert.True(t, price.Equal(d(3)))

	pos, err := restored.Position("alice")
	require.NoError(t, err)
	assert.True(t, pos.Account.DepositedBalance.Equal(d(40)))

	_, err = restored.Initialize(ctx, "admin")
	assert.ErrorIs(t, err, core.AlreadyInitialized)
}
