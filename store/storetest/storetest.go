// Package storetest holds the behaviour every core.StateStore must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh store returned by open.
func Run(t *testing.T, open func(t *testing.T) core.StateStore) {
	t.Run("empty", func(t *testing.T) { testEmpty(t, open(t)) })
	t.Run("commit and read", func(t *testing.T) { testCommitAndRead(t, open(t)) })
	t.Run("intents", func(t *testing.T) { testIntents(t, open(t)) })
	t.Run("operates", func(t *testing.T) { testOperates(t, open(t)) })
}

func newClock() *clock.Mock {
	return utils.NewMockClock(time.Unix(1_700_000_000, 0))
}

func testEmpty(t *testing.T, s core.StateStore) {
	ctx := context.Background()
	defer s.Close()

	_, err := s.GetConfig(ctx)
	assert.ErrorIs(t, err, core.RecordNotFound)
	_, err = s.GetAccount(ctx, "alice")
	assert.ErrorIs(t, err, core.RecordNotFound)
	_, err = s.GetProposal(ctx, 1)
	assert.ErrorIs(t, err, core.RecordNotFound)

	snap, err := core.LoadSnapshot(ctx, s)
	require.NoError(t, err)
	assert.Nil(t, snap.Config)
}

func testCommitAndRead(t *testing.T, s core.StateStore) {
	ctx := context.Background()
	defer s.Close()
	clk := newClock()

	cfg := core.NewProtocolConfig(clk, "admin", core.DefaultBootstrap())
	pool := core.NewLendingPool(clk, decimal.RequireFromString("0.1"))
	pool.TotalDeposited = decimal.RequireFromString("1000.12345678")
	pool.TotalBorrowed = decimal.RequireFromString("0.3")
	fund := core.NewInsuranceFund(clk)
	fund.Balance = decimal.NewFromInt(25)

	alice := core.NewAccount(clk, "alice")
	alice.DepositedBalance = decimal.RequireFromString("1000.12345678")
	bob := core.NewAccount(clk, "bob")
	bob.BorrowedPrincipal = decimal.RequireFromString("0.3")
	bob.AccruedInterest = decimal.RequireFromString("0.0000001234567891")

	change := core.ParamChange{
		Class:          core.ParamClassInterestRate,
		BaseRate:       decimal.NewNullDecimal(decimal.RequireFromString("0.05")),
		RateMultiplier: decimal.NewNullDecimal(decimal.RequireFromString("0.3")),
	}
	p := core.NewProposal(1, "alice", change, clk.Now().Unix(), 3600)
	require.NoError(t, p.CastVote("alice", true, clk.Now().Unix(), 0))

	require.NoError(t, s.Commit(ctx, &core.ChangeSet{
		Config:    cfg,
		Pool:      pool,
		Fund:      fund,
		Accounts:  []*core.Account{bob, alice},
		Proposals: []*core.Proposal{p},
	}))

	snap, err := core.LoadSnapshot(ctx, s)
	require.NoError(t, err)
	require.NotNil(t, snap.Config)
	assert.Equal(t, "admin", snap.Config.AdminKey)
	assert.True(t, snap.Config.Rates.BaseRate.Equal(cfg.Rates.BaseRate))
	assert.True(t, snap.Config.Risk.MinCollateralRatio.Equal(cfg.Risk.MinCollateralRatio))
	assert.Equal(t, cfg.LiquidityAsset.Symbol, snap.Config.LiquidityAsset.Symbol)
	assert.Equal(t, cfg.Governance, snap.Config.Governance)
	assert.True(t, snap.Pool.TotalDeposited.Equal(pool.TotalDeposited))
	assert.True(t, snap.Pool.TotalBorrowed.Equal(pool.TotalBorrowed))
	assert.True(t, snap.Fund.Balance.Equal(fund.Balance))

	require.Len(t, snap.Accounts, 2)
	assert.Equal(t, "alice", snap.Accounts[0].Key)
	assert.Equal(t, "bob", snap.Accounts[1].Key)
	assert.True(t, snap.Accounts[1].AccruedInterest.Equal(bob.AccruedInterest))
	assert.Equal(t, core.AccountId("bob"), snap.Accounts[1].Id)

	require.Len(t, snap.Proposals, 1)
	got := snap.Proposals[0]
	assert.Equal(t, core.ProposalOpen, got.State)
	assert.True(t, got.HasVoted("alice"))
	assert.Equal(t, uint64(1), got.VotesFor)
	assert.True(t, got.Payload.BaseRate.Decimal.Equal(change.BaseRate.Decimal))
	assert.False(t, got.Payload.ReserveFactor.Valid)

	cfg.GovernanceActive = true
	cfg.Bump(clk.Now().Unix())
	alice.DepositedBalance = decimal.Zero
	require.NoError(t, s.Commit(ctx, &core.ChangeSet{Config: cfg, Accounts: []*core.Account{alice}}))

	stored, err := s.GetConfig(ctx)
	require.NoError(t, err)
	assert.True(t, stored.GovernanceActive)
	assert.Equal(t, uint64(2), stored.Version)

	account, err := s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, account.DepositedBalance.IsZero())
}

func testIntents(t *testing.T, s core.StateStore) {
	ctx := context.Background()
	defer s.Close()
	clk := newClock()

	lend := core.NewTransferIntent(clk, core.ActionLend, "alice", core.AssetLiquidity, core.DirectionIn, decimal.NewFromInt(10))
	clk.Add(time.Second)
	borrow := core.NewTransferIntent(clk, core.ActionBorrow, "bob", core.AssetCollateral, core.DirectionIn, decimal.NewFromInt(15))
	require.NoError(t, s.Commit(ctx, &core.ChangeSet{Intents: []*core.TransferIntent{lend, borrow}}))

	pending, err := s.ListIntents(ctx, core.IntentPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, lend.Id, pending[0].Id)
	assert.Equal(t, core.AssetCollateral, pending[1].Asset)
	assert.True(t, pending[1].Amount.Equal(decimal.NewFromInt(15)))

	require.NoError(t, s.UpdateIntentStatus(ctx, lend.Id, core.IntentFailed, "rejected", clk.Now().Unix()))
	assert.ErrorIs(t, s.UpdateIntentStatus(ctx, uuid.Must(uuid.NewV4()), core.IntentConfirmed, "", 0), core.RecordNotFound)

	failed, err := s.ListIntents(ctx, core.IntentFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "rejected", failed[0].Message)

	all, err := s.ListIntents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testOperates(t *testing.T, s core.StateStore) {
	ctx := context.Background()
	defer s.Close()
	clk := newClock()

	inFavor := true
	ops := []*core.Operate{
		core.NewOperate(clk, "alice", core.ActionLend, core.OperateDetail{Amount: decimal.NewFromInt(10)}),
	}
	clk.Add(time.Second)
	ops = append(ops, core.NewOperate(clk, "bob", core.ActionBorrow, core.OperateDetail{Amount: decimal.NewFromInt(5)}))
	clk.Add(time.Second)
	ops = append(ops, core.NewOperate(clk, "alice", core.ActionVote, core.OperateDetail{ProposalId: 1, InFavor: &inFavor}))
	for _, o := range ops {
		require.NoError(t, s.Commit(ctx, &core.ChangeSet{Operates: []*core.Operate{o}}))
	}

	all, err := s.ListOperates(ctx, "", 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ops[2].Id, all[0].Id)
	require.NotNil(t, all[0].Extra.InFavor)
	assert.True(t, *all[0].Extra.InFavor)

	mine, err := s.ListOperates(ctx, "alice", 0, 0, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	lends, err := s.ListOperates(ctx, "alice", core.ActionLend, 0, 0)
	require.NoError(t, err)
	require.Len(t, lends, 1)
	assert.True(t, lends[0].Extra.Amount.Equal(decimal.NewFromInt(10)))

	older, err := s.ListOperates(ctx, "", 0, ops[2].CreatedAt, 1)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, ops[1].Id, older[0].Id)
}
