package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/store/memstore"
	"github.com/DomeLiquid/lendcore/utils"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*memstore.Store
	fail bool
}

func (s *failingStore) Commit(ctx context.Context, changes *core.ChangeSet) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Store.Commit(ctx, changes)
}

func newTestLedger(t *testing.T) (*Ledger, *failingStore, *clock.Mock) {
	t.Helper()
	clk := utils.NewMockClock(time.Unix(1_700_000_000, 0))
	store := &failingStore{Store: memstore.New()}
	l := New(clk, store)

	tx := l.Begin()
	tx.SetConfig(core.NewProtocolConfig(clk, "admin", core.DefaultBootstrap()))
	tx.SetPool(core.NewLendingPool(clk, core.DEFAULT_RESERVE_FACTOR))
	tx.SetFund(core.NewInsuranceFund(clk))
	require.NoError(t, tx.Commit(context.Background()))
	return l, store, clk
}

func TestCommitSwapsWorkingCopies(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	tx := l.Begin()
	require.NoError(t, tx.Credit("alice", core.BalanceDeposit, decimal.NewFromInt(100)))
	tx.Pool().ChangeDeposits(decimal.NewFromInt(100))

	// nothing is visible before commit
	_, ok := l.Account("alice")
	assert.False(t, ok)
	pool, _ := l.Pool()
	assert.True(t, pool.TotalDeposited.IsZero())

	require.NoError(t, tx.Commit(ctx))

	alice, ok := l.Account("alice")
	require.True(t, ok)
	assert.True(t, alice.DepositedBalance.Equal(decimal.NewFromInt(100)))
	pool, _ = l.Pool()
	assert.True(t, pool.TotalDeposited.Equal(decimal.NewFromInt(100)))

	stored, err := store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, stored.DepositedBalance.Equal(decimal.NewFromInt(100)))

	assert.ErrorIs(t, tx.Commit(ctx), ErrTxClosed)
}

func TestFailedCommitLeavesNoTrace(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	store.fail = true
	tx := l.Begin()
	require.NoError(t, tx.Credit("alice", core.BalanceDeposit, decimal.NewFromInt(100)))
	tx.Pool().ChangeDeposits(decimal.NewFromInt(100))
	assert.Error(t, tx.Commit(ctx))

	_, ok := l.Account("alice")
	assert.False(t, ok)
	pool, _ := l.Pool()
	assert.True(t, pool.TotalDeposited.IsZero())
}

func TestDiscard(t *testing.T) {
	l, _, _ := newTestLedger(t)

	tx := l.Begin()
	require.NoError(t, tx.Credit("alice", core.BalanceCollateral, decimal.NewFromInt(5)))
	tx.Discard()

	_, ok := l.Account("alice")
	assert.False(t, ok)
	assert.ErrorIs(t, tx.Commit(context.Background()), ErrTxClosed)
}

func TestOnCommitRunsOnlyAfterSuccessfulCommit(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	calls := 0
	tx := l.Begin()
	tx.OnCommit(func() {
		calls++
		_, ok := l.Account("alice")
		assert.True(t, ok)
	})
	require.NoError(t, tx.Credit("alice", core.BalanceDeposit, decimal.NewFromInt(1)))
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, 1, calls)

	tx = l.Begin()
	tx.OnCommit(func() { calls++ })
	tx.Discard()

	store.fail = true
	tx = l.Begin()
	tx.OnCommit(func() { calls++ })
	assert.Error(t, tx.Commit(ctx))
	assert.Equal(t, 1, calls)
}

func TestDebitInsufficientFunds(t *testing.T) {
	l, _, _ := newTestLedger(t)

	tx := l.Begin()
	err := tx.Debit("alice", core.BalanceDeposit, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, core.InsufficientFunds)

	a, ok := tx.Account("alice")
	require.True(t, ok)
	assert.True(t, a.DepositedBalance.IsZero())
}

func TestOpenOrGetAccountUsesTxTime(t *testing.T) {
	l, _, clk := newTestLedger(t)

	tx := l.Begin()
	clk.Add(time.Hour)
	a := tx.OpenOrGetAccount("bob")
	assert.Equal(t, tx.Now(), a.LastAccrualTimestamp)
	assert.Same(t, a, tx.OpenOrGetAccount("bob"))
}

func TestProposalsAndRestore(t *testing.T) {
	l, store, clk := newTestLedger(t)
	ctx := context.Background()

	tx := l.Begin()
	_, err := tx.Proposal(1)
	assert.ErrorIs(t, err, core.ProposalNotFound)

	id := tx.NextProposalId()
	assert.Equal(t, uint64(1), id)
	change := core.ParamChange{Class: core.ParamClassReserve, ReserveFactor: decimal.NewNullDecimal(decimal.NewFromFloat(0.2))}
	tx.PutProposal(core.NewProposal(id, "admin", change, tx.Now(), 60))
	assert.Len(t, tx.Proposals(), 1)
	require.NoError(t, tx.Commit(ctx))

	restored := New(clk, store)
	require.NoError(t, restored.Restore(ctx))

	p, ok := restored.Proposal(1)
	require.True(t, ok)
	assert.Equal(t, core.ProposalOpen, p.State)
	cfg, ok := restored.Config()
	require.True(t, ok)
	assert.Equal(t, uint64(2), cfg.NextProposalId)
}

func TestRestoreEmptyStore(t *testing.T) {
	l := New(clock.NewMock(), memstore.New())
	require.NoError(t, l.Restore(context.Background()))

	_, ok := l.Config()
	assert.False(t, ok)
	assert.Nil(t, l.Begin().Config())
}
