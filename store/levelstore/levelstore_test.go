package levelstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/store/storetest"
	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.StateStore {
		s, err := Open(filepath.Join(t.TempDir(), "ledger"))
		require.NoError(t, err)
		return s
	})
}

func TestOperateSequenceSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger")
	clk := clock.NewMock()

	s, err := Open(path)
	require.NoError(t, err)
	first := core.NewOperate(clk, "alice", core.ActionLend, core.OperateDetail{Amount: decimal.NewFromInt(1)})
	require.NoError(t, s.Commit(ctx, &core.ChangeSet{Operates: []*core.Operate{first}}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	second := core.NewOperate(clk, "alice", core.ActionWithdraw, core.OperateDetail{Amount: decimal.NewFromInt(1)})
	require.NoError(t, s.Commit(ctx, &core.ChangeSet{Operates: []*core.Operate{second}}))

	ops, err := s.ListOperates(ctx, "alice", 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, second.Id, ops[0].Id)
	assert.Equal(t, first.Id, ops[1].Id)
}
