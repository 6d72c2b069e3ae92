package core

import (
	"context"

	"github.com/pkg/errors"
)

type (
	// StateStore is the durable home of the ledger. Commit applies a change
	// set atomically: either every record in it is written or none is.
	StateStore interface {
		ConfigStore
		PoolStore
		InsuranceFundStore
		AccountStore
		ProposalStore
		IntentStore
		OperateStore

		Commit(ctx context.Context, changes *ChangeSet) error
		Close() error
	}

	ChangeSet struct {
		Config    *ProtocolConfig
		Pool      *LendingPool
		Fund      *InsuranceFund
		Accounts  []*Account
		Proposals []*Proposal
		Intents   []*TransferIntent
		Operates  []*Operate
	}

	// Snapshot is the full ledger state as loaded at startup.
	Snapshot struct {
		Config    *ProtocolConfig
		Pool      *LendingPool
		Fund      *InsuranceFund
		Accounts  []*Account
		Proposals []*Proposal
	}
)

func (c *ChangeSet) IsEmpty() bool {
	return c.Config == nil && c.Pool == nil && c.Fund == nil &&
		len(c.Accounts) == 0 && len(c.Proposals) == 0 && len(c.Intents) == 0 && len(c.Operates) == 0
}

// LoadSnapshot reads every ledger record from the store. A store that was
// never initialized yields an empty snapshot.
func LoadSnapshot(ctx context.Context, store StateStore) (*Snapshot, error) {
	snap := &Snapshot{}

	config, err := store.GetConfig(ctx)
	if errors.Is(err, RecordNotFound) {
		return snap, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	snap.Config = config

	if snap.Pool, err = store.GetPool(ctx); err != nil {
		return nil, errors.Wrap(err, "load pool")
	}
	if snap.Fund, err = store.GetInsuranceFund(ctx); err != nil {
		return nil, errors.Wrap(err, "load insurance fund")
	}
	if snap.Accounts, err = store.ListAccounts(ctx); err != nil {
		return nil, errors.Wrap(err, "load accounts")
	}
	if snap.Proposals, err = store.ListProposals(ctx); err != nil {
		return nil, errors.Wrap(err, "load proposals")
	}
	return snap, nil
}
