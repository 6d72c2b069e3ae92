package ledger

import (
	"context"
	"sort"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrTxClosed = errors.New("ledger transaction closed")

// Tx is a working copy of the ledger. Mutations are made on clones and only
// reach the ledger after Commit has persisted them.
type Tx struct {
	l   *Ledger
	clk clock.Clock
	now int64

	config *core.ProtocolConfig
	pool   *core.LendingPool
	fund   *core.InsuranceFund

	accounts  map[string]*core.Account
	proposals map[uint64]*core.Proposal

	intents  []*core.TransferIntent
	operates []*core.Operate
	onCommit []func()

	closed bool
}

func (tx *Tx) Now() int64 {
	return tx.now
}

func (tx *Tx) Clock() clock.Clock {
	return tx.clk
}

// Config is nil until the protocol has been initialized.
func (tx *Tx) Config() *core.ProtocolConfig {
	return tx.config
}

func (tx *Tx) SetConfig(cfg *core.ProtocolConfig) {
	tx.config = cfg
}

func (tx *Tx) Pool() *core.LendingPool {
	return tx.pool
}

func (tx *Tx) SetPool(pool *core.LendingPool) {
	tx.pool = pool
}

func (tx *Tx) Fund() *core.InsuranceFund {
	return tx.fund
}

func (tx *Tx) SetFund(fund *core.InsuranceFund) {
	tx.fund = fund
}

// Account returns the working copy of an existing account without creating it.
func (tx *Tx) Account(key string) (*core.Account, bool) {
	if a, ok := tx.accounts[key]; ok {
		return a, true
	}
	a, ok := tx.l.Account(key)
	if !ok {
		return nil, false
	}
	tx.accounts[key] = a
	return a, true
}

// Debtors returns the working copies of every account with borrowed
// principal, ordered by key.
func (tx *Tx) Debtors() []*core.Account {
	out := []*core.Account{}
	for _, a := range tx.l.Accounts() {
		if working, ok := tx.accounts[a.Key]; ok {
			a = working
		}
		if a.BorrowedPrincipal.IsPositive() {
			tx.accounts[a.Key] = a
			out = append(out, a)
		}
	}
	for key, a := range tx.accounts {
		if _, ok := tx.l.Account(key); !ok && a.BorrowedPrincipal.IsPositive() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// OpenOrGetAccount returns the working copy of the account, creating a zeroed
// one on first touch.
func (tx *Tx) OpenOrGetAccount(key string) *core.Account {
	if a, ok := tx.Account(key); ok {
		return a
	}
	a := core.NewAccount(tx.clk, key)
	a.LastAccrualTimestamp = tx.now
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.accounts[key] = a
	return a
}

func (tx *Tx) Credit(key string, kind core.BalanceKind, amount decimal.Decimal) error {
	a := tx.OpenOrGetAccount(key)
	if err := a.Credit(kind, amount); err != nil {
		return errors.Wrapf(err, "credit %s %s", kind, key)
	}
	a.Touch(tx.now)
	return nil
}

func (tx *Tx) Debit(key string, kind core.BalanceKind, amount decimal.Decimal) error {
	a := tx.OpenOrGetAccount(key)
	if err := a.Debit(kind, amount); err != nil {
		return errors.Wrapf(err, "debit %s %s", kind, key)
	}
	a.Touch(tx.now)
	return nil
}

func (tx *Tx) Proposal(id uint64) (*core.Proposal, error) {
	if p, ok := tx.proposals[id]; ok {
		return p, nil
	}
	p, ok := tx.l.Proposal(id)
	if !ok {
		return nil, errors.Wrapf(core.ProposalNotFound, "proposal %d", id)
	}
	tx.proposals[id] = p
	return p, nil
}

// Proposals lists every proposal as seen by this transaction.
func (tx *Tx) Proposals() []*core.Proposal {
	out := []*core.Proposal{}
	for _, p := range tx.l.Proposals() {
		if working, ok := tx.proposals[p.Id]; ok {
			p = working
		}
		out = append(out, p)
	}
	for id, p := range tx.proposals {
		if _, ok := tx.l.Proposal(id); !ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

func (tx *Tx) PutProposal(p *core.Proposal) {
	tx.proposals[p.Id] = p
}

func (tx *Tx) NextProposalId() uint64 {
	id := tx.config.NextProposalId
	tx.config.NextProposalId++
	return id
}

func (tx *Tx) Emit(intent *core.TransferIntent) {
	tx.intents = append(tx.intents, intent)
}

func (tx *Tx) Intents() []*core.TransferIntent {
	return tx.intents
}

func (tx *Tx) Record(op *core.Operate) {
	tx.operates = append(tx.operates, op)
}

// OnCommit registers fn to run once the transaction has been persisted and
// applied. It is not called on Discard or on a failed commit.
func (tx *Tx) OnCommit(fn func()) {
	tx.onCommit = append(tx.onCommit, fn)
}

func (tx *Tx) ChangeSet() *core.ChangeSet {
	cs := &core.ChangeSet{
		Config:   tx.config,
		Pool:     tx.pool,
		Fund:     tx.fund,
		Intents:  tx.intents,
		Operates: tx.operates,
	}
	for _, a := range tx.accounts {
		cs.Accounts = append(cs.Accounts, a)
	}
	sort.Slice(cs.Accounts, func(i, j int) bool { return cs.Accounts[i].Key < cs.Accounts[j].Key })
	for _, p := range tx.proposals {
		cs.Proposals = append(cs.Proposals, p)
	}
	sort.Slice(cs.Proposals, func(i, j int) bool { return cs.Proposals[i].Id < cs.Proposals[j].Id })
	return cs
}

// Commit persists the working copies and swaps them into the ledger. On a
// store error the ledger is left untouched.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.closed {
		return ErrTxClosed
	}
	tx.closed = true

	if err := tx.l.store.Commit(ctx, tx.ChangeSet()); err != nil {
		return errors.Wrap(err, "commit ledger transaction")
	}
	tx.l.apply(tx)
	for _, fn := range tx.onCommit {
		fn()
	}
	return nil
}

func (tx *Tx) Discard() {
	tx.closed = true
}
