// Package ledger keeps the authoritative in-memory copy of every account,
// the pool, the insurance fund and the proposals, and applies changes to
// them through working-copy transactions that are persisted before they
// become visible.
package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
)

type Ledger struct {
	mu    sync.RWMutex
	clk   clock.Clock
	store core.StateStore

	config    *core.ProtocolConfig
	pool      *core.LendingPool
	fund      *core.InsuranceFund
	accounts  map[string]*core.Account
	proposals map[uint64]*core.Proposal
}

func New(clk clock.Clock, store core.StateStore) *Ledger {
	return &Ledger{
		clk:       clk,
		store:     store,
		accounts:  map[string]*core.Account{},
		proposals: map[uint64]*core.Proposal{},
	}
}

// Restore replaces the in-memory state with what the store holds.
func (l *Ledger) Restore(ctx context.Context) error {
	snap, err := core.LoadSnapshot(ctx, l.store)
	if err != nil {
		return errors.Wrap(err, "restore ledger")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.config = snap.Config
	l.pool = snap.Pool
	l.fund = snap.Fund
	l.accounts = make(map[string]*core.Account, len(snap.Accounts))
	for _, a := range snap.Accounts {
		l.accounts[a.Key] = a
	}
	l.proposals = make(map[uint64]*core.Proposal, len(snap.Proposals))
	for _, p := range snap.Proposals {
		l.proposals[p.Id] = p
	}
	return nil
}

func (l *Ledger) Store() core.StateStore {
	return l.store
}

// Begin opens a transaction stamped with the current clock time.
func (l *Ledger) Begin() *Tx {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tx := &Tx{
		l:         l,
		clk:       l.clk,
		now:       l.clk.Now().Unix(),
		accounts:  map[string]*core.Account{},
		proposals: map[uint64]*core.Proposal{},
	}
	if l.config != nil {
		tx.config = l.config.Clone()
	}
	if l.pool != nil {
		tx.pool = l.pool.Clone()
	}
	if l.fund != nil {
		tx.fund = l.fund.Clone()
	}
	return tx
}

func (l *Ledger) Config() (*core.ProtocolConfig, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.config == nil {
		return nil, false
	}
	return l.config.Clone(), true
}

func (l *Ledger) Pool() (*core.LendingPool, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.pool == nil {
		return nil, false
	}
	return l.pool.Clone(), true
}

func (l *Ledger) Fund() (*core.InsuranceFund, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.fund == nil {
		return nil, false
	}
	return l.fund.Clone(), true
}

func (l *Ledger) Account(key string) (*core.Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[key]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

func (l *Ledger) Accounts() []*core.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*core.Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (l *Ledger) Proposal(id uint64) (*core.Proposal, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.proposals[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

func (l *Ledger) Proposals() []*core.Proposal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*core.Proposal, 0, len(l.proposals))
	for _, p := range l.proposals {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

func (l *Ledger) apply(tx *Tx) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tx.config != nil {
		l.config = tx.config
	}
	if tx.pool != nil {
		l.pool = tx.pool
	}
	if tx.fund != nil {
		l.fund = tx.fund
	}
	for k, a := range tx.accounts {
		l.accounts[k] = a
	}
	for id, p := range tx.proposals {
		l.proposals[id] = p
	}
}
