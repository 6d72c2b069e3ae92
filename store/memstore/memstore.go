// Package memstore is an in-process core.StateStore for tests and ephemeral
// deployments.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/gofrs/uuid"
)

type Store struct {
	mu sync.RWMutex

	config    *core.ProtocolConfig
	pool      *core.LendingPool
	fund      *core.InsuranceFund
	accounts  map[string]*core.Account
	proposals map[uint64]*core.Proposal
	intents   map[uuid.UUID]*core.TransferIntent
	operates  []*core.Operate
}

var _ core.StateStore = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:  map[string]*core.Account{},
		proposals: map[uint64]*core.Proposal{},
		intents:   map[uuid.UUID]*core.TransferIntent{},
	}
}

func (s *Store) GetConfig(ctx context.Context) (*core.ProtocolConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return nil, core.RecordNotFound
	}
	return s.config.Clone(), nil
}

func (s *Store) GetPool(ctx context.Context) (*core.LendingPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return nil, core.RecordNotFound
	}
	return s.pool.Clone(), nil
}

func (s *Store) GetInsuranceFund(ctx context.Context) (*core.InsuranceFund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fund == nil {
		return nil, core.RecordNotFound
	}
	return s.fund.Clone(), nil
}

func (s *Store) GetAccount(ctx context.Context, key string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[key]
	if !ok {
		return nil, core.RecordNotFound
	}
	return a.Clone(), nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) GetProposal(ctx context.Context, id uint64) (*core.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, core.RecordNotFound
	}
	return p.Clone(), nil
}

func (s *Store) ListProposals(ctx context.Context) ([]*core.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (s *Store) ListIntents(ctx context.Context, status core.IntentStatus) ([]*core.TransferIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*core.TransferIntent{}
	for _, i := range s.intents {
		if status == "" || i.Status == status {
			c := *i
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt < out[b].CreatedAt })
	return out, nil
}

func (s *Store) UpdateIntentStatus(ctx context.Context, id uuid.UUID, status core.IntentStatus, message string, updatedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.intents[id]
	if !ok {
		return core.RecordNotFound
	}
	i.Status = status
	i.Message = message
	i.UpdatedAt = updatedAt
	return nil
}

func (s *Store) ListOperates(ctx context.Context, actor string, op core.ActionType, createdBeforeAt, limit int64) ([]*core.Operate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*core.Operate{}
	for i := len(s.operates) - 1; i >= 0; i-- {
		o := s.operates[i]
		if actor != "" && o.Actor != actor {
			continue
		}
		if op != 0 && o.Op != op {
			continue
		}
		if createdBeforeAt > 0 && o.CreatedAt >= createdBeforeAt {
			continue
		}
		c := *o
		out = append(out, &c)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Commit(ctx context.Context, changes *core.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if changes.Config != nil {
		s.config = changes.Config.Clone()
	}
	if changes.Pool != nil {
		s.pool = changes.Pool.Clone()
	}
	if changes.Fund != nil {
		s.fund = changes.Fund.Clone()
	}
	for _, a := range changes.Accounts {
		s.accounts[a.Key] = a.Clone()
	}
	for _, p := range changes.Proposals {
		s.proposals[p.Id] = p.Clone()
	}
	for _, i := range changes.Intents {
		c := *i
		s.intents[i.Id] = &c
	}
	for _, o := range changes.Operates {
		c := *o
		s.operates = append(s.operates, &c)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
