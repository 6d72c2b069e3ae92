// Package levelstore keeps the ledger in goleveldb. Records live under short
// key prefixes and a commit is written as one batch.
package levelstore

import (
	"context"
	"sync"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/store/kv"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	prefixState       = []byte("s/")
	prefixAccount     = []byte("a/")
	prefixProposal    = []byte("p/")
	prefixIntent      = []byte("i/")
	prefixIntentIndex = []byte("x/")
	prefixOperate     = []byte("o/")

	operateSeqKey = []byte("m/operate_seq")
)

func key(prefix []byte, parts ...[]byte) []byte {
	k := append([]byte{}, prefix...)
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}

type Store struct {
	// mu serialises commits so the operate sequence stays monotonic.
	mu sync.Mutex
	db *leveldb.DB
}

var _ core.StateStore = (*Store)(nil)

func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb %s", path)
	}
	return &Store{db: db}, nil
}

func (s *Store) get(k []byte, v any) error {
	raw, err := s.db.Get(k, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return core.RecordNotFound
	}
	if err != nil {
		return err
	}
	return kv.Decode(raw, v)
}

func (s *Store) GetConfig(ctx context.Context) (*core.ProtocolConfig, error) {
	var cfg core.ProtocolConfig
	if err := s.get(key(prefixState, kv.ConfigKey), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) GetPool(ctx context.Context) (*core.LendingPool, error) {
	var pool core.LendingPool
	if err := s.get(key(prefixState, kv.PoolKey), &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *Store) GetInsuranceFund(ctx context.Context) (*core.InsuranceFund, error) {
	var fund core.InsuranceFund
	if err := s.get(key(prefixState, kv.FundKey), &fund); err != nil {
		return nil, err
	}
	return &fund, nil
}

func (s *Store) GetAccount(ctx context.Context, accountKey string) (*core.Account, error) {
	var account core.Account
	if err := s.get(key(prefixAccount, []byte(accountKey)), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// scan decodes every value under prefix in key order.
func (s *Store) scan(prefix []byte, fn func(v []byte) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *Store) ListAccounts(ctx context.Context) ([]*core.Account, error) {
	out := []*core.Account{}
	err := s.scan(prefixAccount, func(v []byte) error {
		var a core.Account
		if err := kv.Decode(v, &a); err != nil {
			return err
		}
		out = append(out, &a)
		return nil
	})
	return out, err
}

func (s *Store) GetProposal(ctx context.Context, id uint64) (*core.Proposal, error) {
	raw, err := s.db.Get(key(prefixProposal, kv.Uint64Key(id)), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, core.RecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return kv.DecodeProposal(raw)
}

func (s *Store) ListProposals(ctx context.Context) ([]*core.Proposal, error) {
	out := []*core.Proposal{}
	err := s.scan(prefixProposal, func(v []byte) error {
		p, err := kv.DecodeProposal(v)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func (s *Store) ListIntents(ctx context.Context, status core.IntentStatus) ([]*core.TransferIntent, error) {
	out := []*core.TransferIntent{}
	err := s.scan(prefixIntent, func(v []byte) error {
		var i core.TransferIntent
		if err := kv.Decode(v, &i); err != nil {
			return err
		}
		if status == "" || i.Status == status {
			out = append(out, &i)
		}
		return nil
	})
	return out, err
}

func (s *Store) UpdateIntentStatus(ctx context.Context, id uuid.UUID, status core.IntentStatus, message string, updatedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intentKey, err := s.db.Get(key(prefixIntentIndex, id.Bytes()), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return core.RecordNotFound
	}
	if err != nil {
		return err
	}
	var i core.TransferIntent
	if err := s.get(intentKey, &i); err != nil {
		return err
	}
	i.Status, i.Message, i.UpdatedAt = status, message, updatedAt
	data, err := kv.Encode(&i)
	if err != nil {
		return err
	}
	return s.db.Put(intentKey, data, nil)
}

func (s *Store) ListOperates(ctx context.Context, actor string, op core.ActionType, createdBeforeAt, limit int64) ([]*core.Operate, error) {
	out := []*core.Operate{}
	iter := s.db.NewIterator(util.BytesPrefix(prefixOperate), nil)
	defer iter.Release()
	for ok := iter.Last(); ok; ok = iter.Prev() {
		var o core.Operate
		if err := kv.Decode(iter.Value(), &o); err != nil {
			return nil, err
		}
		if !kv.MatchOperate(&o, actor, op, createdBeforeAt) {
			continue
		}
		out = append(out, &o)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, iter.Error()
}

func (s *Store) nextOperateSeq() (uint64, error) {
	raw, err := s.db.Get(operateSeqKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return kv.ParseUint64Key(raw), nil
}

func putJSON(batch *leveldb.Batch, k []byte, v any) error {
	data, err := kv.Encode(v)
	if err != nil {
		return err
	}
	batch.Put(k, data)
	return nil
}

func (s *Store) Commit(ctx context.Context, changes *core.ChangeSet) error {
	if changes.IsEmpty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	if changes.Config != nil {
		if err := putJSON(batch, key(prefixState, kv.ConfigKey), changes.Config); err != nil {
			return errors.Wrap(err, "encode config")
		}
	}
	if changes.Pool != nil {
		if err := putJSON(batch, key(prefixState, kv.PoolKey), changes.Pool); err != nil {
			return errors.Wrap(err, "encode pool")
		}
	}
	if changes.Fund != nil {
		if err := putJSON(batch, key(prefixState, kv.FundKey), changes.Fund); err != nil {
			return errors.Wrap(err, "encode insurance fund")
		}
	}
	for _, a := range changes.Accounts {
		if err := putJSON(batch, key(prefixAccount, []byte(a.Key)), a); err != nil {
			return errors.Wrapf(err, "encode account %s", a.Key)
		}
	}
	for _, p := range changes.Proposals {
		if err := putJSON(batch, key(prefixProposal, kv.Uint64Key(p.Id)), p); err != nil {
			return errors.Wrapf(err, "encode proposal %d", p.Id)
		}
	}
	for _, i := range changes.Intents {
		intentKey := key(prefixIntent, kv.IntentKey(i.CreatedAt, i.Id))
		if err := putJSON(batch, intentKey, i); err != nil {
			return errors.Wrapf(err, "encode intent %s", i.Id)
		}
		batch.Put(key(prefixIntentIndex, i.Id.Bytes()), intentKey)
	}

	if len(changes.Operates) > 0 {
		seq, err := s.nextOperateSeq()
		if err != nil {
			return err
		}
		for _, o := range changes.Operates {
			seq++
			if err := putJSON(batch, key(prefixOperate, kv.Uint64Key(seq)), o); err != nil {
				return errors.Wrapf(err, "encode operate %s", o.Id)
			}
		}
		batch.Put(operateSeqKey, kv.Uint64Key(seq))
	}

	return s.db.Write(batch, nil)
}

func (s *Store) Close() error {
	return s.db.Close()
}
