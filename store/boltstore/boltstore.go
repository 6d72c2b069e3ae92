// Package boltstore keeps the ledger in a single bbolt file. Every commit is
// one bolt write transaction.
package boltstore

import (
	"bytes"
	"context"
	"time"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/store/kv"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketState       = []byte("state")
	bucketAccounts    = []byte("accounts")
	bucketProposals   = []byte("proposals")
	bucketIntents     = []byte("intents")
	bucketIntentIndex = []byte("intent_index")
	bucketOperates    = []byte("operates")
)

type Store struct {
	db *bolt.DB
}

var _ core.StateStore = (*Store)(nil)

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketState, bucketAccounts, bucketProposals, bucketIntents, bucketIntentIndex, bucketOperates} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) get(bucket, key []byte, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucket).Get(key)
		if raw == nil {
			return core.RecordNotFound
		}
		return kv.Decode(raw, v)
	})
}

func (s *Store) GetConfig(ctx context.Context) (*core.ProtocolConfig, error) {
	var cfg core.ProtocolConfig
	if err := s.get(bucketState, kv.ConfigKey, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) GetPool(ctx context.Context) (*core.LendingPool, error) {
	var pool core.LendingPool
	if err := s.get(bucketState, kv.PoolKey, &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *Store) GetInsuranceFund(ctx context.Context) (*core.InsuranceFund, error) {
	var fund core.InsuranceFund
	if err := s.get(bucketState, kv.FundKey, &fund); err != nil {
		return nil, err
	}
	return &fund, nil
}

func (s *Store) GetAccount(ctx context.Context, key string) (*core.Account, error) {
	var account core.Account
	if err := s.get(bucketAccounts, []byte(key), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*core.Account, error) {
	out := []*core.Account{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(_, v []byte) error {
			var a core.Account
			if err := kv.Decode(v, &a); err != nil {
				return err
			}
			out = append(out, &a)
			return nil
		})
	})
	return out, err
}

func (s *Store) GetProposal(ctx context.Context, id uint64) (*core.Proposal, error) {
	var p *core.Proposal
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketProposals).Get(kv.Uint64Key(id))
		if raw == nil {
			return core.RecordNotFound
		}
		var err error
		p, err = kv.DecodeProposal(raw)
		return err
	})
	return p, err
}

func (s *Store) ListProposals(ctx context.Context) ([]*core.Proposal, error) {
	out := []*core.Proposal{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProposals).ForEach(func(_, v []byte) error {
			p, err := kv.DecodeProposal(v)
			if err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	return out, err
}

func (s *Store) ListIntents(ctx context.Context, status core.IntentStatus) ([]*core.TransferIntent, error) {
	out := []*core.TransferIntent{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIntents).ForEach(func(_, v []byte) error {
			var i core.TransferIntent
			if err := kv.Decode(v, &i); err != nil {
				return err
			}
			if status == "" || i.Status == status {
				out = append(out, &i)
			}
			return nil
		})
	})
	return out, err
}

func (s *Store) UpdateIntentStatus(ctx context.Context, id uuid.UUID, status core.IntentStatus, message string, updatedAt int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketIntentIndex).Get(id.Bytes())
		if key == nil {
			return core.RecordNotFound
		}
		intents := tx.Bucket(bucketIntents)
		var i core.TransferIntent
		if err := kv.Decode(intents.Get(key), &i); err != nil {
			return err
		}
		i.Status, i.Message, i.UpdatedAt = status, message, updatedAt
		data, err := kv.Encode(&i)
		if err != nil {
			return err
		}
		return intents.Put(bytes.Clone(key), data)
	})
}

func (s *Store) ListOperates(ctx context.Context, actor string, op core.ActionType, createdBeforeAt, limit int64) ([]*core.Operate, error) {
	out := []*core.Operate{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketOperates).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var o core.Operate
			if err := kv.Decode(v, &o); err != nil {
				return err
			}
			if !kv.MatchOperate(&o, actor, op, createdBeforeAt) {
				continue
			}
			out = append(out, &o)
			if limit > 0 && int64(len(out)) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func put(b *bolt.Bucket, key []byte, v any) error {
	data, err := kv.Encode(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func (s *Store) Commit(ctx context.Context, changes *core.ChangeSet) error {
	if changes.IsEmpty() {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		state := tx.Bucket(bucketState)
		if changes.Config != nil {
			if err := put(state, kv.ConfigKey, changes.Config); err != nil {
				return errors.Wrap(err, "put config")
			}
		}
		if changes.Pool != nil {
			if err := put(state, kv.PoolKey, changes.Pool); err != nil {
				return errors.Wrap(err, "put pool")
			}
		}
		if changes.Fund != nil {
			if err := put(state, kv.FundKey, changes.Fund); err != nil {
				return errors.Wrap(err, "put insurance fund")
			}
		}

		accounts := tx.Bucket(bucketAccounts)
		for _, a := range changes.Accounts {
			if err := put(accounts, []byte(a.Key), a); err != nil {
				return errors.Wrapf(err, "put account %s", a.Key)
			}
		}
		proposals := tx.Bucket(bucketProposals)
		for _, p := range changes.Proposals {
			if err := put(proposals, kv.Uint64Key(p.Id), p); err != nil {
				return errors.Wrapf(err, "put proposal %d", p.Id)
			}
		}

		intents, index := tx.Bucket(bucketIntents), tx.Bucket(bucketIntentIndex)
		for _, i := range changes.Intents {
			key := kv.IntentKey(i.CreatedAt, i.Id)
			if err := put(intents, key, i); err != nil {
				return errors.Wrapf(err, "put intent %s", i.Id)
			}
			if err := index.Put(i.Id.Bytes(), key); err != nil {
				return err
			}
		}

		operates := tx.Bucket(bucketOperates)
		for _, o := range changes.Operates {
			seq, err := operates.NextSequence()
			if err != nil {
				return err
			}
			if err := put(operates, kv.Uint64Key(seq), o); err != nil {
				return errors.Wrapf(err, "put operate %s", o.Id)
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
