// Package kv holds the key layout and record encoding shared by the
// embedded key-value stores.
package kv

import (
	"encoding/binary"
	"encoding/json"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/gofrs/uuid"
)

var (
	ConfigKey = []byte("config")
	PoolKey   = []byte("pool")
	FundKey   = []byte("fund")
)

func Uint64Key(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func ParseUint64Key(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// IntentKey orders intents by creation time, then id.
func IntentKey(createdAt int64, id uuid.UUID) []byte {
	return append(Uint64Key(uint64(createdAt)), id.Bytes()...)
}

func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// MatchOperate applies the ListOperates filters except the limit.
func MatchOperate(o *core.Operate, actor string, op core.ActionType, createdBeforeAt int64) bool {
	if actor != "" && o.Actor != actor {
		return false
	}
	if op != 0 && o.Op != op {
		return false
	}
	if createdBeforeAt > 0 && o.CreatedAt >= createdBeforeAt {
		return false
	}
	return true
}

func DecodeProposal(data []byte) (*core.Proposal, error) {
	var p core.Proposal
	if err := Decode(data, &p); err != nil {
		return nil, err
	}
	if p.Voters == nil {
		p.Voters = core.VoterSet{}
	}
	return &p, nil
}
