package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	IntentStore interface {
		ListIntents(ctx context.Context, status IntentStatus) ([]*TransferIntent, error)
		UpdateIntentStatus(ctx context.Context, id uuid.UUID, status IntentStatus, message string, updatedAt int64) error
	}

	// TransferIntent asks the custodian to move tokens between the protocol
	// and an account once the ledger change behind it has been committed.
	TransferIntent struct {
		Id        uuid.UUID       `json:"id"`
		Operation ActionType      `json:"operation"`
		Account   string          `json:"account"`
		Asset     AssetKind       `json:"asset"`
		Direction Direction       `json:"direction"`
		Amount    decimal.Decimal `json:"amount"`
		Status    IntentStatus    `json:"status"`
		Message   string          `json:"message,omitempty"`

		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}

	Custodian interface {
		Transfer(ctx context.Context, intents []*TransferIntent) error
	}
)

func NewTransferIntent(clk clock.Clock, op ActionType, account string, asset AssetKind, direction Direction, amount decimal.Decimal) *TransferIntent {
	return &TransferIntent{
		Id:        uuid.Must(uuid.NewV4()),
		Operation: op,
		Account:   account,
		Asset:     asset,
		Direction: direction,
		Amount:    amount,
		Status:    IntentPending,
		CreatedAt: clk.Now().Unix(),
		UpdatedAt: clk.Now().Unix(),
	}
}

func (i *TransferIntent) UpdateStatus(clk clock.Clock, status IntentStatus, message string) {
	i.Status = status
	i.Message = message
	i.UpdatedAt = clk.Now().Unix()
}

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentConfirmed IntentStatus = "confirmed"
	IntentFailed    IntentStatus = "failed"
)

func (s IntentStatus) String() string {
	switch s {
	case IntentPending:
		return "pending"
	case IntentConfirmed:
		return "confirmed"
	case IntentFailed:
		return "failed"
	default:
		return "unknown"
	}
}
