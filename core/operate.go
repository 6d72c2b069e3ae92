package core

import (
	"context"
	"database/sql/driver"
	"encoding/json"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	OperateStore interface {
		ListOperates(ctx context.Context, actor string, op ActionType, createdBeforeAt, limit int64) ([]*Operate, error)
	}

	Operate struct {
		Id        uuid.UUID     `json:"id"`
		Actor     string        `json:"actor"`
		AccountId uuid.UUID     `json:"accountId"`
		Op        ActionType    `json:"op"`
		Extra     OperateDetail `json:"extra"`
		CreatedAt int64         `json:"createdAt"`
	}

	OperateDetail struct {
		Amount        decimal.Decimal   `json:"amount,omitempty"`
		Collateral    decimal.Decimal   `json:"collateral,omitempty"`
		RequestedRate decimal.Decimal   `json:"requestedRate,omitempty"`
		Accrued       decimal.Decimal   `json:"accrued,omitempty"`
		Target        string            `json:"target,omitempty"`
		ProposalId    uint64            `json:"proposalId,omitempty"`
		InFavor       *bool             `json:"inFavor,omitempty"`
		Change        *ParamChange      `json:"change,omitempty"`
		Liquidation   *LiquidationEvent `json:"liquidation,omitempty"`
		Loss          *LossEvent        `json:"loss,omitempty"`
		ConfigVersion uint64            `json:"configVersion,omitempty"`
	}
)

func NewOperate(clk clock.Clock, actor string, typ ActionType, extra OperateDetail) *Operate {
	return &Operate{
		Id:        uuid.Must(uuid.NewV4()),
		Actor:     actor,
		AccountId: AccountId(actor),
		Op:        typ,
		Extra:     extra,
		CreatedAt: clk.Now().Unix(),
	}
}

func (j OperateDetail) Value() (driver.Value, error) {
	valueString, err := json.Marshal(j)
	return string(valueString), err
}

func (j *OperateDetail) Scan(value any) error {
	return scanJSON(value, j)
}
