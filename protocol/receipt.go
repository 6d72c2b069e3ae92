package protocol

import (
	"github.com/DomeLiquid/lendcore/core"
	"github.com/shopspring/decimal"
)

type Receipt struct {
	Action        core.ActionType `json:"action"`
	Caller        string          `json:"caller"`
	Timestamp     int64           `json:"timestamp"`
	ConfigVersion uint64          `json:"configVersion"`

	Account     *core.Account          `json:"account,omitempty"`
	Proposal    *core.Proposal         `json:"proposal,omitempty"`
	Config      *core.ProtocolConfig   `json:"config,omitempty"`
	Fund        *core.InsuranceFund    `json:"fund,omitempty"`
	Liquidation *core.LiquidationEvent `json:"liquidation,omitempty"`
	Loss        *core.LossEvent        `json:"loss,omitempty"`

	Accrued       decimal.Decimal `json:"accrued"`
	InterestPaid  decimal.Decimal `json:"interestPaid"`
	PrincipalPaid decimal.Decimal `json:"principalPaid"`

	Intents []*core.TransferIntent `json:"intents,omitempty"`
}

// Market is a read-only view of the pool with the current rates.
type Market struct {
	Pool        *core.LendingPool   `json:"pool"`
	Fund        *core.InsuranceFund `json:"fund"`
	Utilization decimal.Decimal     `json:"utilization"`
	BorrowRate  decimal.Decimal     `json:"borrowRate"`
	SupplyRate  decimal.Decimal     `json:"supplyRate"`
	SupplyApy   decimal.Decimal     `json:"supplyApy"`
	Price       decimal.Decimal     `json:"price"`
}

// Position is an account view with interest accrued to the read time.
type Position struct {
	Account         *core.Account   `json:"account"`
	Owed            decimal.Decimal `json:"owed"`
	CollateralRatio decimal.Decimal `json:"collateralRatio"`
	Liquidatable    bool            `json:"liquidatable"`
}
