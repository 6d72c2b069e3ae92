package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
)

type (
	ConfigStore interface {
		GetConfig(ctx context.Context) (*ProtocolConfig, error)
	}

	ProtocolConfig struct {
		AdminKey         string `json:"adminKey"`
		Initialized      bool   `json:"initialized"`
		GovernanceActive bool   `json:"governanceActive"`

		LiquidityAsset  Asset `json:"liquidityAsset"`
		CollateralAsset Asset `json:"collateralAsset"`

		Rates      InterestRateParams `json:"rates"`
		Risk       RiskParams         `json:"risk"`
		Governance GovernancePolicy   `json:"governance"`

		NextProposalId uint64 `json:"nextProposalId"`

		Version   uint64 `json:"version"`
		CreatedAt int64  `json:"createdAt"`
		UpdatedAt int64  `json:"updatedAt"`
	}

	GovernancePolicy struct {
		// VotingPeriod in seconds.
		VotingPeriod int64 `json:"votingPeriod"`
		// ApprovalThreshold closes a proposal early once either side reaches it. Zero disables it.
		ApprovalThreshold uint64 `json:"approvalThreshold"`
	}
)

// Bootstrap carries the parameters a fresh deployment starts with.
type Bootstrap struct {
	LiquidityAsset  Asset
	CollateralAsset Asset
	Rates           InterestRateParams
	Risk            RiskParams
	ReserveFactor   decimal.Decimal
	Governance      GovernancePolicy
}

func DefaultBootstrap() Bootstrap {
	return Bootstrap{
		LiquidityAsset:  Asset{Symbol: "LIQ", Precision: 8},
		CollateralAsset: Asset{Symbol: "COL", Precision: 8},
		Rates: InterestRateParams{
			BaseRate:       DEFAULT_BASE_RATE,
			RateMultiplier: DEFAULT_RATE_MULTIPLIER,
		},
		Risk:          DefaultRiskParams(),
		ReserveFactor: DEFAULT_RESERVE_FACTOR,
		Governance:    GovernancePolicy{VotingPeriod: DEFAULT_VOTING_PERIOD},
	}
}

func (b *Bootstrap) Validate() error {
	if err := b.Rates.Validate(); err != nil {
		return err
	}
	if err := b.Risk.Validate(); err != nil {
		return err
	}
	if err := ValidateReserveFactor(b.ReserveFactor); err != nil {
		return err
	}
	return b.Governance.Validate()
}

func NewProtocolConfig(clk clock.Clock, adminKey string, b Bootstrap) *ProtocolConfig {
	now := clk.Now().Unix()
	rates := b.Rates
	rates.Version = 1
	rates.UpdatedAt = now
	return &ProtocolConfig{
		AdminKey:        adminKey,
		Initialized:     true,
		LiquidityAsset:  b.LiquidityAsset,
		CollateralAsset: b.CollateralAsset,
		Rates:           rates,
		Risk:            b.Risk,
		Governance:      b.Governance,
		NextProposalId:  1,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (c *ProtocolConfig) Clone() *ProtocolConfig {
	cc := *c
	return &cc
}

func (c *ProtocolConfig) IsAdmin(key string) bool {
	return c.AdminKey != "" && c.AdminKey == key
}

func (c *ProtocolConfig) Bump(now int64) {
	c.Version++
	c.UpdatedAt = now
}

func (g *GovernancePolicy) Validate() error {
	if g.VotingPeriod <= 0 {
		return InvalidParams
	}
	return nil
}
