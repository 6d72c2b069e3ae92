package gormstore

import (
	"github.com/DomeLiquid/lendcore/core"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Decimals are stored as text so sqlite keeps every digit.

type configRow struct {
	Id               uint   `gorm:"primaryKey"`
	AdminKey         string `gorm:"size:255"`
	Initialized      bool
	GovernanceActive bool

	LiquidityAsset  core.Asset              `gorm:"serializer:json"`
	CollateralAsset core.Asset              `gorm:"serializer:json"`
	Rates           core.InterestRateParams `gorm:"serializer:json"`
	Risk            core.RiskParams         `gorm:"serializer:json"`
	Governance      core.GovernancePolicy   `gorm:"serializer:json"`

	NextProposalId uint64
	Version        uint64
	CreatedAt      int64 `gorm:"autoCreateTime:false"`
	UpdatedAt      int64 `gorm:"autoUpdateTime:false"`
}

func (configRow) TableName() string { return "protocol_configs" }

type poolRow struct {
	Id              uint            `gorm:"primaryKey"`
	TotalDeposited  decimal.Decimal `gorm:"type:text"`
	TotalBorrowed   decimal.Decimal `gorm:"type:text"`
	TotalCollateral decimal.Decimal `gorm:"type:text"`
	ReserveFactor   decimal.Decimal `gorm:"type:text"`
	TotalReserves   decimal.Decimal `gorm:"type:text"`
	InterestEarned  decimal.Decimal `gorm:"type:text"`
	BadDebt         decimal.Decimal `gorm:"type:text"`
	CreatedAt       int64           `gorm:"autoCreateTime:false"`
	UpdatedAt       int64           `gorm:"autoUpdateTime:false"`
}

func (poolRow) TableName() string { return "lending_pools" }

type fundRow struct {
	Id                 uint            `gorm:"primaryKey"`
	Balance            decimal.Decimal `gorm:"type:text"`
	TotalDeposited     decimal.Decimal `gorm:"type:text"`
	TotalPenaltyIncome decimal.Decimal `gorm:"type:text"`
	TotalDrawn         decimal.Decimal `gorm:"type:text"`
	CreatedAt          int64           `gorm:"autoCreateTime:false"`
	UpdatedAt          int64           `gorm:"autoUpdateTime:false"`
}

func (fundRow) TableName() string { return "insurance_funds" }

type accountRow struct {
	Key                  string          `gorm:"primaryKey;column:account_key;size:255"`
	Id                   uuid.UUID       `gorm:"type:varchar(36);uniqueIndex"`
	DepositedBalance     decimal.Decimal `gorm:"type:text"`
	BorrowedPrincipal    decimal.Decimal `gorm:"type:text"`
	AccruedInterest      decimal.Decimal `gorm:"type:text"`
	CollateralBalance    decimal.Decimal `gorm:"type:text"`
	LastAccrualTimestamp int64
	RequestedRate        decimal.Decimal `gorm:"type:text"`
	RateVersion          uint64
	CreatedAt            int64 `gorm:"autoCreateTime:false"`
	UpdatedAt            int64 `gorm:"autoUpdateTime:false"`
}

func (accountRow) TableName() string { return "accounts" }

type proposalRow struct {
	Id           uint64           `gorm:"primaryKey;autoIncrement:false"`
	Proposer     string           `gorm:"size:255;index"`
	Payload      core.ParamChange `gorm:"type:text"`
	VotesFor     uint64
	VotesAgainst uint64
	Voters       core.VoterSet      `gorm:"type:text"`
	State        core.ProposalState `gorm:"index"`
	CreatedAt    int64              `gorm:"autoCreateTime:false"`
	VotingEnd    int64
	ClosedAt     int64
	ExecutedAt   int64
}

func (proposalRow) TableName() string { return "proposals" }

type intentRow struct {
	Id        uuid.UUID         `gorm:"primaryKey;type:varchar(36)"`
	Operation core.ActionType
	Account   string            `gorm:"size:255;index"`
	Asset     core.AssetKind
	Direction core.Direction    `gorm:"size:8"`
	Amount    decimal.Decimal   `gorm:"type:text"`
	Status    core.IntentStatus `gorm:"size:16;index"`
	Message   string
	CreatedAt int64 `gorm:"autoCreateTime:false;index"`
	UpdatedAt int64 `gorm:"autoUpdateTime:false"`
}

func (intentRow) TableName() string { return "transfer_intents" }

type operateRow struct {
	Seq       uint64             `gorm:"primaryKey;autoIncrement"`
	Id        uuid.UUID          `gorm:"type:varchar(36);uniqueIndex"`
	Actor     string             `gorm:"size:255;index"`
	AccountId uuid.UUID          `gorm:"type:varchar(36)"`
	Op        core.ActionType    `gorm:"index"`
	Extra     core.OperateDetail `gorm:"type:text"`
	CreatedAt int64              `gorm:"autoCreateTime:false;index"`
}

func (operateRow) TableName() string { return "operates" }

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&configRow{},
		&poolRow{},
		&fundRow{},
		&accountRow{},
		&proposalRow{},
		&intentRow{},
		&operateRow{},
	)
}

const singletonId = 1

func fromConfig(c *core.ProtocolConfig) *configRow {
	return &configRow{
		Id:               singletonId,
		AdminKey:         c.AdminKey,
		Initialized:      c.Initialized,
		GovernanceActive: c.GovernanceActive,
		LiquidityAsset:   c.LiquidityAsset,
		CollateralAsset:  c.CollateralAsset,
		Rates:            c.Rates,
		Risk:             c.Risk,
		Governance:       c.Governance,
		NextProposalId:   c.NextProposalId,
		Version:          c.Version,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func (r *configRow) toCore() *core.ProtocolConfig {
	return &core.ProtocolConfig{
		AdminKey:         r.AdminKey,
		Initialized:      r.Initialized,
		GovernanceActive: r.GovernanceActive,
		LiquidityAsset:   r.LiquidityAsset,
		CollateralAsset:  r.CollateralAsset,
		Rates:            r.Rates,
		Risk:             r.Risk,
		Governance:       r.Governance,
		NextProposalId:   r.NextProposalId,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func fromPool(p *core.LendingPool) *poolRow {
	return &poolRow{
		Id:              singletonId,
		TotalDeposited:  p.TotalDeposited,
		TotalBorrowed:   p.TotalBorrowed,
		TotalCollateral: p.TotalCollateral,
		ReserveFactor:   p.ReserveFactor,
		TotalReserves:   p.TotalReserves,
		InterestEarned:  p.InterestEarned,
		BadDebt:         p.BadDebt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (r *poolRow) toCore() *core.LendingPool {
	return &core.LendingPool{
		TotalDeposited:  r.TotalDeposited,
		TotalBorrowed:   r.TotalBorrowed,
		TotalCollateral: r.TotalCollateral,
		ReserveFactor:   r.ReserveFactor,
		TotalReserves:   r.TotalReserves,
		InterestEarned:  r.InterestEarned,
		BadDebt:         r.BadDebt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func fromFund(f *core.InsuranceFund) *fundRow {
	return &fundRow{
		Id:                 singletonId,
		Balance:            f.Balance,
		TotalDeposited:     f.TotalDeposited,
		TotalPenaltyIncome: f.TotalPenaltyIncome,
		TotalDrawn:         f.TotalDrawn,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.UpdatedAt,
	}
}

func (r *fundRow) toCore() *core.InsuranceFund {
	return &core.InsuranceFund{
		Balance:            r.Balance,
		TotalDeposited:     r.TotalDeposited,
		TotalPenaltyIncome: r.TotalPenaltyIncome,
		TotalDrawn:         r.TotalDrawn,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func fromAccount(a *core.Account) *accountRow {
	return &accountRow{
		Key:                  a.Key,
		Id:                   a.Id,
		DepositedBalance:     a.DepositedBalance,
		BorrowedPrincipal:    a.BorrowedPrincipal,
		AccruedInterest:      a.AccruedInterest,
		CollateralBalance:    a.CollateralBalance,
		LastAccrualTimestamp: a.LastAccrualTimestamp,
		RequestedRate:        a.RequestedRate,
		RateVersion:          a.RateVersion,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func (r *accountRow) toCore() *core.Account {
	return &core.Account{
		Id:                   r.Id,
		Key:                  r.Key,
		DepositedBalance:     r.DepositedBalance,
		BorrowedPrincipal:    r.BorrowedPrincipal,
		AccruedInterest:      r.AccruedInterest,
		CollateralBalance:    r.CollateralBalance,
		LastAccrualTimestamp: r.LastAccrualTimestamp,
		RequestedRate:        r.RequestedRate,
		RateVersion:          r.RateVersion,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func fromProposal(p *core.Proposal) *proposalRow {
	return &proposalRow{
		Id:           p.Id,
		Proposer:     p.Proposer,
		Payload:      p.Payload,
		VotesFor:     p.VotesFor,
		VotesAgainst: p.VotesAgainst,
		Voters:       p.Voters,
		State:        p.State,
		CreatedAt:    p.CreatedAt,
		VotingEnd:    p.VotingEnd,
		ClosedAt:     p.ClosedAt,
		ExecutedAt:   p.ExecutedAt,
	}
}

func (r *proposalRow) toCore() *core.Proposal {
	voters := r.Voters
	if voters == nil {
		voters = core.VoterSet{}
	}
	return &core.Proposal{
		Id:           r.Id,
		Proposer:     r.Proposer,
		Payload:      r.Payload,
		VotesFor:     r.VotesFor,
		VotesAgainst: r.VotesAgainst,
		Voters:       voters,
		State:        r.State,
		CreatedAt:    r.CreatedAt,
		VotingEnd:    r.VotingEnd,
		ClosedAt:     r.ClosedAt,
		ExecutedAt:   r.ExecutedAt,
	}
}

func fromIntent(i *core.TransferIntent) *intentRow {
	return &intentRow{
		Id:        i.Id,
		Operation: i.Operation,
		Account:   i.Account,
		Asset:     i.Asset,
		Direction: i.Direction,
		Amount:    i.Amount,
		Status:    i.Status,
		Message:   i.Message,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

func (r *intentRow) toCore() *core.TransferIntent {
	return &core.TransferIntent{
		Id:        r.Id,
		Operation: r.Operation,
		Account:   r.Account,
		Asset:     r.Asset,
		Direction: r.Direction,
		Amount:    r.Amount,
		Status:    r.Status,
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromOperate(o *core.Operate) *operateRow {
	return &operateRow{
		Id:        o.Id,
		Actor:     o.Actor,
		AccountId: o.AccountId,
		Op:        o.Op,
		Extra:     o.Extra,
		CreatedAt: o.CreatedAt,
	}
}

func (r *operateRow) toCore() *core.Operate {
	return &core.Operate{
		Id:        r.Id,
		Actor:     r.Actor,
		AccountId: r.AccountId,
		Op:        r.Op,
		Extra:     r.Extra,
		CreatedAt: r.CreatedAt,
	}
}
