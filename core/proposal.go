package core

import (
	"context"
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	ProposalStore interface {
		GetProposal(ctx context.Context, id uint64) (*Proposal, error)
		ListProposals(ctx context.Context) ([]*Proposal, error)
	}

	Proposal struct {
		Id       uint64      `json:"id"`
		Proposer string      `json:"proposer"`
		Payload  ParamChange `json:"payload"`

		VotesFor     uint64   `json:"votesFor"`
		VotesAgainst uint64   `json:"votesAgainst"`
		Voters       VoterSet `json:"voters"`

		State ProposalState `json:"state"`

		CreatedAt  int64 `json:"createdAt"`
		VotingEnd  int64 `json:"votingEnd"`
		ClosedAt   int64 `json:"closedAt"`
		ExecutedAt int64 `json:"executedAt"`
	}

	// ParamChange carries the new values of one parameter class. Fields that
	// do not belong to the class must be left null.
	ParamChange struct {
		Class ParamClass `json:"class"`

		BaseRate       decimal.NullDecimal `json:"baseRate"`
		RateMultiplier decimal.NullDecimal `json:"rateMultiplier"`

		MinCollateralRatio   decimal.NullDecimal `json:"minCollateralRatio"`
		LiquidationThreshold decimal.NullDecimal `json:"liquidationThreshold"`

		MaxLiquidationPenalty decimal.NullDecimal `json:"maxLiquidationPenalty"`
		InsuranceShare        decimal.NullDecimal `json:"insuranceShare"`

		ReserveFactor decimal.NullDecimal `json:"reserveFactor"`
	}

	VoterSet map[string]bool
)

type ProposalState uint8

const (
	ProposalOpen ProposalState = iota + 1
	ProposalPassed
	ProposalRejected
	ProposalExecuted
)

func (s ProposalState) String() string {
	switch s {
	case ProposalOpen:
		return "Open"
	case ProposalPassed:
		return "Passed"
	case ProposalRejected:
		return "Rejected"
	case ProposalExecuted:
		return "Executed"
	default:
		return "Unknown"
	}
}

type ParamClass uint8

const (
	ParamClassInterestRate ParamClass = iota + 1
	ParamClassCollateral
	ParamClassLiquidation
	ParamClassReserve
)

func (c ParamClass) String() string {
	switch c {
	case ParamClassInterestRate:
		return "interest_rate"
	case ParamClassCollateral:
		return "collateral"
	case ParamClassLiquidation:
		return "liquidation"
	case ParamClassReserve:
		return "reserve"
	default:
		return "unknown"
	}
}

func ParseParamClass(s string) (ParamClass, error) {
	switch s {
	case "interest_rate":
		return ParamClassInterestRate, nil
	case "collateral":
		return ParamClassCollateral, nil
	case "liquidation":
		return ParamClassLiquidation, nil
	case "reserve":
		return ParamClassReserve, nil
	default:
		return 0, errors.Wrapf(InvalidParams, "unknown parameter class %q", s)
	}
}

func NewProposal(id uint64, proposer string, payload ParamChange, now int64, votingPeriod int64) *Proposal {
	return &Proposal{
		Id:        id,
		Proposer:  proposer,
		Payload:   payload,
		Voters:    VoterSet{},
		State:     ProposalOpen,
		CreatedAt: now,
		VotingEnd: now + votingPeriod,
	}
}

func (p *Proposal) Clone() *Proposal {
	c := *p
	c.Voters = make(VoterSet, len(p.Voters))
	for k, v := range p.Voters {
		c.Voters[k] = v
	}
	return &c
}

func (p *Proposal) IsOpen(now int64) bool {
	return p.State == ProposalOpen && now < p.VotingEnd
}

func (p *Proposal) HasVoted(voter string) bool {
	_, ok := p.Voters[voter]
	return ok
}

// CastVote records one vote. A positive approvalThreshold closes the
// proposal as soon as either side reaches it.
func (p *Proposal) CastVote(voter string, inFavor bool, now int64, approvalThreshold uint64) error {
	if !p.IsOpen(now) {
		return ProposalNotOpen
	}
	if p.HasVoted(voter) {
		return DuplicateVote
	}
	if p.Voters == nil {
		p.Voters = VoterSet{}
	}
	p.Voters[voter] = inFavor
	if inFavor {
		p.VotesFor++
	} else {
		p.VotesAgainst++
	}

	if approvalThreshold > 0 {
		switch {
		case p.VotesFor >= approvalThreshold:
			p.close(ProposalPassed, now)
		case p.VotesAgainst >= approvalThreshold:
			p.close(ProposalRejected, now)
		}
	}
	return nil
}

// Finalize tallies an open proposal once its voting window has ended.
func (p *Proposal) Finalize(now int64) error {
	if p.State != ProposalOpen {
		return ProposalNotOpen
	}
	if now < p.VotingEnd {
		return VotingInProgress
	}
	if p.VotesFor > p.VotesAgainst {
		p.close(ProposalPassed, now)
	} else {
		p.close(ProposalRejected, now)
	}
	return nil
}

func (p *Proposal) MarkExecuted(now int64) error {
	if p.State != ProposalPassed {
		return ProposalNotPassed
	}
	p.State = ProposalExecuted
	p.ExecutedAt = now
	return nil
}

func (p *Proposal) close(state ProposalState, now int64) {
	p.State = state
	p.ClosedAt = now
}

func (c ParamChange) fields() map[ParamClass][]decimal.NullDecimal {
	return map[ParamClass][]decimal.NullDecimal{
		ParamClassInterestRate: {c.BaseRate, c.RateMultiplier},
		ParamClassCollateral:   {c.MinCollateralRatio, c.LiquidationThreshold},
		ParamClassLiquidation:  {c.MaxLiquidationPenalty, c.InsuranceShare},
		ParamClassReserve:      {c.ReserveFactor},
	}
}

// Validate checks that every field of the class is set and no other field is.
func (c ParamChange) Validate() error {
	fields := c.fields()
	if _, ok := fields[c.Class]; !ok {
		return errors.Wrapf(InvalidParams, "unknown parameter class %d", c.Class)
	}
	for class, values := range fields {
		for _, v := range values {
			if class == c.Class && !v.Valid {
				return errors.Wrapf(InvalidParams, "missing value for %s", class)
			}
			if class != c.Class && v.Valid {
				return errors.Wrapf(InvalidParams, "%s change carries %s values", c.Class, class)
			}
		}
	}
	return nil
}

// Apply writes the change into cfg and pool after validating the resulting
// parameter set. Nothing is modified on error.
func (c ParamChange) Apply(cfg *ProtocolConfig, pool *LendingPool, now int64) error {
	if err := c.Validate(); err != nil {
		return err
	}

	switch c.Class {
	case ParamClassInterestRate:
		rates := cfg.Rates
		if err := rates.Update(c.BaseRate.Decimal, c.RateMultiplier.Decimal, now); err != nil {
			return err
		}
		cfg.Rates = rates
	case ParamClassCollateral, ParamClassLiquidation:
		risk := cfg.Risk
		if c.Class == ParamClassCollateral {
			risk.MinCollateralRatio = c.MinCollateralRatio.Decimal
			risk.LiquidationThreshold = c.LiquidationThreshold.Decimal
		} else {
			risk.MaxLiquidationPenalty = c.MaxLiquidationPenalty.Decimal
			risk.InsuranceShare = c.InsuranceShare.Decimal
		}
		if err := risk.Validate(); err != nil {
			return err
		}
		cfg.Risk = risk
	case ParamClassReserve:
		if err := ValidateReserveFactor(c.ReserveFactor.Decimal); err != nil {
			return err
		}
		pool.ReserveFactor = c.ReserveFactor.Decimal
		pool.Touch(now)
	}

	cfg.Bump(now)
	return nil
}

func (c ParamChange) Value() (driver.Value, error) {
	valueString, err := json.Marshal(c)
	return string(valueString), err
}

func (c *ParamChange) Scan(value any) error {
	return scanJSON(value, c)
}

func (j VoterSet) Value() (driver.Value, error) {
	valueString, err := json.Marshal(j)
	return string(valueString), err
}

func (j *VoterSet) Scan(value any) error {
	return scanJSON(value, j)
}

func scanJSON(value any, dst any) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case nil:
		return nil
	default:
		return errors.Errorf("unsupported scan type %T", value)
	}
}
