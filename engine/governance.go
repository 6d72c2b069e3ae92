package engine

import (
	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/ledger"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Governance struct {
	log core.Log
}

func NewGovernance(log core.Log) *Governance {
	return &Governance{log: log}
}

// qualified reports whether key may propose or vote: the admin, or any
// account with a positive deposit.
func qualified(tx *ledger.Tx, cfg *core.ProtocolConfig, key string) bool {
	if cfg.IsAdmin(key) {
		return true
	}
	account, ok := tx.Account(key)
	return ok && account.DepositedBalance.IsPositive()
}

// Propose opens a proposal. Only one proposal per parameter class may be
// open at a time.
func (e *Governance) Propose(tx *ledger.Tx, proposer string, change core.ParamChange) (*core.Proposal, error) {
	cfg, err := requireConfig(tx)
	if err != nil {
		return nil, err
	}
	if !qualified(tx, cfg, proposer) {
		return nil, errors.Wrapf(core.Unauthorized, "%s may not propose", proposer)
	}
	if err := change.Validate(); err != nil {
		return nil, err
	}
	for _, p := range tx.Proposals() {
		if p.State == core.ProposalOpen && p.Payload.Class == change.Class {
			return nil, errors.Wrapf(core.ProposalConflict, "proposal %d is open for %s", p.Id, change.Class)
		}
	}

	p := core.NewProposal(tx.NextProposalId(), proposer, change, tx.Now(), cfg.Governance.VotingPeriod)
	tx.PutProposal(p)
	e.log.Info().Msgf("proposal %d opened by %s: %s, voting ends %d", p.Id, proposer, change.Class, p.VotingEnd)
	return p, nil
}

func (e *Governance) Vote(tx *ledger.Tx, voter string, proposalId uint64, inFavor bool) (*core.Proposal, error) {
	cfg, err := requireConfig(tx)
	if err != nil {
		return nil, err
	}
	if !qualified(tx, cfg, voter) {
		return nil, errors.Wrapf(core.Unauthorized, "%s may not vote", voter)
	}
	p, err := tx.Proposal(proposalId)
	if err != nil {
		return nil, err
	}
	if err := p.CastVote(voter, inFavor, tx.Now(), cfg.Governance.ApprovalThreshold); err != nil {
		return nil, errors.Wrapf(err, "proposal %d", proposalId)
	}
	e.log.Info().Msgf("proposal %d vote by %s: inFavor %t, for %d, against %d, state %s", p.Id, voter, inFavor, p.VotesFor, p.VotesAgainst, p.State)
	return p, nil
}

func (e *Governance) Finalize(tx *ledger.Tx, proposalId uint64) (*core.Proposal, error) {
	if _, err := requireConfig(tx); err != nil {
		return nil, err
	}
	p, err := tx.Proposal(proposalId)
	if err != nil {
		return nil, err
	}
	if err := p.Finalize(tx.Now()); err != nil {
		return nil, errors.Wrapf(err, "proposal %d", proposalId)
	}
	e.log.Info().Msgf("proposal %d finalized: %s (%d for, %d against)", p.Id, p.State, p.VotesFor, p.VotesAgainst)
	return p, nil
}

// Execute applies a passed proposal through the same path as the bootstrap
// admin updates.
func (e *Governance) Execute(tx *ledger.Tx, proposalId uint64) (*core.Proposal, error) {
	cfg, err := requireConfig(tx)
	if err != nil {
		return nil, err
	}
	p, err := tx.Proposal(proposalId)
	if err != nil {
		return nil, err
	}
	if p.State != core.ProposalPassed {
		return nil, errors.Wrapf(core.ProposalNotPassed, "proposal %d is %s", p.Id, p.State)
	}
	if err := e.apply(tx, cfg, p.Payload); err != nil {
		return nil, errors.Wrapf(err, "apply proposal %d", p.Id)
	}
	if err := p.MarkExecuted(tx.Now()); err != nil {
		return nil, err
	}
	e.log.Info().Msgf("proposal %d executed: %s, config version %d", p.Id, p.Payload.Class, cfg.Version)
	return p, nil
}

// UpdateInterestRate is the admin path used before governance launches.
func (e *Governance) UpdateInterestRate(tx *ledger.Tx, baseRate, rateMultiplier decimal.Decimal) (*core.ProtocolConfig, error) {
	return e.ApplyBootstrap(tx, core.ParamChange{
		Class:          core.ParamClassInterestRate,
		BaseRate:       decimal.NewNullDecimal(baseRate),
		RateMultiplier: decimal.NewNullDecimal(rateMultiplier),
	})
}

func (e *Governance) ApplyBootstrap(tx *ledger.Tx, change core.ParamChange) (*core.ProtocolConfig, error) {
	cfg, err := requireConfig(tx)
	if err != nil {
		return nil, err
	}
	if cfg.GovernanceActive {
		return nil, core.GovernanceRequired
	}
	if err := e.apply(tx, cfg, change); err != nil {
		return nil, err
	}
	e.log.Info().Msgf("bootstrap update %s: config version %d", change.Class, cfg.Version)
	return cfg, nil
}

// apply settles open loans at the old rates before an interest rate change
// and then updates the config.
func (e *Governance) apply(tx *ledger.Tx, cfg *core.ProtocolConfig, change core.ParamChange) error {
	if change.Class == core.ParamClassInterestRate {
		settled, err := settleInterest(e.log, tx)
		if err != nil {
			return err
		}
		e.log.Info().Msgf("settled %s interest at rate version %d", settled, cfg.Rates.Version)
	}
	return change.Apply(cfg, tx.Pool(), tx.Now())
}

func (e *Governance) LaunchGovernance(tx *ledger.Tx) (*core.ProtocolConfig, error) {
	cfg, err := requireConfig(tx)
	if err != nil {
		return nil, err
	}
	if cfg.GovernanceActive {
		return nil, errors.Wrap(core.InvalidParams, "governance already active")
	}
	cfg.GovernanceActive = true
	cfg.Bump(tx.Now())
	e.log.Info().Msgf("governance launched: config version %d", cfg.Version)
	return cfg, nil
}
