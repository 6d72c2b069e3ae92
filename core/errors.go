package core

import "github.com/pkg/errors"

var (
	AlreadyInitialized = errors.New("protocol already initialized")
	NotInitialized     = errors.New("protocol not initialized")
	Unauthorized       = errors.New("caller not authorized")

	InsufficientFunds          = errors.New("insufficient funds")
	InsufficientLiquidity      = errors.New("insufficient pool liquidity")
	UndercollateralizedRequest = errors.New("collateral ratio below requirement")
	OverpaymentRejected        = errors.New("repayment exceeds outstanding debt")
	NoOutstandingDebt          = errors.New("no outstanding debt")
	PositionHealthy            = errors.New("position is healthy")

	DuplicateVote      = errors.New("voter already voted")
	ProposalNotOpen    = errors.New("proposal not open for voting")
	ProposalNotPassed  = errors.New("proposal not passed")
	ProposalNotFound   = errors.New("proposal not found")
	ProposalConflict   = errors.New("open proposal exists for parameter class")
	VotingInProgress   = errors.New("voting period not ended")
	GovernanceRequired = errors.New("parameter changes require governance")

	InsufficientReserve = errors.New("insufficient insurance reserve")

	InvalidAmount    = errors.New("invalid amount")
	InvalidParams    = errors.New("invalid parameters")
	PriceUnavailable = errors.New("collateral price unavailable")

	RecordNotFound = errors.New("record not found")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{AlreadyInitialized, "already_initialized"},
	{NotInitialized, "not_initialized"},
	{Unauthorized, "unauthorized"},
	{InsufficientFunds, "insufficient_funds"},
	{InsufficientLiquidity, "insufficient_liquidity"},
	{UndercollateralizedRequest, "undercollateralized_request"},
	{OverpaymentRejected, "overpayment_rejected"},
	{NoOutstandingDebt, "no_outstanding_debt"},
	{PositionHealthy, "position_healthy"},
	{DuplicateVote, "duplicate_vote"},
	{ProposalNotOpen, "proposal_not_open"},
	{ProposalNotPassed, "proposal_not_passed"},
	{ProposalNotFound, "proposal_not_found"},
	{ProposalConflict, "proposal_conflict"},
	{VotingInProgress, "voting_in_progress"},
	{GovernanceRequired, "governance_required"},
	{InsufficientReserve, "insufficient_reserve"},
	{InvalidAmount, "invalid_amount"},
	{InvalidParams, "invalid_params"},
	{PriceUnavailable, "price_unavailable"},
	{RecordNotFound, "not_found"},
}

// ErrorCode maps an error to a stable machine readable code. Unknown errors
// map to "internal", nil to "ok".
func ErrorCode(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
