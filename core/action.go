package core

import (
	"strings"

	"github.com/pkg/errors"
)

type ActionType uint8

const (
	ActionInitialize ActionType = iota + 1
	ActionLend
	ActionWithdraw
	ActionBorrow
	ActionRepay
	ActionWithdrawCollateral
	ActionLiquidate
	ActionUpdateInterestRate
	ActionUpdateRiskParams
	ActionLaunchGovernance
	ActionPropose
	ActionVote
	ActionFinalize
	ActionExecute
	ActionDepositInsurance
	ActionSetPrice
)

func (a ActionType) String() string {
	switch a {
	case ActionInitialize:
		return "Initialize"
	case ActionLend:
		return "Lend"
	case ActionWithdraw:
		return "Withdraw"
	case ActionBorrow:
		return "Borrow"
	case ActionRepay:
		return "Repay"
	case ActionWithdrawCollateral:
		return "WithdrawCollateral"
	case ActionLiquidate:
		return "Liquidate"
	case ActionUpdateInterestRate:
		return "UpdateInterestRate"
	case ActionUpdateRiskParams:
		return "UpdateRiskParams"
	case ActionLaunchGovernance:
		return "LaunchGovernance"
	case ActionPropose:
		return "Propose"
	case ActionVote:
		return "Vote"
	case ActionFinalize:
		return "Finalize"
	case ActionExecute:
		return "Execute"
	case ActionDepositInsurance:
		return "DepositInsurance"
	case ActionSetPrice:
		return "SetPrice"
	default:
		return "Unknown"
	}
}

// MutatesBalances reports whether the action moves account or pool balances
// and must leave the pool within its utilization bound.
func (a ActionType) MutatesBalances() bool {
	switch a {
	case ActionLend, ActionWithdraw, ActionBorrow, ActionRepay, ActionWithdrawCollateral, ActionLiquidate:
		return true
	default:
		return false
	}
}

// ParseActionType is the inverse of String, ignoring case.
func ParseActionType(s string) (ActionType, error) {
	for a := ActionInitialize; a <= ActionSetPrice; a++ {
		if strings.EqualFold(a.String(), s) {
			return a, nil
		}
	}
	return 0, errors.Wrapf(InvalidParams, "unknown action %q", s)
}
