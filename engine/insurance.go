package engine

import (
	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/ledger"
	"github.com/shopspring/decimal"
)

type Insurance struct {
	log core.Log
}

func NewInsurance(log core.Log) *Insurance {
	return &Insurance{log: log}
}

func (e *Insurance) Deposit(tx *ledger.Tx, from string, amount decimal.Decimal) (*core.InsuranceFund, error) {
	if _, err := requireConfig(tx); err != nil {
		return nil, err
	}
	fund := tx.Fund()
	if err := fund.Deposit(amount); err != nil {
		return nil, err
	}
	fund.Touch(tx.Now())

	tx.Emit(core.NewTransferIntent(tx.Clock(), core.ActionDepositInsurance, from, core.AssetLiquidity, core.DirectionIn, amount))
	e.log.Info().Msgf("insurance deposit: amount %s, balance %s", amount, fund.Balance)
	return fund, nil
}

// Cover draws as much of the shortfall as the fund holds and returns the
// drawn amount and what is left uncovered.
func (e *Insurance) Cover(tx *ledger.Tx, shortfall decimal.Decimal) (drawn, uncovered decimal.Decimal, err error) {
	fund := tx.Fund()
	drawn, uncovered = fund.ComputeCoverage(shortfall)
	if drawn.IsPositive() {
		if err := fund.DrawDown(drawn); err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		fund.Touch(tx.Now())
	}
	if uncovered.IsPositive() {
		e.log.Warn().Msgf("insurance fund exhausted: shortfall %s, drawn %s, uncovered %s", shortfall, drawn, uncovered)
	}
	return drawn, uncovered, nil
}

func (e *Insurance) AddPenalty(tx *ledger.Tx, amount decimal.Decimal) {
	fund := tx.Fund()
	fund.AddPenaltyIncome(amount)
	fund.Touch(tx.Now())
}
