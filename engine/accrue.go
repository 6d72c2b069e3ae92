// Package engine holds the state transitions of the protocol. Every function
// mutates the working copies of a ledger.Tx and leaves persistence to the
// caller.
package engine

import (
	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/ledger"
	"github.com/shopspring/decimal"
)

func requireConfig(tx *ledger.Tx) (*core.ProtocolConfig, error) {
	cfg := tx.Config()
	if cfg == nil || !cfg.Initialized || tx.Pool() == nil || tx.Fund() == nil {
		return nil, core.NotInitialized
	}
	return cfg, nil
}

// accrue brings the account's interest up to the transaction time using the
// pool utilization of the same transaction. Balance-affecting operations
// call it before reading or changing any position.
func accrue(log core.Log, tx *ledger.Tx, account *core.Account) (decimal.Decimal, error) {
	cfg, err := requireConfig(tx)
	if err != nil {
		return decimal.Zero, err
	}
	delta := cfg.Rates.Accrue(log, account, tx.Pool(), tx.Now())
	if delta.IsPositive() {
		account.Touch(tx.Now())
	}
	return delta, nil
}

// settleInterest accrues every open loan at the rates in force so that a rate
// change only prices time after it takes effect.
func settleInterest(log core.Log, tx *ledger.Tx) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, account := range tx.Debtors() {
		delta, err := accrue(log, tx, account)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(delta)
	}
	return total, nil
}
