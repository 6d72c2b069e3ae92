package protocol

import (
	"context"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/ledger"
	"github.com/DomeLiquid/lendcore/utils"
	"github.com/shopspring/decimal"
)

// snapshot opens a read-only working copy that no commit can interleave
// with. Callers must call release when done.
func (c *Controller) snapshot() (tx *ledger.Tx, release func()) {
	c.mu.Lock()
	tx = c.ledger.Begin()
	return tx, func() {
		tx.Discard()
		c.mu.Unlock()
	}
}

// Position reports an account with interest accrued up to now. The ledger is
// not modified.
func (c *Controller) Position(key string) (*Position, error) {
	key = utils.NormalizeKey(key)
	tx, release := c.snapshot()
	defer release()

	cfg, err := configOf(tx)
	if err != nil {
		return nil, err
	}
	account, ok := tx.Account(key)
	if !ok {
		return nil, core.RecordNotFound
	}

	cfg.Rates.Accrue(c.log, account, tx.Pool(), tx.Now())
	pos := &Position{Account: account, Owed: account.Owed()}

	price, err := c.prices.CollateralPrice()
	if err != nil {
		return pos, nil
	}
	if ratio, ok := account.CollateralRatio(price); ok {
		pos.CollateralRatio = ratio
		pos.Liquidatable = ratio.LessThan(cfg.Risk.GetRatio(core.Maintenance))
	}
	return pos, nil
}

func (c *Controller) Market() (*Market, error) {
	tx, release := c.snapshot()
	defer release()

	cfg, err := configOf(tx)
	if err != nil {
		return nil, err
	}
	pool := tx.Pool()

	utilization := pool.Utilization()
	supply := cfg.Rates.SupplyRate(utilization, pool.ReserveFactor)
	m := &Market{
		Pool:        pool,
		Fund:        tx.Fund(),
		Utilization: utilization,
		BorrowRate:  cfg.Rates.BorrowRate(utilization),
		SupplyRate:  supply,
		SupplyApy:   core.AprToApy(supply),
	}
	if price, err := c.prices.CollateralPrice(); err == nil {
		m.Price = price
	}
	return m, nil
}

func (c *Controller) Config() (*core.ProtocolConfig, error) {
	cfg, ok := c.ledger.Config()
	if !ok {
		return nil, core.NotInitialized
	}
	return cfg, nil
}

func (c *Controller) Proposal(id uint64) (*core.Proposal, error) {
	p, ok := c.ledger.Proposal(id)
	if !ok {
		return nil, core.ProposalNotFound
	}
	return p, nil
}

func (c *Controller) Proposals() []*core.Proposal {
	return c.ledger.Proposals()
}

func (c *Controller) Accounts() []*core.Account {
	return c.ledger.Accounts()
}

func (c *Controller) Price() (decimal.Decimal, error) {
	return c.prices.CollateralPrice()
}

// Operates lists audit records newest first. Zero values disable a filter.
func (c *Controller) Operates(ctx context.Context, actor string, op core.ActionType, createdBefore, limit int64) ([]*core.Operate, error) {
	return c.ledger.Store().ListOperates(ctx, utils.NormalizeKey(actor), op, createdBefore, limit)
}

func (c *Controller) Intents(ctx context.Context, status core.IntentStatus) ([]*core.TransferIntent, error) {
	return c.ledger.Store().ListIntents(ctx, status)
}
