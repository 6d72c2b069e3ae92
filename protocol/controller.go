// Package protocol is the entry point of the lending engine. The Controller
// checks roles, serialises every operation, commits the resulting ledger
// transaction and hands transfer intents to the custodian afterwards.
package protocol

import (
	"context"
	"sync"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/engine"
	"github.com/DomeLiquid/lendcore/ledger"
	"github.com/DomeLiquid/lendcore/metrics"
	"github.com/DomeLiquid/lendcore/utils"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Controller struct {
	mu sync.Mutex

	clk       clock.Clock
	log       core.Log
	ledger    *ledger.Ledger
	prices    *core.StaticPriceFeed
	custodian core.Custodian
	metrics   *metrics.LendingMetrics

	bootstrap core.Bootstrap
	admin     string

	loans        *engine.Loans
	liquidations *engine.Liquidations
	insurance    *engine.Insurance
	governance   *engine.Governance
}

type Option func(*Controller)

func WithCustodian(custodian core.Custodian) Option {
	return func(c *Controller) { c.custodian = custodian }
}

func WithMetrics(m *metrics.LendingMetrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithBootstrap(b core.Bootstrap) Option {
	return func(c *Controller) { c.bootstrap = b }
}

// WithAdmin restricts Initialize to the given key. Without it the first
// caller to initialize becomes the admin.
func WithAdmin(key string) Option {
	return func(c *Controller) { c.admin = utils.NormalizeKey(key) }
}

func New(clk clock.Clock, log core.Log, l *ledger.Ledger, prices *core.StaticPriceFeed, opts ...Option) *Controller {
	c := &Controller{
		clk:       clk,
		log:       log,
		ledger:    l,
		prices:    prices,
		bootstrap: core.DefaultBootstrap(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.custodian == nil {
		c.custodian = NewLogCustodian(log)
	}

	c.insurance = engine.NewInsurance(log)
	c.loans = engine.NewLoans(log, prices)
	c.liquidations = engine.NewLiquidations(log, prices, c.insurance)
	c.governance = engine.NewGovernance(log)
	return c
}

type opFunc func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error)

// execute runs one operation as a single atomic transition.
func (c *Controller) execute(ctx context.Context, caller string, action core.ActionType, fn opFunc) (*Receipt, error) {
	caller = utils.NormalizeKey(caller)
	if caller == "" {
		c.metrics.ObserveOperation(action, core.Unauthorized)
		return nil, errors.Wrap(core.Unauthorized, "missing caller identity")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx := c.ledger.Begin()
	r := &Receipt{Action: action, Caller: caller, Timestamp: tx.Now()}

	detail, err := fn(tx, r)
	if err == nil && action.MutatesBalances() {
		err = tx.Pool().CheckUtilizationRatio()
	}
	if err != nil {
		tx.Discard()
		c.metrics.ObserveOperation(action, err)
		c.log.Warn().Msgf("%s by %s rejected: %v", action, caller, err)
		return nil, err
	}

	if cfg := tx.Config(); cfg != nil {
		r.ConfigVersion = cfg.Version
		detail.ConfigVersion = cfg.Version
	}
	tx.Record(core.NewOperate(c.clk, caller, action, detail))
	r.Intents = tx.Intents()

	if err := tx.Commit(ctx); err != nil {
		c.metrics.ObserveOperation(action, err)
		c.log.Error().Msgf("%s by %s: %v", action, caller, err)
		return nil, err
	}

	c.metrics.ObserveOperation(action, nil)
	c.metrics.ObserveState(tx.Config(), tx.Pool(), tx.Fund())
	c.metrics.ObserveLiquidation(r.Liquidation)
	c.dispatch(ctx, r.Intents)
	return r, nil
}

// dispatch hands committed intents to the custodian and records the outcome.
func (c *Controller) dispatch(ctx context.Context, intents []*core.TransferIntent) {
	if len(intents) == 0 {
		return
	}

	status, message := core.IntentConfirmed, ""
	if err := c.custodian.Transfer(ctx, intents); err != nil {
		status, message = core.IntentFailed, err.Error()
		c.metrics.ObserveIntentFailures(len(intents))
		c.log.Error().Msgf("custodian transfer of %d intents: %v", len(intents), err)
	}

	store := c.ledger.Store()
	for _, i := range intents {
		i.UpdateStatus(c.clk, status, message)
		if err := store.UpdateIntentStatus(ctx, i.Id, status, message, i.UpdatedAt); err != nil {
			c.log.Error().Msgf("update intent %s to %s: %v", i.Id, status, err)
		}
	}
}

func configOf(tx *ledger.Tx) (*core.ProtocolConfig, error) {
	cfg := tx.Config()
	if cfg == nil || !cfg.Initialized {
		return nil, core.NotInitialized
	}
	return cfg, nil
}

func requireAdmin(tx *ledger.Tx, caller string) (*core.ProtocolConfig, error) {
	cfg, err := configOf(tx)
	if err != nil {
		return nil, err
	}
	if !cfg.IsAdmin(caller) {
		return nil, errors.Wrapf(core.Unauthorized, "%s is not admin", caller)
	}
	return cfg, nil
}

func (c *Controller) Initialize(ctx context.Context, caller string) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionInitialize, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		if tx.Config() != nil {
			return core.OperateDetail{}, core.AlreadyInitialized
		}
		if c.admin != "" && c.admin != r.Caller {
			return core.OperateDetail{}, errors.Wrapf(core.Unauthorized, "%s is not admin", r.Caller)
		}
		if err := c.bootstrap.Validate(); err != nil {
			return core.OperateDetail{}, errors.Wrap(err, "bootstrap parameters")
		}

		cfg := core.NewProtocolConfig(c.clk, r.Caller, c.bootstrap)
		tx.SetConfig(cfg)
		tx.SetPool(core.NewLendingPool(c.clk, c.bootstrap.ReserveFactor))
		tx.SetFund(core.NewInsuranceFund(c.clk))

		r.Config = cfg
		c.log.Info().Msgf("protocol initialized by %s", r.Caller)
		return core.OperateDetail{}, nil
	})
}

func (c *Controller) Lend(ctx context.Context, caller string, amount decimal.Decimal) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionLend, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		cfg, err := configOf(tx)
		if err != nil {
			return core.OperateDetail{}, err
		}
		if err := cfg.LiquidityAsset.CheckAmount(amount); err != nil {
			return core.OperateDetail{}, err
		}
		res, err := c.loans.Lend(tx, r.Caller, amount)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Account, r.Accrued = res.Account, res.Accrued
		return core.OperateDetail{Amount: amount, Accrued: res.Accrued}, nil
	})
}

func (c *Controller) Withdraw(ctx context.Context, caller string, amount decimal.Decimal) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionWithdraw, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		cfg, err := configOf(tx)
		if err != nil {
			return core.OperateDetail{}, err
		}
		if err := cfg.LiquidityAsset.CheckAmount(amount); err != nil {
			return core.OperateDetail{}, err
		}
		res, err := c.loans.Withdraw(tx, r.Caller, amount)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Account, r.Accrued = res.Account, res.Accrued
		return core.OperateDetail{Amount: amount, Accrued: res.Accrued}, nil
	})
}

func (c *Controller) Borrow(ctx context.Context, caller string, amount, collateral, requestedRate decimal.Decimal) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionBorrow, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		cfg, err := configOf(tx)
		if err != nil {
			return core.OperateDetail{}, err
		}
		if err := cfg.LiquidityAsset.CheckAmount(amount); err != nil {
			return core.OperateDetail{}, err
		}
		if err := cfg.CollateralAsset.CheckAmount(collateral); err != nil {
			return core.OperateDetail{}, err
		}
		res, err := c.loans.Borrow(tx, r.Caller, amount, collateral, requestedRate)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Account, r.Accrued = res.Account, res.Accrued
		return core.OperateDetail{Amount: amount, Collateral: collateral, RequestedRate: requestedRate, Accrued: res.Accrued}, nil
	})
}

func (c *Controller) Repay(ctx context.Context, caller string, amount decimal.Decimal) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionRepay, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		if _, err := configOf(tx); err != nil {
			return core.OperateDetail{}, err
		}
		res, err := c.loans.Repay(tx, r.Caller, amount)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Account, r.Accrued = res.Account, res.Accrued
		r.InterestPaid, r.PrincipalPaid = res.InterestPaid, res.PrincipalPaid
		return core.OperateDetail{Amount: amount, Accrued: res.Accrued}, nil
	})
}

func (c *Controller) WithdrawCollateral(ctx context.Context, caller string, amount decimal.Decimal) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionWithdrawCollateral, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		cfg, err := configOf(tx)
		if err != nil {
			return core.OperateDetail{}, err
		}
		if err := cfg.CollateralAsset.CheckAmount(amount); err != nil {
			return core.OperateDetail{}, err
		}
		res, err := c.loans.WithdrawCollateral(tx, r.Caller, amount)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Account, r.Accrued = res.Account, res.Accrued
		return core.OperateDetail{Collateral: amount, Accrued: res.Accrued}, nil
	})
}

// Liquidate may be attempted by any caller against any unhealthy position.
func (c *Controller) Liquidate(ctx context.Context, caller, borrower string, minRatioPercent, penaltyPercent decimal.Decimal) (*Receipt, error) {
	borrower = utils.NormalizeKey(borrower)
	return c.execute(ctx, caller, core.ActionLiquidate, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		if _, err := configOf(tx); err != nil {
			return core.OperateDetail{}, err
		}
		res, err := c.liquidations.Liquidate(tx, r.Caller, borrower, minRatioPercent, penaltyPercent)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Liquidation, r.Loss = res.Event, res.Loss
		r.Account, _ = tx.Account(borrower)
		r.Fund = tx.Fund()
		return core.OperateDetail{Target: borrower, Liquidation: res.Event, Loss: res.Loss}, nil
	})
}

// UpdateInterestRate is the admin bootstrap path. Once governance is
// launched rate changes go through proposals.
func (c *Controller) UpdateInterestRate(ctx context.Context, caller string, baseRate, rateMultiplier decimal.Decimal) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionUpdateInterestRate, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		if _, err := requireAdmin(tx, r.Caller); err != nil {
			return core.OperateDetail{}, err
		}
		cfg, err := c.governance.UpdateInterestRate(tx, baseRate, rateMultiplier)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Config = cfg
		return core.OperateDetail{Change: &core.ParamChange{
			Class:          core.ParamClassInterestRate,
			BaseRate:       decimal.NewNullDecimal(baseRate),
			RateMultiplier: decimal.NewNullDecimal(rateMultiplier),
		}}, nil
	})
}

func (c *Controller) UpdateRiskParams(ctx context.Context, caller string, change core.ParamChange) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionUpdateRiskParams, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		if _, err := requireAdmin(tx, r.Caller); err != nil {
			return core.OperateDetail{}, err
		}
		cfg, err := c.governance.ApplyBootstrap(tx, change)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Config = cfg
		return core.OperateDetail{Change: &change}, nil
	})
}

func (c *Controller) LaunchGovernance(ctx context.Context, caller string) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionLaunchGovernance, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		if _, err := requireAdmin(tx, r.Caller); err != nil {
			return core.OperateDetail{}, err
		}
		cfg, err := c.governance.LaunchGovernance(tx)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Config = cfg
		return core.OperateDetail{}, nil
	})
}

func (c *Controller) Propose(ctx context.Context, caller string, change core.ParamChange) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionPropose, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		if _, err := configOf(tx); err != nil {
			return core.OperateDetail{}, err
		}
		p, err := c.governance.Propose(tx, r.Caller, change)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Proposal = p
		return core.OperateDetail{ProposalId: p.Id, Change: &change}, nil
	})
}

func (c *Controller) Vote(ctx context.Context, caller string, proposalId uint64, inFavor bool) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionVote, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		if _, err := configOf(tx); err != nil {
			return core.OperateDetail{}, err
		}
		p, err := c.governance.Vote(tx, r.Caller, proposalId, inFavor)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Proposal = p
		return core.OperateDetail{ProposalId: proposalId, InFavor: &inFavor}, nil
	})
}

// Finalize tallies a proposal whose voting window has ended. Any caller may
// trigger it.
func (c *Controller) Finalize(ctx context.Context, caller string, proposalId uint64) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionFinalize, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		if _, err := configOf(tx); err != nil {
			return core.OperateDetail{}, err
		}
		p, err := c.governance.Finalize(tx, proposalId)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Proposal = p
		return core.OperateDetail{ProposalId: proposalId}, nil
	})
}

func (c *Controller) Execute(ctx context.Context, caller string, proposalId uint64) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionExecute, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		if _, err := configOf(tx); err != nil {
			return core.OperateDetail{}, err
		}
		p, err := c.governance.Execute(tx, proposalId)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Proposal, r.Config = p, tx.Config()
		return core.OperateDetail{ProposalId: proposalId, Change: &p.Payload}, nil
	})
}

func (c *Controller) DepositToInsuranceFund(ctx context.Context, caller string, amount decimal.Decimal) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionDepositInsurance, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		cfg, err := requireAdmin(tx, r.Caller)
		if err != nil {
			return core.OperateDetail{}, err
		}
		if err := cfg.LiquidityAsset.CheckAmount(amount); err != nil {
			return core.OperateDetail{}, err
		}
		fund, err := c.insurance.Deposit(tx, r.Caller, amount)
		if err != nil {
			return core.OperateDetail{}, err
		}
		r.Fund = fund
		return core.OperateDetail{Amount: amount}, nil
	})
}

// SetCollateralPrice feeds the static price source. The feed is updated
// when the audit record commits, before the next operation can start.
func (c *Controller) SetCollateralPrice(ctx context.Context, caller string, price decimal.Decimal) (*Receipt, error) {
	return c.execute(ctx, caller, core.ActionSetPrice, func(tx *ledger.Tx, r *Receipt) (core.OperateDetail, error) {
		if _, err := requireAdmin(tx, r.Caller); err != nil {
			return core.OperateDetail{}, err
		}
		if !price.IsPositive() {
			return core.OperateDetail{}, core.InvalidParams
		}
		tx.OnCommit(func() {
			if err := c.prices.SetPrice(price, tx.Now()); err != nil {
				c.log.Error().Msgf("set collateral price %s: %v", price, err)
				return
			}
			c.log.Info().Msgf("collateral price set to %s by %s", price, r.Caller)
		})
		return core.OperateDetail{Amount: price}, nil
	})
}

// Restore loads the ledger from its store and replays the last committed
// collateral price into the price feed.
func (c *Controller) Restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ledger.Restore(ctx); err != nil {
		return errors.Wrap(err, "restore ledger")
	}
	ops, err := c.ledger.Store().ListOperates(ctx, "", core.ActionSetPrice, 0, 1)
	if err != nil {
		return errors.Wrap(err, "load last price")
	}
	if len(ops) == 0 {
		return nil
	}
	last := ops[0]
	if err := c.prices.SetPrice(last.Extra.Amount, last.CreatedAt); err != nil {
		return errors.Wrapf(err, "replay price %s", last.Extra.Amount)
	}
	c.log.Info().Msgf("collateral price restored to %s", last.Extra.Amount)
	return nil
}
