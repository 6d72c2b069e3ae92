package engine

import (
	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/ledger"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Liquidations struct {
	log       core.Log
	prices    core.PriceFeed
	insurance *Insurance
}

func NewLiquidations(log core.Log, prices core.PriceFeed, insurance *Insurance) *Liquidations {
	return &Liquidations{log: log, prices: prices, insurance: insurance}
}

type LiquidationResult struct {
	Event *core.LiquidationEvent `json:"event"`
	Loss  *core.LossEvent        `json:"loss,omitempty"`
}

// Liquidate closes an unhealthy position. minRatioPercent and penaltyPercent
// are percentages (150, 10) and are capped by the protocol risk parameters.
//
// The liquidator pays the covered debt plus the insurance share of the
// penalty and receives the seized collateral. Debt the collateral cannot
// cover is drawn from the insurance fund, and what the fund cannot cover is
// booked as bad debt and reported as a loss.
func (e *Liquidations) Liquidate(tx *ledger.Tx, liquidator, borrower string, minRatioPercent, penaltyPercent decimal.Decimal) (*LiquidationResult, error) {
	cfg, err := requireConfig(tx)
	if err != nil {
		return nil, err
	}
	if liquidator == borrower {
		return nil, errors.Wrap(core.Unauthorized, "self liquidation")
	}
	if minRatioPercent.IsNegative() || penaltyPercent.IsNegative() {
		return nil, core.InvalidParams
	}

	account, ok := tx.Account(borrower)
	if !ok {
		return nil, core.NoOutstandingDebt
	}
	if _, err := accrue(e.log, tx, account); err != nil {
		return nil, err
	}

	risk, err := core.NewRiskEngine(cfg.Risk, e.prices)
	if err != nil {
		return nil, err
	}
	threshold := risk.EffectiveThreshold(core.PercentToRatio(minRatioPercent))
	penalty := risk.EffectivePenalty(core.PercentToRatio(penaltyPercent))

	preRatio, err := risk.CheckPreLiquidationCondition(account, threshold)
	if err != nil {
		return nil, errors.Wrapf(err, "ratio %s, threshold %s", preRatio, threshold)
	}

	price := risk.Price
	debt := account.Owed()

	target, err := core.CalcAmount(debt.Mul(core.ONE.Add(penalty)), price)
	if err != nil {
		return nil, err
	}
	seized := decimal.Min(account.CollateralBalance, target)
	seizedValue, _ := core.CalcValue(seized, price, nil)

	covered := decimal.Min(seizedValue, debt)
	penaltyValue := seizedValue.Sub(covered)
	insuranceShare := penaltyValue.Mul(cfg.Risk.InsuranceShare)
	reward := penaltyValue.Sub(insuranceShare)

	drawn, uncovered, err := e.insurance.Cover(tx, debt.Sub(covered))
	if err != nil {
		return nil, err
	}
	e.insurance.AddPenalty(tx, insuranceShare)

	if seized.IsPositive() {
		if err := tx.Debit(borrower, core.BalanceCollateral, seized); err != nil {
			return nil, err
		}
	}
	principal, interest := account.ClearDebt()
	account.Touch(tx.Now())

	pool := tx.Pool()
	pool.ChangeBorrows(principal.Neg())
	pool.ChangeCollateral(seized.Neg())
	pool.BookInterest(decimal.Min(interest, covered.Add(drawn)))
	if uncovered.IsPositive() {
		pool.RecordBadDebt(uncovered)
	}
	pool.Touch(tx.Now())

	event := &core.LiquidationEvent{
		Borrower:              borrower,
		Liquidator:            liquidator,
		CollateralSeized:      seized,
		CollateralPrice:       price,
		SeizedValue:           seizedValue,
		PreRatio:              preRatio,
		Threshold:             threshold,
		Penalty:               penalty,
		PrincipalCleared:      principal,
		InterestCleared:       interest,
		PenaltyValue:          penaltyValue,
		LiquidatorReward:      reward,
		InsuranceContribution: insuranceShare,
		InsuranceDraw:         drawn,
		BadDebt:               uncovered,
		RateVersion:           account.RateVersion,
		Timestamp:             tx.Now(),
	}
	result := &LiquidationResult{Event: event}
	if uncovered.IsPositive() {
		result.Loss = &core.LossEvent{
			Borrower:  borrower,
			Shortfall: debt.Sub(covered),
			Covered:   drawn,
			Amount:    uncovered,
			Timestamp: tx.Now(),
		}
	}

	if paid := covered.Add(insuranceShare); paid.IsPositive() {
		tx.Emit(core.NewTransferIntent(tx.Clock(), core.ActionLiquidate, liquidator, core.AssetLiquidity, core.DirectionIn, paid))
	}
	if seized.IsPositive() {
		tx.Emit(core.NewTransferIntent(tx.Clock(), core.ActionLiquidate, liquidator, core.AssetCollateral, core.DirectionOut, seized))
	}

	e.log.Info().Msgf("liquidate %s by %s: ratio %s, seized %s, debt %s, reward %s, insurance %s, drawn %s, bad debt %s",
		borrower, liquidator, preRatio, seized, debt, reward, insuranceShare, drawn, uncovered)
	return result, nil
}
