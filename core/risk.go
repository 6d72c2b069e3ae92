package core

import (
	"github.com/shopspring/decimal"
)

type (
	RiskParams struct {
		MinCollateralRatio    decimal.Decimal `json:"minCollateralRatio"`
		LiquidationThreshold  decimal.Decimal `json:"liquidationThreshold"`
		MaxLiquidationPenalty decimal.Decimal `json:"maxLiquidationPenalty"`
		InsuranceShare        decimal.Decimal `json:"insuranceShare"`
	}
)

func DefaultRiskParams() RiskParams {
	return RiskParams{
		MinCollateralRatio:    DEFAULT_MIN_COLLATERAL_RATIO,
		LiquidationThreshold:  DEFAULT_LIQUIDATION_THRESHOLD,
		MaxLiquidationPenalty: DEFAULT_MAX_LIQUIDATION_PENALTY,
		InsuranceShare:        DEFAULT_INSURANCE_SHARE,
	}
}

func (r *RiskParams) Validate() error {
	if r.MinCollateralRatio.LessThan(ONE) {
		return InvalidParams
	}
	if r.LiquidationThreshold.LessThan(ONE) || r.LiquidationThreshold.GreaterThan(r.MinCollateralRatio) {
		return InvalidParams
	}
	if r.MaxLiquidationPenalty.IsNegative() || r.MaxLiquidationPenalty.GreaterThanOrEqual(ONE) {
		return InvalidParams
	}
	if r.InsuranceShare.IsNegative() || r.InsuranceShare.GreaterThan(ONE) {
		return InvalidParams
	}
	return nil
}

type RiskEngine struct {
	Params RiskParams
	Price  decimal.Decimal
}

func NewRiskEngine(params RiskParams, priceFeed PriceFeed) (*RiskEngine, error) {
	price, err := priceFeed.CollateralPrice()
	if err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, PriceUnavailable
	}
	return &RiskEngine{Params: params, Price: price}, nil
}

// ProjectedRatio is collateral value over debt for a hypothetical position.
func (r *RiskEngine) ProjectedRatio(collateral, debt decimal.Decimal) decimal.Decimal {
	if !debt.IsPositive() {
		return decimal.Zero
	}
	value, _ := CalcValue(collateral, r.Price, nil)
	return value.Div(debt)
}

func (r *RiskEngine) CheckProjectedHealth(collateral, debt decimal.Decimal, requirementType RequirementType) error {
	if !debt.IsPositive() {
		return nil
	}
	if r.ProjectedRatio(collateral, debt).LessThan(r.Params.GetRatio(requirementType)) {
		return UndercollateralizedRequest
	}
	return nil
}

func (r *RiskEngine) CheckAccountHealth(account *Account, requirementType RequirementType) error {
	return r.CheckProjectedHealth(account.CollateralBalance, account.Owed(), requirementType)
}

// CheckPreLiquidationCondition returns the current ratio when the account is
// below the effective threshold, PositionHealthy otherwise.
func (r *RiskEngine) CheckPreLiquidationCondition(account *Account, threshold decimal.Decimal) (decimal.Decimal, error) {
	ratio, ok := account.CollateralRatio(r.Price)
	if !ok {
		return decimal.Zero, NoOutstandingDebt
	}
	if ratio.GreaterThanOrEqual(threshold) {
		return ratio, PositionHealthy
	}
	return ratio, nil
}

// EffectiveThreshold caps a caller supplied ratio by the maintenance level.
func (r *RiskEngine) EffectiveThreshold(requested decimal.Decimal) decimal.Decimal {
	maintenance := r.Params.GetRatio(Maintenance)
	if !requested.IsPositive() {
		return maintenance
	}
	return decimal.Min(requested, maintenance)
}

func (r *RiskEngine) EffectivePenalty(requested decimal.Decimal) decimal.Decimal {
	if requested.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(requested, r.Params.MaxLiquidationPenalty)
}
