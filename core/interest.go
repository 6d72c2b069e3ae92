package core

import (
	"github.com/shopspring/decimal"
)

type (
	InterestRateParams struct {
		BaseRate       decimal.Decimal `json:"baseRate"`
		RateMultiplier decimal.Decimal `json:"rateMultiplier"`

		Version   uint64 `json:"version"`
		UpdatedAt int64  `json:"updatedAt"`
	}
)

func NewInterestRateParams(baseRate, rateMultiplier decimal.Decimal, now int64) InterestRateParams {
	return InterestRateParams{
		BaseRate:       baseRate,
		RateMultiplier: rateMultiplier,
		Version:        1,
		UpdatedAt:      now,
	}
}

func ValidateRates(baseRate, rateMultiplier decimal.Decimal) error {
	if baseRate.IsNegative() || rateMultiplier.IsNegative() {
		return InvalidParams
	}
	if baseRate.GreaterThan(MAX_RATE_PARAM) || rateMultiplier.GreaterThan(MAX_RATE_PARAM) {
		return InvalidParams
	}
	return nil
}

func (p *InterestRateParams) Validate() error {
	return ValidateRates(p.BaseRate, p.RateMultiplier)
}

func (p *InterestRateParams) Update(baseRate, rateMultiplier decimal.Decimal, now int64) error {
	if err := ValidateRates(baseRate, rateMultiplier); err != nil {
		return err
	}
	p.BaseRate = baseRate
	p.RateMultiplier = rateMultiplier
	p.Version++
	p.UpdatedAt = now
	return nil
}

// BorrowRate is the annualised borrow rate at the given utilization.
func (p *InterestRateParams) BorrowRate(utilization decimal.Decimal) decimal.Decimal {
	return p.BaseRate.Add(p.RateMultiplier.Mul(utilization))
}

// SupplyRate is what lenders earn after the reserve cut.
func (p *InterestRateParams) SupplyRate(utilization, reserveFactor decimal.Decimal) decimal.Decimal {
	return p.BorrowRate(utilization).Mul(utilization).Mul(ONE.Sub(reserveFactor))
}

// Accrue books interest owed by the account since its last accrual and moves
// the accrual timestamp to now. Repeated calls at the same timestamp are no-ops.
func (p *InterestRateParams) Accrue(log Log, account *Account, pool *LendingPool, now int64) decimal.Decimal {
	elapsed := now - account.LastAccrualTimestamp
	if elapsed <= 0 {
		return decimal.Zero
	}
	stale := account.RateVersion != p.Version && account.LastAccrualTimestamp < p.UpdatedAt
	account.LastAccrualTimestamp = now
	account.RateVersion = p.Version

	if !account.BorrowedPrincipal.IsPositive() {
		return decimal.Zero
	}
	if stale {
		log.Warn().Msgf("accrue %s: loan was not settled before rate version %d", account.Key, p.Version)
	}

	utilization := pool.Utilization()
	rate := p.BorrowRate(utilization)
	delta := CalcInterestPaymentForPeriod(rate, uint64(elapsed), account.BorrowedPrincipal)

	log.Debug().Msgf("accrue %s: elapsed %d, utilization %s, rate %s, delta %s", account.Key, elapsed, utilization, rate, delta)

	account.AccruedInterest = account.AccruedInterest.Add(delta)
	return delta
}
