package core

import (
	"github.com/shopspring/decimal"
)

const (
	SECONDS_PER_YEAR = 31_536_000

	HOURS_PER_YEAR = 365.25 * 24

	DEFAULT_VOTING_PERIOD = 3 * 24 * 60 * 60
)

var (
	ONE     = decimal.NewFromInt(1)
	HUNDRED = decimal.NewFromInt(100)

	ZERO_AMOUNT_THRESHOLD   = decimal.Zero
	EMPTY_BALANCE_THRESHOLD = decimal.NewFromFloat(0.00000001)

	DEFAULT_BASE_RATE       = decimal.NewFromFloat(0.02)
	DEFAULT_RATE_MULTIPLIER = decimal.NewFromFloat(0.2)

	DEFAULT_MIN_COLLATERAL_RATIO    = decimal.NewFromFloat(1.5)
	DEFAULT_LIQUIDATION_THRESHOLD   = decimal.NewFromFloat(1.5)
	DEFAULT_MAX_LIQUIDATION_PENALTY = decimal.NewFromFloat(0.1)
	DEFAULT_INSURANCE_SHARE         = decimal.NewFromFloat(0.5)
	DEFAULT_RESERVE_FACTOR          = decimal.NewFromFloat(0.1)

	// upper bound on any annualised rate parameter (1000%)
	MAX_RATE_PARAM = decimal.NewFromInt(10)
)
