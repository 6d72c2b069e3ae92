package core

import (
	"github.com/shopspring/decimal"
)

type (
	Asset struct {
		Symbol    string          `json:"symbol,omitempty" toml:"symbol"`
		Name      string          `json:"name,omitempty" toml:"name"`
		Precision int32           `json:"precision,omitempty" toml:"precision"`
		Dust      decimal.Decimal `json:"dust,omitempty" toml:"dust"`
	}
)

// CheckAmount rejects non-positive amounts, amounts below dust and amounts
// carrying more decimals than the asset supports.
func (a Asset) CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	if a.Dust.IsPositive() && amount.LessThan(a.Dust) {
		return InvalidAmount
	}
	if a.Precision > 0 && !amount.Truncate(a.Precision).Equal(amount) {
		return InvalidAmount
	}
	return nil
}

type AssetKind uint8

const (
	AssetLiquidity AssetKind = iota + 1
	AssetCollateral
)

func (k AssetKind) String() string {
	switch k {
	case AssetLiquidity:
		return "liquidity"
	case AssetCollateral:
		return "collateral"
	default:
		return "unknown"
	}
}

type BalanceKind uint8

const (
	BalanceDeposit BalanceKind = iota + 1
	BalanceCollateral
)

func (k BalanceKind) String() string {
	switch k {
	case BalanceDeposit:
		return "Deposit"
	case BalanceCollateral:
		return "Collateral"
	default:
		return "Unknown"
	}
}

func (k BalanceKind) Asset() AssetKind {
	if k == BalanceCollateral {
		return AssetCollateral
	}
	return AssetLiquidity
}
