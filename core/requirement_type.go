package core

import "github.com/shopspring/decimal"

type RequirementType uint8

const (
	// Initial is checked when a position grows or collateral leaves it.
	Initial RequirementType = iota
	// Maintenance is the level below which a position may be liquidated.
	Maintenance
)

func (rt RequirementType) String() string {
	switch rt {
	case Initial:
		return "Initial"
	case Maintenance:
		return "Maintenance"
	default:
		return "Unknown"
	}
}

func (r *RiskParams) GetRatio(requirementType RequirementType) decimal.Decimal {
	switch requirementType {
	case Initial:
		return r.MinCollateralRatio
	case Maintenance:
		return r.LiquidationThreshold
	default:
		return decimal.Zero
	}
}
