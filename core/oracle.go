package core

import (
	"sync"

	"github.com/shopspring/decimal"
)

// PriceFeed converts collateral units into liquidity units.
type PriceFeed interface {
	CollateralPrice() (decimal.Decimal, error)
}

type OracleSetup uint8

const (
	StaticOracle OracleSetup = iota
)

func (os OracleSetup) String() string {
	switch os {
	case StaticOracle:
		return "Static"
	default:
		return "Unknown"
	}
}

// StaticPriceFeed holds an admin-set price.
type StaticPriceFeed struct {
	mu        sync.RWMutex
	price     decimal.Decimal
	updatedAt int64
}

func NewStaticPriceFeed(price decimal.Decimal) *StaticPriceFeed {
	return &StaticPriceFeed{price: price}
}

func (f *StaticPriceFeed) CollateralPrice() (decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.price.IsPositive() {
		return decimal.Zero, PriceUnavailable
	}
	return f.price, nil
}

func (f *StaticPriceFeed) SetPrice(price decimal.Decimal, now int64) error {
	if !price.IsPositive() {
		return InvalidParams
	}
	f.mu.Lock()
	f.price = price
	f.updatedAt = now
	f.mu.Unlock()
	return nil
}

func (f *StaticPriceFeed) UpdatedAt() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.updatedAt
}
