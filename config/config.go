package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/DomeLiquid/lendcore/core"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	StoreMemory   = "memory"
	StoreSqlite   = "sqlite"
	StorePostgres = "postgres"
	StoreBolt     = "bolt"
	StoreLevel    = "leveldb"
)

type Config struct {
	// AdminKey, when set, is the only key allowed to initialize the protocol.
	AdminKey string `toml:"AdminKey"`

	Store    StoreConfig    `toml:"Store"`
	HTTP     HTTPConfig     `toml:"HTTP"`
	Log      LogConfig      `toml:"Log"`
	Oracle   OracleConfig   `toml:"Oracle"`
	Protocol ProtocolConfig `toml:"Protocol"`
}

type StoreConfig struct {
	Driver string `toml:"Driver"`
	// DSN is a connection string for postgres or a file path for the
	// embedded drivers.
	DSN string `toml:"DSN"`
}

type HTTPConfig struct {
	ListenAddress string `toml:"ListenAddress"`
}

type LogConfig struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Console    bool   `toml:"Console"`
}

type OracleConfig struct {
	Setup        string          `toml:"Setup"`
	InitialPrice decimal.Decimal `toml:"InitialPrice"`
}

type ProtocolConfig struct {
	LiquidityAsset  core.Asset `toml:"LiquidityAsset"`
	CollateralAsset core.Asset `toml:"CollateralAsset"`

	BaseRate       decimal.Decimal `toml:"BaseRate"`
	RateMultiplier decimal.Decimal `toml:"RateMultiplier"`

	MinCollateralRatio    decimal.Decimal `toml:"MinCollateralRatio"`
	LiquidationThreshold  decimal.Decimal `toml:"LiquidationThreshold"`
	MaxLiquidationPenalty decimal.Decimal `toml:"MaxLiquidationPenalty"`
	InsuranceShare        decimal.Decimal `toml:"InsuranceShare"`
	ReserveFactor         decimal.Decimal `toml:"ReserveFactor"`

	VotingPeriod      int64  `toml:"VotingPeriod"`
	ApprovalThreshold uint64 `toml:"ApprovalThreshold"`
}

func Default() *Config {
	b := core.DefaultBootstrap()
	return &Config{
		Store: StoreConfig{Driver: StoreMemory},
		HTTP:  HTTPConfig{ListenAddress: ":8080"},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 30,
			Console:    true,
		},
		Oracle: OracleConfig{Setup: "static", InitialPrice: core.ONE},
		Protocol: ProtocolConfig{
			LiquidityAsset:        b.LiquidityAsset,
			CollateralAsset:       b.CollateralAsset,
			BaseRate:              b.Rates.BaseRate,
			RateMultiplier:        b.Rates.RateMultiplier,
			MinCollateralRatio:    b.Risk.MinCollateralRatio,
			LiquidationThreshold:  b.Risk.LiquidationThreshold,
			MaxLiquidationPenalty: b.Risk.MaxLiquidationPenalty,
			InsuranceShare:        b.Risk.InsuranceShare,
			ReserveFactor:         b.ReserveFactor,
			VotingPeriod:          b.Governance.VotingPeriod,
			ApprovalThreshold:     b.Governance.ApprovalThreshold,
		},
	}
}

// Load reads the file at path over the defaults. A missing file yields the
// defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, errors.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.AdminKey = strings.TrimSpace(cfg.AdminKey)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSqlite, StorePostgres, StoreBolt, StoreLevel:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return errors.Errorf("store driver %s needs a DSN", c.Store.Driver)
		}
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if !strings.EqualFold(c.Oracle.Setup, core.StaticOracle.String()) {
		return errors.Errorf("unsupported oracle setup %q", c.Oracle.Setup)
	}
	if !c.Oracle.InitialPrice.IsPositive() {
		return errors.Wrap(core.InvalidParams, "initial price must be positive")
	}

	b := c.Bootstrap()
	if err := b.Validate(); err != nil {
		return errors.Wrap(err, "protocol parameters")
	}
	return nil
}

func (c *Config) Bootstrap() core.Bootstrap {
	p := c.Protocol
	return core.Bootstrap{
		LiquidityAsset:  p.LiquidityAsset,
		CollateralAsset: p.CollateralAsset,
		Rates: core.InterestRateParams{
			BaseRate:       p.BaseRate,
			RateMultiplier: p.RateMultiplier,
		},
		Risk: core.RiskParams{
			MinCollateralRatio:    p.MinCollateralRatio,
			LiquidationThreshold:  p.LiquidationThreshold,
			MaxLiquidationPenalty: p.MaxLiquidationPenalty,
			InsuranceShare:        p.InsuranceShare,
		},
		ReserveFactor: p.ReserveFactor,
		Governance: core.GovernancePolicy{
			VotingPeriod:      p.VotingPeriod,
			ApprovalThreshold: p.ApprovalThreshold,
		},
	}
}
