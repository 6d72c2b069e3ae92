package metrics

import (
	"sync"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/prometheus/client_golang/prometheus"
)

type LendingMetrics struct {
	operations       *prometheus.CounterVec
	liquidations     prometheus.Counter
	badDebt          prometheus.Counter
	insuranceDrawn   prometheus.Counter
	intentFailures   prometheus.Counter
	totalDeposited   prometheus.Gauge
	totalBorrowed    prometheus.Gauge
	utilization      prometheus.Gauge
	totalReserves    prometheus.Gauge
	insuranceBalance prometheus.Gauge
	configVersion    prometheus.Gauge
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the process wide metrics registered on the default
// prometheus registerer.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = New(prometheus.DefaultRegisterer)
	})
	return lendingRegistry
}

func New(reg prometheus.Registerer) *LendingMetrics {
	m := &LendingMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lending_operations_total",
			Help: "Count of protocol operations by action and result code.",
		}, []string{"action", "result"}),
		liquidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lending_liquidations_total",
			Help: "Number of executed liquidations.",
		}),
		badDebt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lending_bad_debt_total",
			Help: "Cumulative debt left uncovered after collateral and insurance.",
		}),
		insuranceDrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lending_insurance_drawn_total",
			Help: "Cumulative amount drawn from the insurance fund.",
		}),
		intentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lending_transfer_intent_failures_total",
			Help: "Number of transfer intents the custodian failed to execute.",
		}),
		totalDeposited: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lending_pool_total_deposited",
			Help: "Liquidity deposited in the pool.",
		}),
		totalBorrowed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lending_pool_total_borrowed",
			Help: "Liquidity lent out of the pool.",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lending_pool_utilization",
			Help: "Borrowed over deposited.",
		}),
		totalReserves: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lending_pool_reserves",
			Help: "Protocol share of repaid interest.",
		}),
		insuranceBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lending_insurance_fund_balance",
			Help: "Insurance fund balance.",
		}),
		configVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lending_config_version",
			Help: "Version of the protocol configuration record.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.operations,
			m.liquidations,
			m.badDebt,
			m.insuranceDrawn,
			m.intentFailures,
			m.totalDeposited,
			m.totalBorrowed,
			m.utilization,
			m.totalReserves,
			m.insuranceBalance,
			m.configVersion,
		)
	}
	return m
}

func (m *LendingMetrics) ObserveOperation(action core.ActionType, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(action.String(), core.ErrorCode(err)).Inc()
}

func (m *LendingMetrics) ObserveLiquidation(ev *core.LiquidationEvent) {
	if m == nil || ev == nil {
		return
	}
	m.liquidations.Inc()
	if ev.InsuranceDraw.IsPositive() {
		m.insuranceDrawn.Add(ev.InsuranceDraw.InexactFloat64())
	}
	if ev.BadDebt.IsPositive() {
		m.badDebt.Add(ev.BadDebt.InexactFloat64())
	}
}

func (m *LendingMetrics) ObserveIntentFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.intentFailures.Add(float64(n))
}

func (m *LendingMetrics) ObserveState(cfg *core.ProtocolConfig, pool *core.LendingPool, fund *core.InsuranceFund) {
	if m == nil {
		return
	}
	if cfg != nil {
		m.configVersion.Set(float64(cfg.Version))
	}
	if pool != nil {
		m.totalDeposited.Set(pool.TotalDeposited.InexactFloat64())
		m.totalBorrowed.Set(pool.TotalBorrowed.InexactFloat64())
		m.utilization.Set(pool.Utilization().InexactFloat64())
		m.totalReserves.Set(pool.TotalReserves.InexactFloat64())
	}
	if fund != nil {
		m.insuranceBalance.Set(fund.Balance.InexactFloat64())
	}
}
