package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics tracks the committed state of the lending module.
type LendingMetrics struct {
	poolBalance  prometheus.Gauge
	outstanding  prometheus.Gauge
	locked       prometheus.Gauge
	activeLoans  prometheus.Gauge
	height       prometheus.Gauge
	loanOutcomes *prometheus.CounterVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the singleton lending metrics registry.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			poolBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lending_pool_balance",
				Help: "Liquidity available in the lender pool.",
			}),
			outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lending_outstanding_principal",
				Help: "Principal of loans that are still active.",
			}),
			locked: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lending_collateral_locked",
				Help: "Collateral pledged against active loans.",
			}),
			activeLoans: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lending_active_loans",
				Help: "Number of loans that have not reached a terminal state.",
			}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lending_chain_height",
				Help: "Committed chain height.",
			}),
			loanOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_loan_transitions_total",
				Help: "Loan lifecycle transitions by resulting status.",
			}, []string{"status"}),
		}
		prometheus.MustRegister(
			lendingRegistry.poolBalance,
			lendingRegistry.outstanding,
			lendingRegistry.locked,
			lendingRegistry.activeLoans,
			lendingRegistry.height,
			lendingRegistry.loanOutcomes,
		)
	})
	return lendingRegistry
}

// SetTreasury publishes the pool and outstanding principal gauges.
func (m *LendingMetrics) SetTreasury(pool, outstanding *big.Int) {
	if m == nil {
		return
	}
	m.poolBalance.Set(bigToFloat(pool))
	m.outstanding.Set(bigToFloat(outstanding))
}

// SetCollateralLocked publishes the locked collateral gauge.
func (m *LendingMetrics) SetCollateralLocked(locked *big.Int) {
	if m == nil {
		return
	}
	m.locked.Set(bigToFloat(locked))
}

// SetActiveLoans publishes the active loan gauge.
func (m *LendingMetrics) SetActiveLoans(count uint64) {
	if m == nil {
		return
	}
	m.activeLoans.Set(float64(count))
}

// SetHeight publishes the chain height gauge.
func (m *LendingMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

// RecordTransition counts a loan entering status.
func (m *LendingMetrics) RecordTransition(status string) {
	if m == nil || status == "" {
		return
	}
	m.loanOutcomes.WithLabelValues(status).Inc()
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	if math.IsInf(f, 0) {
		return math.MaxFloat64
	}
	return f
}
