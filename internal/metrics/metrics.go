// Package metrics holds the Prometheus collectors for the trading engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cryptobot"

// Cycle outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics is the set of engine collectors. The recorders are no-ops on a nil *Metrics.
type Metrics struct {
	CyclesTotal           *prometheus.CounterVec
	CycleDuration         prometheus.Histogram
	TradesTotal           *prometheus.CounterVec
	TradeFailuresTotal    prometheus.Counter
	ReserveAllocatedTotal prometheus.Counter
	ReserveTransfersTotal prometheus.Counter
	EngineRunning         prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Trading cycles run, by outcome",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Trading cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Trades recorded, by strategy and side",
		}, []string{"strategy", "side"}),
		TradeFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_failures_total",
			Help:      "Order intents that could not be recorded",
		}),
		ReserveAllocatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reserve_allocated_total",
			Help:      "Profit moved into the reserve balance",
		}),
		ReserveTransfersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reserve_transfers_total",
			Help:      "Reserve-to-balance transfers performed",
		}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_running",
			Help:      "1 while the trading loop is running",
		}),
	}

	collectors := []prometheus.Collector{
		m.CyclesTotal,
		m.CycleDuration,
		m.TradesTotal,
		m.TradeFailuresTotal,
		m.ReserveAllocatedTotal,
		m.ReserveTransfersTotal,
		m.EngineRunning,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordCycle counts one finished cycle.
func (m *Metrics) RecordCycle(seconds float64, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(seconds)
}

// RecordTrade counts one recorded trade.
func (m *Metrics) RecordTrade(strategy, side string) {
	if m == nil {
		return
	}
	m.TradesTotal.WithLabelValues(strategy, side).Inc()
}

// RecordTradeFailure counts one intent that was dropped.
func (m *Metrics) RecordTradeFailure() {
	if m == nil {
		return
	}
	m.TradeFailuresTotal.Inc()
}

// RecordReserveAllocation adds an allocated amount.
func (m *Metrics) RecordReserveAllocation(amount float64) {
	if m == nil {
		return
	}
	if amount > 0 {
		m.ReserveAllocatedTotal.Add(amount)
	}
}

// RecordReserveTransfer counts one transfer.
func (m *Metrics) RecordReserveTransfer() {
	if m == nil {
		return
	}
	m.ReserveTransfersTotal.Inc()
}

// SetRunning reports the loop state.
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.EngineRunning.Set(1)
		return
	}
	m.EngineRunning.Set(0)
}
