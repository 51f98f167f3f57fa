package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type BadgeMetrics struct {
	settlements     prometheus.Counter
	aborts          *prometheus.CounterVec
	feesCollected   prometheus.Counter
	withdrawals     prometheus.Counter
	vaultBalance    prometheus.Gauge
	rpcRequestsByID *prometheus.CounterVec
}

var (
	badgeOnce     sync.Once
	badgeRegistry *BadgeMetrics
)

func Badge() *BadgeMetrics {
	badgeOnce.Do(func() {
		badgeRegistry = &BadgeMetrics{
			settlements: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "badge_settlements_total",
				Help: "Count of committed claim settlements.",
			}),
			aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "badge_settlement_aborts_total",
				Help: "Count of aborted settlement calls by error kind.",
			}, []string{"reason"}),
			feesCollected: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "badge_fees_collected_total",
				Help: "Cumulative protocol fees routed to the treasury (base units).",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "badge_withdrawals_total",
				Help: "Count of manual vault withdrawals.",
			}),
			vaultBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "badge_vault_balance",
				Help: "Current pooled vault balance (base units).",
			}),
			rpcRequestsByID: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "badge_rpc_requests_total",
				Help: "Count of RPC requests by method.",
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			badgeRegistry.settlements,
			badgeRegistry.aborts,
			badgeRegistry.feesCollected,
			badgeRegistry.withdrawals,
			badgeRegistry.vaultBalance,
			badgeRegistry.rpcRequestsByID,
		)
	})
	return badgeRegistry
}

func (m *BadgeMetrics) ObserveSettlement() {
	if m == nil {
		return
	}
	m.settlements.Inc()
}

func (m *BadgeMetrics) ObserveAbort(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.aborts.WithLabelValues(reason).Inc()
}

func (m *BadgeMetrics) AddFeesCollected(units float64) {
	if m == nil || units <= 0 {
		return
	}
	m.feesCollected.Add(units)
}

func (m *BadgeMetrics) ObserveWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

func (m *BadgeMetrics) SetVaultBalance(units float64) {
	if m == nil {
		return
	}
	m.vaultBalance.Set(units)
}

func (m *BadgeMetrics) ObserveRPCRequest(method string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.rpcRequestsByID.WithLabelValues(method).Inc()
}
