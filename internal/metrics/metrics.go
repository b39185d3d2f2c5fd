// Package metrics exposes Prometheus counters for the reward program.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "referral_bot"

type Metrics struct {
	registry *prometheus.Registry

	updates     *prometheus.CounterVec
	gateBlocks  prometheus.Counter
	ledger      *prometheus.CounterVec
	ledgerSum   *prometheus.CounterVec
	withdrawals *prometheus.CounterVec
	referrals   *prometheus.CounterVec
	broadcast   *prometheus.CounterVec
	panics      prometheus.Counter
	rateLimited prometheus.Counter
}

// New creates the counters on their own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Updates received by kind.",
		}, []string{"kind"}),
		gateBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_blocks_total",
			Help:      "Actions blocked by missing channel subscriptions.",
		}),
		ledger: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Balance mutations by direction and reason.",
		}, []string{"op", "reason"}),
		ledgerSum: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_amount_total",
			Help:      "Sum of credited and debited amounts by direction and reason.",
		}, []string{"op", "reason"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawals_total",
			Help:      "Withdrawal requests by outcome.",
		}, []string{"outcome"}),
		referrals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referrals_total",
			Help:      "First contacts by referral result.",
		}, []string{"result"}),
		broadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_total",
			Help:      "Broadcast deliveries by result.",
		}, []string{"result"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Recovered panics in update handlers.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Updates dropped by the per-user rate limit.",
		}),
	}
	m.registry.MustRegister(
		m.updates, m.gateBlocks, m.ledger, m.ledgerSum, m.withdrawals,
		m.referrals, m.broadcast, m.panics, m.rateLimited,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Update(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

func (m *Metrics) GateBlocked() {
	if m == nil {
		return
	}
	m.gateBlocks.Inc()
}

func (m *Metrics) Credit(reason string, amount int64) {
	m.ledgerOp("credit", reason, amount)
}

func (m *Metrics) Debit(reason string, amount int64) {
	m.ledgerOp("debit", reason, amount)
}

func (m *Metrics) ledgerOp(op, reason string, amount int64) {
	if m == nil {
		return
	}
	m.ledger.WithLabelValues(op, reason).Inc()
	m.ledgerSum.WithLabelValues(op, reason).Add(float64(amount))
}

// Withdrawal counts a request outcome: requested, approved, rejected, insufficient
func (m *Metrics) Withdrawal(outcome string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(outcome).Inc()
}

// Referral counts a first contact: credited, plain, existing
func (m *Metrics) Referral(result string) {
	if m == nil {
		return
	}
	m.referrals.WithLabelValues(result).Inc()
}

func (m *Metrics) BroadcastDelivery(ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.broadcast.WithLabelValues(result).Inc()
}

func (m *Metrics) Panic() {
	if m == nil {
		return
	}
	m.panics.Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
