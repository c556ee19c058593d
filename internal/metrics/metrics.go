// Package metrics holds the prometheus collectors for the budget cache.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values shared across collectors.
const (
	// Protocols.
	ProtocolReauthorize = "reauthorize"
	ProtocolSpendUpdate = "spend_update"
	ProtocolRegister    = "register"
	ProtocolReplace     = "replace"
	ProtocolSetRate     = "set_rate"

	// Request statuses.
	StatusSuccess        = "success"
	StatusTransportError = "transport_error"
	StatusParseError     = "parse_error"
)

// Metrics collects counters, gauges and histograms for hot-path decisions
// and synchronization protocol exchanges.
type Metrics struct {
	Bids              *prometheus.CounterVec
	Wins              *prometheus.CounterVec
	SyncRequests      *prometheus.CounterVec
	SyncSkipped       *prometheus.CounterVec
	SyncForcedRetries *prometheus.CounterVec
	SyncDuration      *prometheus.HistogramVec
	Accounts          prometheus.Gauge
	PendingAccounts   prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg leaves the
// collectors unregistered, which keeps them usable in tests and in embedders
// that do not scrape.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Bids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banker",
			Name:      "bids_total",
			Help:      "Bid admission decisions by result.",
		}, []string{"result"}),
		Wins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banker",
			Name:      "wins_total",
			Help:      "Win reconciliations by result.",
		}, []string{"result"}),
		SyncRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banker",
			Name:      "sync_requests_total",
			Help:      "Synchronization requests by protocol and status.",
		}, []string{"protocol", "status"}),
		SyncSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banker",
			Name:      "sync_skipped_total",
			Help:      "Protocol ticks skipped because a request was still in flight.",
		}, []string{"protocol"}),
		SyncForcedRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banker",
			Name:      "sync_forced_retries_total",
			Help:      "Protocol ticks that proceeded despite an in-flight request.",
		}, []string{"protocol"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "banker",
			Name:      "sync_request_duration_seconds",
			Help:      "Synchronization request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"protocol"}),
		Accounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "banker",
			Name:      "accounts",
			Help:      "Accounts held in the local cache.",
		}),
		PendingAccounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "banker",
			Name:      "pending_accounts",
			Help:      "Accounts awaiting registration with the remote ledger.",
		}),
	}

	if reg == nil {
		return m, nil
	}
	if err := registerOrReuse(reg, &m.Bids); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.Wins); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.SyncRequests); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.SyncSkipped); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.SyncForcedRetries); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.SyncDuration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.Accounts); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.PendingAccounts); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("banker: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("banker: register metric: %w", err)
	}
	return nil
}
