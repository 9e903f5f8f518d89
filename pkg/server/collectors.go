package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the coordinator's Prometheus collectors.
type Metrics struct {
	Actions              *prometheus.CounterVec
	HandsStarted         prometheus.Counter
	HandsCompleted       prometheus.Counter
	ScanMessages         *prometheus.CounterVec
	DuplicateCards       prometheus.Counter
	ConservationFailures prometheus.Counter
	StoreRetries         prometheus.Counter
}

// NewMetrics builds the collectors and registers them when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealerd",
			Name:      "actions_total",
			Help:      "Betting actions applied, by action kind.",
		}, []string{"kind"}),
		HandsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealerd",
			Name:      "hands_started_total",
			Help:      "Hands dealt in.",
		}),
		HandsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealerd",
			Name:      "hands_completed_total",
			Help:      "Hands that reached showdown.",
		}),
		ScanMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealerd",
			Name:      "scan_messages_total",
			Help:      "Scan queue messages processed, by result.",
		}, []string{"result"}),
		DuplicateCards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealerd",
			Name:      "duplicate_cards_total",
			Help:      "Cards rejected because they were already dealt.",
		}),
		ConservationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealerd",
			Name:      "conservation_failures_total",
			Help:      "Showdowns aborted because chips were not conserved.",
		}),
		StoreRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealerd",
			Name:      "store_retries_total",
			Help:      "Table operations re-run after a store conflict.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Actions, m.HandsStarted, m.HandsCompleted, m.ScanMessages,
			m.DuplicateCards, m.ConservationFailures, m.StoreRetries)
	}
	return m
}
