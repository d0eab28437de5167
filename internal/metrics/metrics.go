// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license_engine",
		Name:      "transitions_total",
		Help:      "License status transitions by target status and event.",
	}, []string{"to_status", "event"})

	ConflictsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license_engine",
		Name:      "conflicts_detected_total",
		Help:      "Conflicts reported by the detector, by conflict type.",
	}, []string{"conflict_type"})

	SweepAdvances = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license_engine",
		Name:      "sweep_advances_total",
		Help:      "Entities advanced by the reconciliation sweep, by kind.",
	}, []string{"kind"})

	RenewalOffers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license_engine",
		Name:      "renewal_offers_total",
		Help:      "Renewal offers by outcome (generated, accepted, declined, expired).",
	}, []string{"outcome"})

	TxRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "license_engine",
		Name:      "tx_retries_total",
		Help:      "Transactions retried after write contention.",
	})
)
