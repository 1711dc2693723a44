// Package metrics provides Prometheus instrumentation for the security core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChecksTotal counts risk checks by kind, resulting level, and outcome.
	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletguard",
			Name:      "checks_total",
			Help:      "Total security checks by kind, risk level, and outcome.",
		},
		[]string{"kind", "level", "outcome"},
	)

	// RateLimitDecisions counts rate-limit verdicts.
	RateLimitDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletguard",
			Name:      "ratelimit_decisions_total",
			Help:      "Rate limiter decisions by outcome (allow/deny).",
		},
		[]string{"outcome"},
	)

	// TokenOps counts token issue/verify operations by result.
	TokenOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletguard",
			Name:      "token_operations_total",
			Help:      "Signed-token operations by op and result.",
		},
		[]string{"op", "result"},
	)

	// VaultOps counts ephemeral vault operations.
	VaultOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletguard",
			Name:      "vault_operations_total",
			Help:      "Ephemeral vault operations by op (store/retrieve/miss/expire).",
		},
		[]string{"op"},
	)

	// VaultEntries tracks secrets currently held in the vault.
	VaultEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletguard",
			Name:      "vault_entries",
			Help:      "Secrets currently held in the ephemeral vault.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ChecksTotal,
		RateLimitDecisions,
		TokenOps,
		VaultOps,
		VaultEntries,
	)
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
