// Package metrics exposes Prometheus instrumentation for the token registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Unlock attempt results.
const (
	ResultUnlocked        = "unlocked"
	ResultMismatch        = "mismatch"
	ResultNotYetEligible  = "not_yet_eligible"
	ResultAlreadyUnlocked = "already_unlocked"
	ResultNotFound        = "not_found"
	ResultError           = "error"
)

// TokenMetrics holds the registry's collectors.
type TokenMetrics struct {
	TokensMinted   prometheus.Counter
	UnlockAttempts *prometheus.CounterVec
	Transfers      prometheus.Counter
	TokensLocked   prometheus.Gauge
}

// NewTokenMetrics registers the collectors on reg. A nil reg registers on the
// default registry.
func NewTokenMetrics(reg prometheus.Registerer) *TokenMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &TokenMetrics{
		TokensMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "aishi_tokens_minted_total",
			Help: "Total number of lockable tokens minted",
		}),
		UnlockAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aishi_unlock_attempts_total",
				Help: "Unlock attempts by result",
			},
			[]string{"result"},
		),
		Transfers: factory.NewCounter(prometheus.CounterOpts{
			Name: "aishi_transfers_total",
			Help: "Total number of owner-initiated transfers",
		}),
		TokensLocked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aishi_tokens_locked",
			Help: "Number of tokens still locked",
		}),
	}
}

// Unlock records one unlock attempt. Safe on a nil receiver.
func (m *TokenMetrics) Unlock(result string) {
	if m == nil {
		return
	}
	m.UnlockAttempts.WithLabelValues(result).Inc()
	if result == ResultUnlocked {
		m.TokensLocked.Dec()
	}
}

// Minted records a mint. Safe on a nil receiver.
func (m *TokenMetrics) Minted() {
	if m == nil {
		return
	}
	m.TokensMinted.Inc()
	m.TokensLocked.Inc()
}

// Transferred records a transfer. Safe on a nil receiver.
func (m *TokenMetrics) Transferred() {
	if m == nil {
		return
	}
	m.Transfers.Inc()
}

// SetLocked resets the locked gauge, used after loading persisted state.
func (m *TokenMetrics) SetLocked(n int) {
	if m == nil {
		return
	}
	m.TokensLocked.Set(float64(n))
}
