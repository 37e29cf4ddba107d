package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTokenMetrics(reg)

	m.Minted()
	m.Minted()
	m.Unlock(ResultMismatch)
	m.Unlock(ResultUnlocked)
	m.Transferred()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TokensMinted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensLocked))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnlockAttempts.WithLabelValues(ResultMismatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnlockAttempts.WithLabelValues(ResultUnlocked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transfers))
}

func TestTokenMetrics_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTokenMetrics(reg)
	m.Minted()

	expected := `
# HELP aishi_tokens_minted_total Total number of lockable tokens minted
# TYPE aishi_tokens_minted_total counter
aishi_tokens_minted_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "aishi_tokens_minted_total"))
}

func TestTokenMetrics_SetLocked(t *testing.T) {
	m := NewTokenMetrics(prometheus.NewRegistry())
	m.SetLocked(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.TokensLocked))
}

func TestTokenMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewTokenMetrics(reg)
	assert.Panics(t, func() { NewTokenMetrics(reg) })
}

func TestTokenMetrics_NilSafe(t *testing.T) {
	var m *TokenMetrics
	assert.NotPanics(t, func() {
		m.Minted()
		m.Unlock(ResultUnlocked)
		m.Transferred()
		m.SetLocked(1)
	})
}
