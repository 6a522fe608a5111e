package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Login(ResultSuccess)
	m.Login(ResultFailure)
	m.Refresh(ResultSuccess)
	m.Logout(ResultError)
	m.Evicted(2)
	m.Evicted(0)
	m.ObserveRegistry("register", time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logouts.WithLabelValues(ResultError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Evictions))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RegistryOp))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Login(ResultSuccess)
		m.Refresh(ResultSuccess)
		m.Logout(ResultSuccess)
		m.Evicted(1)
		m.ObserveRegistry("is_active", time.Now())
	})
}
