package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPool(t *testing.T) {
	reg := prometheus.NewRegistry()
	acquired := 1
	err := RegisterPool(reg, PoolStatsFunc(func() (int, int, int) { return 4, acquired, 3 }))
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		values[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
	}
	assert.Equal(t, 4.0, values["sqlsearch_pool_max_connections"])
	assert.Equal(t, 1.0, values["sqlsearch_pool_acquired_connections"])
	assert.Equal(t, 3.0, values["sqlsearch_pool_idle_connections"])

	assert.Error(t, RegisterPool(reg, PoolStatsFunc(func() (int, int, int) { return 0, 0, 0 })))
}

func TestProjectionDegradedCounts(t *testing.T) {
	before := testutil.ToFloat64(ProjectionDegraded.WithLabelValues("test"))
	ProjectionDegraded.WithLabelValues("test").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ProjectionDegraded.WithLabelValues("test")))
}
