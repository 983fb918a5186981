package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAndIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("execution", reg)

	m.OrdersSubmitted.WithLabelValues("BTCUSDT", "ENTRY").Inc()
	m.OpenPositions.Set(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, fam := range families {
		if fam.GetName() == "macd3_execution_orders_submitted_total" {
			found = true
			require.Len(t, fam.Metric, 1)
			assert.Equal(t, float64(1), fam.Metric[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found, "expected orders_submitted_total to be registered")
}
