package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ChannelsOpened.Inc()
	m.SessionsActive.Set(3)
	m.MonitoredItemQueueDrops.WithLabelValues("discard_oldest").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	var found bool
	for _, f := range families {
		if f.GetName() == "opcua_channels_opened_total" {
			found = true
			require.Len(t, f.Metric, 1)
			require.Equal(t, float64(1), f.Metric[0].GetCounter().GetValue())
		}
	}
	require.True(t, found, "opcua_channels_opened_total metric family not found")
}
