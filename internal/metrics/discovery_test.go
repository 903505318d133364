package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestRegister_Twice(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveDiscovery(t *testing.T) {
	before := counterValue(t, DiscoveryTotal.WithLabelValues(SourceLegacy))
	ObserveDiscovery(SourceLegacy, 10*time.Millisecond)
	assert.Equal(t, before+1, counterValue(t, DiscoveryTotal.WithLabelValues(SourceLegacy)))
}

func TestObserveSend(t *testing.T) {
	before := counterValue(t, TransportSendTotal.WithLabelValues("http", "ok"))
	ObserveSend("http", "ok")
	ObserveSend("http", "ok")
	assert.Equal(t, before+2, counterValue(t, TransportSendTotal.WithLabelValues("http", "ok")))
}
