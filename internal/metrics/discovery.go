package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del motor de descubrimiento. Viven en un paquete propio para que
// transport y discovery puedan usarlas sin importarse entre sí.

// Fuentes posibles de un resultado de descubrimiento.
const (
	SourceCache        = "cache"
	SourceQuery        = "query"
	SourceLegacy       = "legacy"
	SourceForcedLegacy = "forced_legacy"
	SourceNone         = "none"
)

var (
	DiscoveryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_discovery_total",
		Help: "Resultados de descubrimiento por fuente",
	}, []string{"source"})

	DiscoveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "broker_discovery_duration_seconds",
		Help:    "Duración del algoritmo completo, lock incluido",
		Buckets: prometheus.DefBuckets,
	})

	TransportSendTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_transport_send_total",
		Help: "Envíos por tipo de transport y resultado",
	}, []string{"kind", "result"}) // result: ok|unsupported|legacy_only|connection_failure|validation_failure|error

	DiscoveryLockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "broker_discovery_lock_wait_seconds",
		Help:    "Tiempo esperando el lock de descubrimiento",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
	})
)

// Register registra las métricas en reg (o en el default si es nil).
// Registrar dos veces no es un error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		DiscoveryTotal, DiscoveryDuration, TransportSendTotal, DiscoveryLockWait,
		HTTPRequestsTotal, HTTPRequestDuration,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// ObserveDiscovery registra un resultado y su duración.
func ObserveDiscovery(source string, d time.Duration) {
	DiscoveryTotal.WithLabelValues(source).Inc()
	DiscoveryDuration.Observe(d.Seconds())
}

// ObserveSend registra un envío de transport.
func ObserveSend(kind, result string) {
	TransportSendTotal.WithLabelValues(kind, result).Inc()
}

// ObserveLockWait registra la espera por el lock.
func ObserveLockWait(d time.Duration) {
	DiscoveryLockWait.Observe(d.Seconds())
}
