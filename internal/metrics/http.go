package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// StatusRecorder captura el status code de la respuesta.
type StatusRecorder struct {
	http.ResponseWriter
	Status      int
	wroteHeader bool
}

func (s *StatusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.Status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *StatusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	return s.ResponseWriter.Write(b)
}

// WithHTTPMetrics instrumenta next. route debe devolver un label de baja
// cardinalidad para el request (p.ej. el patrón de chi).
func WithHTTPMetrics(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
			next.ServeHTTP(rec, r)

			method := strings.ToUpper(r.Method)
			label := route(r)
			HTTPRequestDuration.WithLabelValues(method, label).Observe(time.Since(start).Seconds())
			HTTPRequestsTotal.WithLabelValues(method, label, strconv.Itoa(rec.Status)).Inc()
		})
	}
}
