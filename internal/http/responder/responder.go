// Package responder es el lado broker del canal HTTP: atiende las
// operaciones que los clientes envían con transport/httpipc.
package responder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/metrics"
	"github.com/dropDatabas3/brokerdisco/internal/observability/logger"
	"github.com/dropDatabas3/brokerdisco/internal/transport/httpipc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Discoverer resuelve el broker activo del lado broker.
type Discoverer interface {
	ActiveBroker(ctx context.Context, skipCache bool) (*broker.Identity, error)
}

// Options configura el router.
type Options struct {
	Discoverer Discoverer

	// LegacyOnly contesta legacy_only a todo descubrimiento: el protocolo
	// directo está deshabilitado en este broker.
	LegacyOnly bool

	// Metrics, si no es nil, se monta en /metrics.
	Metrics http.Handler

	Logger *zap.Logger
}

type handler struct {
	discoverer Discoverer
	legacyOnly bool
	log        *zap.Logger
}

// New arma el router chi.
func New(opts Options) http.Handler {
	h := &handler{
		discoverer: opts.Discoverer,
		legacyOnly: opts.LegacyOnly,
		log:        logger.OrNamed(opts.Logger, "responder"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(withRequestID)
	r.Use(h.withLogging)
	r.Use(metrics.WithHTTPMetrics(routeLabel))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post(httpipc.OperationsPath+"{op}", h.operation)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return r
}

func (h *handler) operation(w http.ResponseWriter, r *http.Request) {
	op := broker.OperationKind(chi.URLParam(r, "op"))
	if op != broker.OpBrokerDiscovery {
		writeJSON(w, http.StatusNotImplemented, broker.ErrorPayload(broker.KindUnsupportedErr, "operation "+string(op)+" is not implemented"))
		return
	}

	var req httpipc.Request
	if !readJSON(w, r, &req) {
		return
	}
	log := logger.From(r.Context(), h.log).With(logger.Op(string(op)), logger.Candidate(req.Target))

	if h.legacyOnly {
		log.Info("discovery protocol disabled, answering legacy_only")
		writeJSON(w, http.StatusConflict, broker.ErrorPayload(broker.KindLegacyOnlyErr, "broker discovery is disabled on this broker"))
		return
	}

	id, err := h.discoverer.ActiveBroker(r.Context(), false)
	switch {
	case err != nil:
		log.Error("broker discovery failed", logger.Err(err))
		writeJSON(w, http.StatusInternalServerError, broker.ErrorPayload(broker.KindConnectionErr, "broker discovery failed"))
	case id == nil:
		writeJSON(w, http.StatusServiceUnavailable, broker.ErrorPayload(broker.KindConnectionErr, "no active broker"))
	default:
		writeJSON(w, http.StatusOK, broker.Payload{
			broker.KeyActiveBrokerAppID:       id.ApplicationID,
			broker.KeyActiveBrokerFingerprint: id.SigningFingerprint,
		})
	}
}

func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// withRequestID propaga X-Request-ID o genera uno nuevo.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

// withLogging inyecta un logger scoped en el contexto y loguea al terminar.
func (h *handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, reqLog := logger.Scoped(r.Context(), h.log,
			logger.RequestID(w.Header().Get("X-Request-ID")),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		rec := &metrics.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		reqLog.Info("request completed", zap.Int("status", rec.Status), logger.Duration(time.Since(start)))
	})
}

// writeJSON: respuesta JSON estándar
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodifica de forma tolerante; un body vacío es válido.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, broker.ErrorPayload(broker.KindConnectionErr, "invalid json"))
		return false
	}
	return true
}
