package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aadesh/autotagger/internal/config"
	"github.com/aadesh/autotagger/internal/engine"
	"github.com/aadesh/autotagger/internal/event"
	"github.com/aadesh/autotagger/internal/metrics"
)

const (
	maxBatchSize = 100
	maxBodyBytes = 1 << 20
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	loader *config.Loader
	log    *zap.Logger
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, loader *config.Loader, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{eng: eng, loader: loader, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(log))

	r.Post("/v1/events", h.ingestEvent)
	r.Post("/v1/events/batch", h.ingestBatch)
	r.Get("/v1/policy", h.getPolicy)
	r.Post("/v1/policy/reload", h.reloadPolicy)
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// POST /v1/events: synchronous single-event dispatch.
func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %s", err))
		return
	}
	ev, err := event.Normalize(data, h.loader.Config().Region)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev.EnsureID()

	res, err := h.eng.ProcessSync(r.Context(), ev)
	if err != nil {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	writeJSON(w, res.HTTPStatus(), res.Body())
}

// POST /v1/events/batch: async batch dispatch (up to 100 events).
func (h *Handler) ingestBatch(w http.ResponseWriter, r *http.Request) {
	var raw []json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchSize*maxBodyBytes)).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one event")
		return
	}
	if len(raw) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(raw), maxBatchSize))
		return
	}

	region := h.loader.Config().Region
	jobID := uuid.New().String()
	queued, invalid := 0, 0
	for _, data := range raw {
		ev, err := event.Normalize(data, region)
		if err != nil {
			invalid++
			continue
		}
		ev.EnsureID()
		if h.eng.ProcessAsync(ev) {
			queued++
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   jobID,
		"total":    len(raw),
		"queued":   queued,
		"invalid":  invalid,
		"rejected": len(raw) - queued - invalid,
	})
}

// GET /v1/policy: the tagging policy in force.
func (h *Handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	p := h.eng.Dispatcher().Policy()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"excluded_services": p.ExcludedServices(),
		"default_tags":      p.Defaults,
		"override_tags":     p.Overrides,
	})
}

// POST /v1/policy/reload: re-read the config file and swap the policy.
func (h *Handler) reloadPolicy(w http.ResponseWriter, r *http.Request) {
	if h.loader.Path() == "" {
		writeError(w, http.StatusConflict, "no config file to reload")
		return
	}
	if _, err := h.loader.Reload(); err != nil {
		metrics.PolicyReloads.WithLabelValues("error").Inc()
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	p := h.eng.Dispatcher().Policy()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":          true,
		"excluded_services": p.ExcludedServices(),
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the batch queue is more than 80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}

func loggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
