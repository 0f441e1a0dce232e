package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foundry/releasestats/internal/core/models"
	"github.com/foundry/releasestats/internal/core/services"
	"github.com/foundry/releasestats/internal/metrics"
	"github.com/foundry/releasestats/internal/series"
	"github.com/foundry/releasestats/internal/util/logging"
)

// Handler holds all HTTP handlers and their dependencies.
type Handler struct {
	store     services.SnapshotStore
	outputDir string
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// New creates a new Handler. outputDir is served as static content; m may
// be nil, in which case /metrics is not exposed.
func New(store services.SnapshotStore, outputDir string, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	return &Handler{
		store:     store,
		outputDir: outputDir,
		metrics:   m,
		logger:    logger,
	}
}

// Router returns the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestIDMiddleware)
	r.Use(h.loggingMiddleware)

	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/repositories", h.ListRepositories)
		r.Get("/repositories/{owner}/{repo}/series", h.GetSeries)

		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "route not found")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		})
	})

	r.Handle("/*", http.FileServer(http.Dir(h.outputDir)))

	return r
}

// requestIDMiddleware adds a unique request ID to each request.
func (h *Handler) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := logging.WithRequestID(r.Context(), id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logging.LogRequest(h.logger, r.Context(), r.Method, r.URL.Path, rw.status, rw.written, time.Since(start))
	})
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListRepositories handles GET /api/v1/repositories
func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	set, err := series.Load(r.Context(), h.store)
	if err != nil {
		h.internalError(w, r, err, "loading series")
		return
	}

	summaries := make([]models.RepositorySummary, 0, len(set.Order))
	for _, repo := range set.Ordered() {
		summaries = append(summaries, repo.Summary())
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetSeries handles GET /api/v1/repositories/{owner}/{repo}/series
func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")

	repo, err := h.loadRepository(r, name)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("repository %s not found", name))
			return
		}
		h.internalError(w, r, err, "loading series")
		return
	}

	writeJSON(w, http.StatusOK, repo)
}

func (h *Handler) loadRepository(r *http.Request, name string) (*models.RepositorySeries, error) {
	set, err := series.Load(r.Context(), h.store)
	if err != nil {
		return nil, err
	}
	repo, ok := set.Repos[name]
	if !ok {
		return nil, fmt.Errorf("%w: repository %s", services.ErrNotFound, name)
	}
	return repo, nil
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	h.logger.Error().
		Err(err).
		Str("request_id", logging.RequestID(r.Context())).
		Msg(msg)
	if errors.Is(err, services.ErrStoreUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "snapshot store unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: msg,
	})
}

// responseWriter wraps http.ResponseWriter to capture status and bytes written.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}
