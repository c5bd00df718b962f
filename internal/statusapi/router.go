// Package statusapi serves read-only pipeline status over HTTP.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dshills/qaforge/internal/scheduler"
	"github.com/dshills/qaforge/internal/storage"
	"github.com/dshills/qaforge/pkg/types"
)

// StoreReader is the subset of storage the API reads
type StoreReader interface {
	GetStatus(ctx context.Context) (*storage.Status, error)
	ListFailures(ctx context.Context, filter storage.FailureFilter) ([]*types.FailureRecord, error)
}

// ProgressSource reports the live or most recent run
type ProgressSource interface {
	Progress() (scheduler.Snapshot, bool)
}

// Deps holds the router dependencies
type Deps struct {
	Store    StoreReader
	Progress ProgressSource     // optional
	Logger   *zap.SugaredLogger // optional
}

const (
	defaultFailureLimit = 50
	maxFailureLimit     = 500
	storeTimeout        = 5 * time.Second
)

// StatusResponse is the body of GET /status
type StatusResponse struct {
	Store *storage.Status     `json:"store"`
	Run   *scheduler.Snapshot `json:"run,omitempty"`
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	deps   Deps
	logger *zap.SugaredLogger
}

// NewRouter creates the status API router
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	h := &handler{deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", h.health)
	r.Get("/status", h.status)
	r.Get("/failures", h.failures)
	return r
}

func (h *handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debugw("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	code := http.StatusOK
	if _, err := h.deps.Store.GetStatus(ctx); err != nil {
		h.logger.Warnw("store health check failed", "error", err)
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, resp)
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	st, err := h.deps.Store.GetStatus(ctx)
	if err != nil {
		h.logger.Errorw("failed to read store status", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read store status"})
		return
	}

	resp := StatusResponse{Store: st}
	if h.deps.Progress != nil {
		if snap, ok := h.deps.Progress.Progress(); ok {
			resp.Run = &snap
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// failures lists failure records; query parameters: path, retry_eligible, limit
func (h *handler) failures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.FailureFilter{
		Path:  q.Get("path"),
		Limit: defaultFailureLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxFailureLimit {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		filter.Limit = n
	}
	if v := q.Get("retry_eligible"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "retry_eligible must be a boolean"})
			return
		}
		filter.RetryEligibleOnly = b
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	records, err := h.deps.Store.ListFailures(ctx, filter)
	if err != nil {
		h.logger.Errorw("failed to list failures", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list failures"})
		return
	}
	if records == nil {
		records = []*types.FailureRecord{}
	}
	h.writeJSON(w, http.StatusOK, records)
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Errorw("failed to encode response", "error", err)
	}
}
