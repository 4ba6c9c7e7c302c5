// Package httpapi serves the diagnostics endpoints of the dashboard data
// layer: the operation log, the result cache, pool occupancy and the named
// dashboard queries.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/guillermoBallester/obddash/internal/core/domain"
)

// Diagnostics is the part of the data access layer exposed over HTTP.
type Diagnostics interface {
	DBLogs() []domain.LogEntry
	ClearDBLogs()
	ClearQueryCache(ctx context.Context)
	PoolStats() domain.PoolStats
}

// Stats runs named dashboard queries.
type Stats interface {
	Names() []string
	Run(ctx context.Context, name string, refresh bool) (domain.ResultSet, error)
}

type logsResponse struct {
	Entries []domain.LogEntry `json:"entries"`
	Count   int               `json:"count"`
}

type queriesResponse struct {
	Queries []string `json:"queries"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	diag   Diagnostics
	stats  Stats
	logger *slog.Logger
}

// NewRouter returns the /api subtree. Authentication is applied by the caller.
func NewRouter(diag Diagnostics, stats Stats, logger *slog.Logger) http.Handler {
	h := &handlers{diag: diag, stats: stats, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Route("/db-logs", func(r chi.Router) {
		r.Get("/", h.getLogs)
		r.Delete("/", h.clearLogs)
	})
	r.Delete("/query-cache", h.clearCache)
	r.Get("/pool", h.poolStats)
	r.Route("/stats", func(r chi.Router) {
		r.Get("/", h.listStats)
		r.Get("/{name}", h.runStats)
	})

	return r
}

func (h *handlers) getLogs(w http.ResponseWriter, _ *http.Request) {
	entries := h.diag.DBLogs()
	h.respondJSON(w, http.StatusOK, logsResponse{Entries: entries, Count: len(entries)})
}

func (h *handlers) clearLogs(w http.ResponseWriter, _ *http.Request) {
	h.diag.ClearDBLogs()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) clearCache(w http.ResponseWriter, r *http.Request) {
	h.diag.ClearQueryCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) poolStats(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.diag.PoolStats())
}

func (h *handlers) listStats(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, queriesResponse{Queries: h.stats.Names()})
}

func (h *handlers) runStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	refresh := false
	if v := r.URL.Query().Get("refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "refresh must be a boolean"})
			return
		}
		refresh = b
	}

	rs, err := h.stats.Run(r.Context(), name, refresh)
	switch {
	case errors.Is(err, domain.ErrUnknownQuery):
		h.respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case err != nil:
		h.logger.ErrorContext(r.Context(), "dashboard query failed",
			slog.String("query.name", name),
			slog.String("request.id", middleware.GetReqID(r.Context())),
			slog.String("error.message", err.Error()),
		)
		h.respondJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		h.respondJSON(w, http.StatusOK, rs)
	}
}

func (h *handlers) respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encoding response", slog.String("error.message", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
