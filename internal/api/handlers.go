package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/LeventeLantos/sheet-messaging/internal/repo"
	"github.com/LeventeLantos/sheet-messaging/internal/scheduler"
)

const maxRunsLimit = 100

type Handler struct {
	sched   *scheduler.Scheduler
	runs    repo.RunRepository
	metrics http.Handler
}

// NewHandler builds the API handler. metrics may be nil, in which case
// /metrics answers 404.
func NewHandler(s *scheduler.Scheduler, runs repo.RunRepository, metrics http.Handler) *Handler {
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}
	return &Handler{sched: s, runs: runs, metrics: metrics}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	started := h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning(), "changed": started})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	stopped := h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning(), "changed": stopped})
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 20)
	offset := parseInt(r.URL.Query().Get("offset"), 0)
	if limit <= 0 || limit > maxRunsLimit {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be between 1 and 100"})
		return
	}

	items, err := h.runs.List(r.Context(), limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, ok, err := h.runs.Last(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no runs yet"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
