package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router wires the status API. Extra middlewares run after the built-in ones.
func Router(h *Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(mws...)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/status", h.SchedulerStatus)
			r.Post("/start", h.SchedulerStart)
			r.Post("/stop", h.SchedulerStop)
		})

		r.Get("/runs", h.ListRuns)
		r.Get("/runs/latest", h.LatestRun)
	})

	r.Method(http.MethodGet, "/metrics", h.metrics)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("sheet-messaging"))
	})

	return r
}
