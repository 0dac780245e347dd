package app

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beenruuu/mentha/pkg/health"
	"github.com/beenruuu/mentha/pkg/queue"
	"github.com/beenruuu/mentha/pkg/schedule"
)

// Ops endpoint paths.
const (
	livenessPath  = "/health/live"
	readinessPath = "/health/ready"
	metricsPath   = "/metrics"
	statsPath     = "/stats"
)

// storeCheck names the backing store check. It is the only one that fails readiness;
// a lost keyword database only stops resyncs.
const storeCheck = "redis"

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Queues    map[queue.Name]queue.Counts `json:"queues"`
	Schedules schedule.Stats              `json:"schedules"`
}

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get(livenessPath, health.LivenessHandler())
	r.Get(readinessPath, health.ReadinessHandler(a.checks,
		health.WithCritical(storeCheck),
		health.WithLogger(a.logger),
		health.WithObserver(a.observeCheck),
	))
	r.Handle(metricsPath, promhttp.HandlerFor(a.prom, promhttp.HandlerOpts{Registry: a.prom}))
	r.Get(statsPath, a.handleStats)

	return r
}

func (a *App) observeCheck(name string, err error) {
	if name == storeCheck {
		a.metrics.SetStoreUp(err == nil)
	}
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := a.manager.Stats(ctx)
	if err != nil {
		a.statsError(w, r, err)
		return
	}

	resp := StatsResponse{
		Schedules: stats,
		Queues:    make(map[queue.Name]queue.Counts, len(queue.Names())),
	}
	for _, name := range queue.Names() {
		q, err := a.registry.Queue(name)
		if err != nil {
			a.statsError(w, r, err)
			return
		}
		counts, err := q.Counts(ctx)
		if err != nil {
			a.statsError(w, r, err)
			return
		}
		resp.Queues[name] = counts
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *App) statsError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.ErrorContext(r.Context(), "stats unavailable", slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
}
