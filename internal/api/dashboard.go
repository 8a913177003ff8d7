package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Priya8975/price-tracker/internal/engine"
	"github.com/Priya8975/price-tracker/internal/store"
)

// QueueDepther reports how many notifications are waiting.
type QueueDepther interface {
	QueueDepth(ctx context.Context) (int64, error)
}

// BreakerReader reports a relay's circuit state.
type BreakerReader interface {
	State(ctx context.Context, relay string) engine.BreakerState
}

type ClientCounter interface {
	ClientCount() int
}

type DashboardHandler struct {
	stats   store.StatsReader
	queue   QueueDepther
	breaker BreakerReader
	relay   string
	hub     ClientCounter
	logger  *slog.Logger
}

func NewDashboardHandler(stats store.StatsReader, queue QueueDepther, breaker BreakerReader, relay string, hub ClientCounter, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{stats: stats, queue: queue, breaker: breaker, relay: relay, hub: hub, logger: logger}
}

// Metrics returns aggregated system metrics for the dashboard.
func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to get metrics")
		return
	}

	queueDepth, err := h.queue.QueueDepth(r.Context())
	if err != nil {
		h.logger.Warn("failed to read queue depth", "error", err)
		queueDepth = 0
	}

	type metricsResponse struct {
		store.Stats
		QueueDepth       int64               `json:"queue_depth"`
		WebSocketClients int                 `json:"websocket_clients"`
		MailRelay        engine.BreakerState `json:"mail_relay"`
	}

	respondJSON(w, http.StatusOK, metricsResponse{
		Stats:            *stats,
		QueueDepth:       queueDepth,
		WebSocketClients: h.hub.ClientCount(),
		MailRelay:        h.breaker.State(r.Context(), h.relay),
	})
}
