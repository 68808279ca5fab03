package api

import (
	"net/http"
	"time"

	"github.com/reedfamily/serverkit/internal/stats"
	"go.uber.org/zap"
)

type StatsHandler struct {
	collector *stats.Collector
	log       *zap.Logger
}

func NewStatsHandler(collector *stats.Collector, log *zap.Logger) *StatsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsHandler{collector: collector, log: log}
}

// Latest returns the most recent population sample.
func (h *StatsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	latest := h.collector.Latest()
	if latest == nil {
		writeError(w, http.StatusNotFound, "no stats available")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// History returns the samples of a recent period, one hour by default.
func (h *StatsHandler) History(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1h"
	}

	duration, err := time.ParseDuration(period)
	if err != nil || duration <= 0 || duration > stats.Retention {
		writeError(w, http.StatusBadRequest, "invalid period: use format like 1h, 6h, 24h")
		return
	}

	result, err := h.collector.History(time.Now().Add(-duration))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Live pushes a sample over the websocket every time the collector takes one.
func (h *StatsHandler) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("stats websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := h.collector.Subscribe()
	defer h.collector.Unsubscribe(ch)

	// Send latest immediately if available
	if latest := h.collector.Latest(); latest != nil {
		if err := conn.WriteJSON(latest); err != nil {
			return
		}
	}

	// Read from client to detect disconnect
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(s); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
