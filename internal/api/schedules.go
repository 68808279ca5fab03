package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reedfamily/serverkit/internal/scheduler"
)

type ScheduleHandler struct {
	sched *scheduler.Scheduler
}

func NewScheduleHandler(sched *scheduler.Scheduler) *ScheduleHandler {
	return &ScheduleHandler{sched: sched}
}

func writeScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduler.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scheduler.ErrNotFound):
		writeError(w, http.StatusNotFound, "schedule not found")
	default:
		writeError(w, http.StatusInternalServerError, "schedule store failed")
	}
}

// List returns all schedules.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.sched.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

// Create adds a new schedule.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		CronExpr string `json:"cron_expr"`
		Action   string `json:"action"`
		Payload  string `json:"payload"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.sched.Create(scheduler.Schedule{
		Name:     req.Name,
		CronExpr: req.CronExpr,
		Action:   req.Action,
		Payload:  req.Payload,
	})
	if err != nil {
		writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// Update modifies an existing schedule.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string `json:"name"`
		CronExpr *string `json:"cron_expr"`
		Action   *string `json:"action"`
		Payload  *string `json:"payload"`
		Enabled  *bool   `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.sched.Get(chi.URLParam(r, "scheduleId"))
	if err != nil {
		writeScheduleError(w, err)
		return
	}
	if req.Name != nil {
		s.Name = *req.Name
	}
	if req.CronExpr != nil {
		s.CronExpr = *req.CronExpr
	}
	if req.Action != nil {
		s.Action = *req.Action
	}
	if req.Payload != nil {
		s.Payload = *req.Payload
	}
	if req.Enabled != nil {
		s.Enabled = *req.Enabled
	}

	s, err = h.sched.Update(s)
	if err != nil {
		writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Delete removes a schedule.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sched.Delete(chi.URLParam(r, "scheduleId")); err != nil {
		writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "schedule deleted"})
}
