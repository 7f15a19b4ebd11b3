package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/alecgard/studyhub/internal/apperr"
	"github.com/alecgard/studyhub/internal/ledger"
	"github.com/go-chi/chi/v5"
)

// timersHandler groups study timer HTTP handlers.
type timersHandler struct {
	svc    TimerService
	groups GroupService
}

func newTimersHandler(svc TimerService, groups GroupService) *timersHandler {
	return &timersHandler{svc: svc, groups: groups}
}

type timerRequest struct {
	ID   string `json:"id"`
	Date string `json:"date" validate:"required"`
}

type durationResponse struct {
	ID       string      `json:"id"`
	Date     ledger.Date `json:"date"`
	Duration int64       `json:"duration"`
}

// Start handles POST /start.
func (h *timersHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start timer", h.svc.Start)
}

// Stop handles POST /stop.
func (h *timersHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "stop timer", h.svc.Stop)
}

func (h *timersHandler) transition(w http.ResponseWriter, r *http.Request, action string, fn func(ctx context.Context, userID string, d ledger.Date) (int64, error)) {
	var req timerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	id, ok := resolveCaller(w, r, req.ID)
	if !ok {
		return
	}
	d, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}

	n, err := fn(r.Context(), id, d)
	if err != nil {
		writeServiceError(w, r, err, action)
		return
	}

	writeJSON(w, http.StatusOK, durationResponse{ID: id, Date: d, Duration: n})
}

// Duration handles GET /timer/duration/{user}/{date}.
func (h *timersHandler) Duration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "user")
	d, err := ledger.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}

	n, err := h.svc.Get(r.Context(), id, d)
	if err != nil {
		writeServiceError(w, r, err, "get duration")
		return
	}

	writeJSON(w, http.StatusOK, durationResponse{ID: id, Date: d, Duration: n})
}

type groupTimersRequest struct {
	Name string `json:"group_name" validate:"required"`
	Date string `json:"date" validate:"required"`
}

// Group handles POST /timer/group: each member's entry for the requested
// date. Members with no entry on that date are omitted.
func (h *timersHandler) Group(w http.ResponseWriter, r *http.Request) {
	var req groupTimersRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	d, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}

	ids, err := h.groups.MemberIDs(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, r, err, "list group timers")
		return
	}

	timers := make([]*ledger.Timer, 0, len(ids))
	for _, id := range ids {
		t, err := h.svc.Snapshot(r.Context(), id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			writeServiceError(w, r, err, "list group timers")
			return
		}
		if day, ok := onDate(t, d); ok {
			timers = append(timers, day)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group_name": req.Name,
		"date":       d,
		"timers":     timers,
	})
}

// onDate narrows t to its entry for d.
func onDate(t *ledger.Timer, d ledger.Date) (*ledger.Timer, bool) {
	for _, e := range t.Entries {
		if e.Date == d {
			return &ledger.Timer{State: t.State, Entries: []ledger.Entry{e}}, true
		}
	}
	return nil, false
}
