package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/alecgard/studyhub/internal/ledger"
	"github.com/alecgard/studyhub/internal/rank"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// rankHandler serves group leaderboards.
type rankHandler struct {
	svc RankService
}

func newRankHandler(svc RankService) *rankHandler {
	return &rankHandler{svc: svc}
}

type rankDayRequest struct {
	Name string `json:"group_name" validate:"required"`
	Date string `json:"date" validate:"required"`
}

type rankMonthRequest struct {
	Name  string `json:"group_name" validate:"required"`
	Month string `json:"month" validate:"required"`
}

// Day handles POST /rank/individual_day.
func (h *rankHandler) Day(w http.ResponseWriter, r *http.Request) {
	var req rankDayRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	d, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}

	entries, err := h.svc.RankDay(r.Context(), req.Name, d)
	if err != nil {
		writeServiceError(w, r, err, "rank group")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group_name": req.Name,
		"date":       d,
		"ranking":    nonNil(entries),
	})
}

// Month handles POST /rank/individual_month.
func (h *rankHandler) Month(w http.ResponseWriter, r *http.Request) {
	var req rankMonthRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	ym, err := ledger.ParseYearMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}

	entries, err := h.svc.RankMonth(r.Context(), req.Name, ym)
	if err != nil {
		writeServiceError(w, r, err, "rank group")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group_name": req.Name,
		"month":      ym.String(),
		"ranking":    nonNil(entries),
	})
}

// Export handles GET /rank/export?group_name=&month= and returns the monthly
// leaderboard as an xlsx workbook.
func (h *rankHandler) Export(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("group_name")
	if name == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "group_name is required")
		return
	}
	ym, err := ledger.ParseYearMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}

	// Buffer so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := h.svc.ExportMonth(r.Context(), &buf, name, ym); err != nil {
		writeServiceError(w, r, err, "export ranking")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", strconv.Quote("rank-"+name+"-"+ym.String()+".xlsx")))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func nonNil(entries []rank.Entry) []rank.Entry {
	if entries == nil {
		return []rank.Entry{}
	}
	return entries
}
