package api

import (
	"net/http"
)

// problemsHandler serves recommendations and the admin cache refresh.
type problemsHandler struct {
	svc ProblemService
}

func newProblemsHandler(svc ProblemService) *problemsHandler {
	return &problemsHandler{svc: svc}
}

type recommendRequest struct {
	Tier int      `json:"tier" validate:"gte=0,lte=31"`
	Keys []string `json:"keys" validate:"required,min=1,dive,required"`
}

// Recommend handles POST /recommend/list.
func (h *problemsHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	problems, err := h.svc.Recommend(r.Context(), req.Tier, req.Keys)
	if err != nil {
		writeServiceError(w, r, err, "recommend problems")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"problems": problems,
	})
}

// Refresh handles POST /admin/problems/refresh.
func (h *problemsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "refresh problems")
		return
	}

	auditLog(r, "refresh", "problems", "solvedac", "upserted", n)
	writeJSON(w, http.StatusOK, map[string]int{
		"upserted": n,
	})
}
