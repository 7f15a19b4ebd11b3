package api

import (
	"net/http"

	"github.com/alecgard/studyhub/internal/user"
)

// accountsHandler groups signup, login and user profile handlers.
type accountsHandler struct {
	svc AccountService
}

func newAccountsHandler(svc AccountService) *accountsHandler {
	return &accountsHandler{svc: svc}
}

type loginRequest struct {
	ID       string `json:"id" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type checkIDRequest struct {
	ID string `json:"id" validate:"required"`
}

type checkHandleRequest struct {
	Handle string `json:"bj_id" validate:"required"`
}

type userRequest struct {
	ID string `json:"id"`
}

type userProblemRequest struct {
	ID      string `json:"id"`
	Problem string `json:"problem" validate:"required,max=64"`
}

// Signup handles POST /signup.
func (h *accountsHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req user.SignupInput
	if !decodeAndValidate(w, r, &req) {
		return
	}

	profile, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, "sign up")
		return
	}

	auditLog(r, "signup", "user", profile.ID, "bj_id", profile.Handle)
	writeJSON(w, http.StatusCreated, profile)
}

// CheckID handles POST /signup/check-id.
func (h *accountsHandler) CheckID(w http.ResponseWriter, r *http.Request) {
	var req checkIDRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	exists, err := h.svc.CheckID(r.Context(), req.ID)
	if err != nil {
		writeServiceError(w, r, err, "check id")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     req.ID,
		"exists": exists,
	})
}

// CheckHandle handles POST /signup/check-handle. exists reports whether
// solved.ac knows the handle.
func (h *accountsHandler) CheckHandle(w http.ResponseWriter, r *http.Request) {
	var req checkHandleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	exists, err := h.svc.CheckHandle(r.Context(), req.Handle)
	if err != nil {
		writeServiceError(w, r, err, "check handle")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bj_id":  req.Handle,
		"exists": exists,
	})
}

// Login handles POST /login.
func (h *accountsHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.svc.Login(r.Context(), req.ID, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "log in")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Info handles POST /user/info.
func (h *accountsHandler) Info(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	id, ok := resolveCaller(w, r, req.ID)
	if !ok {
		return
	}

	profile, err := h.svc.Profile(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "get profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// AddProblem handles POST /user/problem/insert.
func (h *accountsHandler) AddProblem(w http.ResponseWriter, r *http.Request) {
	var req userProblemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	id, ok := resolveCaller(w, r, req.ID)
	if !ok {
		return
	}

	if err := h.svc.AddProblem(r.Context(), id, req.Problem); err != nil {
		writeServiceError(w, r, err, "add problem")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":      id,
		"problem": req.Problem,
	})
}

// RemoveProblem handles POST and DELETE /user/problem/delete.
func (h *accountsHandler) RemoveProblem(w http.ResponseWriter, r *http.Request) {
	var req userProblemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	id, ok := resolveCaller(w, r, req.ID)
	if !ok {
		return
	}

	if err := h.svc.RemoveProblem(r.Context(), id, req.Problem); err != nil {
		writeServiceError(w, r, err, "remove problem")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
