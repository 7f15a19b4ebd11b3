package api

import (
	"net/http"

	"github.com/alecgard/studyhub/internal/group"
	"github.com/alecgard/studyhub/internal/user"
)

// groupsHandler groups study group HTTP handlers.
type groupsHandler struct {
	svc GroupService
}

func newGroupsHandler(svc GroupService) *groupsHandler {
	return &groupsHandler{svc: svc}
}

type membershipRequest struct {
	ID       string `json:"id"`
	Name     string `json:"group_name" validate:"required"`
	Password string `json:"password"`
}

type groupNameRequest struct {
	Name string `json:"group_name" validate:"required"`
}

type groupProblemRequest struct {
	Name    string `json:"group_name" validate:"required"`
	Problem string `json:"problem" validate:"required,max=64"`
}

// Create handles POST /group/create. The caller becomes the manager.
func (h *groupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req group.CreateInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	caller, ok := resolveCaller(w, r, req.ManagerID)
	if !ok {
		return
	}
	req.ManagerID = caller
	if !validRequest(w, &req) {
		return
	}

	g, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, "create group")
		return
	}

	auditLog(r, "create", "group", g.Name, "is_secret", g.IsSecret)
	writeJSON(w, http.StatusCreated, g)
}

// Join handles POST /group/join.
func (h *groupsHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	caller, ok := resolveCaller(w, r, req.ID)
	if !ok {
		return
	}

	g, err := h.svc.Join(r.Context(), caller, req.Name, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "join group")
		return
	}

	auditLog(r, "join", "group", g.Name)
	writeJSON(w, http.StatusOK, g)
}

// Leave handles POST and DELETE /group/leave.
func (h *groupsHandler) Leave(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	caller, ok := resolveCaller(w, r, req.ID)
	if !ok {
		return
	}

	g, err := h.svc.Leave(r.Context(), caller, req.Name)
	if err != nil {
		writeServiceError(w, r, err, "leave group")
		return
	}

	auditLog(r, "leave", "group", g.Name)
	writeJSON(w, http.StatusOK, g)
}

// Update handles POST /group/update. Only the manager may change settings.
func (h *groupsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req group.UpdateInput
	if !decodeAndValidate(w, r, &req) {
		return
	}
	caller, ok := resolveCaller(w, r, "")
	if !ok {
		return
	}

	current, err := h.svc.Info(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, r, err, "update group")
		return
	}
	if current.ManagerID != caller {
		writeError(w, http.StatusForbidden, "forbidden", "only the group manager can update the group")
		return
	}

	g, err := h.svc.Update(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, "update group")
		return
	}

	auditLog(r, "update", "group", g.Name, "password_changed", req.Password != "")
	writeJSON(w, http.StatusOK, g)
}

// Info handles POST /group/info.
func (h *groupsHandler) Info(w http.ResponseWriter, r *http.Request) {
	var req groupNameRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	g, err := h.svc.Info(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, r, err, "get group")
		return
	}

	writeJSON(w, http.StatusOK, g)
}

// Members handles POST /group/member.
func (h *groupsHandler) Members(w http.ResponseWriter, r *http.Request) {
	var req groupNameRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	cards, err := h.svc.Members(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, r, err, "list members")
		return
	}
	if cards == nil {
		cards = []user.Card{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group_name": req.Name,
		"members":    cards,
	})
}

// List handles GET /group/list.
func (h *groupsHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "list groups")
		return
	}
	if names == nil {
		names = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups": names,
	})
}

// AddProblem handles POST /group/problem/insert. Members only.
func (h *groupsHandler) AddProblem(w http.ResponseWriter, r *http.Request) {
	var req groupProblemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if !h.requireMember(w, r, req.Name, "add problem") {
		return
	}

	if err := h.svc.AddProblem(r.Context(), req.Name, req.Problem); err != nil {
		writeServiceError(w, r, err, "add problem")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"group_name": req.Name,
		"problem":    req.Problem,
	})
}

// RemoveProblem handles POST and DELETE /group/problem/delete. Members only.
func (h *groupsHandler) RemoveProblem(w http.ResponseWriter, r *http.Request) {
	var req groupProblemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if !h.requireMember(w, r, req.Name, "remove problem") {
		return
	}

	if err := h.svc.RemoveProblem(r.Context(), req.Name, req.Problem); err != nil {
		writeServiceError(w, r, err, "remove problem")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *groupsHandler) requireMember(w http.ResponseWriter, r *http.Request, name, action string) bool {
	caller, ok := resolveCaller(w, r, "")
	if !ok {
		return false
	}
	g, err := h.svc.Info(r.Context(), name)
	if err != nil {
		writeServiceError(w, r, err, action)
		return false
	}
	if !g.HasMember(caller) {
		writeError(w, http.StatusForbidden, "forbidden", "only group members can change the problem list")
		return false
	}
	return true
}
