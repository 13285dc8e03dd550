package httpapi

import (
	"net/http"
	"strings"

	"adminhub.org/internal/auth"
	"adminhub.org/internal/policy"
)

type registrationRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Surname  string `json:"surname"`
	Name     string `json:"name"`
	TabNum   string `json:"tab_num"`
}

type approveRequest struct {
	RoleID string `json:"roleId"`
}

func (a *API) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitRegistration(w, r)
	case http.MethodGet:
		a.checkAccess(auth.PermUserCreate, policy.RuleNone, nil, a.listRegistrations)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRegistrationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/registrations/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id := parts[0]
	switch parts[1] {
	case "approve":
		a.checkAccess(auth.PermUserCreate, policy.RuleCreateUser, bodyRoleTarget, func(w http.ResponseWriter, r *http.Request) {
			a.approveRegistration(w, r, id)
		})(w, r)
	case "reject":
		a.checkAccess(auth.PermUserCreate, policy.RuleNone, nil, func(w http.ResponseWriter, r *http.Request) {
			a.rejectRegistration(w, r, id)
		})(w, r)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) submitRegistration(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	reg, err := a.graph.SubmitRegistration(r.Context(), req.Login, req.Password, req.Surname, req.Name, req.TabNum)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "registration.submit", map[string]any{
		"registration_id": reg.ID,
		"login":           reg.Login,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     reg.ID,
		"status": string(reg.Status),
	})
}

func (a *API) listRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := a.graph.ListRegistrations(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registrations": regs})
}

func (a *API) approveRegistration(w http.ResponseWriter, r *http.Request, id string) {
	var req approveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.graph.ApproveRegistration(r.Context(), id, req.RoleID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "registration.approve", map[string]any{
		"registration_id": id,
		"target_user_id":  user.ID,
		"role_id":         req.RoleID,
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) rejectRegistration(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.graph.RejectRegistration(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "registration.reject", map[string]any{
		"registration_id": id,
	})
	writeJSON(w, http.StatusOK, map[string]any{"rejected": true})
}
