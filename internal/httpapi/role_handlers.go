package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"adminhub.org/internal/auth"
	"adminhub.org/internal/policy"
)

type roleRequest struct {
	Name string `json:"name"`
}

// roleNameBodyTarget treats the role name carried in the payload as the
// target, so creating or renaming to a privileged name is subject to the
// same hierarchy rules as addressing it.
func roleNameBodyTarget(a *API, r *http.Request) (string, bool, error) {
	if name, present, err := bodyRoleTarget(a, r); err != nil || present {
		return name, present, err
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", false, nil
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(strings.NewReader(string(raw)))
	var peek roleRequest
	if err := json.Unmarshal(raw, &peek); err != nil {
		return "", false, nil
	}
	if strings.TrimSpace(peek.Name) == "" {
		return "", false, nil
	}
	return strings.TrimSpace(peek.Name), true, nil
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.checkAccess(auth.PermRoleRead, policy.RuleViewRole, nil, a.listRoles)(w, r)
	case http.MethodPost:
		a.checkAccess(auth.PermRoleCreate, policy.RuleCreateRole, roleNameBodyTarget, a.createRole)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/roles/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.checkAccess(auth.PermRoleRead, policy.RuleViewRole, pathRoleTarget(2), func(w http.ResponseWriter, r *http.Request) {
			a.getRole(w, r, id)
		})(w, r)
	case http.MethodPut:
		a.checkAccess(auth.PermRoleUpdate, policy.RuleModifyRole, pathRoleTarget(2), func(w http.ResponseWriter, r *http.Request) {
			a.updateRole(w, r, id)
		})(w, r)
	case http.MethodDelete:
		a.checkAccess(auth.PermRoleDelete, policy.RuleDeleteRole, pathRoleTarget(2), func(w http.ResponseWriter, r *http.Request) {
			a.deleteRole(w, r, id)
		})(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.graph.ListRoles(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.graph.CreateRole(r.Context(), req.Name)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "role.create", map[string]any{
		"role_id": role.ID,
		"name":    role.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/api/roles/%s", role.ID))
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) getRole(w http.ResponseWriter, r *http.Request, id string) {
	role, err := a.graph.GetRole(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request, id string) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	// the new name is a target too: renaming into a privileged tier is
	// subject to the same hierarchy rules as addressing that tier
	if err := a.checkRoleTarget(r, policy.RuleModifyRole, strings.TrimSpace(req.Name)); err != nil {
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
		return
	}
	role, err := a.graph.UpdateRole(r.Context(), id, req.Name)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "role.update", map[string]any{
		"role_id": role.ID,
		"name":    role.Name,
	})
	writeJSON(w, http.StatusOK, role)
}

func (a *API) deleteRole(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.graph.DeleteRole(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "role.delete", map[string]any{
		"role_id": id,
	})
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
