package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"adminhub.org/internal/auth"
	"adminhub.org/internal/policy"
)

type permissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type permissionUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type grantRequest struct {
	AccessID string `json:"accessId"`
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.checkAccess(auth.PermAccessRead, policy.RuleNone, nil, a.listPermissions)(w, r)
	case http.MethodPost:
		a.checkAccess(auth.PermAccessCreate, policy.RuleNone, nil, a.createPermission)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePermissionResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/access/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.checkAccess(auth.PermAccessRead, policy.RuleNone, nil, func(w http.ResponseWriter, r *http.Request) {
			a.getPermission(w, r, id)
		})(w, r)
	case http.MethodPut:
		a.checkAccess(auth.PermAccessUpdate, policy.RuleNone, nil, func(w http.ResponseWriter, r *http.Request) {
			a.updatePermission(w, r, id)
		})(w, r)
	case http.MethodDelete:
		a.checkAccess(auth.PermAccessDelete, policy.RuleNone, nil, func(w http.ResponseWriter, r *http.Request) {
			a.deletePermission(w, r, id)
		})(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleRoleAccess serves /api/role-access/{roleId}/access[/{accessId}]:
// the permission edges of a single role.
func (a *API) handleRoleAccess(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/role-access/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] != "access" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	roleID := parts[0]
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		a.checkAccess(auth.PermRoleAccess, policy.RuleModifyRole, pathRoleTarget(2), func(w http.ResponseWriter, r *http.Request) {
			a.listRoleAccess(w, r, roleID)
		})(w, r)
	case len(parts) == 2 && r.Method == http.MethodPost:
		a.checkAccess(auth.PermRoleAccess, policy.RuleModifyRole, pathRoleTarget(2), func(w http.ResponseWriter, r *http.Request) {
			a.grantRoleAccess(w, r, roleID)
		})(w, r)
	case len(parts) == 3 && r.Method == http.MethodDelete:
		accessID := parts[2]
		a.checkAccess(auth.PermRoleAccess, policy.RuleModifyRole, pathRoleTarget(2), func(w http.ResponseWriter, r *http.Request) {
			a.revokeRoleAccess(w, r, roleID, accessID)
		})(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.graph.ListPermissions(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access": perms})
}

func (a *API) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	perm, err := a.graph.CreatePermission(r.Context(), req.Name, req.Description)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "access.create", map[string]any{
		"access_id": perm.ID,
		"name":      perm.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/api/access/%s", perm.ID))
	writeJSON(w, http.StatusCreated, perm)
}

func (a *API) getPermission(w http.ResponseWriter, r *http.Request, id string) {
	perm, err := a.graph.GetPermission(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perm)
}

func (a *API) updatePermission(w http.ResponseWriter, r *http.Request, id string) {
	var req permissionUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	perm, err := a.graph.UpdatePermission(r.Context(), id, auth.PermissionUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "access.update", map[string]any{
		"access_id": perm.ID,
	})
	writeJSON(w, http.StatusOK, perm)
}

func (a *API) deletePermission(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.graph.DeletePermission(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "access.delete", map[string]any{
		"access_id": id,
	})
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (a *API) listRoleAccess(w http.ResponseWriter, r *http.Request, roleID string) {
	perms, err := a.graph.RolePermissions(r.Context(), roleID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access": perms})
}

func (a *API) grantRoleAccess(w http.ResponseWriter, r *http.Request, roleID string) {
	var req grantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.graph.GrantPermission(r.Context(), roleID, req.AccessID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "role_access.grant", map[string]any{
		"role_id":   roleID,
		"access_id": req.AccessID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"granted": true})
}

func (a *API) revokeRoleAccess(w http.ResponseWriter, r *http.Request, roleID, accessID string) {
	if err := a.graph.RevokePermission(r.Context(), roleID, accessID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "role_access.revoke", map[string]any{
		"role_id":   roleID,
		"access_id": accessID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"revoked": true})
}
