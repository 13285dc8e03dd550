package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"adminhub.org/internal/auth"
	"adminhub.org/internal/policy"
)

type createUserRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Surname  string `json:"surname"`
	Name     string `json:"name"`
	TabNum   string `json:"tab_num"`
	// Role/RoleID optionally assign an initial role; the hierarchy check
	// upstream already judged it as the request target.
	Role   string `json:"role"`
	RoleID string `json:"roleId"`
}

type updateUserRequest struct {
	Login    *string `json:"login"`
	Password *string `json:"password"`
	Surname  *string `json:"surname"`
	Name     *string `json:"name"`
	TabNum   *string `json:"tab_num"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type assignRoleRequest struct {
	RoleID string `json:"roleId"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.checkAccess(auth.PermUserRead, policy.RuleNone, nil, a.listUsers)(w, r)
	case http.MethodPost:
		a.checkAccess(auth.PermUserCreate, policy.RuleCreateUser, bodyRoleTarget, a.createUser)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/users/"), "/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id := parts[0]
	switch {
	case len(parts) == 1:
		a.handleUserByID(w, r, id)
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.checkAccess(auth.PermUserUpdate, policy.RuleNone, nil, func(w http.ResponseWriter, r *http.Request) {
			a.setUserStatus(w, r, id)
		})(w, r)
	case len(parts) == 2 && parts[1] == "roles":
		a.handleUserRoles(w, r, id)
	case len(parts) == 3 && parts[1] == "roles":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		roleID := parts[2]
		a.checkAccess(auth.PermUserUpdate, policy.RuleModifyUser, pathRoleTarget(4), func(w http.ResponseWriter, r *http.Request) {
			a.removeUserRole(w, r, id, roleID)
		})(w, r)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUserByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		a.checkAccess(auth.PermUserRead, policy.RuleNone, nil, func(w http.ResponseWriter, r *http.Request) {
			a.getUser(w, r, id)
		})(w, r)
	case http.MethodPut:
		a.checkAccess(auth.PermUserUpdate, policy.RuleNone, nil, func(w http.ResponseWriter, r *http.Request) {
			a.updateUser(w, r, id)
		})(w, r)
	case http.MethodDelete:
		a.checkAccess(auth.PermUserDelete, policy.RuleNone, nil, func(w http.ResponseWriter, r *http.Request) {
			a.deleteUser(w, r, id)
		})(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		a.checkAccess(auth.PermUserRead, policy.RuleNone, nil, func(w http.ResponseWriter, r *http.Request) {
			a.listUserRoles(w, r, id)
		})(w, r)
	case http.MethodPost:
		a.checkAccess(auth.PermUserUpdate, policy.RuleModifyUser, bodyRoleTarget, func(w http.ResponseWriter, r *http.Request) {
			a.assignUserRole(w, r, id)
		})(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// guardUserTarget loads the target user's assigned roles and applies the
// hierarchy rule that protects privileged users from lesser callers.
func (a *API) guardUserTarget(w http.ResponseWriter, r *http.Request, userID string, rule policy.Rule) bool {
	roles, err := a.graph.RolesForUser(r.Context(), userID)
	if err != nil {
		handleAuthError(w, r, err)
		return false
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, strings.ToLower(role.Name))
	}
	if err := a.checkUserTarget(r, rule, names); err != nil {
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
		return false
	}
	return true
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.graph.ListUsers(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	roleID := strings.TrimSpace(req.RoleID)
	if roleID == "" && strings.TrimSpace(req.Role) != "" {
		role, err := a.graph.GetRoleByName(r.Context(), req.Role)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		roleID = role.ID
	}
	user, err := a.graph.CreateUser(r.Context(), req.Login, req.Password, req.Surname, req.Name, req.TabNum)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	fields := map[string]any{
		"target_user_id": user.ID,
		"login":          user.Login,
	}
	if roleID != "" {
		if err := a.graph.AssignRole(r.Context(), user.ID, roleID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		fields["role_id"] = roleID
	}
	a.audit(r.Context(), "user.create", fields)
	w.Header().Set("Location", fmt.Sprintf("/api/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := a.graph.GetUser(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	if !a.guardUserTarget(w, r, id, policy.RuleModifyUser) {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.graph.UpdateUser(r.Context(), id, auth.UserUpdate{
		Login:    req.Login,
		Password: req.Password,
		Surname:  req.Surname,
		Name:     req.Name,
		TabNum:   req.TabNum,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.update", map[string]any{
		"target_user_id": user.ID,
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) setUserStatus(w http.ResponseWriter, r *http.Request, id string) {
	if !a.guardUserTarget(w, r, id, policy.RuleUpdateStatus) {
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	status, ok := auth.ParseUserStatus(req.Status)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "unsupported status value")
		return
	}
	if err := a.graph.SetUserStatus(r.Context(), id, status); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.status", map[string]any{
		"target_user_id": id,
		"status":         string(status),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": string(status)})
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	if !a.guardUserTarget(w, r, id, policy.RuleDeleteUser) {
		return
	}
	if err := a.graph.DeleteUser(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.delete", map[string]any{
		"target_user_id": id,
	})
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (a *API) listUserRoles(w http.ResponseWriter, r *http.Request, id string) {
	roles, err := a.graph.RolesForUser(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) assignUserRole(w http.ResponseWriter, r *http.Request, id string) {
	if !a.guardUserTarget(w, r, id, policy.RuleModifyUser) {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.graph.AssignRole(r.Context(), id, req.RoleID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.role.assign", map[string]any{
		"target_user_id": id,
		"role_id":        req.RoleID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"assigned": true})
}

func (a *API) removeUserRole(w http.ResponseWriter, r *http.Request, userID, roleID string) {
	if !a.guardUserTarget(w, r, userID, policy.RuleModifyUser) {
		return
	}
	if err := a.graph.RemoveRole(r.Context(), userID, roleID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.role.remove", map[string]any{
		"target_user_id": userID,
		"role_id":        roleID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}
