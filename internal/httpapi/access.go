package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"adminhub.org/internal/auth"
	"adminhub.org/internal/obs"
	"adminhub.org/internal/policy"
)

// targetFunc resolves the role name an operation is aimed at. The second
// return reports whether the request names a target at all; predicates
// treat an absent target differently from an empty one.
type targetFunc func(a *API, r *http.Request) (string, bool, error)

// checkAccess wraps a handler with the two-stage authorization check:
// superadmin bypass, then coarse permission, then the fine-tuning rule
// evaluated against the target role when one applies.
func (a *API) checkAccess(perm string, rule policy.Rule, target targetFunc, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		if principal.HasRole(policy.RoleSuperadmin) {
			next(w, r)
			return
		}
		if perm != "" && !principal.HasPermission(perm) {
			obs.CountAuthFailure("permission_denied")
			writeError(w, r, http.StatusForbidden, "insufficient permissions")
			return
		}
		if rule != policy.RuleNone {
			targetRole := ""
			if target != nil {
				name, present, err := target(a, r)
				if err != nil {
					handleAuthError(w, r, err)
					return
				}
				if present {
					targetRole = name
				}
			}
			if !policy.Allows(rule, principal.RoleNames(), targetRole) {
				obs.CountAuthFailure("rule_denied")
				writeError(w, r, http.StatusForbidden, "insufficient permissions")
				return
			}
		}
		next(w, r)
	}
}

// checkUserTarget applies a user-targeting rule once the target user's
// assigned roles are known. Handlers call it after loading the target.
func (a *API) checkUserTarget(r *http.Request, rule policy.Rule, targetRoles []string) error {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return auth.ErrUnauthorized
	}
	if principal.HasRole(policy.RoleSuperadmin) {
		return nil
	}
	if !policy.AllowsUserTarget(rule, principal.RoleNames(), targetRoles) {
		obs.CountAuthFailure("rule_denied")
		return auth.ErrUnauthorized
	}
	return nil
}

// checkRoleTarget applies a rule to an explicit role-name target. Handlers
// use it when a request carries a second target beyond the one checkAccess
// already judged, such as the new name on a rename.
func (a *API) checkRoleTarget(r *http.Request, rule policy.Rule, targetRole string) error {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return auth.ErrUnauthorized
	}
	if principal.HasRole(policy.RoleSuperadmin) {
		return nil
	}
	if !policy.Allows(rule, principal.RoleNames(), targetRole) {
		obs.CountAuthFailure("rule_denied")
		return auth.ErrUnauthorized
	}
	return nil
}

// bodyRoleTarget peeks at the JSON body for a "role" name or a "roleId"
// reference and rewinds the body so the handler can decode it again.
func bodyRoleTarget(a *API, r *http.Request) (string, bool, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", false, errors.New("unable to read request body")
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))

	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false, nil
	}
	var peek struct {
		Role   *string `json:"role"`
		RoleID *string `json:"roleId"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		// malformed payloads fail later with a proper 400; no target here
		return "", false, nil
	}
	if peek.Role != nil && strings.TrimSpace(*peek.Role) != "" {
		return strings.TrimSpace(*peek.Role), true, nil
	}
	if peek.RoleID != nil && strings.TrimSpace(*peek.RoleID) != "" {
		name, err := a.graph.RoleName(r.Context(), strings.TrimSpace(*peek.RoleID))
		if err != nil {
			return "", false, err
		}
		return name, true, nil
	}
	return "", false, nil
}

// pathRoleTarget resolves the role addressed by the given path segment
// index (zero-based, after splitting on "/").
func pathRoleTarget(segment int) targetFunc {
	return func(a *API, r *http.Request) (string, bool, error) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if segment >= len(parts) || parts[segment] == "" {
			return "", false, nil
		}
		name, err := a.graph.RoleName(r.Context(), parts[segment])
		if err != nil {
			return "", false, err
		}
		return name, true, nil
	}
}
