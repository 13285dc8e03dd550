package httpapi

import (
	"net/http"
	"time"

	"adminhub.org/internal/auth"
	"adminhub.org/internal/obs"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Device   string `json:"device"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	device := req.Device
	if device == "" {
		device = r.Header.Get("User-Agent")
	}
	issued, err := a.auth.Login(r.Context(), req.Login, req.Password, device, clientIP(r))
	if err != nil {
		obs.CountAuthFailure("login_failed")
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.login", map[string]any{
		"login": req.Login,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      issued.Token,
		"expires_at": issued.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	revoked, err := a.auth.Logout(r.Context(), token)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.logout", map[string]any{
		"revoked": revoked,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"revoked": revoked,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if token, ok := auth.TokenFromContext(r.Context()); ok {
		// session activity is best-effort; the response does not depend on it
		_ = a.auth.TouchSession(r.Context(), token)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        principal.User,
		"status":      principal.Status,
		"roles":       principal.RoleNames(),
		"permissions": principal.PermissionNames(),
	})
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	sessions, err := a.auth.Sessions(r.Context(), principal.User.ID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
	})
}
