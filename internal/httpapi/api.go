package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"adminhub.org/internal/audit"
	"adminhub.org/internal/auth"
	"adminhub.org/internal/obs"
)

// ReadyProbe reports readiness, typically by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the request-shaping knobs taken from configuration.
type Options struct {
	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64
}

// API is the HTTP layer over the authentication service and the
// role/permission graph.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	graph      *auth.GraphService
	readyProbe ReadyProbe
	opts       Options
	version    string
}

func New(authSvc *auth.Service, graph *auth.GraphService, rp ReadyProbe, opts Options, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       authSvc,
		graph:      graph,
		readyProbe: rp,
		opts:       opts,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReady)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/api/auth/me", a.handleMe)
	a.mux.HandleFunc("/api/auth/sessions", a.handleSessions)

	a.mux.HandleFunc("/api/roles", a.handleRoles)
	a.mux.HandleFunc("/api/roles/", a.handleRoleResource)

	a.mux.HandleFunc("/api/access", a.handlePermissions)
	a.mux.HandleFunc("/api/access/", a.handlePermissionResource)

	a.mux.HandleFunc("/api/role-access/", a.handleRoleAccess)

	a.mux.HandleFunc("/api/users", a.handleUsers)
	a.mux.HandleFunc("/api/users/", a.handleUserResource)

	a.mux.HandleFunc("/api/registrations", a.handleRegistrations)
	a.mux.HandleFunc("/api/registrations/", a.handleRegistrationResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = obs.Instrument(h)
	h = RequestID(h)
	if a.opts.MaxBodyBytes > 0 {
		h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	}
	if a.opts.RateBurst > 0 && a.opts.RatePerSec > 0 {
		h = RateLimit(h, a.opts.RateBurst, a.opts.RatePerSec)
	}
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return h
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "adminhub-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		obs.Logger().Printf(`{"level":"error","msg":"audit log failed","event":%q}`, event)
	}
}
