package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"timeclock.org/internal/attendance"
	"timeclock.org/internal/audit"
	"timeclock.org/internal/auth"
	"timeclock.org/internal/obs"
	"timeclock.org/internal/stream"
)

// ReadyProbe reports service readiness (for example a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options tunes the boundary layer. Zero values fall back to sane defaults.
type Options struct {
	TokenTTL     time.Duration
	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64
	IdleWindow   time.Duration
}

// API is the HTTP layer. It owns routing, auth, and error mapping; every
// domain decision is delegated to the attendance service.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	svc       attendance.Service
	directory auth.Directory
	tasks     attendance.TaskSource
	stream    *stream.Stream

	tokenTTL   time.Duration
	rateBurst  int
	ratePerSec int
	maxBody    int64
	idleWindow time.Duration
}

func New(rp ReadyProbe, version string, svc attendance.Service, dir auth.Directory, tasks attendance.TaskSource, st *stream.Stream, opts Options) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		svc:        svc,
		directory:  dir,
		tasks:      tasks,
		stream:     st,
		tokenTTL:   opts.TokenTTL,
		rateBurst:  opts.RateBurst,
		ratePerSec: opts.RatePerSec,
		maxBody:    opts.MaxBodyBytes,
		idleWindow: opts.IdleWindow,
	}
	if a.tokenTTL <= 0 {
		a.tokenTTL = 15 * time.Minute
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}
	if a.maxBody <= 0 {
		a.maxBody = 1 << 20
	}
	if a.idleWindow <= 0 {
		a.idleWindow = attendance.DefaultIdleWindow
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// work session lifecycle
	a.mux.HandleFunc("/v1/work/start", a.handleStartWork)
	a.mux.HandleFunc("/v1/work/stop", a.handleStopWork)
	a.mux.HandleFunc("/v1/work/break/start", a.handleStartBreak)
	a.mux.HandleFunc("/v1/work/break/end", a.handleEndBreak)
	a.mux.HandleFunc("/v1/work/policy", a.handlePolicy)

	// presence
	a.mux.HandleFunc("/v1/presence/ping", a.handlePing)
	a.mux.HandleFunc("/v1/presence/online", a.handleOnline)
	a.mux.HandleFunc("/v1/presence/stream", a.Stream)

	// self-service
	a.mux.HandleFunc("/v1/me", a.handleMe)

	// admin reporting
	a.mux.HandleFunc("/v1/admin/dashboard", a.handleDashboard)
	a.mux.HandleFunc("/v1/admin/weekly-stats", a.handleWeeklyStats)
	a.mux.HandleFunc("/v1/admin/rankings", a.handleRankings)
	a.mux.HandleFunc("/v1/admin/alerts", a.handleAlerts)
	a.mux.HandleFunc("/v1/admin/users/", a.handleUserDetail)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := obs.Instrument(a.mux)
	h = a.withAuth(h)
	h = LoggingJSON(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, a.maxBody)
	h = CORS(h)
	h = SecurityHeaders(h)
	return RequestID(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "timeclock-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
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

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "timeclock-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) audit(ctx context.Context, action, entityType, entityID string, metadata map[string]string) {
	_ = audit.LogEvent(ctx, action, entityType, entityID, metadata)
}

// identity returns the authenticated caller, writing 401 when absent.
func (a *API) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, false
	}
	return id, true
}

// requireAdmin returns the caller when it carries the admin role, writing 403
// otherwise.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := a.identity(w, r)
	if !ok {
		return auth.Identity{}, false
	}
	if !id.IsAdmin() {
		writeError(w, r, http.StatusForbidden, "admin role required")
		return auth.Identity{}, false
	}
	return id, true
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
