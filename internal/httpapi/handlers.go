package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"legacyplanner.org/internal/appointment"
	"legacyplanner.org/internal/auth"
	"legacyplanner.org/internal/billing"
	"legacyplanner.org/internal/entitlement"
	"legacyplanner.org/internal/kb"
	"legacyplanner.org/internal/mail"
	"legacyplanner.org/internal/obs"
	"legacyplanner.org/internal/plan"
)

const serviceName = "legacyplanner-api"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	ParseAndValidate(token string) (*auth.Claims, error)
}

// Deps are the services behind the HTTP surface. Billing and Mail may be nil,
// in which case their routes answer 503.
type Deps struct {
	Plans        *plan.Service
	Resolver     *plan.Resolver
	Access       *entitlement.Resolver
	Billing      *billing.Service
	Mail         *mail.Service
	Appointments *appointment.Service
	KB           *kb.Service
	Tokens       TokenVerifier
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe readinessChecker
	version    string
	deps       Deps

	rateBurst      int
	ratePerSec     int
	maxBodyBytes   int64
	allowedOrigins []string
}

// Option configures the API.
type Option func(*API)

func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		if burst > 0 && perSecond > 0 {
			a.rateBurst, a.ratePerSec = burst, perSecond
		}
	}
}

func WithAllowedOrigins(origins []string) Option {
	return func(a *API) { a.allowedOrigins = append([]string(nil), origins...) }
}

func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

func New(rp readinessChecker, version string, deps Deps, opts ...Option) (*API, error) {
	if deps.Plans == nil || deps.Resolver == nil || deps.Access == nil {
		return nil, errors.New("plan service, plan resolver and access resolver are required")
	}
	if deps.Appointments == nil || deps.KB == nil {
		return nil, errors.New("appointment and kb services are required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("token verifier is required")
	}
	if rp == nil {
		rp = ReadyProbe{}
	}
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		deps:         deps,
		rateBurst:    40,
		ratePerSec:   20,
		maxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/me/plan", a.handleMyPlan)
	a.mux.HandleFunc("/v1/me/entitlements", a.handleMyEntitlements)
	a.mux.HandleFunc("/v1/plans/{id}/data", a.handlePlanData)
	a.mux.HandleFunc("/v1/plans/{id}/sections/{section}", a.handlePlanSection)
	a.mux.HandleFunc("/v1/plans/{id}/profile", a.handlePlanProfile)
	a.mux.HandleFunc("/v1/plans/{id}/collections/{collection}", a.handlePlanCollection)
	a.mux.HandleFunc("/v1/sections", a.handleSections)
	a.mux.HandleFunc("/v1/sections/navigation", a.handleNavigation)

	a.mux.HandleFunc("/v1/billing/prices/{lookup_key}", a.handlePrice)
	a.mux.HandleFunc("/v1/billing/checkout", a.handleCheckout)
	a.mux.HandleFunc("/v1/billing/checkout/{session_id}", a.handleVerifyCheckout)
	a.mux.HandleFunc("/v1/billing/checkout/{session_id}/fulfill", a.handleFulfillCheckout)
	a.mux.HandleFunc("/v1/billing/portal", a.handlePortal)

	a.mux.HandleFunc("/v1/email/plan-summary", a.handlePlanSummaryEmail)
	a.mux.HandleFunc("/v1/email/song-order", a.handleSongOrderEmail)

	a.mux.HandleFunc("/v1/appointments", a.handleAppointments)
	a.mux.HandleFunc("/v1/kb/search", a.handleKBSearch)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	return a, nil
}

// Handler wraps the mux with the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = obs.Instrument(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.allowedOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
