package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"retail-pos/internal/app"
	"retail-pos/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Options configures the HTTP adapter.
type Options struct {
	JWTSecret          string
	SessionTTL         time.Duration
	AllowedOrigins     []string
	RequestTimeout     time.Duration
	LoginRatePerMinute int
	// Development echoes internal error detail and drops the Secure cookie flag.
	Development bool
	// Sessions records logouts. Nil means NoopSessionStore.
	Sessions SessionStore
	Logger   logrus.FieldLogger
	// Location is the shop's timezone, used for export file names.
	Location *time.Location
}

// Handler holds the ApplicationService, the chi router, and the login limiter.
type Handler struct {
	svc          app.ApplicationService
	router       chi.Router
	log          logrus.FieldLogger
	sessions     SessionStore
	limiter      *loginLimiter
	jwtSecret    string
	sessionTTL   time.Duration
	secureCookie bool
	development  bool
	loc          *time.Location
	now          func() time.Time
}

// NewHandler creates and wires the chi router with all routes. Background
// maintenance stops when ctx is cancelled.
func NewHandler(ctx context.Context, svc app.ApplicationService, opts Options) http.Handler {
	return newHandler(ctx, svc, opts).router
}

func newHandler(ctx context.Context, svc app.ApplicationService, opts Options) *Handler {
	if opts.Sessions == nil {
		opts.Sessions = NoopSessionStore{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	h := &Handler{
		svc:          svc,
		log:          opts.Logger,
		sessions:     opts.Sessions,
		limiter:      newLoginLimiter(opts.LoginRatePerMinute),
		jwtSecret:    opts.JWTSecret,
		sessionTTL:   opts.SessionTTL,
		secureCookie: !opts.Development,
		development:  opts.Development,
		loc:          opts.Location,
		now:          time.Now,
	}
	h.limiter.startPurge(ctx)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(middleware.Timeout(opts.RequestTimeout))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/health", h.health)
	r.Get("/api/health", h.health)

	// ── Auth (public API) ─────────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(maxBodyBytes))
		r.With(h.RateLimitLogin).Post("/api/auth/login", h.login)
		r.Post("/api/auth/logout", h.logout)
	})

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(maxBodyBytes))

		r.Get("/api/auth/me", h.me)
		r.Post("/api/auth/change-password", h.changePassword)
		r.With(RequireAdmin).Post("/api/auth/users", h.createUser)

		// ── Products ──────────────────────────────────────────────────────────
		r.Get("/api/products", h.listProducts)
		r.Get("/api/products/meta/categories", h.listCategories)
		r.Get("/api/products/meta/unit-types", h.listUnitTypes)
		r.Get("/api/products/{id}", h.getProduct)
		r.Post("/api/products", h.createProduct)
		r.Put("/api/products/{id}", h.updateProduct)
		r.Delete("/api/products/{id}", h.deleteProduct)

		// ── Sales ─────────────────────────────────────────────────────────────
		r.Get("/api/sales", h.listSales)
		r.Get("/api/sales/{id}", h.getSale)
		r.Post("/api/sales", h.createSale)
		r.Post("/api/sales/{id}/void", h.voidSale)

		// ── Deliveries ────────────────────────────────────────────────────────
		r.Get("/api/deliveries", h.listDeliveries)
		r.Get("/api/deliveries/meta/suppliers", h.listSuppliers)
		r.Get("/api/deliveries/{id}", h.getDelivery)
		r.Post("/api/deliveries", h.createDelivery)
		r.Put("/api/deliveries/{id}", h.updateDelivery)

		// ── Crates ────────────────────────────────────────────────────────────
		r.Get("/api/crates/balances", h.crateBalances)
		r.Get("/api/crates/product/{id}", h.crateHistory)
		r.Post("/api/crates/return", h.crateReturn)
		r.Post("/api/crates/adjust", h.crateAdjust)
		r.Get("/api/crates/summary", h.crateSummary)
		r.Get("/api/crates/summary/export", h.crateSummaryExport)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, "route not found", core.CodeNotFound, http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, "method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
	})

	h.router = r
	return h
}

// health reports process liveness and database reachability.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status    string    `json:"status"`
		Database  string    `json:"database"`
		Timestamp time.Time `json:"timestamp"`
	}

	resp := response{Status: "OK", Database: "up", Timestamp: h.now().UTC()}
	status := http.StatusOK
	if err := h.svc.Ping(r.Context()); err != nil {
		h.log.WithError(err).Warn("health check: database unreachable")
		resp.Status = "DEGRADED"
		resp.Database = "down"
		status = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, status, resp)
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors. Decoded
// bodies are then checked against their validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		var de *core.Error
		if errors.As(err, &de) {
			writeError(w, r, de.Message, de.Code, http.StatusBadRequest)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), core.CodeValidation, http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		fields := validationFields(err)
		writeErrorFields(w, r, validationMessage(fields), core.CodeValidation, http.StatusBadRequest, fields)
		return false
	}
	return true
}

// idParam parses a positive integer URL parameter. It writes a 400 and returns
// false when the value is malformed.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name, core.CodeValidation, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter; malformed values fall back to 0.
func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
