package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/erazemk/garderoba/internal/auth"
	"github.com/erazemk/garderoba/internal/ledger"
	"github.com/erazemk/garderoba/internal/permission"
	"github.com/erazemk/garderoba/internal/staff"
)

// Deps are the services the router dispatches to.
type Deps struct {
	DB        *sql.DB
	Guard     *auth.Guard
	Ledger    *ledger.Ledger
	Staff     *staff.Service
	Matrix    *permission.Matrix
	JWTSecret string
	TokenTTL  time.Duration
	Logger    *slog.Logger

	// LoginRate limits login requests per second across all callers.
	// Zero disables the limiter.
	LoginRate  float64
	LoginBurst int

	// Metrics is mounted at MetricsPath when both are set.
	Metrics     http.Handler
	MetricsPath string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.TokenTTL <= 0 {
		d.TokenTTL = auth.DefaultTokenTTL
	}

	var limiter *rate.Limiter
	if d.LoginRate > 0 {
		burst := d.LoginBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(d.LoginRate), burst)
	}

	authHandler := &AuthHandler{DB: d.DB, Guard: d.Guard, JWTSecret: d.JWTSecret, TokenTTL: d.TokenTTL, Limiter: limiter}
	itemsHandler := &ItemsHandler{Ledger: d.Ledger}
	usersHandler := &UsersHandler{Staff: d.Staff}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(d.Logger))
	r.Use(middleware.Recoverer)

	if d.Metrics != nil && d.MetricsPath != "" {
		r.Method(http.MethodGet, d.MetricsPath, d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// Public: login.
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.JWTSecret, d.DB))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/session", authHandler.Me)
			r.With(RequirePermission(d.Matrix, permission.ManageUsers)).Get("/auth/lockout", authHandler.Lockout)

			// Custody. The ledger checks permissions per operation.
			r.Get("/items", itemsHandler.List)
			r.Post("/items", itemsHandler.CheckIn)
			r.Post("/items/checkout", itemsHandler.CheckOut)
			r.Get("/items/code/{code}", itemsHandler.Lookup)
			r.Get("/archive", itemsHandler.Archive)
			r.Get("/departments", itemsHandler.Departments)
			r.Get("/clients", itemsHandler.Clients)

			// Staff accounts.
			r.Get("/users", usersHandler.List)
			r.Post("/users", usersHandler.Create)
			r.Put("/users/{username}/blocked", usersHandler.SetBlocked)
			r.Put("/users/{username}/role", usersHandler.SetRole)
		})
	})

	return r
}
