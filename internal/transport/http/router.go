package http

import (
	"net/http"
	"time"

	"devicemail/internal/observability/middleware"
	"devicemail/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	requestTimeout = 30 * time.Second
	// loginLimit caps credential attempts per client IP per minute.
	loginLimit = 10
)

type Options struct {
	// TrustProxy makes X-Forwarded-For / X-Real-IP authoritative for the client address.
	TrustProxy     bool
	CORSOrigins    []string
	RateLimit      int
	MetricsHandler http.Handler
}

type Handler struct {
	auth   service.AuthService
	tokens service.TokenService
	mail   service.MailService
	admin  service.AdminService
}

func NewRouter(auth service.AuthService, tokens service.TokenService, mail service.MailService, admin service.AdminService, opts Options) http.Handler {
	h := &Handler{auth: auth, tokens: tokens, mail: mail, admin: admin}

	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	if opts.RateLimit > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
	}
	r.Use(cors.Handler(corsOptions(opts.CORSOrigins)))
	r.Use(middleware.WithRequestAndTrace)
	r.Use(middleware.WithMetrics)
	r.Use(middleware.LogRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/register", h.register)
		r.With(httprate.LimitByIP(loginLimit, time.Minute)).Post("/login", h.login)
		r.With(h.optionalAuth).Get("/login", h.loginStatus)
		r.Post("/refresh", h.refresh)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout", h.logout)
			r.Get("/profile", h.profile)
			r.Get("/check-permission", h.checkPermission)
		})
	})

	r.Route("/emails", func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/inbox", h.inbox)
		r.Get("/sent", h.sent)
		r.Post("/compose", h.compose)
		r.Get("/{id}", h.detail)
		r.Get("/{id}/reply", h.replyDraft)
		r.Post("/{id}/reply", h.reply)
		r.Post("/{id}/delete", h.deleteMessage)
		r.Post("/{id}/mark-read", h.markRead)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/devices", h.listDevices)
		r.Get("/ledger", h.listLedger)
		r.Post("/devices/permissions", h.batchSetCapabilities)
		r.Patch("/devices/{key}", h.setCapabilities)
		r.Post("/devices/{key}/logout", h.forceLogout)
	})

	return r
}

// corsOptions allows any origin without credentials unless origins are
// listed explicitly.
func corsOptions(origins []string) cors.Options {
	c := cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Trace-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Trace-ID"},
		MaxAge:         300,
	}
	if len(origins) > 0 {
		c.AllowedOrigins = origins
		c.AllowCredentials = true
	}
	return c
}
