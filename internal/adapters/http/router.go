package http

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/viralforge/trading-signals/internal/application"
)

// Handler is the HTTP adapter entrypoint for the signals service.
type Handler struct {
	service  *application.Service
	limiter  *application.RateLimiter
	limits   RateLimits
	database Pinger
	redis    Pinger

	trustedProxies []netip.Prefix
}

// HandlerDeps lists what the adapter needs from the composition root.
type HandlerDeps struct {
	Service  *application.Service
	Limiter  *application.RateLimiter
	Limits   RateLimits
	Database Pinger
	Redis    Pinger

	// TrustedProxies are peers whose X-Forwarded-For is believed. Empty
	// means limits key on the TCP peer only.
	TrustedProxies []netip.Prefix
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		service:  deps.Service,
		limiter:  deps.Limiter,
		limits:   deps.Limits,
		database: deps.Database,
		redis:    deps.Redis,

		trustedProxies: deps.TrustedProxies,
	}
}

// RouterOptions configures the outer middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
	Observer       RequestObserver
	Metrics        http.Handler
}

// NewRouter registers routes and the middleware stack.
func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware(opts.Observer))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           int((10 * time.Minute).Seconds()),
		}))
	}

	r.Get("/", handler.root)
	r.Get("/health", handler.health)
	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(handler.rateLimit(handler.limits.Signup)).Post("/signup", handler.signup)
		r.With(handler.rateLimit(handler.limits.Login)).Post("/login", handler.login)
		r.With(handler.authMiddleware).Get("/me", handler.me)
	})

	r.Route("/billing", func(r chi.Router) {
		r.Post("/webhooks/stripe", handler.stripeWebhook)
		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/create-checkout", handler.createCheckout)
			r.Get("/status", handler.billingStatus)
		})
	})

	r.Route("/signals", func(r chi.Router) {
		r.Use(handler.authMiddleware)
		r.Use(handler.rateLimit(handler.limits.Signals))
		r.Get("/", handler.signals)
	})

	return r
}
