package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/viralforge/trading-signals/internal/application"
)

const (
	apiTitle   = "Trading Signals SaaS API"
	apiVersion = "1.0.0"

	healthTimeout = 2 * time.Second
)

// Pinger is a dependency probed by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": apiTitle,
		"status":  "running",
		"version": apiVersion,
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if _, healthy := h.probe(r.Context()); !healthy {
		writeError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable")
		return
	}
	writeMessage(w, http.StatusOK, "ready")
}

// health reports each backing store as connected or disconnected.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	report, healthy := h.probe(r.Context())
	status := http.StatusOK
	if !healthy {
		report["status"] = "unhealthy"
		status = http.StatusServiceUnavailable
	} else {
		report["status"] = "healthy"
	}
	writeJSON(w, status, report)
}

func (h *Handler) probe(ctx context.Context) (map[string]any, bool) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	report := map[string]any{}
	healthy := true
	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			healthy = false
			report[name] = "disconnected"
			report[name+"_error"] = err.Error()
			return
		}
		report[name] = "connected"
	}
	check("database", h.database)
	check("redis", h.redis)
	return report, healthy
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req application.SignupRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "signup", err)
		return
	}
	res, err := h.service.Signup(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "signup", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}
	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context")
		return
	}
	res, err := h.service.Me(r.Context(), claims.UserID)
	if err != nil {
		writeMappedError(r.Context(), w, "me", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) createCheckout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context")
		return
	}
	res, err := h.service.CreateCheckout(r.Context(), claims.UserID)
	if err != nil {
		writeMappedError(r.Context(), w, "create_checkout", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) billingStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context")
		return
	}
	res, err := h.service.BillingStatus(r.Context(), claims.UserID)
	if err != nil {
		writeMappedError(r.Context(), w, "billing_status", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

// stripeWebhook answers with the result object the provider logs.
func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeValidationError(r.Context(), w, "stripe_webhook", err)
		return
	}
	res, err := h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeMappedError(r.Context(), w, "stripe_webhook", err)
		return
	}
	writeWebhookResult(w, res)
}

func (h *Handler) signals(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context")
		return
	}
	res, err := h.service.GetSignals(r.Context(), claims.UserID)
	if err != nil {
		writeMappedError(r.Context(), w, "get_signals", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
