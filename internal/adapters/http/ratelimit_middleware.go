package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/viralforge/trading-signals/internal/application"
	"github.com/viralforge/trading-signals/internal/domain"
)

// RateLimits holds the per-action rules applied by the router.
type RateLimits struct {
	Signup  application.RateLimitRule
	Login   application.RateLimitRule
	Signals application.RateLimitRule
}

// requestIdentity normalizes the caller context a limit is keyed on. The
// subject is only read for rules keyed by subject, so other routes keep their
// body untouched.
func requestIdentity(r *http.Request, kind application.IdentifierKind, trusted []netip.Prefix) application.RequestIdentity {
	identity := application.RequestIdentity{Origin: clientIP(r, trusted)}
	if kind != application.IdentifySubject {
		return identity
	}
	raw, err := peekBody(r)
	if err != nil || len(raw) == 0 {
		return identity
	}
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &body) == nil {
		identity.Subject = strings.ToLower(strings.TrimSpace(body.Email))
	}
	return identity
}

func (h *Handler) rateLimit(rule application.RateLimitRule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if h.limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := requestIdentity(r, rule.Identifier, h.trustedProxies)
			decision, err := h.limiter.Check(r.Context(), rule, identity)
			if err != nil {
				if errors.Is(err, domain.ErrInvalidRateLimitConfig) {
					logHTTPOperationError(r.Context(), "rate_limit", http.StatusInternalServerError, "INTERNAL_ERROR", "invalid rate limit rule", err)
					writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
					return
				}
				writeMappedError(r.Context(), w, "rate_limit", err)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(decision.RetryAfter), 10))
				status, code, msg := mapDomainError(domain.ErrRateLimited)
				writeError(w, status, code, msg)
				return
			}
			remaining := decision.Limit - decision.Count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int64 {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
