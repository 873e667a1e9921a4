package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/viralforge/trading-signals/internal/adapters/cache"
	"github.com/viralforge/trading-signals/internal/adapters/security"
	"github.com/viralforge/trading-signals/internal/application"
	"github.com/viralforge/trading-signals/internal/domain"
	"github.com/viralforge/trading-signals/internal/ports"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Str0ng!Pass"

type memUsers struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]domain.User
	grantErr error
	pingErr  error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uuid.UUID]domain.User{}}
}

func (m *memUsers) Create(_ context.Context, p ports.CreateUserParams, _ ports.OutboxEvent) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == p.Email {
			return domain.User{}, domain.ErrConflict
		}
	}
	u := domain.User{UserID: p.UserID, Email: p.Email, PasswordHash: p.PasswordHash, CreatedAt: p.CreatedAt, UpdatedAt: p.CreatedAt}
	m.byID[u.UserID] = u
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GrantEntitlement(_ context.Context, p ports.GrantEntitlementParams, _ ports.OutboxEvent) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grantErr != nil {
		return domain.User{}, m.grantErr
	}
	u, ok := m.byID[p.UserID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u.IsPaid = true
	u.StripeCustomerID = &p.StripeCustomerID
	u.StripeSubscriptionID = &p.StripeSubscriptionID
	m.byID[u.UserID] = u
	return u, nil
}

func (m *memUsers) Ping(context.Context) error { return m.pingErr }

type stubPayments struct {
	mu     sync.Mutex
	events map[string]ports.WebhookEvent
}

func (p *stubPayments) CreateCheckoutSession(_ context.Context, userID uuid.UUID, _ string) (ports.CheckoutSession, error) {
	return ports.CheckoutSession{SessionID: "cs_" + userID.String(), URL: "https://checkout.test/" + userID.String()}, nil
}

func (p *stubPayments) ParseWebhook(_ []byte, signature string) (ports.WebhookEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev, ok := p.events[signature]
	if !ok {
		return ports.WebhookEvent{}, fmt.Errorf("%w: unknown signature", domain.ErrInvalidSignature)
	}
	return ev, nil
}

func (p *stubPayments) register(signature string, ev ports.WebhookEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[string]ports.WebhookEvent{}
	}
	p.events[signature] = ev
}

type staticSource struct {
	mu    sync.Mutex
	calls int
}

func (s *staticSource) Generate(context.Context) ([]domain.Signal, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	out := make([]domain.Signal, 0, len(domain.DefaultInstruments()))
	for _, inst := range domain.DefaultInstruments() {
		out = append(out, domain.Signal{Symbol: inst.Symbol, Action: domain.ActionBuy, Price: inst.BasePrice})
	}
	return out, nil
}

type fixture struct {
	mr       *miniredis.Miniredis
	users    *memUsers
	payments *stubPayments
	source   *staticSource
	router   http.Handler
}

func defaultLimits() RateLimits {
	return RateLimits{
		Signup:  application.RateLimitRule{Prefix: "signup", MaxRequests: 3, Window: time.Hour, Identifier: application.IdentifyOrigin},
		Login:   application.RateLimitRule{Prefix: "login", MaxRequests: 5, Window: 900 * time.Second, Identifier: application.IdentifySubject},
		Signals: application.RateLimitRule{Prefix: "signals", MaxRequests: 60, Window: time.Minute, Identifier: application.IdentifyOrigin},
	}
}

func newFixture(t *testing.T, limits RateLimits) *fixture {
	t.Helper()
	return newProxiedFixture(t, limits, nil)
}

// newProxiedFixture trusts X-Forwarded-For from peers inside trusted.
func newProxiedFixture(t *testing.T, limits RateLimits, trusted []netip.Prefix) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := cache.NewRedisStore(client)

	signer, err := security.NewJWTSigner(strings.Repeat("k", 32), "trading-signals")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	f := &fixture{mr: mr, users: newMemUsers(), payments: &stubPayments{}, source: &staticSource{}}
	svc := application.NewService(application.Dependencies{
		Users:       f.users,
		Hasher:      security.NewBcryptHasher(bcrypt.MinCost),
		TokenSigner: signer,
		Payments:    f.payments,
		Guard:       application.NewIdempotencyGuard(store, application.IdempotencyConfig{}),
		SignalCache: application.NewReadThroughCache[[]domain.Signal](store, application.ReadThroughConfig{}, nil),
		Source:      f.source,
	})
	handler := NewHandler(HandlerDeps{
		Service:  svc,
		Limiter:  application.NewRateLimiter(store, application.RateLimiterConfig{}, nil),
		Limits:   limits,
		Database: f.users,
		Redis:    store,

		TrustedProxies: trusted,
	})
	f.router = NewRouter(handler, RouterOptions{AllowedOrigins: []string{"http://localhost:3000"}})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) signup(t *testing.T, email string) application.AuthResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": email, "password": testPassword}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d body=%s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data application.AuthResponse `json:"data"`
	}
	decodeJSON(t, rec, &env)
	return env.Data
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestRootBanner(t *testing.T) {
	f := newFixture(t, defaultLimits())
	rec := f.do(t, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["status"] != "running" || body["version"] != apiVersion {
		t.Fatalf("unexpected banner %v", body)
	}
}

func TestHealthReportsStoreState(t *testing.T) {
	f := newFixture(t, defaultLimits())

	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	var body map[string]string
	decodeJSON(t, rec, &body)
	if rec.Code != http.StatusOK || body["status"] != "healthy" || body["redis"] != "connected" || body["database"] != "connected" {
		t.Fatalf("healthy check = %d %v", rec.Code, body)
	}

	f.mr.Close()
	rec = f.do(t, http.MethodGet, "/health", nil, nil)
	body = map[string]string{}
	decodeJSON(t, rec, &body)
	if rec.Code != http.StatusServiceUnavailable || body["redis"] != "disconnected" || body["redis_error"] == "" {
		t.Fatalf("redis down check = %d %v", rec.Code, body)
	}
	if rec := f.do(t, http.MethodGet, "/readyz", nil, nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d", rec.Code)
	}
}

func TestSignupLoginMe(t *testing.T) {
	f := newFixture(t, defaultLimits())
	auth := f.signup(t, "Trader@Example.com")
	if auth.User.Email != "trader@example.com" || auth.TokenType != "bearer" {
		t.Fatalf("unexpected signup response %+v", auth)
	}

	rec := f.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": "trader@example.com", "password": testPassword}, nil)
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "Email already registered") {
		t.Fatalf("duplicate signup = %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "trader@example.com", "password": testPassword}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/auth/me", nil, bearer(auth.AccessToken))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), auth.User.ID.String()) {
		t.Fatalf("me = %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/auth/me", nil, nil)
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("anonymous me = %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/auth/me", nil, bearer("not-a-token"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token me = %d", rec.Code)
	}
}

func TestSignupRejectsUnknownFields(t *testing.T) {
	f := newFixture(t, defaultLimits())
	rec := f.do(t, http.MethodPost, "/auth/signup", []byte(`{"email":"a@x.com","password":"x","admin":true}`), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLoginLimitedPerDeclaredEmail(t *testing.T) {
	f := newFixture(t, defaultLimits())
	wrong := map[string]string{"email": "a@x.com", "password": "Wr0ng!Pass"}

	for i := 0; i < 5; i++ {
		rec := f.do(t, http.MethodPost, "/auth/login", wrong, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i+1, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Incorrect email or password") {
			t.Fatalf("attempt %d body = %s", i+1, rec.Body.String())
		}
	}

	rec := f.do(t, http.MethodPost, "/auth/login", wrong, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("6th attempt status = %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "900" {
		t.Fatalf("Retry-After = %q", got)
	}

	// Same origin, different subject: separate budget.
	rec = f.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "b@x.com", "password": "Wr0ng!Pass"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("other email status = %d", rec.Code)
	}

	// The window does not move while denied; after it lapses the email is admitted again.
	f.mr.FastForward(901 * time.Second)
	rec = f.do(t, http.MethodPost, "/auth/login", wrong, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("after window status = %d", rec.Code)
	}
}

func TestLoginWithoutEmailIsRejectedByLimiter(t *testing.T) {
	f := newFixture(t, defaultLimits())
	rec := f.do(t, http.MethodPost, "/auth/login", map[string]string{"password": "x"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSignupLimitedPerOrigin(t *testing.T) {
	f := newFixture(t, defaultLimits())
	for i := 0; i < 3; i++ {
		f.signup(t, fmt.Sprintf("user%d@x.com", i))
	}
	rec := f.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": "user9@x.com", "password": testPassword}, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("4th signup status = %d", rec.Code)
	}

	// The peer is not a trusted proxy, so a forged header changes nothing.
	for _, xff := range []string{"198.51.100.7", "198.51.100.7, 10.0.0.1", "203.0.113.9"} {
		rec = f.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": "user9@x.com", "password": testPassword},
			map[string]string{"X-Forwarded-For": xff})
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("spoofed X-Forwarded-For %q status = %d", xff, rec.Code)
		}
	}
}

func TestSignupBehindTrustedProxyKeysOnClientHop(t *testing.T) {
	// httptest requests arrive from 192.0.2.1.
	f := newProxiedFixture(t, defaultLimits(), []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")})
	viaProxy := func(email, xff string) int {
		rec := f.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": email, "password": testPassword},
			map[string]string{"X-Forwarded-For": xff})
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		if code := viaProxy(fmt.Sprintf("a%d@x.com", i), "198.51.100.7"); code != http.StatusCreated {
			t.Fatalf("signup %d status = %d", i+1, code)
		}
	}
	// A client prepending its own hop still lands on the hop the proxy appended.
	if code := viaProxy("a9@x.com", "203.0.113.50, 198.51.100.7"); code != http.StatusTooManyRequests {
		t.Fatalf("prepended hop status = %d", code)
	}
	if code := viaProxy("b0@x.com", "198.51.100.8"); code != http.StatusCreated {
		t.Fatalf("other client status = %d", code)
	}
}

func TestRateLimitStoreOutageFailsClosed(t *testing.T) {
	f := newFixture(t, defaultLimits())
	f.mr.Close()
	rec := f.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": "a@x.com", "password": testPassword}, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUnknownIdentifierKindIsConfigurationError(t *testing.T) {
	limits := defaultLimits()
	limits.Signup.Identifier = "cookie"
	f := newFixture(t, limits)
	rec := f.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": "a@x.com", "password": testPassword}, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

type signalsEnvelope struct {
	Data application.SignalsResponse `json:"data"`
}

func TestSignalsPreviewThenFullAfterWebhook(t *testing.T) {
	f := newFixture(t, defaultLimits())
	auth := f.signup(t, "buyer@x.com")

	rec := f.do(t, http.MethodGet, "/signals/", nil, bearer(auth.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("signals = %d %s", rec.Code, rec.Body.String())
	}
	var env signalsEnvelope
	decodeJSON(t, rec, &env)
	if len(env.Data.Signals) != 3 || env.Data.Total != 3 || env.Data.IsPaid || env.Data.Cached {
		t.Fatalf("free response = %+v", env.Data)
	}
	if env.Data.Message == nil || !strings.Contains(*env.Data.Message, "20") {
		t.Fatalf("missing upsell note: %+v", env.Data.Message)
	}
	if env.Data.Signals[0].Symbol != "NIFTY" || env.Data.Signals[2].Symbol != "RELIANCE" {
		t.Fatalf("preview is not a prefix: %+v", env.Data.Signals)
	}

	f.payments.register("sig-1", ports.WebhookEvent{
		ID:   "evt_1",
		Type: application.EventCheckoutCompleted,
		Checkout: &ports.CheckoutCompletion{
			SessionID:     "cs_1",
			PaymentStatus: "paid",
			UserID:        auth.User.ID.String(),
			CustomerID:    "cus_1",
		},
	})
	rec = f.do(t, http.MethodPost, "/billing/webhooks/stripe", []byte(`{}`), map[string]string{"Stripe-Signature": "sig-1"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "User subscription updated") {
		t.Fatalf("webhook = %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/billing/webhooks/stripe", []byte(`{}`), map[string]string{"Stripe-Signature": "sig-1"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Event already processed") {
		t.Fatalf("redelivery = %d %s", rec.Code, rec.Body.String())
	}
	if !f.mr.Exists("webhook:evt_1") {
		t.Fatal("processed marker not written")
	}

	// The old token still says unpaid; entitlement comes from the account.
	rec = f.do(t, http.MethodGet, "/signals", nil, bearer(auth.AccessToken))
	env = signalsEnvelope{}
	decodeJSON(t, rec, &env)
	if len(env.Data.Signals) != 20 || !env.Data.IsPaid || !env.Data.Cached || env.Data.Message != nil {
		t.Fatalf("paid response = %+v", env.Data)
	}
	if f.source.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", f.source.calls)
	}

	rec = f.do(t, http.MethodPost, "/billing/create-checkout", nil, bearer(auth.AccessToken))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "You already have an active subscription") {
		t.Fatalf("checkout for paid user = %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/billing/status", nil, bearer(auth.AccessToken))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "cus_1") {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateCheckoutForFreeUser(t *testing.T) {
	f := newFixture(t, defaultLimits())
	auth := f.signup(t, "new@x.com")
	rec := f.do(t, http.MethodPost, "/billing/create-checkout", nil, bearer(auth.AccessToken))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "https://checkout.test/") {
		t.Fatalf("checkout = %d %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookSignatureErrors(t *testing.T) {
	f := newFixture(t, defaultLimits())

	rec := f.do(t, http.MethodPost, "/billing/webhooks/stripe", []byte(`{}`), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing signature status = %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/billing/webhooks/stripe", []byte(`{}`), map[string]string{"Stripe-Signature": "forged"})
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "INVALID_SIGNATURE") {
		t.Fatalf("bad signature = %d %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookMutationFailureAsksForRedelivery(t *testing.T) {
	f := newFixture(t, defaultLimits())
	auth := f.signup(t, "fail@x.com")
	f.users.grantErr = errors.New("db down")
	f.payments.register("sig-2", ports.WebhookEvent{
		ID:   "evt_2",
		Type: application.EventCheckoutCompleted,
		Checkout: &ports.CheckoutCompletion{
			SessionID:     "cs_2",
			PaymentStatus: "paid",
			UserID:        auth.User.ID.String(),
		},
	})

	rec := f.do(t, http.MethodPost, "/billing/webhooks/stripe", []byte(`{}`), map[string]string{"Stripe-Signature": "sig-2"})
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "Failed to update user") {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	if f.mr.Exists("webhook:evt_2") || f.mr.Exists("webhook:claim:evt_2") {
		t.Fatal("failed delivery left a marker or claim behind")
	}

	f.users.grantErr = nil
	rec = f.do(t, http.MethodPost, "/billing/webhooks/stripe", []byte(`{}`), map[string]string{"Stripe-Signature": "sig-2"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "User subscription updated") {
		t.Fatalf("retry = %d %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookHeldClaimIsConflict(t *testing.T) {
	f := newFixture(t, defaultLimits())
	auth := f.signup(t, "race@x.com")
	f.payments.register("sig-3", ports.WebhookEvent{
		ID:   "evt_3",
		Type: application.EventCheckoutCompleted,
		Checkout: &ports.CheckoutCompletion{
			SessionID:     "cs_3",
			PaymentStatus: "paid",
			UserID:        auth.User.ID.String(),
		},
	})
	if err := f.mr.Set("webhook:claim:evt_3", "1"); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodPost, "/billing/webhooks/stripe", []byte(`{}`), map[string]string{"Stripe-Signature": "sig-3"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t, defaultLimits())
	f.payments.register("sig-4", ports.WebhookEvent{ID: "evt_4", Type: "invoice.paid"})
	rec := f.do(t, http.MethodPost, "/billing/webhooks/stripe", []byte(`{}`), map[string]string{"Stripe-Signature": "sig-4"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ignored"`) {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, defaultLimits())
	req := httptest.NewRequest(http.MethodOptions, "/signals/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t, defaultLimits())
	rec := f.do(t, http.MethodGet, "/healthz", nil, map[string]string{"X-Request-Id": "req-42"})
	if rec.Header().Get("X-Request-Id") != "req-42" {
		t.Fatalf("request id = %q", rec.Header().Get("X-Request-Id"))
	}
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	cases := map[time.Duration]int64{
		0:                       1,
		1500 * time.Millisecond: 2,
		900 * time.Second:       900,
	}
	for in, want := range cases {
		if got := retryAfterSeconds(in); got != want {
			t.Fatalf("retryAfterSeconds(%v) = %d, want %d", in, got, want)
		}
	}
}
