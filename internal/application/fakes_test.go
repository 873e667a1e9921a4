package application_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/trading-signals/internal/domain"
	"github.com/viralforge/trading-signals/internal/ports"
)

var errStoreDown = errors.New("connection refused")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memItem struct {
	value     []byte
	expiresAt time.Time
}

// memStore is an in-process ports.CacheStore whose expiry follows a fake clock.
type memStore struct {
	mu    sync.Mutex
	clock *fakeClock
	items map[string]memItem
	err   error
	sets  int
}

func newMemStore(clock *fakeClock) *memStore {
	return &memStore{clock: clock, items: map[string]memItem{}}
}

func (s *memStore) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *memStore) live(key string) (memItem, bool) {
	item, ok := s.items[key]
	if !ok {
		return memItem{}, false
	}
	if !s.clock.Now().Before(item.expiresAt) {
		delete(s.items, key)
		return memItem{}, false
	}
	return item, true
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	item, ok := s.live(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

func (s *memStore) SetWithExpiry(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sets++
	s.items[key] = memItem{value: append([]byte(nil), value...), expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

func (s *memStore) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.items[key] = memItem{value: append([]byte(nil), value...), expiresAt: s.clock.Now().Add(ttl)}
	return true, nil
}

func (s *memStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.live(key)
	delete(s.items, key)
	return ok, nil
}

func (s *memStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	item, ok := s.live(key)
	if !ok {
		return 0, nil
	}
	return item.expiresAt.Sub(s.clock.Now()), nil
}

func (s *memStore) IncrementBelow(_ context.Context, key string, limit int64, window time.Duration) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, false, s.err
	}
	item, ok := s.live(key)
	if !ok {
		s.items[key] = memItem{value: []byte("1"), expiresAt: s.clock.Now().Add(window)}
		return 1, true, nil
	}
	current, _ := strconv.ParseInt(string(item.value), 10, 64)
	if current >= limit {
		return current, false, nil
	}
	current++
	item.value = []byte(strconv.FormatInt(current, 10))
	s.items[key] = item
	return current, true, nil
}

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]domain.User
	byID    map[uuid.UUID]domain.User
	events  []ports.OutboxEvent
	grants  int
	err     error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]domain.User{}, byID: map[uuid.UUID]domain.User{}}
}

func (f *fakeUsers) Create(_ context.Context, params ports.CreateUserParams, event ports.OutboxEvent) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byEmail[params.Email]; exists {
		return domain.User{}, domain.ErrConflict
	}
	user := domain.User{
		UserID:       params.UserID,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		CreatedAt:    params.CreatedAt,
		UpdatedAt:    params.CreatedAt,
	}
	f.byEmail[user.Email] = user
	f.byID[user.UserID] = user
	f.events = append(f.events, event)
	return user, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) GrantEntitlement(_ context.Context, params ports.GrantEntitlementParams, event ports.OutboxEvent) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.User{}, f.err
	}
	user, ok := f.byID[params.UserID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	customer := params.StripeCustomerID
	subscription := params.StripeSubscriptionID
	user.IsPaid = true
	user.StripeCustomerID = &customer
	user.StripeSubscriptionID = &subscription
	user.UpdatedAt = params.GrantedAt
	f.byID[user.UserID] = user
	f.byEmail[user.Email] = user
	f.events = append(f.events, event)
	f.grants++
	return user, nil
}

func (f *fakeUsers) Ping(context.Context) error { return nil }

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type fakeSigner struct {
	mu     sync.Mutex
	tokens map[string]ports.AuthClaims
}

func newFakeSigner() *fakeSigner {
	return &fakeSigner{tokens: map[string]ports.AuthClaims{}}
}

func (f *fakeSigner) Sign(claims ports.AuthClaims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "tok-" + uuid.NewString()
	f.tokens[token] = claims
	return token, nil
}

func (f *fakeSigner) ParseAndValidate(token string) (ports.AuthClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.tokens[token]
	if !ok {
		return ports.AuthClaims{}, errors.New("unknown token")
	}
	return claims, nil
}

type fakePayments struct {
	mu       sync.Mutex
	events   map[string]ports.WebhookEvent
	sessions int
}

func newFakePayments() *fakePayments {
	return &fakePayments{events: map[string]ports.WebhookEvent{}}
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, userID uuid.UUID, _ string) (ports.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	id := "cs_test_" + strconv.Itoa(f.sessions)
	return ports.CheckoutSession{SessionID: id, URL: "https://checkout.stripe.test/" + id + "?u=" + userID.String()}, nil
}

// ParseWebhook treats the signature as a lookup key for a registered event.
func (f *fakePayments) ParseWebhook(_ []byte, signature string) (ports.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[signature]
	if !ok {
		return ports.WebhookEvent{}, domain.ErrInvalidSignature
	}
	return event, nil
}

func (f *fakePayments) register(signature string, event ports.WebhookEvent) {
	f.mu.Lock()
	f.events[signature] = event
	f.mu.Unlock()
}

type countingSource struct {
	mu      sync.Mutex
	calls   int
	signals []domain.Signal
	err     error
	gate    chan struct{}
}

func (s *countingSource) Generate(context.Context) ([]domain.Signal, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.signals, nil
}

func (s *countingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// blockingSource honors its context and only completes once gate closes.
type blockingSource struct {
	countingSource
	started chan struct{}
	once    sync.Once
}

func newBlockingSource(signals []domain.Signal) *blockingSource {
	return &blockingSource{
		countingSource: countingSource{signals: signals, gate: make(chan struct{})},
		started:        make(chan struct{}),
	}
}

func (s *blockingSource) Generate(ctx context.Context) ([]domain.Signal, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.gate:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.signals, nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	webhooks []string
	allowed  int
	denied   int
	failOpen []string
	hits     int
	misses   int
}

func (m *recordingMetrics) RateLimitDecision(_ string, allowed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if allowed {
		m.allowed++
	} else {
		m.denied++
	}
}

func (m *recordingMetrics) RateLimitFailOpen(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen = append(m.failOpen, prefix)
}

func (m *recordingMetrics) CacheLookup(_ string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *recordingMetrics) WebhookEvent(eventType, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, eventType+":"+outcome)
}

func makeSignals(n int) []domain.Signal {
	out := make([]domain.Signal, n)
	for i := range out {
		out[i] = domain.Signal{Symbol: "S" + strconv.Itoa(i+1), Action: domain.ActionBuy, Price: float64(100 + i)}
	}
	return out
}
