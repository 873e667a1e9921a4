package bootstrap

import (
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/viralforge/trading-signals/internal/application"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration. It merges file defaults and
// environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string
	LogLevel  slog.Level

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	JWTSecret  string
	JWTIssuer  string
	BcryptCost int
	TokenTTL   time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceID       string
	StripeAPIBase       string
	BreakerFailures     int
	BreakerTimeout      time.Duration

	FrontendURL    string
	AllowedOrigins []string
	PriceLabel     string

	SignalsCacheKey string
	SignalsCacheTTL time.Duration
	SignalLatency   time.Duration

	RateLimits           RateLimitsConfig
	RateLimitFailOpen    bool
	TrustedProxies       []netip.Prefix
	CacheFailClosed      bool
	IdempotencyRetention time.Duration
	IdempotencyClaimTTL  time.Duration

	KafkaBrokers []string
	KafkaTopics  map[string]string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// RateLimitsConfig is the per-action limiter budget.
type RateLimitsConfig struct {
	Signup  application.RateLimitRule
	Login   application.RateLimitRule
	Signals application.RateLimitRule
}

func (r RateLimitsConfig) rules() []application.RateLimitRule {
	return []application.RateLimitRule{r.Signup, r.Login, r.Signals}
}

type rateLimitFile struct {
	MaxRequests   int64  `yaml:"max_requests"`
	WindowSeconds int    `yaml:"window_seconds"`
	Identifier    string `yaml:"identifier"`
}

// configFile mirrors the YAML schema used by configs/default.yaml.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Auth struct {
		Issuer       string `yaml:"issuer"`
		TokenTTLDays int    `yaml:"token_ttl_days"`
		BcryptCost   int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	Billing struct {
		PriceID        string   `yaml:"price_id"`
		PriceLabel     string   `yaml:"price_label"`
		FrontendURL    string   `yaml:"frontend_url"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"billing"`
	Signals struct {
		CacheKey        string `yaml:"cache_key"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
		LatencyMillis   *int   `yaml:"latency_ms"`
	} `yaml:"signals"`
	RateLimits struct {
		FailOpen       bool          `yaml:"fail_open"`
		TrustedProxies []string      `yaml:"trusted_proxies"`
		Signup         rateLimitFile `yaml:"signup"`
		Login          rateLimitFile `yaml:"login"`
		Signals        rateLimitFile `yaml:"signals"`
	} `yaml:"rate_limits"`
	Events struct {
		Topics map[string]string `yaml:"topics"`
	} `yaml:"events"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "trading-signals",
		LogLevel:             slog.LevelInfo,
		HTTPPort:             8000,
		GRPCPort:             9090,
		MaxDBConns:           20,
		JWTIssuer:            "trading-signals",
		BcryptCost:           12,
		TokenTTL:             application.DefaultTokenTTL,
		BreakerFailures:      5,
		BreakerTimeout:       30 * time.Second,
		FrontendURL:          "http://localhost:3000",
		SignalsCacheKey:      application.DefaultSignalsCacheKey,
		SignalsCacheTTL:      application.DefaultSignalsCacheTTL,
		SignalLatency:        2 * time.Second,
		IdempotencyRetention: application.DefaultProcessedRetention,
		IdempotencyClaimTTL:  application.DefaultClaimTTL,
		RateLimits: RateLimitsConfig{
			Signup:  application.RateLimitRule{Prefix: "signup", MaxRequests: 3, Window: time.Hour, Identifier: application.IdentifyOrigin},
			Login:   application.RateLimitRule{Prefix: "login", MaxRequests: 5, Window: 900 * time.Second, Identifier: application.IdentifySubject},
			Signals: application.RateLimitRule{Prefix: "signals", MaxRequests: 60, Window: time.Minute, Identifier: application.IdentifyOrigin},
		},
		KafkaTopics:        map[string]string{},
		OutboxPollInterval: 2 * time.Second,
		OutboxBatchSize:    100,
		OutboxClaimTTL:     30 * time.Second,
		OutboxMaxRetries:   5,
	}

	var proxies []string
	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
		proxies = f.RateLimits.TrustedProxies
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.DatabaseURL = envOrDefault("DATABASE_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.JWTSecret = envOrDefault("JWT_SECRET_KEY", cfg.JWTSecret)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.StripeSecretKey = envOrDefault("STRIPE_SECRET_KEY", cfg.StripeSecretKey)
	cfg.StripeWebhookSecret = envOrDefault("STRIPE_WEBHOOK_SECRET", cfg.StripeWebhookSecret)
	cfg.StripePriceID = envOrDefault("STRIPE_PRICE_ID", cfg.StripePriceID)
	cfg.StripeAPIBase = envOrDefault("STRIPE_API_BASE", cfg.StripeAPIBase)
	cfg.FrontendURL = envOrDefault("FRONTEND_URL", cfg.FrontendURL)
	cfg.AllowedOrigins = envCSV("CORS_ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.PriceLabel = envOrDefault("PRICE_LABEL", cfg.PriceLabel)
	cfg.SignalsCacheKey = envOrDefault("SIGNALS_CACHE_KEY", cfg.SignalsCacheKey)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	proxies = envCSV("RATE_LIMIT_TRUSTED_PROXIES", proxies)
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = parseLevel(level, cfg.LogLevel)
	}

	cfg.HTTPPort = envInt("HTTP_PORT", envInt("PORT", cfg.HTTPPort))
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_POOL_MAX_SIZE", int(cfg.MaxDBConns)))
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.BreakerFailures = envInt("STRIPE_BREAKER_FAILURES", cfg.BreakerFailures)
	cfg.RateLimitFailOpen = envBool("RATE_LIMIT_FAIL_OPEN", cfg.RateLimitFailOpen)
	cfg.CacheFailClosed = envBool("CACHE_FAIL_CLOSED", cfg.CacheFailClosed)

	cfg.TokenTTL = time.Duration(envInt("JWT_ACCESS_TOKEN_EXPIRE_DAYS", int(cfg.TokenTTL.Hours()/24))) * 24 * time.Hour
	cfg.BreakerTimeout = time.Duration(envInt("STRIPE_BREAKER_TIMEOUT_SECONDS", int(cfg.BreakerTimeout.Seconds()))) * time.Second
	cfg.SignalsCacheTTL = time.Duration(envInt("SIGNALS_CACHE_TTL_SECONDS", int(cfg.SignalsCacheTTL.Seconds()))) * time.Second
	cfg.SignalLatency = time.Duration(envInt("SIGNALS_LATENCY_MS", int(cfg.SignalLatency.Milliseconds()))) * time.Millisecond
	cfg.RateLimits.Login.MaxRequests = int64(envInt("RATE_LIMIT_LOGIN_MAX", int(cfg.RateLimits.Login.MaxRequests)))
	cfg.RateLimits.Login.Window = time.Duration(envInt("RATE_LIMIT_LOGIN_WINDOW_SECONDS", int(cfg.RateLimits.Login.Window.Seconds()))) * time.Second
	cfg.RateLimits.Signup.MaxRequests = int64(envInt("RATE_LIMIT_SIGNUP_MAX", int(cfg.RateLimits.Signup.MaxRequests)))
	cfg.RateLimits.Signup.Window = time.Duration(envInt("RATE_LIMIT_SIGNUP_WINDOW_SECONDS", int(cfg.RateLimits.Signup.Window.Seconds()))) * time.Second
	cfg.RateLimits.Signals.MaxRequests = int64(envInt("RATE_LIMIT_SIGNALS_MAX", int(cfg.RateLimits.Signals.MaxRequests)))
	cfg.RateLimits.Signals.Window = time.Duration(envInt("RATE_LIMIT_SIGNALS_WINDOW_SECONDS", int(cfg.RateLimits.Signals.Window.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
		if cfg.FrontendURL != "" && cfg.FrontendURL != "http://localhost:3000" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, cfg.FrontendURL)
		}
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.TrustedProxies, err = parseTrustedProxies(proxies); err != nil {
		return Config{}, err
	}
	// Unknown identifier kinds and empty budgets stop startup.
	for _, rule := range cfg.RateLimits.rules() {
		if err := rule.Validate(); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// validateServer checks what the API and worker need beyond the shared store.
func (c Config) validateServer() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("missing DATABASE_URL/POSTGRES_URL")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("missing JWT_SECRET_KEY")
	}
	return nil
}

func (c Config) validateBilling() error {
	if c.StripeSecretKey == "" || c.StripeWebhookSecret == "" {
		return fmt.Errorf("missing STRIPE_SECRET_KEY or STRIPE_WEBHOOK_SECRET")
	}
	if c.StripePriceID == "" {
		return fmt.Errorf("missing STRIPE_PRICE_ID")
	}
	return nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Service.LogLevel != "" {
		cfg.LogLevel = parseLevel(f.Service.LogLevel, cfg.LogLevel)
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Auth.Issuer != "" {
		cfg.JWTIssuer = f.Auth.Issuer
	}
	if f.Auth.TokenTTLDays > 0 {
		cfg.TokenTTL = time.Duration(f.Auth.TokenTTLDays) * 24 * time.Hour
	}
	if f.Auth.BcryptCost > 0 {
		cfg.BcryptCost = f.Auth.BcryptCost
	}
	if f.Billing.PriceID != "" {
		cfg.StripePriceID = f.Billing.PriceID
	}
	if f.Billing.PriceLabel != "" {
		cfg.PriceLabel = f.Billing.PriceLabel
	}
	if f.Billing.FrontendURL != "" {
		cfg.FrontendURL = f.Billing.FrontendURL
	}
	if len(f.Billing.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = f.Billing.AllowedOrigins
	}
	if f.Signals.CacheKey != "" {
		cfg.SignalsCacheKey = f.Signals.CacheKey
	}
	if f.Signals.CacheTTLSeconds > 0 {
		cfg.SignalsCacheTTL = time.Duration(f.Signals.CacheTTLSeconds) * time.Second
	}
	if f.Signals.LatencyMillis != nil && *f.Signals.LatencyMillis >= 0 {
		cfg.SignalLatency = time.Duration(*f.Signals.LatencyMillis) * time.Millisecond
	}
	cfg.RateLimitFailOpen = f.RateLimits.FailOpen
	mergeRule(&cfg.RateLimits.Signup, f.RateLimits.Signup)
	mergeRule(&cfg.RateLimits.Login, f.RateLimits.Login)
	mergeRule(&cfg.RateLimits.Signals, f.RateLimits.Signals)
	for event, topic := range f.Events.Topics {
		cfg.KafkaTopics[event] = topic
	}
}

func mergeRule(rule *application.RateLimitRule, f rateLimitFile) {
	if f.MaxRequests > 0 {
		rule.MaxRequests = f.MaxRequests
	}
	if f.WindowSeconds > 0 {
		rule.Window = time.Duration(f.WindowSeconds) * time.Second
	}
	if f.Identifier != "" {
		rule.Identifier = application.IdentifierKind(strings.ToLower(strings.TrimSpace(f.Identifier)))
	}
}

// parseTrustedProxies accepts CIDR prefixes or bare addresses, which trust
// exactly that host.
func parseTrustedProxies(raw []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func parseLevel(raw string, fallback slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return fallback
	}
	return level
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
