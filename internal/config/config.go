// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server, logging,
// storage, provider credentials, gating policy and observability settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-linkgate")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Provider kinds understood by the provider registry.
const (
	KindAdLinkFly = "adlinkfly"
	KindREST      = "rest"
	KindDirect    = "direct"
)

// Provider selection policies.
const (
	PolicyFixed      = "fixed"
	PolicyRoundRobin = "round_robin"
)

// Fallback policies for the page-probe checker.
const (
	FallbackNever         = "never"
	FallbackOnUnavailable = "on_unavailable"
	FallbackAlways        = "always"
)

// ProviderConfig is one shortener account. It is read-only after startup.
type ProviderConfig struct {
	Name    string
	Kind    string // adlinkfly|rest|direct
	BaseURL string
	APIKey  Secret
	Timeout time.Duration
}

// FallbackConfig controls the page-probe completion checker.
type FallbackConfig struct {
	Policy   string // never|on_unavailable|always
	ProbeURL string // page to render; "{short_url}" and "{token}" are substituted
	Marker   string // text that proves completion on the rendered page
}

// ProvidersConfig groups shortener accounts and how one is chosen per request.
type ProvidersConfig struct {
	List           []ProviderConfig
	Policy         string // fixed|round_robin
	Default        string // provider name used under the fixed policy
	Fallback       FallbackConfig
	MintCacheItems int64 // L1 mint cache capacity
}

// GateConfig holds the gating policy.
type GateConfig struct {
	TTL              time.Duration // record lifetime from issuance
	AbandonAfter     time.Duration // pending inactivity before abandonment (0 disables)
	AbuseMaxDistinct int           // distinct content items allowed per window
	AbuseWindow      time.Duration
	LandingBaseURL   string   // target behind every minted short link
	ExemptUserIDs    []string // users who skip the ad link
}

// CheckConfig bounds completion checks against a provider.
type CheckConfig struct {
	MaxRetries     int // retries after the first attempt
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// ChatConfig holds chat platform credentials used by the delivery transport.
type ChatConfig struct {
	BotToken   Secret
	ServerID   string
	WebhookURL string // empty selects the log transport
}

// RedisConfig enables the shared abuse window, lock and cache when Addr is set.
type RedisConfig struct {
	Addr     string
	Password Secret
	DB       int
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int    // bytes
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBPath string // SQLite path
	Redis  RedisConfig

	// Gating
	Gate      GateConfig
	Check     CheckConfig
	Providers ProvidersConfig
	Chat      ChatConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	providerTimeout := getdur("PROVIDER_TIMEOUT", 5*time.Second)

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBPath: getenv("DB_PATH", "linkgate.db"),
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: Secret(getenv("REDIS_PASSWORD", "")),
			DB:       getint("REDIS_DB", 0),
		},

		// Gating
		Gate: GateConfig{
			TTL:              getdur("GATE_TTL", 24*time.Hour),
			AbandonAfter:     getdur("ABANDON_AFTER", 0),
			AbuseMaxDistinct: getint("ABUSE_MAX_DISTINCT", 10),
			AbuseWindow:      getdur("ABUSE_WINDOW", time.Hour),
			LandingBaseURL:   strings.TrimRight(getenv("LANDING_BASE_URL", "http://localhost:8080"), "/"),
			ExemptUserIDs:    splitCSV(getenv("EXEMPT_USER_IDS", "")),
		},
		Check: CheckConfig{
			MaxRetries:     getint("CHECK_MAX_RETRIES", 3),
			BackoffInitial: getdur("CHECK_BACKOFF_INITIAL", 200*time.Millisecond),
			BackoffMax:     getdur("CHECK_BACKOFF_MAX", 2*time.Second),
		},
		Providers: ProvidersConfig{
			Policy:  strings.ToLower(getenv("PROVIDER_POLICY", PolicyFixed)),
			Default: strings.ToLower(getenv("PROVIDER_DEFAULT", "")),
			Fallback: FallbackConfig{
				Policy:   strings.ToLower(getenv("FALLBACK_POLICY", FallbackNever)),
				ProbeURL: getenv("FALLBACK_PROBE_URL", ""),
				Marker:   getenv("FALLBACK_PROBE_MARKER", ""),
			},
			MintCacheItems: int64(getint("MINT_CACHE_ITEMS", 10000)),
		},
		Chat: ChatConfig{
			BotToken:   Secret(getenv("DISCORD_TOKEN", "")),
			ServerID:   getenv("DISCORD_SERVER_ID", ""),
			WebhookURL: getenv("CHAT_WEBHOOK_URL", ""),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-linkgate"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	providers, err := loadProviders(splitCSV(getenv("PROVIDERS", "")), providerTimeout)
	if err != nil {
		return cfg, err
	}
	cfg.Providers.List = providers

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Providers.Default == "" && len(cfg.Providers.List) > 0 {
		cfg.Providers.Default = cfg.Providers.List[0].Name
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Gate.TTL <= 0 {
		return cfg, errors.New("GATE_TTL must be > 0")
	}
	if cfg.Gate.AbandonAfter < 0 {
		return cfg, errors.New("ABANDON_AFTER must be >= 0")
	}
	if cfg.Gate.AbuseMaxDistinct < 1 {
		return cfg, errors.New("ABUSE_MAX_DISTINCT must be >= 1")
	}
	if cfg.Gate.AbuseWindow <= 0 {
		return cfg, errors.New("ABUSE_WINDOW must be > 0")
	}
	if !strings.HasPrefix(cfg.Gate.LandingBaseURL, "http://") && !strings.HasPrefix(cfg.Gate.LandingBaseURL, "https://") {
		return cfg, errors.New("LANDING_BASE_URL must be an http(s) URL")
	}
	if cfg.Check.MaxRetries < 0 {
		return cfg, errors.New("CHECK_MAX_RETRIES must be >= 0")
	}
	if cfg.Check.BackoffInitial <= 0 || cfg.Check.BackoffMax < cfg.Check.BackoffInitial {
		return cfg, errors.New("CHECK_BACKOFF_INITIAL must be > 0 and <= CHECK_BACKOFF_MAX")
	}
	if providerTimeout <= 0 {
		return cfg, errors.New("PROVIDER_TIMEOUT must be > 0")
	}
	switch cfg.Providers.Policy {
	case PolicyFixed, PolicyRoundRobin:
	default:
		return cfg, errors.New("PROVIDER_POLICY must be one of: fixed, round_robin")
	}
	if cfg.Providers.Default != "" && !cfg.hasProvider(cfg.Providers.Default) {
		return cfg, fmt.Errorf("PROVIDER_DEFAULT %q is not listed in PROVIDERS", cfg.Providers.Default)
	}
	switch cfg.Providers.Fallback.Policy {
	case FallbackNever:
	case FallbackOnUnavailable, FallbackAlways:
		if cfg.Providers.Fallback.ProbeURL == "" || cfg.Providers.Fallback.Marker == "" {
			return cfg, errors.New("FALLBACK_PROBE_URL and FALLBACK_PROBE_MARKER are required when FALLBACK_POLICY is enabled")
		}
	default:
		return cfg, errors.New("FALLBACK_POLICY must be one of: never, on_unavailable, always")
	}
	if cfg.Providers.MintCacheItems < 1 {
		return cfg, errors.New("MINT_CACHE_ITEMS must be >= 1")
	}
	if cfg.Redis.DB < 0 {
		return cfg, errors.New("REDIS_DB must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// IsExempt reports whether userID bypasses the ad link.
func (c Config) IsExempt(userID string) bool {
	for _, id := range c.Gate.ExemptUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c Config) hasProvider(name string) bool {
	for _, p := range c.Providers.List {
		if p.Name == name {
			return true
		}
	}
	return false
}

// loadProviders reads PROVIDER_<NAME>_* for each configured name.
func loadProviders(names []string, defTimeout time.Duration) ([]ProviderConfig, error) {
	out := make([]ProviderConfig, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.ToLower(raw)
		if !validProviderName(name) {
			return nil, fmt.Errorf("provider name %q must match [a-z0-9_]+", raw)
		}
		if seen[name] {
			return nil, fmt.Errorf("provider %q listed twice", name)
		}
		seen[name] = true

		prefix := "PROVIDER_" + strings.ToUpper(name) + "_"
		p := ProviderConfig{
			Name:    name,
			Kind:    strings.ToLower(getenv(prefix+"KIND", KindAdLinkFly)),
			BaseURL: strings.TrimRight(getenv(prefix+"BASE_URL", ""), "/"),
			APIKey:  Secret(getenv(prefix+"API_KEY", "")),
			Timeout: getdur(prefix+"TIMEOUT", defTimeout),
		}
		switch p.Kind {
		case KindAdLinkFly, KindREST:
			if p.BaseURL == "" {
				return nil, fmt.Errorf("%sBASE_URL must not be empty", prefix)
			}
			if p.APIKey.IsZero() {
				return nil, fmt.Errorf("%sAPI_KEY must not be empty", prefix)
			}
		case KindDirect:
		default:
			return nil, fmt.Errorf("%sKIND must be one of: adlinkfly, rest, direct", prefix)
		}
		if p.Timeout <= 0 {
			return nil, fmt.Errorf("%sTIMEOUT must be > 0", prefix)
		}
		out = append(out, p)
	}
	return out, nil
}

func validProviderName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
