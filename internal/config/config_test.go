package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("API_BASE_PATH default expected '/api/v1', got %q", cfg.APIBasePath)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v1/")

	// Storage
	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("REDIS_DB", "2")

	// Gating
	t.Setenv("GATE_TTL", "12h")
	t.Setenv("ABANDON_AFTER", "30m")
	t.Setenv("ABUSE_MAX_DISTINCT", "4")
	t.Setenv("ABUSE_WINDOW", "10m")
	t.Setenv("LANDING_BASE_URL", "https://gate.example.com/")
	t.Setenv("EXEMPT_USER_IDS", "u1, u2")
	t.Setenv("CHECK_MAX_RETRIES", "5")
	t.Setenv("CHECK_BACKOFF_INITIAL", "50ms")
	t.Setenv("CHECK_BACKOFF_MAX", "1s")

	// Providers
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("PROVIDERS", "ShrinkMe,partner")
	t.Setenv("PROVIDER_SHRINKME_BASE_URL", "https://shrinkme.io/")
	t.Setenv("PROVIDER_SHRINKME_API_KEY", "k1")
	t.Setenv("PROVIDER_PARTNER_KIND", "REST")
	t.Setenv("PROVIDER_PARTNER_BASE_URL", "https://api.partner.test")
	t.Setenv("PROVIDER_PARTNER_API_KEY", "k2")
	t.Setenv("PROVIDER_PARTNER_TIMEOUT", "1s")
	t.Setenv("PROVIDER_POLICY", "ROUND_ROBIN")
	t.Setenv("FALLBACK_POLICY", "on_unavailable")
	t.Setenv("FALLBACK_PROBE_URL", "https://render.test/?u={short_url}")
	t.Setenv("FALLBACK_PROBE_MARKER", "unlocked")

	// Chat
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("DISCORD_SERVER_ID", "123")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.ShutdownTimeout != 5*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DBPath != "db.sqlite" || cfg.Redis.Addr != "redis:6379" || cfg.Redis.Password.Reveal() != "hunter2" || cfg.Redis.DB != 2 {
		t.Fatalf("storage unexpected: %+v", cfg.Redis)
	}

	g := cfg.Gate
	if g.TTL != 12*time.Hour || g.AbandonAfter != 30*time.Minute || g.AbuseMaxDistinct != 4 || g.AbuseWindow != 10*time.Minute {
		t.Fatalf("gate unexpected: %+v", g)
	}
	if g.LandingBaseURL != "https://gate.example.com" {
		t.Fatalf("landing base not trimmed: %q", g.LandingBaseURL)
	}
	if !cfg.IsExempt("u2") || cfg.IsExempt("u3") {
		t.Fatalf("exempt users unexpected: %#v", g.ExemptUserIDs)
	}
	if cfg.Check.MaxRetries != 5 || cfg.Check.BackoffInitial != 50*time.Millisecond || cfg.Check.BackoffMax != time.Second {
		t.Fatalf("check unexpected: %+v", cfg.Check)
	}

	ps := cfg.Providers
	if ps.Policy != PolicyRoundRobin || ps.Default != "shrinkme" || len(ps.List) != 2 {
		t.Fatalf("providers unexpected: %+v", ps)
	}
	if p := ps.List[0]; p.Name != "shrinkme" || p.Kind != KindAdLinkFly || p.BaseURL != "https://shrinkme.io" || p.Timeout != 3*time.Second {
		t.Fatalf("first provider unexpected: %+v", p)
	}
	if p := ps.List[1]; p.Kind != KindREST || p.Timeout != time.Second || p.APIKey.Reveal() != "k2" {
		t.Fatalf("second provider unexpected: %+v", p)
	}
	if ps.Fallback.Policy != FallbackOnUnavailable || ps.Fallback.Marker != "unlocked" {
		t.Fatalf("fallback unexpected: %+v", ps.Fallback)
	}
	if cfg.Chat.BotToken.Reveal() != "tok" || cfg.Chat.ServerID != "123" || cfg.Chat.WebhookURL != "" {
		t.Fatalf("chat unexpected: %+v", cfg.Chat)
	}

	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Gate.TTL != 24*time.Hour || cfg.Gate.AbuseMaxDistinct != 10 || cfg.Gate.AbuseWindow != time.Hour {
		t.Fatalf("gate defaults unexpected: %+v", cfg.Gate)
	}
	if cfg.Check.MaxRetries != 3 {
		t.Fatalf("retries default = %d; want 3", cfg.Check.MaxRetries)
	}
	if cfg.Providers.Policy != PolicyFixed || cfg.Providers.Fallback.Policy != FallbackNever || len(cfg.Providers.List) != 0 {
		t.Fatalf("provider defaults unexpected: %+v", cfg.Providers)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"empty PORT via spaces", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"max header bytes <= 0", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"empty DB_PATH", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"gate ttl zero", map[string]string{"GATE_TTL": "0s"}, "GATE_TTL"},
		{"abandon negative", map[string]string{"ABANDON_AFTER": "-1m"}, "ABANDON_AFTER"},
		{"abuse limit zero", map[string]string{"ABUSE_MAX_DISTINCT": "0"}, "ABUSE_MAX_DISTINCT"},
		{"abuse window zero", map[string]string{"ABUSE_WINDOW": "0s"}, "ABUSE_WINDOW"},
		{"landing not http", map[string]string{"LANDING_BASE_URL": "ftp://x"}, "LANDING_BASE_URL"},
		{"retries negative", map[string]string{"CHECK_MAX_RETRIES": "-1"}, "CHECK_MAX_RETRIES"},
		{"backoff inverted", map[string]string{"CHECK_BACKOFF_INITIAL": "5s", "CHECK_BACKOFF_MAX": "1s"}, "CHECK_BACKOFF_INITIAL"},
		{"provider timeout zero", map[string]string{"PROVIDER_TIMEOUT": "0s"}, "PROVIDER_TIMEOUT"},
		{"bad policy", map[string]string{"PROVIDER_POLICY": "random"}, "PROVIDER_POLICY"},
		{"bad provider name", map[string]string{"PROVIDERS": "bad-name"}, "must match"},
		{"duplicate provider", map[string]string{
			"PROVIDERS":           "a,A",
			"PROVIDER_A_BASE_URL": "https://a",
			"PROVIDER_A_API_KEY":  "k",
		}, "listed twice"},
		{"provider missing base", map[string]string{"PROVIDERS": "a", "PROVIDER_A_API_KEY": "k"}, "PROVIDER_A_BASE_URL"},
		{"provider missing key", map[string]string{"PROVIDERS": "a", "PROVIDER_A_BASE_URL": "https://a"}, "PROVIDER_A_API_KEY"},
		{"provider bad kind", map[string]string{"PROVIDERS": "a", "PROVIDER_A_KIND": "carrier-pigeon"}, "PROVIDER_A_KIND"},
		{"default not listed", map[string]string{"PROVIDER_DEFAULT": "ghost"}, "PROVIDER_DEFAULT"},
		{"fallback without probe", map[string]string{"FALLBACK_POLICY": "always"}, "FALLBACK_PROBE_URL"},
		{"fallback unknown", map[string]string{"FALLBACK_POLICY": "sometimes"}, "FALLBACK_POLICY"},
		{"mint cache zero", map[string]string{"MINT_CACHE_ITEMS": "0"}, "MINT_CACHE_ITEMS"},
		{"redis db negative", map[string]string{"REDIS_DB": "-1"}, "REDIS_DB"},
		{"rate rps negative", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst < 1", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts max age negative", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"otel sample ratio out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}
}

func TestLoad_DirectProviderNeedsNoCredentials(t *testing.T) {
	t.Setenv("PROVIDERS", "free")
	t.Setenv("PROVIDER_FREE_KIND", "direct")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Providers.Default != "free" || cfg.Providers.List[0].Kind != KindDirect {
		t.Fatalf("direct provider unexpected: %+v", cfg.Providers)
	}
}

// --- Secret ---

func TestSecret_NeverPrints(t *testing.T) {
	s := Secret("sk-live-123")
	for _, out := range []string{
		s.String(),
		fmt.Sprintf("%v", s),
		fmt.Sprintf("%+v", ProviderConfig{APIKey: s}),
		fmt.Sprintf("%#v", s),
	} {
		if strings.Contains(out, "sk-live-123") {
			t.Fatalf("secret leaked in %q", out)
		}
	}
	b, err := json.Marshal(ProviderConfig{APIKey: s})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "sk-live-123") || !strings.Contains(string(b), redacted) {
		t.Fatalf("json leaked or missing redaction: %s", b)
	}
	if s.Reveal() != "sk-live-123" {
		t.Fatalf("Reveal mismatch")
	}
	if Secret("").String() != "" || !Secret("").IsZero() {
		t.Fatalf("empty secret should print empty")
	}
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}
	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}
	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	for i, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"} {
		k := fmt.Sprintf("B_T_%d", i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	for i, v := range []string{"0", "false", "FALSE", " no ", "N", "off", "Off"} {
		k := fmt.Sprintf("B_F_%d", i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: got %#v", got)
	}
	if normalizeBasePath("") != "/" || normalizeBasePath("v1") != "/v1" || normalizeBasePath("/v1/") != "/v1" || normalizeBasePath(" / ") != "/" {
		t.Fatalf("normalizeBasePath unexpected")
	}
}

// Ensure tests don't leak env to others.
func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "PROVIDERS", "PROVIDER_DEFAULT", "FALLBACK_POLICY", "LANDING_BASE_URL"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
