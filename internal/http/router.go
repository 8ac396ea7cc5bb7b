// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, caller identity, logging/redaction, panic
// recovery, metrics, CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-linkgate/internal/abuse"
	"github.com/tbourn/go-linkgate/internal/config"
	"github.com/tbourn/go-linkgate/internal/domain"
	"github.com/tbourn/go-linkgate/internal/http/handlers"
	"github.com/tbourn/go-linkgate/internal/http/middleware"
	"github.com/tbourn/go-linkgate/internal/keylock"
	"github.com/tbourn/go-linkgate/internal/provider"
	"github.com/tbourn/go-linkgate/internal/repo"
	"github.com/tbourn/go-linkgate/internal/services"
	"github.com/tbourn/go-linkgate/internal/transport"
)

// contentRepoShim adapts the repository free functions to the
// services.ContentRepo interface expected by the ContentService.
type contentRepoShim struct{}

// CreateContent proxies repo.CreateContent.
func (contentRepoShim) CreateContent(ctx context.Context, db *gorm.DB, item *domain.ContentItem) error {
	return repo.CreateContent(ctx, db, item)
}

// GetContent proxies repo.GetContent.
func (contentRepoShim) GetContent(ctx context.Context, db *gorm.DB, id string) (*domain.ContentItem, error) {
	return repo.GetContent(ctx, db, id)
}

// CountContent proxies repo.CountContent (pagination support).
func (contentRepoShim) CountContent(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountContent(ctx, db)
}

// ListContentPage proxies repo.ListContentPage (pagination support).
func (contentRepoShim) ListContentPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.ContentItem, error) {
	return repo.ListContentPage(ctx, db, offset, limit)
}

// deliveryRepoShim adapts the delivery marker functions to
// services.DeliveryRepo.
type deliveryRepoShim struct{}

// ClaimDelivery proxies repo.ClaimDelivery.
func (deliveryRepoShim) ClaimDelivery(ctx context.Context, db *gorm.DB, userID, contentID string, now time.Time) (*domain.DeliveryMarker, error) {
	return repo.ClaimDelivery(ctx, db, userID, contentID, now)
}

// GetDelivery proxies repo.GetDelivery.
func (deliveryRepoShim) GetDelivery(ctx context.Context, db *gorm.DB, userID, contentID string) (*domain.DeliveryMarker, error) {
	return repo.GetDelivery(ctx, db, userID, contentID)
}

// MarkDelivered proxies repo.MarkDelivered.
func (deliveryRepoShim) MarkDelivered(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	return repo.MarkDelivered(ctx, db, id, now)
}

// MarkFailed proxies repo.MarkFailed.
func (deliveryRepoShim) MarkFailed(ctx context.Context, db *gorm.DB, id, reason string, now time.Time) error {
	return repo.MarkFailed(ctx, db, id, reason, now)
}

// ReclaimFailed proxies repo.ReclaimFailed.
func (deliveryRepoShim) ReclaimFailed(ctx context.Context, db *gorm.DB, userID, contentID string, now time.Time) (*domain.DeliveryMarker, error) {
	return repo.ReclaimFailed(ctx, db, userID, contentID, now)
}

// CountDeliveries proxies repo.CountDeliveries.
func (deliveryRepoShim) CountDeliveries(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountDeliveries(ctx, db, userID)
}

// ListDeliveriesPage proxies repo.ListDeliveriesPage.
func (deliveryRepoShim) ListDeliveriesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.DeliveryMarker, error) {
	return repo.ListDeliveriesPage(ctx, db, userID, offset, limit)
}

// Deps carries the optional shared backends. Zero values select the
// single-instance defaults: an in-process lock, the ledger-derived abuse
// window, no mint cache, and a sender chosen from cfg.Chat.
type Deps struct {
	Locker keylock.Locker
	Abuse  abuse.Window
	Cache  *provider.MintCache
	Probe  provider.PageProbe
	Sender transport.Sender
	Client *http.Client
}

// Services is the application layer served over HTTP.
type Services struct {
	Gates      *services.GateService
	Content    *services.ContentService
	Dispatcher *services.UnlockDispatcher
	Providers  *provider.Registry
	Ledger     *repo.Ledger
}

// NewServices builds the gate engine and its collaborators on db.
func NewServices(db *gorm.DB, cfg config.Config, deps Deps) (*Services, error) {
	client := deps.Client
	if client == nil {
		client = provider.NewHTTPClient()
	}

	probe := deps.Probe
	fb := cfg.Providers.Fallback
	if probe == nil && fb.Policy != config.FallbackNever && fb.ProbeURL != "" {
		probe = provider.NewHTTPPageProbe(fb.ProbeURL, fb.Marker, client)
	}
	registry, err := provider.NewRegistry(cfg.Providers, provider.RegistryOptions{
		Check:    cfg.Check,
		Probe:    probe,
		Fallback: fb.Policy,
		Cache:    deps.Cache,
		Client:   client,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := services.NewTokenSource()
	if err != nil {
		return nil, err
	}

	ledger := repo.NewLedger(db, deps.Locker, cfg.Gate.AbandonAfter)
	window := deps.Abuse
	if window == nil {
		window = abuse.NewLedgerWindow(ledger, cfg.Gate.AbuseMaxDistinct, cfg.Gate.AbuseWindow)
	}

	sender := deps.Sender
	if sender == nil {
		if cfg.Chat.WebhookURL != "" {
			sender = transport.NewWebhookSender(cfg.Chat, client)
		} else {
			sender = transport.LogSender{}
		}
	}

	content := services.NewContentService(db, contentRepoShim{})
	dispatcher := services.NewUnlockDispatcher(db, deliveryRepoShim{}, content, sender)
	gates := &services.GateService{
		Ledger:         ledger,
		Providers:      registry,
		Abuse:          window,
		Content:        content,
		Dispatcher:     dispatcher,
		Tokens:         tokens,
		TTL:            cfg.Gate.TTL,
		LandingBaseURL: cfg.Gate.LandingBaseURL,
		IsExempt:       cfg.IsExempt,
	}

	return &Services{
		Gates:      gates,
		Content:    content,
		Dispatcher: dispatcher,
		Providers:  registry,
		Ledger:     ledger,
	}, nil
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), caller identity,
// rate limiting, CORS and security headers, health and metrics endpoints,
// the short-link landing route, and then mounts the versioned API under
// cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Identity: caller user id from X-User-ID
//  4. RedactingLogger: structured logs with token and PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Rate limiter (per user/IP)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, svc *Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Caller identity (chat adapters forward the platform user id)
	r.Use(middleware.Identity())

	// 4) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per user/IP; probes are exempt
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP(), "/health", "/metrics")
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.UserIDHeader}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers; gate responses carry per-user links
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStoreRoutes: []string{
			routePath(apiBase, "/gates"),
			routePath(apiBase, "/gates/verify"),
			"/l/:token",
		},
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(svc.Gates, svc.Content, svc.Dispatcher)

	// Landing callback behind every short link (outside the API base so
	// minted URLs stay stable across API versions)
	r.GET("/l/:token", h.Landing)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Gates
		api.POST("/gates", h.RequestAccess)
		api.GET("/gates", h.GateStatus)
		api.DELETE("/gates", h.Abandon)
		api.POST("/gates/verify", h.Verify)

		// Content
		api.POST("/content", h.CreateContent)
		api.GET("/content", h.ListContent)
		api.GET("/content/:id", h.GetContent)

		// Deliveries
		api.GET("/users/:id/deliveries", h.ListDeliveries)
		api.POST("/deliveries/redeliver", h.Redeliver)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// routePath joins the API base and a route the way gin reports FullPath.
func routePath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
