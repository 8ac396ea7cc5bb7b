// Command server runs the link-gate HTTP API.
//
// @title                  Link-Gate Verification API
// @version                1.0
// @description            Ad-link gating for chat content: issue short links, verify completion, deliver unlocked content once.
// @BasePath               /api/v1
// @securityDefinitions.apikey UserID
// @in                     header
// @name                   X-User-ID
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-linkgate/docs"
	"github.com/tbourn/go-linkgate/internal/abuse"
	"github.com/tbourn/go-linkgate/internal/config"
	httpapi "github.com/tbourn/go-linkgate/internal/http"
	"github.com/tbourn/go-linkgate/internal/keylock"
	"github.com/tbourn/go-linkgate/internal/observability"
	"github.com/tbourn/go-linkgate/internal/provider"
	"github.com/tbourn/go-linkgate/internal/repo"
	"github.com/tbourn/go-linkgate/internal/sysutil"
)

var version = "dev"

func main() {
	// .env is optional; the process environment wins
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.SetupLogger(os.Stderr, "info", false)
		log.Fatal().Err(err).Msg("config")
	}
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath, cfg.OTEL.Enabled)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	var (
		deps httpapi.Deps
		rdb  *redis.Client
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password.Reveal(),
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		deps.Locker = keylock.NewDistributed(redislock.New(rdb), "linkgate:lock:", 30*time.Second, 5*time.Second)
		deps.Abuse = abuse.NewRedisWindow(rdb, "linkgate:abuse:", cfg.Gate.AbuseMaxDistinct, cfg.Gate.AbuseWindow)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis enabled: shared locks, abuse window and mint cache")
	}

	cache, err := provider.NewMintCache(db, rdb, cfg.Providers.MintCacheItems)
	if err != nil {
		return err
	}
	defer cache.Close()
	deps.Cache = cache

	svc, err := httpapi.NewServices(db, cfg, deps)
	if err != nil {
		return err
	}

	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	httpapi.RegisterRoutes(r, svc, cfg)
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Strs("providers", svc.Providers.IDs()).
			Str("provider_policy", cfg.Providers.Policy).
			Str("fallback", cfg.Providers.Fallback.Policy).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
