// Command ouroborosd is the control plane's HTTP server entrypoint: it
// wires the environment configuration (internal/config), the database
// connection (Postgres, or an embedded SQLite "lite mode" fallback when
// DATABASE_URL is unset), every subsystem's Service+Handlers pair, the
// background resource-cleanup worker, and audit logging, then serves until
// SIGINT/SIGTERM. Grounded on the teacher's cmd/helm/main.go runServer().
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq" // Postgres driver

	"github.com/ouroboros-project/ouroboros/internal/api"
	"github.com/ouroboros-project/ouroboros/internal/attacks"
	"github.com/ouroboros-project/ouroboros/internal/audit"
	"github.com/ouroboros-project/ouroboros/internal/auth"
	"github.com/ouroboros-project/ouroboros/internal/authz"
	"github.com/ouroboros-project/ouroboros/internal/campaigns"
	"github.com/ouroboros-project/ouroboros/internal/config"
	"github.com/ouroboros-project/ouroboros/internal/control"
	"github.com/ouroboros-project/ouroboros/internal/db"
	"github.com/ouroboros-project/ouroboros/internal/eventbus"
	"github.com/ouroboros-project/ouroboros/internal/hashlists"
	"github.com/ouroboros-project/ouroboros/internal/observability"
	"github.com/ouroboros-project/ouroboros/internal/resources"
	"github.com/ouroboros-project/ouroboros/internal/resources/objectstore"
	"github.com/ouroboros-project/ouroboros/internal/resources/reaper"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()
	logger := slog.Default()
	cfg := config.Load()

	sqlDB, dialect, err := db.Open(ctx, cfg.DatabaseURL, cfg.LiteModePath)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	if cfg.DatabaseURL == "" {
		logger.Info("DATABASE_URL not set, running in lite mode", "path", cfg.LiteModePath)
	} else {
		logger.Info("connected to postgres")
	}

	store := db.NewSQLStore(sqlDB, dialect)
	if err := store.InitSchema(ctx); err != nil {
		return err
	}
	bus := eventbus.New()
	checker := authz.New(store)
	audit.Subscribe(bus, audit.NewLogger())

	obsProvider, err := observability.New(ctx, observability.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obsProvider.Shutdown(shutdownCtx)
	}()
	observability.Subscribe(bus, obsProvider)

	objects, err := objectstore.NewStoreFromConfig(ctx, objectstore.FromConfig{
		Backend:   cfg.ObjectStoreBackend,
		S3:        objectstore.Config{Bucket: cfg.MinioBucket, Region: cfg.MinioRegion, Endpoint: cfg.MinioEndpoint},
		GCSBucket: cfg.GCSBucket,
		GCSPrefix: cfg.GCSPrefix,
	})
	if err != nil {
		return err
	}

	issuer := auth.NewIssuer([]byte(cfg.JWTSigningKey), cfg.JWTTokenTTL)
	resolver := auth.NewResolver(store, issuer)

	campaignsSvc := campaigns.NewService(store, checker, bus)
	attacksSvc := attacks.NewService(store, checker, bus)
	hashListsSvc := hashlists.NewService(store, checker, bus)
	resourcesSvc := resources.NewService(store, checker, bus, objects,
		time.Duration(cfg.ResourceUploadTimeoutSeconds)*time.Second,
		time.Duration(cfg.ResourceUploadTimeoutSeconds)*time.Second)

	mux := http.NewServeMux()
	campaigns.NewHandlers(campaignsSvc).Register(mux)
	attacks.NewHandlers(attacksSvc).Register(mux)
	hashlists.NewHandlers(hashListsSvc).Register(mux)
	resources.NewHandlers(resourcesSvc).Register(mux)
	control.NewHandlers(store, checker).Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		keyLimiter := api.NewKeyLimiter(redisClient, 10, 30)
		handler = keyLimiter.Middleware(handler)
	} else {
		globalLimiter := api.NewGlobalRateLimiter(20, 60)
		handler = globalLimiter.Middleware(handler)
	}
	// The auth middleware runs before the limiter, so the per-key limiter
	// sees the API key id it sets.
	handler = resolver.Middleware(handler)
	handler = api.Guard(handler)

	reapCtx, cancelReap := context.WithCancel(ctx)
	defer cancelReap()
	go reaper.New(store, objects,
		time.Duration(cfg.ResourceCleanupIntervalHours)*time.Hour,
		time.Duration(cfg.ResourceCleanupAgeHours)*time.Hour,
		logger,
	).Run(reapCtx)

	server := &http.Server{Addr: cfg.BindAddr, Handler: handler}
	go func() {
		logger.Info("ouroborosd listening", "addr", cfg.BindAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
