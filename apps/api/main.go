package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	accountshandler "github.com/sukuu-hq/sukuu/domains/accounts/handler"
	accountsrepo "github.com/sukuu-hq/sukuu/domains/accounts/repo"
	accountsservice "github.com/sukuu-hq/sukuu/domains/accounts/service"
	schoolshandler "github.com/sukuu-hq/sukuu/domains/schools/handler"
	schoolsrepo "github.com/sukuu-hq/sukuu/domains/schools/repo"
	schoolsservice "github.com/sukuu-hq/sukuu/domains/schools/service"
	"github.com/sukuu-hq/sukuu/platform/logging"
	"github.com/sukuu-hq/sukuu/platform/persistence"
	"github.com/sukuu-hq/sukuu/platform/tenant"
	tenantmiddleware "github.com/sukuu-hq/sukuu/platform/tenant/middleware"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	EnvKey          string        `env:"ENV_KEY,required"`
	PlatformSchema  string        `env:"PLATFORM_SCHEMA" envDefault:"public"`
	TenantPolicy    string        `env:"TENANT_POLICY" envDefault:"strict"` // strict | public-fallback
	TenantCacheTTL  time.Duration `env:"TENANT_CACHE_TTL" envDefault:"1m"`
	MediaDir        string        `env:"MEDIA_DIR" envDefault:"./.data/media"`
	RateLimit       int           `env:"RATE_LIMIT" envDefault:"300"` // requests per minute per IP
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	policy := tenant.PolicyStrict
	switch cfg.TenantPolicy {
	case "strict":
	case "public-fallback":
		policy = tenant.PolicyPublicFallback
	default:
		logger.Fatal("invalid TENANT_POLICY (use strict or public-fallback)", zap.String("policy", cfg.TenantPolicy))
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	schoolStore, err := persistence.NewSchoolStore(pool, cfg.PlatformSchema)
	if err != nil {
		logger.Fatal("init school store", zap.Error(err))
	}

	schoolDB := persistence.NewSchoolDB(persistence.SchoolDBConfig{
		Pool:           pool,
		PlatformSchema: cfg.PlatformSchema,
	})

	userStore, err := persistence.NewUserStore(schoolDB)
	if err != nil {
		logger.Fatal("init user store", zap.Error(err))
	}

	schoolRepo := schoolsrepo.NewPostgresRepository(schoolStore)
	provisioner := persistence.NewProvisioner(pool, cfg.PlatformSchema)
	media := persistence.NewMediaProvisioner(cfg.MediaDir)
	schoolService := schoolsservice.New(schoolRepo, provisioner, media, cfg.EnvKey)
	schoolHTTPHandler := schoolshandler.New(schoolService, logger)

	resolver := tenant.NewResolver(schoolService, tenant.ResolverConfig{
		PlatformSchema: cfg.PlatformSchema,
		Policy:         policy,
		CacheTTL:       cfg.TenantCacheTTL,
	})
	schoolService.SetCacheInvalidator(resolver)

	userRepo := accountsrepo.NewPostgresRepository(userStore)
	userService := accountsservice.New(userRepo)
	userHTTPHandler := accountshandler.New(userService, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		httprate.LimitByIP(cfg.RateLimit, time.Minute),
	)

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()
	apiRouter.Use(tenantmiddleware.WithTenantHost(resolver))
	apiRouter.Use(logging.RequestLogger(logger))

	apiRouter.Get("/tenant", tenantInfoHandler)

	// Registry administration is reachable from the platform host only; a
	// school hostname gets a 404 as if the routes did not exist.
	apiRouter.Group(func(r chi.Router) {
		r.Use(tenantmiddleware.RequirePlatform)
		r.Mount("/schools", schoolHTTPHandler.Routes())
	})

	// User routes run against whichever partition the hostname resolved to.
	apiRouter.Mount("/users", userHTTPHandler.Routes())

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port), zap.String("tenant_policy", cfg.TenantPolicy))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// tenantInfoHandler reports which partition the request host resolved to.
// Useful for smoke tests and for front-ends that theme per school.
func tenantInfoHandler(w http.ResponseWriter, r *http.Request) {
	space, ok := tenant.FromContext(r.Context())
	if !ok {
		http.Error(w, "no active tenant", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if space.Public {
		_, _ = w.Write([]byte(`{"partition":"platform"}`))
		return
	}
	payload := `{"partition":"school","slug":"` + space.Slug + `","schoolId":"` + space.SchoolID.String() + `"}`
	_, _ = w.Write([]byte(payload))
}
