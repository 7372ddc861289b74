package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	courseshandler "github.com/novalearn-io/novalearn/domains/courses/be/handler"
	coursesrepo "github.com/novalearn-io/novalearn/domains/courses/be/repo"
	coursesservice "github.com/novalearn-io/novalearn/domains/courses/be/service"
	quizzeshandler "github.com/novalearn-io/novalearn/domains/quizzes/be/handler"
	quizzesrepo "github.com/novalearn-io/novalearn/domains/quizzes/be/repo"
	quizzesservice "github.com/novalearn-io/novalearn/domains/quizzes/be/service"
	tenantshandler "github.com/novalearn-io/novalearn/domains/tenants/be/handler"
	tenantsprov "github.com/novalearn-io/novalearn/domains/tenants/be/provisioning"
	tenantsrepo "github.com/novalearn-io/novalearn/domains/tenants/be/repo"
	tenantsservice "github.com/novalearn-io/novalearn/domains/tenants/be/service"
	usershandler "github.com/novalearn-io/novalearn/domains/users/be/handler"
	usersrepo "github.com/novalearn-io/novalearn/domains/users/be/repo"
	usersservice "github.com/novalearn-io/novalearn/domains/users/be/service"
	platformauth "github.com/novalearn-io/novalearn/platform/go/auth"
	platformlogging "github.com/novalearn-io/novalearn/platform/go/logging"
	"github.com/novalearn-io/novalearn/platform/go/persistence"
	tenantmiddleware "github.com/novalearn-io/novalearn/platform/go/tenant/middleware"
)

type config struct {
	Port               string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL        string        `env:"DATABASE_URL,required"`
	JWTSecret          string        `env:"JWT_SECRET,required"`
	CORSOrigins        []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	TenantPoolMaxConns int32         `env:"TENANT_POOL_MAX_CONNS" envDefault:"4"`
	DriftAuditSchedule string        `env:"DRIFT_AUDIT_SCHEDULE"` // cron spec; empty disables the audit
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	registryStore, err := persistence.NewRegistryStore(pool)
	if err != nil {
		logger.Fatal("init registry store", zap.Error(err))
	}
	identityStore, err := persistence.NewIdentityStore(pool)
	if err != nil {
		logger.Fatal("init identity store", zap.Error(err))
	}

	poolCache := persistence.NewPoolCache(registryStore, persistence.DefaultPoolBuilder(persistence.PoolConfig{
		ConnString: cfg.DatabaseURL,
		MaxConns:   cfg.TenantPoolMaxConns,
	}))
	defer poolCache.Close()

	verifier, err := platformauth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		logger.Fatal("init token verifier", zap.Error(err))
	}

	provisioner := tenantsprov.NewSchemaProvisioner(pool, registryStore, logger)
	tenantRepo := tenantsrepo.NewPostgresRepository(registryStore)
	tenantService := tenantsservice.New(tenantRepo, provisioner, identityStore)
	tenantHTTPHandler := tenantshandler.New(tenantService, logger)

	userRepo := usersrepo.NewPostgresRepository(identityStore)
	userService := usersservice.New(userRepo)
	userHTTPHandler := usershandler.New(userService, verifier, logger)

	courseService := coursesservice.New(coursesrepo.NewPostgresRepository())
	courseHTTPHandler := courseshandler.New(courseService, logger)

	questionValidator, err := quizzesservice.NewQuestionValidator()
	if err != nil {
		logger.Fatal("compile question schema", zap.Error(err))
	}
	quizService := quizzesservice.New(quizzesrepo.NewPostgresRepository(), questionValidator)
	quizHTTPHandler := quizzeshandler.New(quizService, logger)

	rootRouter := chi.NewRouter()
	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
	)
	rootRouter.Use(platformlogging.RequestLogger(logger))

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
	apiRouter.Use(platformauth.Middleware(verifier))

	tenantHTTPHandler.MountPublic(apiRouter)
	userHTTPHandler.MountPublic(apiRouter)

	apiRouter.Group(func(r chi.Router) {
		r.Use(platformauth.Require())

		userHTTPHandler.MountAuthenticated(r)

		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequireRole(platformauth.RoleAdmin))
			r.Route("/admin", func(r chi.Router) {
				tenantHTTPHandler.MountAdmin(r)
				userHTTPHandler.MountAdmin(r)
			})
		})

		// Tenant-scoped routes: every request below resolves its tenant pool.
		r.Group(func(r chi.Router) {
			r.Use(tenantmiddleware.WithTenantPool(poolCache, logger))
			courseHTTPHandler.Mount(r)
			quizHTTPHandler.Mount(r)
		})
	})

	rootRouter.Mount("/api/v1", apiRouter)

	var scheduler *cron.Cron
	if strings.TrimSpace(cfg.DriftAuditSchedule) != "" {
		migrator := tenantsprov.NewMigrator(pool, registryStore, logger)
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.DriftAuditSchedule, func() {
			report, err := migrator.CheckAll(context.Background())
			if err != nil {
				logger.Error("drift audit failed", zap.Error(err))
				return
			}
			if report.Ok() {
				logger.Info("drift audit clean", zap.Int("tenants", len(report.Succeeded)))
				return
			}
			for _, f := range report.Failed {
				logger.Warn("tenant schema drift",
					zap.String("tenant_id", f.TenantID), zap.Error(f.Err))
			}
		}); err != nil {
			logger.Fatal("invalid drift audit schedule", zap.Error(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
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
