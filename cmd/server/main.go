// Command server runs the multi-tenant inspection and asset-management
// API: one HTTP process serving every route module registered under
// internal/routes, backed by the repository kernel, the workflow
// execution engine, and the vector embedding pipeline.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inspectra/platform-core/internal/platform/audit"
	"github.com/inspectra/platform-core/internal/platform/authz"
	"github.com/inspectra/platform-core/internal/platform/featureflags"
	"github.com/inspectra/platform-core/internal/platform/identity"
	"github.com/inspectra/platform-core/internal/platform/llm"
	"github.com/inspectra/platform-core/internal/platform/repository"
	"github.com/inspectra/platform-core/internal/platform/router"
	"github.com/inspectra/platform-core/internal/platform/tenancy"
	"github.com/inspectra/platform-core/internal/platform/vector"
	"github.com/inspectra/platform-core/internal/platform/workflow"

	"github.com/inspectra/platform-core/internal/routes/auth"
	"github.com/inspectra/platform-core/internal/routes/documents"
	"github.com/inspectra/platform-core/internal/routes/platform"
	"github.com/inspectra/platform-core/internal/routes/tenants"
	"github.com/inspectra/platform-core/internal/routes/vectorservice"
	"github.com/inspectra/platform-core/internal/routes/workflows"

	pkgauth "github.com/inspectra/platform-core/pkg/auth"
	"github.com/inspectra/platform-core/pkg/cache"
	"github.com/inspectra/platform-core/pkg/config"
	"github.com/inspectra/platform-core/pkg/database"
	"github.com/inspectra/platform-core/pkg/events"
	"github.com/inspectra/platform-core/pkg/logger"
	"github.com/inspectra/platform-core/pkg/metrics"
	"github.com/inspectra/platform-core/pkg/middleware"
	"github.com/inspectra/platform-core/pkg/response"
	"github.com/inspectra/platform-core/pkg/tracer"
)

// Version information (set during build).
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.App.Name = "platform-core"

	log := logger.New(logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Caller: cfg.Logger.Caller,
	})
	log = log.With().Service(cfg.App.Name).Logger()
	logger.SetGlobal(log)

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting platform-core")

	tr, err := tracer.New(&cfg.Tracer, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer tr.Close(context.Background())

	mongodb, err := database.NewMongoDB(&cfg.MongoDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer mongodb.Close(context.Background())
	db := mongodb.Database()

	redisClient, err := database.NewRedis(&cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	eventBus, err := events.NewRabbitMQEventBus(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer eventBus.Close()

	jwtManager := pkgauth.NewJWTManager(&cfg.JWT)
	m := metrics.New(cfg.App.Name)

	// Identity, authorization, and tenant resolution.
	users := identity.NewStore(db)
	if err := users.EnsureIndexes(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure identity indexes")
	}
	if err := repository.EnsureIndexes(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure document indexes")
	}
	if err := featureflags.EnsureIndexes(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure feature flag indexes")
	}
	permCache, err := cache.NewPermissionCache(cfg.Cache.MaxEntries, cfg.Cache.PermissionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize permission cache")
	}
	defer permCache.Close()
	authzService := authz.NewService(users, permCache)
	tenantResolver := identity.NewResolver(users)
	tenancyMiddleware := tenancy.NewMiddleware(tenantResolver, log)

	// Audit trail: every repository kernel mutation is appended here and
	// flushed in batches to the audit_events collection.
	auditSink := audit.NewMongoSink(db.Collection("audit_events"))
	trail := audit.NewBufferedTrail(auditSink, log, audit.DefaultBufferedTrailConfig())
	defer trail.Close(context.Background())

	// Feature flags, served by the platform-admin routes (passed to
	// platform.Configure); nothing else consults them.
	flags, err := featureflags.New(db, cfg.Cache.MaxEntries, cfg.Cache.PermissionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize feature flag store")
	}
	defer flags.Close()

	// Workflow execution engine.
	agentRegistry := workflow.NewAgentRegistry()
	runtime := workflow.Runtime{LLM: llm.NewOllamaClient()}
	engine := workflow.NewEngine(db, trail, agentRegistry, runtime, m, log)
	engine.SetEventBus(eventBus)

	// Vector embedding pipeline: change-stream watcher -> debounce ->
	// worker pool -> Qdrant, gated entirely by cfg.Vector.Enabled so a
	// deployment without an embedding backend configured just no-ops.
	var vectorStore vector.Store = noopVectorStore{}
	if cfg.Vector.Enabled {
		qdrant, err := vector.NewQdrantStore(cfg.Vector.QdrantURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to qdrant")
		}
		vectorStore = qdrant
	}
	embedder := vector.NewOllamaEmbedder(cfg.Vector.EmbedderBaseURL, cfg.Vector.EmbedderModel, cfg.Vector.EmbedderDimension)
	pipeline := vector.NewPipeline(db, cfg.Vector, vectorStore, embedder, m, log)
	pipeline.Start(context.Background())

	// Wire every route module's dependencies. Each internal/routes/*
	// package self-registers its routes via init(); Configure binds the
	// services those handlers close over.
	auth.Configure(auth.Dependencies{Users: users, Authz: authzService, JWT: jwtManager})
	documents.Configure(documents.Dependencies{DB: db, Trail: trail})
	workflows.Configure(workflows.Dependencies{DB: db, Trail: trail, Engine: engine})
	vectorservice.Configure(vectorservice.Dependencies{Pipeline: pipeline})
	platform.Configure(platform.Dependencies{Users: users, Flags: flags})
	tenants.Configure(tenants.Dependencies{Users: users, Authz: authzService})

	if err := router.Default().Validate(); err != nil {
		log.Fatal().Err(err).Msg("route registry failed validation")
	}
	log.Info().Str("routes", router.Default().Summary()).Msg("route registry mounted")

	mux := chi.NewRouter()
	router.Default().Mount(mux, router.Deps{
		JWT:     jwtManager,
		Tenancy: tenancyMiddleware,
		Authz:   authzService,
		Users:   users,
	})

	startTime := time.Now()
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]response.HealthCheck{}

		if err := mongodb.Health(r.Context()); err != nil {
			checks["mongodb"] = response.HealthCheck{Status: "unhealthy", Message: err.Error()}
		} else {
			checks["mongodb"] = response.HealthCheck{Status: "healthy"}
		}
		if err := redisClient.Health(r.Context()); err != nil {
			checks["redis"] = response.HealthCheck{Status: "unhealthy", Message: err.Error()}
		} else {
			checks["redis"] = response.HealthCheck{Status: "healthy"}
		}

		status := "healthy"
		for _, check := range checks {
			if check.Status != "healthy" {
				status = "unhealthy"
				break
			}
		}
		response.Health(w, status, Version, time.Since(startTime), checks)
	})
	healthMux.Handle("GET /metrics", metrics.Handler())

	rateLimitConfig := middleware.RateLimitConfig{
		Requests: cfg.Cache.RateLimitRequests,
		Window:   cfg.Cache.RateLimitWindow,
		KeyFunc:  middleware.DefaultKeyFunc,
	}
	// Redis-backed so the limit is shared across every server replica
	// rather than reset per-process (SPEC_FULL.md §3.7's "optionally
	// Redis-backed token bucket").
	var rateLimiter middleware.RateLimiter = middleware.NewRedisRateLimiter(redisClient, rateLimitConfig)

	handler := middleware.Chain(
		middleware.RequestID,
		middleware.Logger(log),
		middleware.Recover(log),
		middleware.CORS([]string{"*"}, []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}, []string{"*"}),
		middleware.ContentType("application/json"),
		middleware.RateLimit(rateLimiter, rateLimitConfig),
		middleware.Timeout(cfg.Server.RequestTimeout),
	)(mux)

	publicMux := http.NewServeMux()
	publicMux.Handle("/health", healthMux)
	publicMux.Handle("/metrics", healthMux)
	publicMux.Handle("/", handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      publicMux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	pipeline.Stop()
	engine.Shutdown(shutdownCtx, func(tenantID string) tenancy.RequestContext {
		return tenancy.NewRequestContext(log, tenancy.NewTenantContext(tenantID, "", ""), "shutdown")
	})

	log.Info().Msg("server stopped")
}

// noopVectorStore is used when the vector pipeline is disabled by
// configuration, so Pipeline's fields are always non-nil without
// branching through every call site on cfg.Vector.Enabled.
type noopVectorStore struct{}

func (noopVectorStore) EnsureCollection(ctx context.Context, tenantID string, dimension int) error {
	return nil
}
func (noopVectorStore) Upsert(ctx context.Context, record vector.Record) error { return nil }
func (noopVectorStore) Delete(ctx context.Context, tenantID, documentID string) error {
	return nil
}
func (noopVectorStore) Close() error { return nil }
