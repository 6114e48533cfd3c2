package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/account"
	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/cache"
	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/db"
	workoutsmcp "github.com/2beens/gymtracker/internal/mcp"
	"github.com/2beens/gymtracker/internal/middleware"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workouts"
	"github.com/2beens/gymtracker/internal/workouts/filestore"
	"github.com/2beens/gymtracker/internal/workouts/pgstore"
	"github.com/2beens/gymtracker/internal/workouts/sqlitestore"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const (
	sessionsCleanupInterval = 8 * time.Hour
	maxRequestBodyBytes     = 1 << 20
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string
	mcpSecret         string

	config         *config.Config
	dbPool         *pgxpool.Pool
	store          workouts.Store
	catalogCache   *cache.CatalogCache
	catalogWatcher *filestore.CatalogWatcher
	service        *workouts.Service

	redisClient *redis.Client
	authService *auth.Service

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	DBPassword              string
	MCPSecret               string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "gymtracker")
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:       cfg,
		versionInfo:  params.VersionInfo,
		mcpSecret:    params.MCPSecret,
		otelShutdown: otelShutdown,
		catalogCache: cache.NewCatalogCache(
			cfg.CatalogCacheSizeMB*1024*1024,
			time.Duration(cfg.CatalogCacheTTLSeconds)*time.Second,
		),
	}

	var extraCollectors []prometheus.Collector
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         cfg.PostgresHost,
			DBPort:         cfg.PostgresPort,
			DBName:         cfg.PostgresDBName,
			DBUser:         cfg.PostgresUser,
			DBPassword:     params.DBPassword,
			MaxConns:       cfg.PostgresMaxConn,
			TracingEnabled: params.HoneycombTracingEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("new db pool: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Warnf("failed to ping db: %s", err)
		}
		s.dbPool = dbPool
		extraCollectors = append(extraCollectors, pgxpoolprometheus.NewCollector(
			dbPool,
			map[string]string{"db_name": cfg.PostgresDBName},
		))

		pgStore := pgstore.NewStore(dbPool)
		if err := pgStore.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate db: %w", err)
		}
		if err := s.seedCatalog(ctx, pgStore); err != nil {
			return nil, err
		}
		s.store = pgStore
	case config.StorageDriverSQLite:
		sqliteStore, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		if err := s.seedCatalog(ctx, sqliteStore); err != nil {
			return nil, err
		}
		s.store = sqliteStore
	default:
		fileStore := filestore.NewStore(cfg.DataDir, cfg.CatalogPath)
		if err := fileStore.Setup(); err != nil {
			return nil, fmt.Errorf("setup file store: %w", err)
		}
		s.catalogWatcher, err = filestore.NewCatalogWatcher(fileStore.CatalogPath(), func() {
			log.Infoln("catalog file changed, invalidating catalog cache")
			s.catalogCache.Invalidate()
		})
		if err != nil {
			return nil, fmt.Errorf("new catalog watcher: %w", err)
		}
		s.store = fileStore
	}
	log.Infof("using [%s] storage", cfg.StorageDriver)

	s.promRegistry = metrics.SetupPrometheus(s.versionInfo, cfg.StorageDriver, extraCollectors...)
	s.metricsManager = metrics.NewManager("gymtracker", "main", s.promRegistry)
	s.metricsManager.GaugeLifeSignal.Set(0)

	s.redisClient = redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})
	if params.HoneycombTracingEnabled {
		s.redisClient.AddHook(redisotel.NewTracingHook())
	}
	rdbStatus := s.redisClient.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	s.authService = auth.NewAuthService(time.Duration(cfg.SessionTTLHours)*time.Hour, s.redisClient)
	s.service = workouts.NewService(workouts.NewServiceParams{
		Store:           s.store,
		CatalogCache:    s.catalogCache,
		PasswordHashing: cfg.PasswordHashing,
	})

	return s, nil
}

type catalogSeeder interface {
	SeedCatalog(ctx context.Context, catalog workouts.Catalog) error
}

// seedCatalog loads the catalog file into a database store when enabled.
func (s *Server) seedCatalog(ctx context.Context, store catalogSeeder) error {
	if !s.config.SeedCatalog || s.config.CatalogPath == "" {
		return nil
	}
	catalog, err := filestore.LoadCatalog(s.config.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog to seed: %w", err)
	}
	if err := store.SeedCatalog(ctx, catalog); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	log.Infof("seeded %d workouts from [%s]", len(catalog), s.config.CatalogPath)
	return nil
}

// mcpMountAllowed reports whether /mcp is served. The tools take any username,
// so outside development they are only exposed behind a secret.
func (s *Server) mcpMountAllowed() bool {
	if !s.config.MCPEnabled {
		return false
	}
	if s.mcpSecret != "" {
		return true
	}
	switch strings.ToLower(s.config.Environment) {
	case "dev", "development":
		log.Warnln("serving /mcp without a secret in development")
		return true
	default:
		log.Errorf("mcp enabled without a secret in [%s], /mcp not mounted", s.config.Environment)
		return false
	}
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	accountHandler := account.NewHandler(s.service, s.authService, s.versionInfo, s.metricsManager)
	accountHandler.SetupRoutes(r, reqRateLimiter, s.config.LoginRateLimitAllowedPerMin)

	workoutsHandler := workouts.NewHandler(s.service, s.authService, s.metricsManager)
	workoutsHandler.SetupRoutes(r)

	if s.mcpMountAllowed() {
		mcpHandler := workoutsmcp.NewHTTPHandler(workoutsmcp.NewServer(s.service), s.mcpSecret)
		r.PathPrefix("/mcp").Handler(otelhttp.NewHandler(mcpHandler, "mcp")).Name("mcp")
	}

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.authService)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.LimitAndDrainBody(maxRequestBodyBytes))

	return r
}

// Serve runs the main and the metrics http servers, the sessions cleanup and the
// catalog watcher. It blocks until ctx is done and everything is shut down.
func (s *Server) Serve(ctx context.Context, host string, port int) error {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      s.routerSetup(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	if s.catalogWatcher != nil {
		if err := s.catalogWatcher.Start(ctx); err != nil {
			log.Errorf("failed to start catalog watcher: %s", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("main service, listen and serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		if err := s.metricsHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics service, listen and serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.authService.RunCleanup(gctx, sessionsCleanupInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.GracefulShutdown()
		return nil
	})

	s.metricsManager.GaugeLifeSignal.Set(1)

	return g.Wait()
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	if s.catalogWatcher != nil {
		s.catalogWatcher.Stop()
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Errorf("failed to close store: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}
