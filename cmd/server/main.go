package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sbilibin2017/romako-counter/docs"
	"github.com/sbilibin2017/romako-counter/internal/broadcast"
	"github.com/sbilibin2017/romako-counter/internal/database"
	"github.com/sbilibin2017/romako-counter/internal/facades"
	"github.com/sbilibin2017/romako-counter/internal/handlers"
	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/metrics"
	"github.com/sbilibin2017/romako-counter/internal/middlewares"
	"github.com/sbilibin2017/romako-counter/internal/repositories"
	"github.com/sbilibin2017/romako-counter/internal/services"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// config is the full server configuration read from the environment.
type config struct {
	AppHost    string
	AppPort    string
	LogLevel   string
	Env        string // "test" selects an in-memory store, "development" a console logger
	CORSOrigin string

	DBDriver   string
	SQLitePath string

	PGHost         string
	PGPort         int
	PGUser         string
	PGPassword     string
	PGDB           string
	PGMaxOpenConns int
	PGMaxIdleConns int

	RedisHost         string // empty disables the list cache
	RedisPort         int
	RedisDB           int
	RedisPassword     string
	RedisPoolSize     int
	RedisMinIdleConns int
	CacheExpSecond    int

	KafkaBrokers []string // empty disables the entry export
	KafkaTopic   string
}

// @title romako-counter API
// @version 1.0.0
// @description Greeting counter: posts containing the keyword phrase are deduplicated, counted and broadcast over websocket
// @host localhost:3001
// @BasePath /api
// @schemes http
func main() {
	printBuildInfo()
	configPath := parseFlags()

	cfg, err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Starting service version %s, commit %s, build %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// parseConfig loads environment variables from a file and returns the
// application, store, cache and export configuration.
func parseConfig(path string) (cfg config, err error) {
	_ = godotenv.Load(path)

	getEnv := func(key, defaultValue string) string {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val
		}
		return defaultValue
	}
	getInt := func(key, defaultValue string) (int, error) {
		n, err := strconv.Atoi(getEnv(key, defaultValue))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return n, nil
	}

	// Application config
	cfg.AppHost = getEnv("APP_HOST", "localhost")
	cfg.AppPort = getEnv("APP_PORT", "3001")
	cfg.LogLevel = getEnv("APP_LOG_LEVEL", "info")
	cfg.Env = getEnv("APP_ENV", "production")
	cfg.CORSOrigin = getEnv("APP_CORS_ORIGIN", "http://localhost:3000")

	// Store config
	cfg.DBDriver = getEnv("DB_DRIVER", database.DriverSQLite)
	cfg.SQLitePath = getEnv("SQLITE_PATH", "database.sqlite")
	switch cfg.DBDriver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		return cfg, fmt.Errorf("DB_DRIVER: unsupported driver %q", cfg.DBDriver)
	}

	// PostgreSQL config
	cfg.PGHost = getEnv("POSTGRES_HOST", "localhost")
	cfg.PGUser = getEnv("POSTGRES_USER", "user")
	cfg.PGPassword = getEnv("POSTGRES_PASSWORD", "password")
	cfg.PGDB = getEnv("POSTGRES_DB", "database")
	if cfg.PGPort, err = getInt("POSTGRES_PORT", "5432"); err != nil {
		return
	}
	if cfg.PGMaxOpenConns, err = getInt("POSTGRES_MAX_OPEN_CONNS", "16"); err != nil {
		return
	}
	if cfg.PGMaxIdleConns, err = getInt("POSTGRES_MAX_IDLE_CONNS", "8"); err != nil {
		return
	}

	// Redis config
	cfg.RedisHost = getEnv("REDIS_HOST", "")
	if cfg.RedisPort, err = getInt("REDIS_PORT", "6379"); err != nil {
		return
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", "0"); err != nil {
		return
	}
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	if cfg.RedisPoolSize, err = getInt("REDIS_POOL_SIZE", "10"); err != nil {
		return
	}
	if cfg.RedisMinIdleConns, err = getInt("REDIS_MIN_IDLE_CONNS", "2"); err != nil {
		return
	}
	if cfg.CacheExpSecond, err = getInt("CACHE_EXP_SECOND", "30"); err != nil {
		return
	}

	// Kafka config
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", "romako.entries")

	return cfg, nil
}

// databaseConfig picks the store from cfg. APP_ENV=test always means in-memory SQLite.
func databaseConfig(cfg config) database.Config {
	switch {
	case cfg.Env == "test":
		return database.Config{Driver: database.DriverSQLite, DSN: database.SQLiteMemoryDSN()}
	case cfg.DBDriver == database.DriverPostgres:
		return database.Config{
			Driver:       database.DriverPostgres,
			DSN:          database.PostgresDSN(cfg.PGHost, cfg.PGPort, cfg.PGUser, cfg.PGPassword, cfg.PGDB),
			MaxOpenConns: cfg.PGMaxOpenConns,
			MaxIdleConns: cfg.PGMaxIdleConns,
		}
	default:
		return database.Config{Driver: database.DriverSQLite, DSN: database.SQLiteFileDSN(cfg.SQLitePath)}
	}
}

// server is the wired application: router plus the resources it owns.
type server struct {
	router  http.Handler
	hub     *broadcast.Hub
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (s *server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// newServer opens the store, connects the optional cache and export, and builds the router.
func newServer(ctx context.Context, cfg config) (_ *server, err error) {
	s := &server{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	db, err := database.Open(ctx, databaseConfig(cfg))
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { db.Close() })

	m := metrics.New()

	s.hub = broadcast.NewHub(
		broadcast.WithAllowedOrigins(cfg.CORSOrigin),
		broadcast.WithRecorder(m),
	)
	s.closers = append(s.closers, s.hub.Close)

	// Initialize repositories
	userReadRepo := repositories.NewUserReadRepository(db)
	userWriteRepo := repositories.NewUserWriteRepository(db, repositories.GetTxFromContext)
	entryReadRepo := repositories.NewEntryReadRepository(db)
	entryWriteRepo := repositories.NewEntryWriteRepository(db, repositories.GetTxFromContext)
	transactor := repositories.NewTransactor(db)

	opts := []services.EntryServiceOption{services.WithEntryRecorder(m)}

	if cfg.RedisHost != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     cfg.RedisPoolSize,
			MinIdleConns: cfg.RedisMinIdleConns,
		})
		s.closers = append(s.closers, func() { rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		cache := repositories.NewEntryListCacheRepository(rdb, time.Duration(cfg.CacheExpSecond)*time.Second)
		opts = append(opts, services.WithEntryCache(cache))
		logger.Log.Infow("entry list cache enabled", "addr", rdb.Options().Addr)
	}

	if len(cfg.KafkaBrokers) > 0 {
		kw := facades.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		s.closers = append(s.closers, func() {
			if err := kw.Close(); err != nil {
				logger.Log.Errorw("failed to close kafka writer", "error", err)
			}
		})
		opts = append(opts, services.WithEntryEvents(facades.NewEntryEventsKafkaFacade(kw)))
		logger.Log.Infow("entry export enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	// Initialize services
	userService := services.NewUserService(userReadRepo, userWriteRepo)
	entryService := services.NewEntryService(transactor, userWriteRepo, entryWriteRepo, entryReadRepo, s.hub, opts...)

	// Setup router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.CORSOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middlewares.LoggingMiddleware)
	r.Use(middlewares.MetricsMiddleware(m))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.NewHealthHandler())
		r.Post("/entries", handlers.NewCreateEntryHandler(entryService))
		r.Get("/entries", handlers.NewListEntriesHandler(entryService))
		r.Get("/ranking", handlers.NewRankingHandler(entryService))
		r.Post("/users", handlers.NewCreateUserHandler(userService))
		r.Get("/users/{id}", handlers.NewGetUserHandler(userService))
	})

	r.Handle("/ws", s.hub)
	r.Handle("/metrics", m.Handler())

	docs.SwaggerInfo.Host = net.JoinHostPort(cfg.AppHost, cfg.AppPort)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	s.router = r
	return s, nil
}

// run initializes the logger and the application, serves HTTP and handles graceful shutdown.
func run(ctx context.Context, cfg config) error {
	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel, cfg.Env == "development"); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Sync()
	logger.Log.Infof("Logger initialized with level %s", cfg.LogLevel)

	s, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.AppHost, cfg.AppPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errChan := make(chan error, 1)
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	go func() {
		logger.Log.Infof("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case <-ctxShutdown.Done():
		logger.Log.Info("Shutdown signal received, stopping HTTP server...")
	case serveErr := <-errChan:
		return serveErr
	}

	// Websocket connections are hijacked, so Shutdown does not wait for them.
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP server shutdown error", "error", err)
	}

	logger.Log.Info("HTTP server stopped gracefully")
	return nil
}
