package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/sbilibin2017/elevenfingers-auth/internal/handlers"
	"github.com/sbilibin2017/elevenfingers-auth/internal/jwt"
	"github.com/sbilibin2017/elevenfingers-auth/internal/logger"
	"github.com/sbilibin2017/elevenfingers-auth/internal/middlewares"
	"github.com/sbilibin2017/elevenfingers-auth/internal/repositories"
	"github.com/sbilibin2017/elevenfingers-auth/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/sbilibin2017/elevenfingers-auth/docs"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// @title elevenfingers-auth API
// @version 1.0.0
// @description Signup, login and bearer token verification
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
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

type config struct {
	AppHost  string `env:"APP_HOST" envDefault:"localhost"`
	AppPort  string `env:"APP_PORT" envDefault:"8080"`
	LogLevel string `env:"APP_LOG_LEVEL" envDefault:"info"`

	PostgresHost         string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort         int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser         string `env:"POSTGRES_USER" envDefault:"user"`
	PostgresPassword     string `env:"POSTGRES_PASSWORD" envDefault:"password"`
	PostgresDB           string `env:"POSTGRES_DB" envDefault:"database"`
	PostgresMaxOpenConns int    `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"16"`
	PostgresMaxIdleConns int    `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"8"`

	// Empty RedisHost disables the login cache.
	RedisHost         string `env:"REDIS_HOST"`
	RedisPort         int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisDB           int    `env:"REDIS_DB" envDefault:"0"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	RedisPoolSize     int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	RedisMinIdleConns int    `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	RedisExpSecond    int    `env:"REDIS_EXP_SECOND" envDefault:"60"`

	// Empty KafkaBrokers disables signup events.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"users.signed_up"`

	JWTSecretKey  string `env:"JWT_SECRET_KEY,required,notEmpty"`
	JWTAlgorithm  string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	JWTExpMinutes int    `env:"JWT_EXP_MINUTES" envDefault:"30"`
}

// parseConfig loads environment variables from an optional dotenv file and
// returns the application configuration.
func parseConfig(path string) (config, error) {
	_ = godotenv.Load(path)

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTExpMinutes <= 0 {
		return config{}, errors.New("JWT_EXP_MINUTES must be positive")
	}
	if _, err := jwt.ParseAlgorithm(cfg.JWTAlgorithm); err != nil {
		return config{}, fmt.Errorf("JWT_ALGORITHM: %w", err)
	}
	return cfg, nil
}

// authAPI is the service surface served over HTTP.
type authAPI interface {
	handlers.Signuper
	handlers.Loginer
	handlers.Verifier
	handlers.Profiler
}

// tokenAPI reads bearer tokens from requests and resolves their subject.
type tokenAPI interface {
	handlers.TokenExtractor
	middlewares.Tokener
}

// run initializes the logger, database, optional Redis and Kafka clients,
// and the HTTP server. It blocks until a shutdown signal or a server error.
func run(ctx context.Context, cfg config) error {
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()
	logger.Log.Infof("Logger initialized with level %s", cfg.LogLevel)

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
	logger.Log.Infof("Connecting to PostgreSQL at %s:%d/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return fmt.Errorf("PostgreSQL connection error: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.PostgresMaxOpenConns)
	db.SetMaxIdleConns(cfg.PostgresMaxIdleConns)

	if err := repositories.Migrate(ctx, db); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	// Optional login cache
	var cache services.UserCache
	if cfg.RedisHost != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     cfg.RedisPoolSize,
			MinIdleConns: cfg.RedisMinIdleConns,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection error: %w", err)
		}
		defer rdb.Close()
		cache = repositories.NewUserCacheRepository(rdb, time.Duration(cfg.RedisExpSecond)*time.Second)
	} else {
		logger.Log.Info("REDIS_HOST not set, login cache disabled")
	}

	// Optional signup events
	var kafkaWriter services.KafkaWriter
	if len(cfg.KafkaBrokers) > 0 {
		w := &kafka.Writer{
			Addr:                   kafka.TCP(cfg.KafkaBrokers...),
			Topic:                  cfg.KafkaTopic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		}
		defer w.Close()
		kafkaWriter = w
	} else {
		logger.Log.Info("KAFKA_BROKERS not set, signup events disabled")
	}

	method, err := jwt.ParseAlgorithm(cfg.JWTAlgorithm)
	if err != nil {
		return err
	}
	tokens := jwt.New(
		jwt.WithSecretKey(cfg.JWTSecretKey),
		jwt.WithSigningMethod(method),
		jwt.WithExpiration(time.Duration(cfg.JWTExpMinutes)*time.Minute),
	)

	authService := newAuthService(db, cache, tokens, kafkaWriter)

	swaggerURL := fmt.Sprintf("http://%s:%s/swagger/doc.json", cfg.AppHost, cfg.AppPort)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort),
		Handler:           newRouter(db, authService, tokens, swaggerURL),
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP server shutdown error", "error", err)
	}

	logger.Log.Info("HTTP server stopped gracefully")
	return nil
}

// newAuthService builds the auth service on top of the request transaction:
// repositories read the transaction opened by TxMiddleware and signup side
// effects wait for its commit.
func newAuthService(
	db *sqlx.DB,
	cache services.UserCache,
	tokens services.TokenManager,
	kafkaWriter services.KafkaWriter,
) *services.AuthService {
	userReadRepo := repositories.NewUserReadRepository(db, middlewares.GetTxFromContext)
	userWriteRepo := repositories.NewUserWriteRepository(db, middlewares.GetTxFromContext)

	return services.NewAuthService(userReadRepo, userWriteRepo, cache, tokens, kafkaWriter).
		WithAfterCommit(middlewares.AfterCommit)
}

// newRouter wires handlers and middleware. Signup runs inside a per-request
// transaction; /auth/me requires a bearer token.
func newRouter(db *sqlx.DB, svc authAPI, tokens tokenAPI, swaggerURL string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware(logger.Log))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"auth service is running"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(middlewares.TxMiddleware(db)).Post("/signup", handlers.NewSignupHandler(svc))
		r.Post("/login", handlers.NewLoginHandler(svc))
		r.Post("/verify", handlers.NewVerifyHandler(svc, tokens))
		r.With(middlewares.AuthMiddleware(tokens)).Get("/me", handlers.NewMeHandler(svc))
	})

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	return r
}
