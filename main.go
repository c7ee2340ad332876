package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"workspace-api/api"
	"workspace-api/config"
	"workspace-api/domain"
	"workspace-api/storage"
	"workspace-api/summarize"
)

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTelStdout {
		shutdown, err := setupTracing()
		if err != nil {
			log.Fatalf("tracing: %v", err)
		}
		defer shutdown()
	}

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer closeBackend()

	if cfg.RedisConnectionString != "" {
		redisOpts, err := config.RedisOptions(cfg.RedisConnectionString)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rc := redis.NewClient(redisOpts)
		defer rc.Close()
		backend = storage.NewCache(backend, rc, cfg.CacheTTL)
	}

	var events domain.EventPublisher = domain.NopPublisher{}
	if cfg.EventsQueue != "" {
		q, err := storage.NewEventQueue(cfg.StorageConnectionString, cfg.EventsQueue)
		if err != nil {
			log.Fatalf("events queue: %v", err)
		}
		events = q
	}

	notes := domain.NewNoteService(backend, newSummarizer(cfg), events)
	notes.SetSummaryTimeout(cfg.SummaryTimeout)
	tasks := domain.NewTaskService(backend, events)

	auth, err := newAuth(cfg)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: cfg.SessionCookie != "" && !allowsAnyOrigin(cfg.CORSOrigins),
	}))
	e.Use(middleware.BodyLimit("64K"))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "workspace_api",
		Registerer: registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/healthz"
		},
	}))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: registry}))

	logger := log.New()
	logger.SetLevel(log.GetLevel())
	logger.SetFormatter(&log.JSONFormatter{})
	api.Register(e, notes, tasks, auth, logger)

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("listening")
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
}

// openBackend builds the store once for the whole process. The returned
// close func releases its connections.
func openBackend(ctx context.Context, cfg config.Config) (storage.Backend, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		m, err := storage.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.Close(closeCtx); err != nil {
				log.WithError(err).Warn("mongo disconnect")
			}
		}, nil
	case config.BackendMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		return storage.NewMemory(), func() {}, nil
	default:
		s, err := storage.New(cfg.StorageConnectionString, cfg.NotesTable, cfg.TasksTable)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func newSummarizer(cfg config.Config) domain.Summarizer {
	if cfg.SummaryAPIKey == "" {
		log.Warn("SUMMARY_API_KEY not set; summaries fall back to the placeholder")
		return summarize.Unavailable{}
	}
	s, err := summarize.NewOpenAIClient(summarize.Config{
		APIKey:  cfg.SummaryAPIKey,
		BaseURL: cfg.SummaryBaseURL,
		Model:   cfg.SummaryModel,
	})
	if err != nil {
		log.WithError(err).Warn("summarizer disabled")
		return summarize.Unavailable{}
	}
	return s
}

func newAuth(cfg config.Config) (*api.Auth, error) {
	var auth *api.Auth
	if cfg.AuthMode == config.AuthHS256 {
		log.Warn("AUTH_MODE=hs256: tokens are verified with a shared secret")
		auth = api.NewHS256Auth([]byte(cfg.AuthSecret), cfg.AuthAudience, cfg.AuthIssuer)
	} else {
		jwks, err := keyfunc.Get(cfg.JWKSURL(), keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.WithError(err).Warn("jwks refresh failed")
			},
		})
		if err != nil {
			return nil, err
		}
		auth = api.NewJWKSAuth(jwks, cfg.AuthAudience, cfg.AuthIssuer, cfg.JWKSCacheTTL)
	}
	auth.SessionCookie = cfg.SessionCookie
	return auth, nil
}

func setupTracing() (func(), error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("tracer shutdown")
		}
	}, nil
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
