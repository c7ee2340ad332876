// Package config reads process settings from the environment.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BackendTables = "tables"
	BackendMongo  = "mongo"
	BackendMemory = "memory"

	AuthJWKS   = "jwks"
	AuthHS256  = "hs256"
	defaultTTL = 5 * time.Minute
)

// Config holds every setting the server and storage-init read.
type Config struct {
	ListenAddr string
	Debug      bool

	StoreBackend            string
	StorageConnectionString string
	NotesTable              string
	TasksTable              string
	EventsQueue             string
	MongoURI                string
	MongoDatabase           string

	RedisConnectionString string
	CacheTTL              time.Duration

	AuthMode      string
	AuthDomain    string
	AuthAudience  string
	AuthIssuer    string
	AuthSecret    string
	JWKSCacheTTL  time.Duration
	SessionCookie string

	SummaryAPIKey  string
	SummaryBaseURL string
	SummaryModel   string
	SummaryTimeout time.Duration

	OTelStdout  bool
	CORSOrigins []string
}

// JWKSURL is the identity provider's key set location.
func (c Config) JWKSURL() string {
	return fmt.Sprintf("https://%s/.well-known/jwks.json", c.AuthDomain)
}

// Load reads the configuration through getenv, normally os.Getenv, and
// checks everything the server needs.
func Load(getenv func(string) string) (Config, error) {
	cfg, errs := parse(getenv)
	errs = append(errs, cfg.storageErrors()...)
	errs = append(errs, cfg.authErrors()...)
	return cfg, errors.Join(errs...)
}

// LoadStorage is Load for tools that only touch storage.
func LoadStorage(getenv func(string) string) (Config, error) {
	cfg, errs := parse(getenv)
	errs = append(errs, cfg.storageErrors()...)
	return cfg, errors.Join(errs...)
}

func parse(getenv func(string) string) (Config, []error) {
	var errs []error
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	boolean := func(key string) bool {
		raw := env(key, "")
		if raw == "" {
			return false
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	duration := func(key string, def time.Duration) time.Duration {
		raw := env(key, "")
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("invalid %s: %q", key, raw))
			return def
		}
		return d
	}

	cfg := Config{
		ListenAddr:              listenAddr(env),
		Debug:                   boolean("DEBUG"),
		StoreBackend:            strings.ToLower(env("STORE_BACKEND", BackendTables)),
		StorageConnectionString: env("STORAGE_CONNECTION_STRING", ""),
		NotesTable:              env("NOTES_TABLE", "Notes"),
		TasksTable:              env("TASKS_TABLE", "Tasks"),
		EventsQueue:             env("EVENTS_QUEUE", ""),
		MongoURI:                env("MONGO_URI", ""),
		MongoDatabase:           env("MONGO_DATABASE", "workspace"),
		RedisConnectionString:   env("REDIS_CONNECTION_STRING", ""),
		CacheTTL:                duration("CACHE_TTL", defaultTTL),
		AuthMode:                strings.ToLower(env("AUTH_MODE", AuthJWKS)),
		AuthDomain:              env("AUTH_DOMAIN", ""),
		AuthAudience:            env("AUTH_AUDIENCE", ""),
		AuthIssuer:              env("AUTH_ISSUER", ""),
		AuthSecret:              env("AUTH_HS256_SECRET", ""),
		JWKSCacheTTL:            duration("JWKS_CACHE_TTL", 15*time.Minute),
		SessionCookie:           env("SESSION_COOKIE", ""),
		SummaryAPIKey:           env("SUMMARY_API_KEY", ""),
		SummaryBaseURL:          env("SUMMARY_BASE_URL", ""),
		SummaryModel:            env("SUMMARY_MODEL", ""),
		SummaryTimeout:          duration("SUMMARY_TIMEOUT", 15*time.Second),
		OTelStdout:              boolean("OTEL_STDOUT"),
		CORSOrigins:             splitList(env("CORS_ORIGINS", "*")),
	}
	if cfg.AuthMode == AuthJWKS && cfg.AuthIssuer == "" && cfg.AuthDomain != "" {
		cfg.AuthIssuer = "https://" + cfg.AuthDomain + "/"
	}
	return cfg, errs
}

func (c Config) storageErrors() []error {
	var errs []error
	switch c.StoreBackend {
	case BackendTables:
		if c.StorageConnectionString == "" {
			errs = append(errs, errors.New("STORAGE_CONNECTION_STRING is required for the tables backend"))
		}
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend))
	}
	if c.EventsQueue != "" && c.StorageConnectionString == "" {
		errs = append(errs, errors.New("EVENTS_QUEUE requires STORAGE_CONNECTION_STRING"))
	}
	return errs
}

func (c Config) authErrors() []error {
	switch c.AuthMode {
	case AuthJWKS:
		if c.AuthDomain == "" || c.AuthAudience == "" {
			return []error{errors.New("AUTH_DOMAIN and AUTH_AUDIENCE are required for jwks auth")}
		}
	case AuthHS256:
		if c.AuthSecret == "" {
			return []error{errors.New("AUTH_HS256_SECRET must be set when AUTH_MODE=hs256")}
		}
	default:
		return []error{fmt.Errorf("unsupported AUTH_MODE %q", c.AuthMode)}
	}
	return nil
}

func listenAddr(env func(string, string) string) string {
	if addr := env("LISTEN_ADDR", ""); addr != "" {
		return addr
	}
	if port := env("FUNCTIONS_CUSTOMHANDLER_PORT", env("PORT", "")); port != "" {
		return ":" + port
	}
	return ":8080"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RedisOptions accepts either a redis:// URL or an Azure style
// "host:port,password=...,ssl=True" connection string.
func RedisOptions(conn string) (*redis.Options, error) {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	if strings.TrimSpace(parts[0]) == "" || strings.Contains(parts[0], "=") {
		return nil, fmt.Errorf("invalid redis connection string")
	}
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts, nil
}
