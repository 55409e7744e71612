package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hongminglow/dunes-blog/internal/auth"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Store drivers.
const (
	StoreJSON     = "json"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Revocation drivers.
const (
	RevocationNone   = "none"
	RevocationMemory = "memory"
	RevocationRedis  = "redis"
)

// Config holds runtime configuration sourced from env vars and an optional YAML file.
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	CORSOrigins []string

	SessionSecret     string
	SessionMaxAge     time.Duration
	SessionStaleCheck bool

	StoreDriver     string
	UsersFile       string
	MongoURI        string
	MongoDatabase   string
	DatabaseURL     string
	SQLitePath      string
	RevocationStore string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
}

// fileConfig mirrors the environment variables for CONFIG_FILE.
type fileConfig struct {
	Port        string   `yaml:"port"`
	Env         string   `yaml:"app_env"`
	LogLevel    string   `yaml:"log_level"`
	CORSOrigins []string `yaml:"cors_allowed_origins"`

	Session struct {
		Secret     string `yaml:"secret"`
		MaxAgeHrs  int    `yaml:"max_age_hours"`
		StaleCheck *bool  `yaml:"stale_check"`
	} `yaml:"session"`

	Store struct {
		Driver        string `yaml:"driver"`
		UsersFile     string `yaml:"users_file"`
		MongoURI      string `yaml:"mongodb_uri"`
		MongoDatabase string `yaml:"mongodb_database"`
		DatabaseURL   string `yaml:"database_url"`
		SQLitePath    string `yaml:"sqlite_path"`
	} `yaml:"store"`

	Revocation struct {
		Driver        string `yaml:"driver"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
	} `yaml:"revocation"`
}

// Load reads the configuration and validates all of it.
func Load() (Config, error) {
	cfg, err := Read()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read reads configuration from CONFIG_FILE (if set) and the environment,
// with env vars taking precedence. Only malformed values are rejected.
func Read() (Config, error) {
	var file fileConfig
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg := Config{
		Port:            fallback(os.Getenv("PORT"), fallback(file.Port, "3000")),
		Env:             strings.ToLower(fallback(os.Getenv("APP_ENV"), fallback(file.Env, EnvProduction))),
		LogLevel:        fallback(os.Getenv("LOG_LEVEL"), file.LogLevel),
		SessionSecret:   fallback(os.Getenv("SESSION_SECRET"), file.Session.Secret),
		StoreDriver:     strings.ToLower(fallback(os.Getenv("STORE_DRIVER"), fallback(file.Store.Driver, StoreJSON))),
		UsersFile:       fallback(os.Getenv("USERS_FILE"), fallback(file.Store.UsersFile, "data/users.json")),
		MongoURI:        fallback(os.Getenv("MONGODB_URI"), file.Store.MongoURI),
		MongoDatabase:   fallback(os.Getenv("MONGODB_DATABASE"), fallback(file.Store.MongoDatabase, "atlantic_dunes_blog")),
		DatabaseURL:     fallback(os.Getenv("DATABASE_URL"), file.Store.DatabaseURL),
		SQLitePath:      fallback(os.Getenv("SQLITE_PATH"), fallback(file.Store.SQLitePath, "data/users.db")),
		RevocationStore: strings.ToLower(fallback(os.Getenv("REVOCATION_DRIVER"), fallback(file.Revocation.Driver, RevocationNone))),
		RedisAddr:       fallback(os.Getenv("REDIS_ADDR"), fallback(file.Revocation.RedisAddr, "localhost:6379")),
		RedisPassword:   fallback(os.Getenv("REDIS_PASSWORD"), file.Revocation.RedisPassword),
	}

	if origins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); origins != "" {
		cfg.CORSOrigins = parseCSV(origins)
	} else if len(file.CORSOrigins) > 0 {
		cfg.CORSOrigins = file.CORSOrigins
	}

	hours := file.Session.MaxAgeHrs
	if raw := strings.TrimSpace(os.Getenv("SESSION_MAX_AGE_HOURS")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("SESSION_MAX_AGE_HOURS: %w", err)
		}
		hours = n
	}
	if hours <= 0 {
		hours = 168
	}
	cfg.SessionMaxAge = time.Duration(hours) * time.Hour

	if file.Session.StaleCheck != nil {
		cfg.SessionStaleCheck = *file.Session.StaleCheck
	}
	if raw := strings.TrimSpace(os.Getenv("SESSION_STALE_CHECK")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("SESSION_STALE_CHECK: %w", err)
		}
		cfg.SessionStaleCheck = b
	}

	cfg.RedisDB = file.Revocation.RedisDB
	if raw := strings.TrimSpace(os.Getenv("REDIS_DB")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}
	return cfg, nil
}

// Validate checks that the selected drivers have what they need and that
// the session secret is strong enough.
func (c Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("APP_ENV must be development, production or test, got %q", c.Env)
	}

	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if err := auth.ValidateSecret([]byte(c.SessionSecret)); err != nil {
		return fmt.Errorf("SESSION_SECRET: %w", err)
	}
	if err := c.ValidateStore(); err != nil {
		return err
	}

	switch c.RevocationStore {
	case RevocationNone, RevocationMemory:
	case RevocationRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis revocation list")
		}
	default:
		return fmt.Errorf("unknown REVOCATION_DRIVER %q", c.RevocationStore)
	}
	return nil
}

// ValidateStore checks only the credential store settings.
func (c Config) ValidateStore() error {
	switch c.StoreDriver {
	case StoreJSON:
		if c.UsersFile == "" {
			return errors.New("USERS_FILE is required for the json store")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI is required for the mongo store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// SecureCookies reports whether the session cookie must carry the Secure flag.
// Only local development over plain HTTP goes without it.
func (c Config) SecureCookies() bool {
	return c.Env != EnvDevelopment
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
