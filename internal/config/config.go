// Package config provides Viper-based configuration loading for the claim server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends accepted by StoreConfig.Backend.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// ServerConfig holds HTTP listener and edge middleware settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AllowOrigin is the single origin permitted by CORS.
	AllowOrigin string `mapstructure:"allow_origin"`
	// RateLimitMax is the number of requests one client IP may make per RateLimitWindow.
	RateLimitMax    int           `mapstructure:"rate_limit_max"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
	// BodyLimit is the maximum accepted request body in bytes.
	BodyLimit    int           `mapstructure:"body_limit"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings for the redis store backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StoreConfig selects the key-value backend for player records and cooldowns.
type StoreConfig struct {
	// Backend is one of "memory", "postgres", "redis".
	Backend string `mapstructure:"backend"`
	// SweepInterval is how often expired keys are purged by backends without native expiry.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// ClaimConfig holds the reward rules for the claim orchestrator.
type ClaimConfig struct {
	// RewardCaps is the number of whole caps minted per successful claim.
	RewardCaps int64 `mapstructure:"reward_caps"`
	// Cooldown is the per-(wallet, spot) re-claim window.
	Cooldown time.Duration `mapstructure:"cooldown"`
	// IssuerTimeout bounds a single issuer call.
	IssuerTimeout time.Duration `mapstructure:"issuer_timeout"`
	// CatalogPath is the location catalog YAML file.
	CatalogPath string `mapstructure:"catalog_path"`
	// RaidScriptDir optionally holds Lua raid scripts; empty uses the built-in raid.
	RaidScriptDir string `mapstructure:"raid_script_dir"`
	// Cluster selects the explorer link suffix: "mainnet-beta" or "devnet".
	Cluster string `mapstructure:"cluster"`
}

// IssuerConfig selects the asset issuer implementation.
type IssuerConfig struct {
	// Backend is "memory" or "ledger" (Postgres-backed issuance ledger).
	Backend string `mapstructure:"backend"`
	// Decimals is the ledger base-unit precision of one whole cap.
	Decimals int `mapstructure:"decimals"`
}

// ObjectStoreConfig holds S3-compatible settings for collectible metadata.
// An empty Bucket disables uploads.
type ObjectStoreConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// ReconcileConfig holds settings for the periodic ledger audit.
type ReconcileConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	// AdminTokenHash is the bcrypt hash guarding the admin report endpoint.
	AdminTokenHash string `mapstructure:"admin_token_hash"`
}

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Store       StoreConfig       `mapstructure:"store"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Claim       ClaimConfig       `mapstructure:"claim"`
	Issuer      IssuerConfig      `mapstructure:"issuer"`
	ObjectStore ObjectStoreConfig `mapstructure:"objectstore"`
	Reconcile   ReconcileConfig   `mapstructure:"reconcile"`
}

// NeedsDatabase reports whether any configured component requires PostgreSQL.
func (c Config) NeedsDatabase() bool {
	return c.Store.Backend == BackendPostgres || c.Issuer.Backend == "ledger"
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if c.NeedsDatabase() {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateStore(c.Store, c.Redis); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateClaim(c.Claim); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateIssuer(c.Issuer); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Reconcile.Enabled && c.Reconcile.Interval <= 0 {
		errs = append(errs, "reconcile.interval must be > 0 when reconcile is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.AllowOrigin == "" {
		errs = append(errs, "server.allow_origin must not be empty")
	}
	if s.RateLimitMax < 1 {
		errs = append(errs, fmt.Sprintf("server.rate_limit_max must be >= 1, got %d", s.RateLimitMax))
	}
	if s.RateLimitWindow <= 0 {
		errs = append(errs, "server.rate_limit_window must be > 0")
	}
	if s.BodyLimit < 1 {
		errs = append(errs, fmt.Sprintf("server.body_limit must be >= 1, got %d", s.BodyLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStore(s StoreConfig, r RedisConfig) error {
	switch s.Backend {
	case BackendMemory, BackendPostgres:
	case BackendRedis:
		if r.Addr == "" {
			return errors.New("redis.addr must not be empty when store.backend is redis")
		}
	default:
		return fmt.Errorf("store.backend must be one of [memory, postgres, redis], got %q", s.Backend)
	}
	if s.SweepInterval < 0 {
		return errors.New("store.sweep_interval must not be negative")
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateClaim(c ClaimConfig) error {
	var errs []string
	if c.RewardCaps < 1 {
		errs = append(errs, fmt.Sprintf("claim.reward_caps must be >= 1, got %d", c.RewardCaps))
	}
	if c.Cooldown <= 0 {
		errs = append(errs, "claim.cooldown must be > 0")
	}
	if c.IssuerTimeout <= 0 {
		errs = append(errs, "claim.issuer_timeout must be > 0")
	}
	if c.CatalogPath == "" {
		errs = append(errs, "claim.catalog_path must not be empty")
	}
	if c.Cluster != "mainnet-beta" && c.Cluster != "devnet" {
		errs = append(errs, fmt.Sprintf("claim.cluster must be one of [mainnet-beta, devnet], got %q", c.Cluster))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateIssuer(i IssuerConfig) error {
	if i.Backend != "memory" && i.Backend != "ledger" {
		return fmt.Errorf("issuer.backend must be one of [memory, ledger], got %q", i.Backend)
	}
	if i.Decimals < 0 || i.Decimals > 18 {
		return fmt.Errorf("issuer.decimals must be 0-18, got %d", i.Decimals)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with FIZZ_ prefix
	v.SetEnvPrefix("FIZZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance populated only with default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allow_origin", "https://atomicfizzcaps.xyz")
	v.SetDefault("server.rate_limit_max", 120)
	v.SetDefault("server.rate_limit_window", "15m")
	v.SetDefault("server.body_limit", 10*1024*1024)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "fizz")
	v.SetDefault("database.password", "fizz")
	v.SetDefault("database.name", "fizz")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.sweep_interval", "5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("claim.reward_caps", 25)
	v.SetDefault("claim.cooldown", "24h")
	v.SetDefault("claim.issuer_timeout", "20s")
	v.SetDefault("claim.catalog_path", "content/locations.yaml")
	v.SetDefault("claim.cluster", "devnet")

	v.SetDefault("issuer.backend", "memory")
	v.SetDefault("issuer.decimals", 9)

	v.SetDefault("objectstore.region", "auto")

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.interval", "15m")
}
