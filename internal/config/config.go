// Package config loads gatekeeper settings from defaults, an optional YAML
// file and GATEKEEPER_* environment variables.
package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/layer-3/gatekeeper/adapters/password"
	"github.com/layer-3/gatekeeper/service"
)

const EnvPrefix = "GATEKEEPER"

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverRedis    = "redis"
)

type Config struct {
	HTTP     HTTPConfig      `mapstructure:"http"`
	Log      LogConfig       `mapstructure:"log"`
	Token    TokenConfig     `mapstructure:"token"`
	Identity DriverConfig    `mapstructure:"identity"`
	Nonce    DriverConfig    `mapstructure:"nonce"`
	Postgres PostgresConfig  `mapstructure:"postgres"`
	Mongo    MongoConfig     `mapstructure:"mongo"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Events   EventsConfig    `mapstructure:"events"`
	Reset    ResetConfig     `mapstructure:"reset"`
	Auth     service.Config  `mapstructure:"auth"`
	Password password.Params `mapstructure:"password"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TokenConfig struct {
	Issuer string `mapstructure:"issuer"`

	// SigningKeyFile points to a PEM encoded ECDSA P-256 private key.
	// Without it an ephemeral key is generated and tokens do not survive restarts.
	SigningKeyFile string `mapstructure:"signing_key_file"`
}

type DriverConfig struct {
	Driver string `mapstructure:"driver"`
}

type PostgresConfig struct {
	URL    string `mapstructure:"url"`
	Schema string `mapstructure:"schema"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	Prefix    string        `mapstructure:"prefix"`
	// Retention is how long expired challenges stay readable. A negative value keeps them until rotated.
	Retention time.Duration `mapstructure:"retention"`
}

type EventsConfig struct {
	// Enabled publishes auth events to redis streams (redis.url).
	Enabled bool `mapstructure:"enabled"`
}

type ResetConfig struct {
	// ExposeToken returns reset tokens in the HTTP response. Development only.
	ExposeToken bool `mapstructure:"expose_token"`
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	params := password.DefaultParams()

	defaults := map[string]any{
		"http.addr":              ":9000",
		"http.shutdown_timeout":  10 * time.Second,
		"log.level":              "info",
		"log.format":             "console",
		"token.issuer":           "gatekeeper",
		"token.signing_key_file": "",
		"identity.driver":        DriverMemory,
		"nonce.driver":           DriverMemory,
		"postgres.url":           "",
		"postgres.schema":        "gatekeeper",
		"mongo.uri":              "",
		"mongo.database":         "gatekeeper",
		"mongo.collection":       "identities",
		"redis.url":              "redis://localhost:6379/0",
		"redis.prefix":           "gatekeeper:nonce:",
		"redis.retention":        24 * time.Hour,
		"events.enabled":         false,
		"reset.expose_token":     false,

		"auth.challenge_ttl":            service.DefaultChallengeTTL,
		"auth.challenge_refresh_window": service.DefaultChallengeRefreshWindow,
		"auth.nonce_bytes":              service.DefaultNonceBytes,
		"auth.session_ttl":              service.DefaultSessionTTL,
		"auth.reset_ttl":                service.DefaultResetTTL,
		"auth.min_password_length":      service.DefaultMinPasswordLength,

		"password.memory_kib":  params.MemoryKiB,
		"password.iterations":  params.Iterations,
		"password.parallelism": params.Parallelism,
		"password.salt_length": params.SaltLength,
		"password.key_length":  params.KeyLength,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// BindEnv makes GATEKEEPER_SECTION_KEY override section.key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks driver names and the settings each selected driver needs.
func (c *Config) Validate() error {
	var errs []error

	switch c.Identity.Driver {
	case DriverMemory, DriverPostgres, DriverMongo:
	default:
		errs = append(errs, fmt.Errorf("identity.driver: unknown driver %q", c.Identity.Driver))
	}
	switch c.Nonce.Driver {
	case DriverMemory, DriverPostgres, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("nonce.driver: unknown driver %q", c.Nonce.Driver))
	}

	if c.Uses(DriverPostgres) && c.Postgres.URL == "" {
		errs = append(errs, errors.New("postgres.url is required by the postgres driver"))
	}
	if c.Identity.Driver == DriverMongo && c.Mongo.URI == "" {
		errs = append(errs, errors.New("mongo.uri is required by the mongo driver"))
	}
	if (c.Nonce.Driver == DriverRedis || c.Events.Enabled) && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required by the redis driver and events"))
	}
	if c.Password.MemoryKiB == 0 || c.Password.Iterations == 0 || c.Password.Parallelism == 0 {
		errs = append(errs, errors.New("password: memory_kib, iterations and parallelism must be positive"))
	}

	return errors.Join(errs...)
}

// Uses reports whether either store is backed by driver.
func (c *Config) Uses(driver string) bool {
	return c.Identity.Driver == driver || c.Nonce.Driver == driver
}

// SigningKey loads the token signing key. When no key file is configured it
// generates one and reports ephemeral as true.
func (c *Config) SigningKey() (key *ecdsa.PrivateKey, ephemeral bool, err error) {
	if c.Token.SigningKeyFile == "" {
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, false, fmt.Errorf("generating signing key: %w", err)
		}
		return key, true, nil
	}

	contents, err := os.ReadFile(c.Token.SigningKeyFile)
	if err != nil {
		return nil, false, fmt.Errorf("reading signing key: %w", err)
	}
	key, err = jwt.ParseECPrivateKeyFromPEM(contents)
	if err != nil {
		return nil, false, fmt.Errorf("parsing signing key %s: %w", c.Token.SigningKeyFile, err)
	}
	if key.Curve != elliptic.P256() {
		return nil, false, fmt.Errorf("signing key %s must use curve P-256", c.Token.SigningKeyFile)
	}
	return key, false, nil
}
