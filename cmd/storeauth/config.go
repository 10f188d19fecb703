package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/invencare/go-auth/provider/cognito"
	"github.com/invencare/go-auth/store/redisstore"
	"github.com/invencare/go-auth/web"
	"gopkg.in/yaml.v3"
)

// Config is the storeauth configuration file.
type Config struct {
	LogLevel    string          `yaml:"log_level"`
	Cognito     CognitoConfig   `yaml:"cognito"`
	Credentials CredentialsFile `yaml:"credentials"`
	Backend     BackendConfig   `yaml:"backend"`
	Server      ServerConfig    `yaml:"server"`
	Redis       RedisConfig     `yaml:"redis"`
	Web         web.Settings    `yaml:"web"`
}

type CognitoConfig struct {
	Region              string        `yaml:"region"`
	UserPoolID          string        `yaml:"user_pool_id"`
	ClientID            string        `yaml:"client_id"`
	ClientSecret        string        `yaml:"client_secret"`
	VerifyTokens        bool          `yaml:"verify_tokens"`
	JWKSRefreshInterval time.Duration `yaml:"jwks_refresh_interval"`
	Endpoint            string        `yaml:"endpoint"`
}

type CredentialsFile struct {
	Path string `yaml:"path"`
}

// BackendConfig points at the inventory REST API the dashboard calls.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	RegistrySize   int           `yaml:"registry_size"`
	RegistryTTL    time.Duration `yaml:"registry_ttl"`
	RejectInFlight bool          `yaml:"reject_in_flight"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Cognito: CognitoConfig{
			VerifyTokens:        true,
			JWKSRefreshInterval: time.Hour,
		},
		Backend: BackendConfig{
			Timeout: 15 * time.Second,
		},
		Server: ServerConfig{
			Addr:         ":8572",
			MetricsAddr:  ":9090",
			RegistrySize: 10000,
			RegistryTTL:  30 * time.Minute,
		},
		Redis: RedisConfig{
			Prefix: "storeauth",
			TTL:    30 * 24 * time.Hour,
		},
		Web: web.DefaultSettings(),
	}
}

// LoadConfig reads path (when not empty) over the defaults and applies
// STOREAUTH_* environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("STOREAUTH_LOG_LEVEL", c.LogLevel)

	c.Cognito.Region = getEnv("STOREAUTH_COGNITO_REGION", c.Cognito.Region)
	c.Cognito.UserPoolID = getEnv("STOREAUTH_COGNITO_USER_POOL_ID", c.Cognito.UserPoolID)
	c.Cognito.ClientID = getEnv("STOREAUTH_COGNITO_CLIENT_ID", c.Cognito.ClientID)
	c.Cognito.ClientSecret = getEnv("STOREAUTH_COGNITO_CLIENT_SECRET", c.Cognito.ClientSecret)
	c.Cognito.VerifyTokens = getEnvBool("STOREAUTH_COGNITO_VERIFY_TOKENS", c.Cognito.VerifyTokens)
	c.Cognito.Endpoint = getEnv("STOREAUTH_COGNITO_ENDPOINT", c.Cognito.Endpoint)

	c.Credentials.Path = getEnv("STOREAUTH_CREDENTIALS_PATH", c.Credentials.Path)

	c.Backend.BaseURL = getEnv("STOREAUTH_BACKEND_URL", c.Backend.BaseURL)
	c.Backend.Timeout = getEnvDuration("STOREAUTH_BACKEND_TIMEOUT", c.Backend.Timeout)

	c.Server.Addr = getEnv("STOREAUTH_ADDR", c.Server.Addr)
	c.Server.MetricsAddr = getEnv("STOREAUTH_METRICS_ADDR", c.Server.MetricsAddr)
	c.Server.RegistrySize = getEnvInt("STOREAUTH_REGISTRY_SIZE", c.Server.RegistrySize)
	c.Server.RegistryTTL = getEnvDuration("STOREAUTH_REGISTRY_TTL", c.Server.RegistryTTL)

	c.Redis.URL = getEnv("STOREAUTH_REDIS_URL", c.Redis.URL)
	c.Redis.Password = getEnv("STOREAUTH_REDIS_PASSWORD", c.Redis.Password)

	c.Web.CSRFSecret = getEnv("STOREAUTH_CSRF_SECRET", c.Web.CSRFSecret)
	c.Web.SecureCookies = getEnvBool("STOREAUTH_SECURE_COOKIES", c.Web.SecureCookies)
	c.Web.RedirectPolicy = getEnv("STOREAUTH_REDIRECT_POLICY", c.Web.RedirectPolicy)
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	var errs []error
	if c.Cognito.UserPoolID == "" {
		errs = append(errs, errors.New("cognito.user_pool_id is required"))
	}
	if c.Cognito.ClientID == "" {
		errs = append(errs, errors.New("cognito.client_id is required"))
	}
	return errors.Join(errs...)
}

// ValidateServer checks the settings serve needs on top of Validate.
func (c Config) ValidateServer() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required to serve"))
	}
	if c.Server.RegistrySize <= 0 {
		errs = append(errs, errors.New("server.registry_size must be positive"))
	}
	return errors.Join(errs...)
}

// CognitoProviderConfig converts the file settings to the adapter config.
func (c Config) CognitoProviderConfig() cognito.Config {
	out := cognito.DefaultConfig(c.Cognito.Region, c.Cognito.UserPoolID, c.Cognito.ClientID)
	out.ClientSecret = c.Cognito.ClientSecret
	out.VerifyTokens = c.Cognito.VerifyTokens
	out.Endpoint = c.Cognito.Endpoint
	if c.Cognito.JWKSRefreshInterval > 0 {
		out.JWKSRefreshInterval = c.Cognito.JWKSRefreshInterval
	}
	return out
}

func (c Config) RedisStoreConfig() redisstore.Config {
	return redisstore.Config{
		URL:      c.Redis.URL,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
		TTL:      c.Redis.TTL,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
