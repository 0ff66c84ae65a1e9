package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names understood by the loader. Env values override
// the YAML config file.
const (
	EnvConfigPath     = "CONFIG_PATH"
	EnvDBConnection   = "DB_CONNECTION"
	EnvJWTSecret      = "JWT_SECRET"
	EnvJWTExpiry      = "JWT_EXPIRY"
	EnvBaseURL        = "BASE_URL"
	EnvGoogleClientID = "GOOGLE_CLIENT_ID"
	EnvCORSOrigins    = "CORS_ORIGINS"
	EnvAdminBypassKey = "ADMIN_BYPASS_KEY"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// ServerConfig holds the outward-facing server settings.
type ServerConfig struct {
	// BaseURL is the public scheme+host used to compose short URLs.
	BaseURL string `yaml:"base-url"`
	// GoogleClientID is the audience for federated ID token checks.
	GoogleClientID string `yaml:"google-client-id"`
	// CORSOrigins lists allowed browser origins.
	CORSOrigins []string `yaml:"cors-origins"`
	// AdminBypassKey exempts holders from rate limiting.
	AdminBypassKey string `yaml:"admin-bypass-key"`
}

// fileConfig maps the YAML fields the loaders read.
type fileConfig struct {
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	JWT    JWTConfig    `yaml:"jwt"`
	Server ServerConfig `yaml:"server"`
}

// readFileConfig parses the config file, tolerating absence.
func readFileConfig(configPath string) (fileConfig, error) {
	var cfg fileConfig
	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return cfg, errRead
	}
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return cfg, nil
}

// LoadDatabaseDSN reads the database DSN from the env or the config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	cfg, errRead := readFileConfig(configPath)
	if errRead != nil {
		return "", fmt.Errorf("read config file: %w", errRead)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry matches the default session token lifetime.
const defaultJWTExpiry = 7 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the config file with env overrides.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	result := JWTConfig{Expiry: defaultJWTExpiry}

	if cfg, errRead := readFileConfig(configPath); errRead == nil {
		if cfg.JWT.Secret != "" || cfg.JWT.Expiry > 0 {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// defaultBaseURL serves local development.
const defaultBaseURL = "http://localhost:8080"

// LoadServerConfig loads server settings from the config file with env
// overrides.
func LoadServerConfig(configPath string) (ServerConfig, error) {
	result := ServerConfig{BaseURL: defaultBaseURL}

	if cfg, errRead := readFileConfig(configPath); errRead == nil {
		if strings.TrimSpace(cfg.Server.BaseURL) != "" {
			result.BaseURL = strings.TrimSpace(cfg.Server.BaseURL)
		}
		result.GoogleClientID = strings.TrimSpace(cfg.Server.GoogleClientID)
		result.CORSOrigins = cfg.Server.CORSOrigins
		result.AdminBypassKey = strings.TrimSpace(cfg.Server.AdminBypassKey)
	}

	if base := strings.TrimSpace(os.Getenv(EnvBaseURL)); base != "" {
		result.BaseURL = base
	}
	if clientID := strings.TrimSpace(os.Getenv(EnvGoogleClientID)); clientID != "" {
		result.GoogleClientID = clientID
	}
	if origins := strings.TrimSpace(os.Getenv(EnvCORSOrigins)); origins != "" {
		result.CORSOrigins = result.CORSOrigins[:0]
		for _, part := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result.CORSOrigins = append(result.CORSOrigins, trimmed)
			}
		}
	}
	if key := strings.TrimSpace(os.Getenv(EnvAdminBypassKey)); key != "" {
		result.AdminBypassKey = key
	}

	result.BaseURL = strings.TrimRight(result.BaseURL, "/")
	return result, nil
}
