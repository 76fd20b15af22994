package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the environment variable pointing at an optional YAML config file
const ConfigPathEnvVar = "HOMESTOCK_CONFIG"

// Config holds application configuration shared by the server, bot, web UI and admin tool
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Bot      BotConfig      `koanf:"bot"`
	API      APIConfig      `koanf:"api"`
	Web      WebConfig      `koanf:"web"`
	Email    EmailConfig    `koanf:"email"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port               string        `koanf:"port"`
	CORSOrigins        []string      `koanf:"cors_origins"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
	InvitePurgeAge     time.Duration `koanf:"invite_purge_age"`
}

type DatabaseConfig struct {
	Type string `koanf:"type"`
	Path string `koanf:"path"`
	URL  string `koanf:"url"`
}

// AuthConfig configures identity-token verification and the Google sign-in client
type AuthConfig struct {
	GoogleClientID     string `koanf:"google_client_id"`
	GoogleClientSecret string `koanf:"google_client_secret"`
	RedirectURL        string `koanf:"redirect_url"`
	JWKSURL            string `koanf:"jwks_url"`
	Issuer             string `koanf:"issuer"`
	DevJWTSecret       string `koanf:"dev_jwt_secret"`
}

type BotConfig struct {
	Port             string `koanf:"port"`
	Token            string `koanf:"token"`
	ApplicationID    string `koanf:"application_id"`
	PublicKey        string `koanf:"public_key"`
	APIKey           string `koanf:"api_key"`
	NaturalLanguage  bool   `koanf:"natural_language"`
	MemoryExtraction bool   `koanf:"memory_extraction"`
	MemoryPath       string `koanf:"memory_path"`
}

type APIConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type WebConfig struct {
	Port          string `koanf:"port"`
	BaseURL       string `koanf:"base_url"`
	SessionSecret string `koanf:"session_secret"`
	RedisURL      string `koanf:"redis_url"`
}

type EmailConfig struct {
	AWSRegion   string `koanf:"aws_region"`
	FromAddress string `koanf:"from_address"`
	FromName    string `koanf:"from_name"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:               "8080",
			CORSOrigins:        []string{"http://localhost:3000"},
			RateLimitPerMinute: 300,
			ShutdownTimeout:    30 * time.Second,
			InvitePurgeAge:     30 * 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "./homestock.db",
		},
		Auth: AuthConfig{
			JWKSURL: "https://www.googleapis.com/oauth2/v3/certs",
			Issuer:  "https://accounts.google.com",
		},
		Bot: BotConfig{
			Port:       "8081",
			MemoryPath: "./data/memory",
		},
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		Web: WebConfig{
			Port:    "3000",
			BaseURL: "http://localhost:3000",
		},
		Email: EmailConfig{
			AWSRegion: "us-east-1",
			FromName:  "Homestock",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envMappings maps lowercased environment variable names to koanf paths
var envMappings = map[string]string{
	"port":                  "server.port",
	"cors_origins":          "server.cors_origins",
	"rate_limit_per_minute": "server.rate_limit_per_minute",
	"shutdown_timeout":      "server.shutdown_timeout",
	"invite_purge_age":      "server.invite_purge_age",

	"database_type": "database.type",
	"db_path":       "database.path",
	"database_url":  "database.url",

	"google_client_id":     "auth.google_client_id",
	"google_client_secret": "auth.google_client_secret",
	"oauth_redirect_url":   "auth.redirect_url",
	"jwks_url":             "auth.jwks_url",
	"token_issuer":         "auth.issuer",
	"dev_jwt_secret":       "auth.dev_jwt_secret",

	"bot_port":                "bot.port",
	"discord_token":           "bot.token",
	"discord_application_id":  "bot.application_id",
	"discord_public_key":      "bot.public_key",
	"bot_api_key":             "bot.api_key",
	"enable_natural_language": "bot.natural_language",
	"enable_memory":           "bot.memory_extraction",
	"memory_path":             "bot.memory_path",

	"api_base_url": "api.base_url",
	"api_timeout":  "api.timeout",

	"web_port":           "web.port",
	"web_base_url":       "web.base_url",
	"web_session_secret": "web.session_secret",
	"redis_url":          "web.redis_url",

	"aws_region":     "email.aws_region",
	"ses_from_email": "email.from_address",
	"ses_from_name":  "email.from_name",

	"log_level":  "log.level",
	"log_format": "log.format",
}

func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	// Anything else in the environment is ignored
	return ""
}

// Load reads configuration from defaults, an optional YAML file and the environment.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return load(os.Getenv(ConfigPathEnvVar))
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma-separated lists arrive from the environment as a single string
	if raw, ok := k.Get("server.cors_origins").(string); ok {
		if err := k.Set("server.cors_origins", splitList(raw)); err != nil {
			return nil, fmt.Errorf("failed to parse cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects configurations no component can run with
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Type) {
	case "sqlite", "sqlite3", "":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres", "postgresql", "mysql":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for %s", c.Database.Type)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Server.RateLimitPerMinute < 0 {
		return errors.New("server.rate_limit_per_minute must not be negative")
	}
	if c.Bot.Token != "" && c.Bot.APIKey == "" {
		return errors.New("bot.api_key is required when bot.token is set")
	}
	return nil
}

// IdentityConfigured reports whether bearer tokens can be verified at all
func (c *Config) IdentityConfigured() bool {
	return c.Auth.DevJWTSecret != "" || c.Auth.GoogleClientID != ""
}
