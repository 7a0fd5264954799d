package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coachbook/server/internal/validation"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MinSessionSecretLength is the shortest SESSION_SECRET accepted.
const MinSessionSecretLength = 32

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	OAuth       OAuthConfig
	CORS        CORSConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
	Tracing     TracingConfig
	Dashboard   DashboardConfig
	Bookings    BookingsConfig
	Environment string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

type AuthConfig struct {
	SessionSecret string
	SessionTTL    time.Duration
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// Enabled reports whether Google sign-in is configured.
func (c OAuthConfig) Enabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

type CORSConfig struct {
	AllowedOrigins  []string
	AllowAllOrigins bool
}

type RateLimitConfig struct {
	PublicPerMinute   int
	MutationPerMinute int
}

type LoggingConfig struct {
	Level  string
	Format string
}

type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	Exporter     string
	OTLPEndpoint string
	SampleRate   float64
}

type DashboardConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

type BookingsConfig struct {
	StrictTransitions bool
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// SecureCookies reports whether cookies should carry the Secure flag, which
// holds whenever the public base URL is served over HTTPS.
func (c Config) SecureCookies() bool {
	return strings.HasPrefix(strings.ToLower(c.Server.BaseURL), "https://")
}

// LoadDotEnv loads variables from the given .env files without overriding
// values already present in the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	return load(lookup{})
}

// LoadFile reads configuration from a YAML file of KEY: value pairs using the
// same names as the environment variables. Environment values take precedence.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Load()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	values := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		values[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return load(lookup{file: values})
}

func load(src lookup) (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:    src.str("SERVER_HOST", "0.0.0.0"),
			Port:    src.int("SERVER_PORT", 8080),
			BaseURL: src.str("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:            src.str("DATABASE_URL", ""),
			MaxConnections: src.int("DATABASE_MAX_CONNECTIONS", 25),
		},
		Auth: AuthConfig{
			SessionSecret: src.str("SESSION_SECRET", ""),
			SessionTTL:    time.Duration(src.int("SESSION_TTL_HOURS", 24*7)) * time.Hour,
		},
		OAuth: OAuthConfig{
			GoogleClientID:     src.str("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: src.str("GOOGLE_CLIENT_SECRET", ""),
			GoogleRedirectURL:  src.str("GOOGLE_REDIRECT_URL", ""),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute:   src.int("RATE_LIMIT_PUBLIC", 120),
			MutationPerMinute: src.int("RATE_LIMIT_MUTATIONS", 30),
		},
		Logging: LoggingConfig{
			Level:  src.str("LOG_LEVEL", "info"),
			Format: src.str("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Enabled:      src.bool("TRACING_ENABLED", false),
			ServiceName:  src.str("TRACING_SERVICE_NAME", "coachbook"),
			Exporter:     src.str("TRACING_EXPORTER", "stdout"),
			OTLPEndpoint: src.str("OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   src.float("TRACING_SAMPLE_RATE", 1.0),
		},
		Dashboard: DashboardConfig{
			CacheSize: src.int("DASHBOARD_CACHE_SIZE", 1024),
			CacheTTL:  time.Duration(src.int("DASHBOARD_CACHE_TTL_SECONDS", 60)) * time.Second,
		},
		Bookings: BookingsConfig{
			StrictTransitions: src.bool("BOOKING_STRICT_TRANSITIONS", false),
		},
		Environment: src.str("ENVIRONMENT", "development"),
	}

	if cfg.OAuth.GoogleRedirectURL == "" {
		cfg.OAuth.GoogleRedirectURL = strings.TrimRight(cfg.Server.BaseURL, "/") + "/auth/google/callback"
	}

	origins := splitList(src.str("CORS_ALLOWED_ORIGINS", ""))
	switch cfg.Environment {
	case "development", "test":
		cfg.CORS.AllowAllOrigins = len(origins) == 0
		cfg.CORS.AllowedOrigins = origins
	default:
		if len(origins) == 0 {
			return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS is required in %s", cfg.Environment)
		}
		cfg.CORS.AllowedOrigins = origins
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if len(cfg.Auth.SessionSecret) < MinSessionSecretLength {
		return Config{}, fmt.Errorf("SESSION_SECRET must be at least %d bytes", MinSessionSecretLength)
	}
	if err := validation.ValidateBaseURL(cfg.Server.BaseURL, "SERVER_BASE_URL", cfg.IsProduction()); err != nil {
		return Config{}, err
	}
	if cfg.IsProduction() && !cfg.OAuth.Enabled() {
		return Config{}, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required in production")
	}
	if cfg.Dashboard.CacheSize < 0 {
		cfg.Dashboard.CacheSize = 0
	}
	return cfg, nil
}

// lookup resolves a key from the environment first, then from file values.
type lookup struct {
	file map[string]string
}

func (l lookup) str(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := l.file[key]; ok && value != "" {
		return value
	}
	return fallback
}

func (l lookup) int(key string, fallback int) int {
	value := l.str(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (l lookup) bool(key string, fallback bool) bool {
	value := l.str(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (l lookup) float(key string, fallback float64) float64 {
	value := l.str(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
