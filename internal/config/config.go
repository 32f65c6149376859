package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"go-user-accounts/internal/token"
)

const (
	EnvProduction = "production"

	MediaBackendLocal = "local"
	MediaBackendS3    = "s3"
)

type Config struct {
	Environment             string
	LogLevel                string
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	MaxJSONBody             int64
	MaxUploadSize           int64
	CORSOrigins             []string
	RateLimitRPM            int
	AuthRateLimitRPM        int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	AccessTokenSecret  string
	AccessTokenTTL     time.Duration
	RefreshTokenSecret string
	RefreshTokenTTL    time.Duration
	TokenIssuer        string
	CookieSecure       bool

	MediaBackend      string
	MediaRoot         string
	MediaPublicURL    string
	MediaMaxDimension int
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3Local           bool
	S3AccessKey       string
	S3SecretKey       string
	S3PublicURL       string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ProfileCacheTTL time.Duration

	AMQPURL   string
	AMQPQueue string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:             strings.ToLower(getEnv("ENVIRONMENT", "development")),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		ServerPort:              getEnv("PORT", "8000"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxJSONBody:             getInt64("MAX_JSON_BODY", 16*1024),
		MaxUploadSize:           getInt64("MAX_UPLOAD_SIZE", 10*1024*1024),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGIN", "http://localhost:3000")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		AccessTokenSecret:  strings.TrimSpace(os.Getenv("ACCESS_TOKEN_SECRET")),
		AccessTokenTTL:     getDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		RefreshTokenSecret: strings.TrimSpace(os.Getenv("REFRESH_TOKEN_SECRET")),
		RefreshTokenTTL:    getDuration("REFRESH_TOKEN_EXPIRY", 240*time.Hour),
		TokenIssuer:        getEnv("TOKEN_ISSUER", "go-user-accounts"),
		CookieSecure:       getBool("COOKIE_SECURE", true),

		MediaBackend:      strings.ToLower(getEnv("MEDIA_BACKEND", MediaBackendLocal)),
		MediaRoot:         getEnv("MEDIA_ROOT", "./public/media"),
		MediaPublicURL:    strings.TrimRight(getEnv("MEDIA_PUBLIC_URL", "http://localhost:8000/media"), "/"),
		MediaMaxDimension: getInt("MEDIA_MAX_DIMENSION", 1024),
		S3Bucket:          strings.TrimSpace(os.Getenv("S3_BUCKET")),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		S3Local:           getBool("S3_LOCAL", false),
		S3AccessKey:       getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:       getEnv("S3_SECRET_KEY", "minioadmin"),
		S3PublicURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("S3_PUBLIC_URL")), "/"),

		RedisAddr:       strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getInt("REDIS_DB", 0),
		ProfileCacheTTL: getDuration("PROFILE_CACHE_TTL", 5*time.Minute),

		AMQPURL:   strings.TrimSpace(os.Getenv("AMQP_URL")),
		AMQPQueue: getEnv("AMQP_QUEUE", "user-account-events"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Token().Validate(); err != nil {
		return fmt.Errorf("ACCESS_TOKEN_SECRET/REFRESH_TOKEN_SECRET: %w", err)
	}

	if c.ServerPort == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.MaxJSONBody <= 0 {
		return fmt.Errorf("MAX_JSON_BODY must be positive")
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch c.MediaBackend {
	case MediaBackendLocal:
		if strings.TrimSpace(c.MediaRoot) == "" {
			return fmt.Errorf("MEDIA_ROOT cannot be empty")
		}
	case MediaBackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when MEDIA_BACKEND=s3")
		}
		if c.S3Local && c.S3Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required when S3_LOCAL=true")
		}
	default:
		return fmt.Errorf("MEDIA_BACKEND must be %q or %q", MediaBackendLocal, MediaBackendS3)
	}

	if c.MediaMaxDimension <= 0 {
		return fmt.Errorf("MEDIA_MAX_DIMENSION must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) Token() token.Config {
	return token.Config{
		AccessSecret:  c.AccessTokenSecret,
		AccessTTL:     c.AccessTokenTTL,
		RefreshSecret: c.RefreshTokenSecret,
		RefreshTTL:    c.RefreshTokenTTL,
		Issuer:        c.TokenIssuer,
	}
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getInt64(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
