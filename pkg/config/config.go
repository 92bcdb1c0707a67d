package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"freezefit/pkg/db/postgres"
	"freezefit/pkg/logger"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnTimeout     time.Duration

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustedProxyHops  int

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	CORSAllowedOrigins []string

	JWTSecret     string
	JWTIssuer     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	RedisURL       string
	CacheTTL       time.Duration
	SearchCacheTTL time.Duration

	GeocoderURL       string
	GeocoderUserAgent string
	GeocoderTimeout   time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	KafkaEnabled    bool
	EventsTopic     string
	EventsDLQTopic  string
	NotifierGroupID string

	ReminderSchedule      string
	ReminderLeadTime      time.Duration
	PendingExpirySchedule string
	InternalSecret        string

	Modules            []string
	FrontendBaseURL    string
	LoyaltyReviewBonus int
	CancellationWindow time.Duration

	ServiceName string
	Log         *logger.Logger
	DB          *sqlx.DB
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first; variables already set take precedence.
func Load(serviceName string) *Config {
	_ = godotenv.Load()

	cfg := FromEnv(serviceName)

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds the configuration without validating it.
func FromEnv(serviceName string) *Config {
	return &Config{
		DatabaseURL:       getEnvStr(EnvDatabaseURL, DefaultDatabaseURL),
		DBMaxOpenConns:    getEnvNum(EnvDBMaxOpenConns, DefaultDBMaxOpenConns),
		DBMaxIdleConns:    getEnvNum(EnvDBMaxIdleConns, DefaultDBMaxIdleConns),
		DBConnMaxLifetime: getEnvDuration(EnvDBConnMaxLifetime, DefaultDBConnMaxLifetime),
		DBConnTimeout:     getEnvDuration(EnvDBConnTimeout, DefaultDBConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),
		TrustedProxyHops:  getEnvNum(EnvTrustedProxyHops, DefaultTrustedProxyHops),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		CORSAllowedOrigins: getEnvList(EnvCORSAllowedOrigins, DefaultCORSAllowedOrigins),

		JWTSecret:     getEnvStr(EnvJWTSecret, ""),
		JWTIssuer:     getEnvStr(EnvJWTIssuer, DefaultJWTIssuer),
		JWTAccessTTL:  getEnvDuration(EnvJWTAccessTTL, DefaultJWTAccessTTL),
		JWTRefreshTTL: getEnvDuration(EnvJWTRefreshTTL, DefaultJWTRefreshTTL),

		RedisURL:       getEnvStr(EnvRedisURL, ""),
		CacheTTL:       getEnvDuration(EnvCacheTTL, DefaultCacheTTL),
		SearchCacheTTL: getEnvDuration(EnvSearchCacheTTL, DefaultSearchCacheTTL),

		GeocoderURL:       getEnvStr(EnvGeocoderURL, DefaultGeocoderURL),
		GeocoderUserAgent: getEnvStr(EnvGeocoderUserAgent, DefaultGeocoderUserAgent),
		GeocoderTimeout:   getEnvDuration(EnvGeocoderTimeout, DefaultGeocoderTimeout),

		SMTPHost:     getEnvStr(EnvSMTPHost, ""),
		SMTPPort:     getEnvNum(EnvSMTPPort, DefaultSMTPPort),
		SMTPUsername: getEnvStr(EnvSMTPUsername, ""),
		SMTPPassword: getEnvStr(EnvSMTPPassword, ""),
		SMTPFrom:     getEnvStr(EnvSMTPFrom, DefaultSMTPFrom),

		KafkaEnabled:    getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		EventsTopic:     getEnvStr(EnvEventsTopic, DefaultEventsTopic),
		EventsDLQTopic:  getEnvStr(EnvEventsDLQTopic, DefaultEventsDLQTopic),
		NotifierGroupID: getEnvStr(EnvNotifierGroupID, DefaultNotifierGroupID),

		ReminderSchedule:      getEnvStr(EnvReminderSchedule, DefaultReminderSchedule),
		ReminderLeadTime:      getEnvDuration(EnvReminderLeadTime, DefaultReminderLeadTime),
		PendingExpirySchedule: getEnvStr(EnvPendingExpirySchedule, DefaultPendingExpirySchedule),
		InternalSecret:        getEnvStr(EnvInternalSecret, ""),

		Modules:            getEnvList(EnvModules, DefaultModules),
		FrontendBaseURL:    strings.TrimSuffix(getEnvStr(EnvFrontendBaseURL, DefaultFrontendBaseURL), "/"),
		LoyaltyReviewBonus: getEnvNum(EnvLoyaltyReviewBonus, DefaultLoyaltyReviewBonus),
		CancellationWindow: getEnvDuration(EnvCancellationWindow, DefaultCancellationWindow),

		ServiceName: serviceName,
		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
	}
}

// SetPostgres opens the shared connection pool. Startup cannot continue
// without it.
func (cfg *Config) SetPostgres() {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBConnTimeout)
	defer cancel()

	db, err := postgres.Connect(ctx, postgres.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		cfg.Log.Fatal("Failed to connect to PostgreSQL",
			"error", err,
			"database_url", redactDatabaseURL(cfg.DatabaseURL),
		)
	}

	cfg.Log.Info("Successfully connected to PostgreSQL")
	cfg.DB = db
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.DatabaseURL == "" {
		errors = append(errors, "DatabaseURL cannot be empty")
	} else if !regexp.MustCompile(`^postgres(ql)?://`).MatchString(cfg.DatabaseURL) {
		errors = append(errors, fmt.Sprintf("DatabaseURL must start with 'postgres://' or 'postgresql://', got: %s", redactDatabaseURL(cfg.DatabaseURL)))
	}
	if cfg.DBMaxOpenConns <= 0 {
		errors = append(errors, fmt.Sprintf("DBMaxOpenConns must be positive, got: %d", cfg.DBMaxOpenConns))
	}
	if cfg.DBMaxIdleConns < 0 || cfg.DBMaxIdleConns > cfg.DBMaxOpenConns {
		errors = append(errors, fmt.Sprintf("DBMaxIdleConns must be between 0 and DBMaxOpenConns (%d), got: %d", cfg.DBMaxOpenConns, cfg.DBMaxIdleConns))
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"DBConnMaxLifetime", cfg.DBConnMaxLifetime},
		{"DBConnTimeout", cfg.DBConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"JWTAccessTTL", cfg.JWTAccessTTL},
		{"JWTRefreshTTL", cfg.JWTRefreshTTL},
		{"CacheTTL", cfg.CacheTTL},
		{"SearchCacheTTL", cfg.SearchCacheTTL},
		{"GeocoderTimeout", cfg.GeocoderTimeout},
		{"ReminderLeadTime", cfg.ReminderLeadTime},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", p.name, p.value))
		}
	}

	if cfg.CancellationWindow < 0 {
		errors = append(errors, fmt.Sprintf("CancellationWindow cannot be negative, got: %s", cfg.CancellationWindow))
	}
	if cfg.JWTRefreshTTL <= cfg.JWTAccessTTL {
		errors = append(errors, fmt.Sprintf("JWTRefreshTTL (%s) must be longer than JWTAccessTTL (%s)", cfg.JWTRefreshTTL, cfg.JWTAccessTTL))
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < MinJWTSecretLength {
		errors = append(errors, fmt.Sprintf("JWTSecret must be at least %d characters long", MinJWTSecretLength))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.TrustedProxyHops < 0 {
		errors = append(errors, fmt.Sprintf("TrustedProxyHops cannot be negative, got: %d", cfg.TrustedProxyHops))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.SMTPPort < 1 || cfg.SMTPPort > 65535 {
		errors = append(errors, fmt.Sprintf("SMTPPort must be between 1 and 65535, got: %d", cfg.SMTPPort))
	}
	if cfg.LoyaltyReviewBonus < 0 {
		errors = append(errors, fmt.Sprintf("LoyaltyReviewBonus cannot be negative, got: %d", cfg.LoyaltyReviewBonus))
	}

	if _, err := cron.ParseStandard(cfg.ReminderSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("ReminderSchedule is not a valid cron expression: %s", cfg.ReminderSchedule))
	}
	if _, err := cron.ParseStandard(cfg.PendingExpirySchedule); err != nil {
		errors = append(errors, fmt.Sprintf("PendingExpirySchedule is not a valid cron expression: %s", cfg.PendingExpirySchedule))
	}

	if cfg.KafkaEnabled && cfg.EventsTopic == "" {
		errors = append(errors, "EventsTopic cannot be empty when Kafka is enabled")
	}
	if len(cfg.Modules) == 0 {
		errors = append(errors, "Modules cannot be empty")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"database_url", redactDatabaseURL(cfg.DatabaseURL),
		"db_max_open_conns", cfg.DBMaxOpenConns,
		"db_max_idle_conns", cfg.DBMaxIdleConns,
		"db_conn_max_lifetime", cfg.DBConnMaxLifetime,
		"db_conn_timeout", cfg.DBConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"trusted_proxy_hops", cfg.TrustedProxyHops,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"cors_allowed_origins", cfg.CORSAllowedOrigins,
		"jwt_secret_set", cfg.JWTSecret != "",
		"jwt_issuer", cfg.JWTIssuer,
		"jwt_access_ttl", cfg.JWTAccessTTL,
		"jwt_refresh_ttl", cfg.JWTRefreshTTL,
		"redis_enabled", cfg.RedisURL != "",
		"cache_ttl", cfg.CacheTTL,
		"search_cache_ttl", cfg.SearchCacheTTL,
		"geocoder_url", cfg.GeocoderURL,
		"geocoder_timeout", cfg.GeocoderTimeout,
		"smtp_host", cfg.SMTPHost,
		"smtp_port", cfg.SMTPPort,
		"smtp_password_set", cfg.SMTPPassword != "",
		"kafka_enabled", cfg.KafkaEnabled,
		"events_topic", cfg.EventsTopic,
		"events_dlq_topic", cfg.EventsDLQTopic,
		"reminder_schedule", cfg.ReminderSchedule,
		"reminder_lead_time", cfg.ReminderLeadTime,
		"pending_expiry_schedule", cfg.PendingExpirySchedule,
		"internal_secret_set", cfg.InternalSecret != "",
		"modules", cfg.Modules,
		"loyalty_review_bonus", cfg.LoyaltyReviewBonus,
		"cancellation_window", cfg.CancellationWindow,
	)
}

func redactDatabaseURL(uri string) string {
	credentialRegex := regexp.MustCompile(`(postgres(ql)?://)[^:/@]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnvStr(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	if cfg.DB != nil {
		if err := cfg.DB.Close(); err != nil {
			cfg.Log.Error("Failed to close database pool", "error", err)
		}
	}
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultPaginationLimit
	} else if limit > MaxPaginationLimit {
		limit = MaxPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int) int {
	return max(0, offset)
}
