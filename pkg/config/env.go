package config

const (
	EnvDatabaseURL       = "DATABASE_URL"
	EnvDBMaxOpenConns    = "DB_MAX_OPEN_CONNS"
	EnvDBMaxIdleConns    = "DB_MAX_IDLE_CONNS"
	EnvDBConnMaxLifetime = "DB_CONN_MAX_LIFETIME"
	EnvDBConnTimeout     = "DB_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"
	EnvTrustedProxyHops  = "TRUSTED_PROXY_HOPS"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvCORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"

	EnvJWTSecret     = "JWT_SECRET"
	EnvJWTIssuer     = "JWT_ISSUER"
	EnvJWTAccessTTL  = "JWT_ACCESS_TTL"
	EnvJWTRefreshTTL = "JWT_REFRESH_TTL"

	EnvRedisURL       = "REDIS_URL"
	EnvCacheTTL       = "CACHE_TTL"
	EnvSearchCacheTTL = "SEARCH_CACHE_TTL"

	EnvGeocoderURL       = "GEOCODER_URL"
	EnvGeocoderUserAgent = "GEOCODER_USER_AGENT"
	EnvGeocoderTimeout   = "GEOCODER_TIMEOUT"

	EnvSMTPHost     = "SMTP_HOST"
	EnvSMTPPort     = "SMTP_PORT"
	EnvSMTPUsername = "SMTP_USERNAME"
	EnvSMTPPassword = "SMTP_PASSWORD"
	EnvSMTPFrom     = "SMTP_FROM"

	EnvKafkaEnabled    = "KAFKA_ENABLED"
	EnvEventsTopic     = "EVENTS_TOPIC"
	EnvEventsDLQTopic  = "EVENTS_DLQ_TOPIC"
	EnvNotifierGroupID = "NOTIFIER_GROUP_ID"

	EnvReminderSchedule      = "REMINDER_SCHEDULE"
	EnvReminderLeadTime      = "REMINDER_LEAD_TIME"
	EnvPendingExpirySchedule = "PENDING_EXPIRY_SCHEDULE"
	EnvInternalSecret        = "INTERNAL_SECRET"

	EnvModules            = "FREEZEFIT_MODULES"
	EnvFrontendBaseURL    = "FRONTEND_BASE_URL"
	EnvLoyaltyReviewBonus = "LOYALTY_REVIEW_BONUS"
	EnvCancellationWindow = "CANCELLATION_WINDOW"
)
