package kafka_config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"freezefit/pkg/logger"
)

// Config is shared by the event producer of the API and the notifier's
// consumer. Topics and the consumer group come from the service config.
type Config struct {
	Brokers []string

	RequiredAcks  string
	Compression   string
	BatchTimeout  time.Duration
	WriteAttempts int

	StartFrom      string
	MaxWait        time.Duration
	CommitInterval time.Duration
	SessionTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration

	EnableMiddleware bool
}

func Load() (*Config, error) {
	cfg := &Config{
		Brokers:          splitList(getEnvStr(EnvKafkaBrokers, DefaultBrokers)),
		RequiredAcks:     strings.ToLower(getEnvStr(EnvKafkaRequiredAcks, DefaultRequiredAcks)),
		Compression:      strings.ToLower(getEnvStr(EnvKafkaCompression, DefaultCompression)),
		BatchTimeout:     getEnvDuration(EnvKafkaBatchTimeout, DefaultBatchTimeout),
		WriteAttempts:    getEnvNum(EnvKafkaWriteAttempts, DefaultWriteAttempts),
		StartFrom:        strings.ToLower(getEnvStr(EnvKafkaStartFrom, DefaultStartFrom)),
		MaxWait:          getEnvDuration(EnvKafkaMaxWait, DefaultMaxWait),
		CommitInterval:   getEnvDuration(EnvKafkaCommitInterval, DefaultCommitInterval),
		SessionTimeout:   getEnvDuration(EnvKafkaSessionTimeout, DefaultSessionTimeout),
		MaxRetries:       getEnvNum(EnvKafkaMaxRetries, DefaultMaxRetries),
		RetryBackoff:     getEnvDuration(EnvKafkaRetryBackoff, DefaultRetryBackoff),
		EnableMiddleware: getEnvBool(EnvKafkaEnableMiddleware, DefaultEnableMiddleware),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	var problems []string

	if len(cfg.Brokers) == 0 {
		problems = append(problems, "Brokers cannot be empty")
	}
	if !slices.Contains([]string{AcksAll, AcksLeader, AcksNone}, cfg.RequiredAcks) {
		problems = append(problems, fmt.Sprintf("RequiredAcks must be one of all, leader, none, got: %s", cfg.RequiredAcks))
	}
	if !slices.Contains(compressions, cfg.Compression) {
		problems = append(problems, fmt.Sprintf("Compression must be one of %s, got: %s", strings.Join(compressions, ", "), cfg.Compression))
	}
	if cfg.StartFrom != StartNewest && cfg.StartFrom != StartOldest {
		problems = append(problems, fmt.Sprintf("StartFrom must be newest or oldest, got: %s", cfg.StartFrom))
	}
	if cfg.WriteAttempts <= 0 {
		problems = append(problems, fmt.Sprintf("WriteAttempts must be positive, got: %d", cfg.WriteAttempts))
	}
	if cfg.MaxRetries < 0 {
		problems = append(problems, fmt.Sprintf("MaxRetries cannot be negative, got: %d", cfg.MaxRetries))
	}
	if cfg.CommitInterval < 0 {
		problems = append(problems, fmt.Sprintf("CommitInterval cannot be negative, got: %s", cfg.CommitInterval))
	}
	for name, d := range map[string]time.Duration{
		"BatchTimeout":   cfg.BatchTimeout,
		"MaxWait":        cfg.MaxWait,
		"SessionTimeout": cfg.SessionTimeout,
		"RetryBackoff":   cfg.RetryBackoff,
	} {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got: %s", name, d))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	var b strings.Builder
	b.WriteString("kafka configuration validation failed:\n")
	for i, p := range problems {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, p)
	}
	return fmt.Errorf("%s", b.String())
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka configuration loaded",
		"brokers", cfg.Brokers,
		"required_acks", cfg.RequiredAcks,
		"compression", cfg.Compression,
		"batch_timeout", cfg.BatchTimeout,
		"write_attempts", cfg.WriteAttempts,
		"start_from", cfg.StartFrom,
		"max_wait", cfg.MaxWait,
		"commit_interval", cfg.CommitInterval,
		"session_timeout", cfg.SessionTimeout,
		"max_retries", cfg.MaxRetries,
		"retry_backoff", cfg.RetryBackoff,
		"enable_middleware", cfg.EnableMiddleware,
	)
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

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
