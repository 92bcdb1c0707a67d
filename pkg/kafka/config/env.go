package kafka_config

const (
	EnvKafkaBrokers          = "KAFKA_BROKERS"
	EnvKafkaRequiredAcks     = "KAFKA_REQUIRED_ACKS"
	EnvKafkaCompression      = "KAFKA_COMPRESSION"
	EnvKafkaBatchTimeout     = "KAFKA_BATCH_TIMEOUT"
	EnvKafkaWriteAttempts    = "KAFKA_WRITE_ATTEMPTS"
	EnvKafkaStartFrom        = "KAFKA_START_FROM"
	EnvKafkaMaxWait          = "KAFKA_MAX_WAIT"
	EnvKafkaCommitInterval   = "KAFKA_COMMIT_INTERVAL"
	EnvKafkaSessionTimeout   = "KAFKA_SESSION_TIMEOUT"
	EnvKafkaMaxRetries       = "KAFKA_MAX_RETRIES"
	EnvKafkaRetryBackoff     = "KAFKA_RETRY_BACKOFF"
	EnvKafkaEnableMiddleware = "KAFKA_ENABLE_MIDDLEWARE"
)
