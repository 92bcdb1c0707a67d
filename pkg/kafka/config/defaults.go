package kafka_config

import "time"

const (
	DefaultBrokers          = "localhost:9092"
	DefaultRequiredAcks     = AcksAll
	DefaultCompression      = "snappy"
	DefaultBatchTimeout     = 10 * time.Millisecond
	DefaultWriteAttempts    = 3
	DefaultStartFrom        = StartNewest
	DefaultMaxWait          = 500 * time.Millisecond
	DefaultCommitInterval   = 0 // synchronous commits
	DefaultSessionTimeout   = 10 * time.Second
	DefaultMaxRetries       = 3
	DefaultRetryBackoff     = 200 * time.Millisecond
	DefaultEnableMiddleware = true
)

const (
	AcksAll    = "all"
	AcksLeader = "leader"
	AcksNone   = "none"

	StartNewest = "newest"
	StartOldest = "oldest"
)

var compressions = []string{"none", "gzip", "snappy", "lz4", "zstd"}
