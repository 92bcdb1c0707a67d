package kafka_config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, AcksAll, cfg.RequiredAcks)
	assert.Equal(t, StartNewest, cfg.StartFrom)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(EnvKafkaRequiredAcks, "Leader")
	t.Setenv(EnvKafkaStartFrom, "oldest")
	t.Setenv(EnvKafkaMaxRetries, "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, AcksLeader, cfg.RequiredAcks)
	assert.Equal(t, StartOldest, cfg.StartFrom)
	assert.Zero(t, cfg.MaxRetries)
}

func TestValidate_CollectsProblems(t *testing.T) {
	t.Setenv(EnvKafkaCompression, "brotli")
	t.Setenv(EnvKafkaRequiredAcks, "2")
	t.Setenv(EnvKafkaStartFrom, "yesterday")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Compression")
	assert.Contains(t, err.Error(), "RequiredAcks")
	assert.Contains(t, err.Error(), "StartFrom")
}
