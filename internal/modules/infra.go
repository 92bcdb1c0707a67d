package modules

import (
	"context"
	"fmt"
	"time"

	"freezefit/pkg/auth"
	"freezefit/pkg/cache"
	"freezefit/pkg/config"
	"freezefit/pkg/events"
	"freezefit/pkg/geocode"
	"freezefit/pkg/kafka"
	kafka_config "freezefit/pkg/kafka/config"
	kafka_middleware "freezefit/pkg/kafka/middleware"
)

const (
	cacheCleanupInterval = time.Minute
	redisConnectTimeout  = 5 * time.Second
)

// Infrastructure holds the clients shared by all modules of one process.
type Infrastructure struct {
	Cache     cache.Cache
	Publisher events.Publisher
	Tokens    *auth.TokenManager
	Geocoder  geocode.Geocoder

	producer *kafka.Producer
}

// NewInfrastructure connects the cache and the event producer. Without
// REDIS_URL an in-process cache is used; without Kafka events are only
// logged.
func NewInfrastructure(cfg *config.Config) (*Infrastructure, error) {
	infra := &Infrastructure{
		Tokens: auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL, cfg.JWTRefreshTTL),
	}

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.Log)
		if err != nil {
			return nil, err
		}
		infra.Cache = redisCache
		cfg.Log.Info("Using Redis cache")
	} else {
		infra.Cache = cache.NewTTLMap(cacheCleanupInterval)
		cfg.Log.Info("Using in-memory cache (REDIS_URL not set)")
	}

	if cfg.KafkaEnabled {
		kafkaCfg, err := kafka_config.Load()
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("invalid kafka configuration: %w", err)
		}
		kafkaCfg.LogConfiguration(cfg.Log)

		producer, err := kafka.NewProducer(kafkaCfg, cfg.EventsTopic, cfg.EventsDLQTopic, cfg.Log)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}
		if kafkaCfg.EnableMiddleware {
			producer.Use(kafka_middleware.Logging(cfg.Log, kafka_middleware.DirectionProduce))
			producer.Use(kafka_middleware.Metrics(kafka_middleware.DirectionProduce))
		}
		infra.producer = producer
		infra.Publisher = events.NewKafkaPublisher(producer, cfg.ServiceName, cfg.Log)
	} else {
		infra.Publisher = events.NewLogPublisher(cfg.Log)
		cfg.Log.Info("Kafka disabled, events are logged only")
	}

	if cfg.GeocoderURL != "" {
		client := geocode.NewNominatimClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, cfg.Log)
		infra.Geocoder = geocode.NewCachedGeocoder(client, infra.Cache, geocode.DefaultCacheTTL, cfg.Log)
	}

	return infra, nil
}

func (i *Infrastructure) Close() {
	if i.producer != nil {
		_ = i.producer.Close()
	}
	if i.Cache != nil {
		i.Cache.Stop()
	}
}
