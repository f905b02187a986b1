package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"webrtc-gateway/internal/core/ports"
	"webrtc-gateway/pkg/config"
)

// ReadySink is the narrow slice of StatsSink the readiness probe (GET
// /ready) needs: a liveness check against the backing store, distinct from
// Publish's fire-and-forget semantics.
type ReadySink interface {
	ports.StatsSink
	Ready(ctx context.Context) error
}

// New builds the configured stats sink: a RedisSink when redis.enabled is
// set and reachable at startup, a NoopSink otherwise. Connection failure at
// startup is not fatal — per §4.8 the stats sink is an optional supplement,
// never a dependency of the media path.
func New(cfg *config.Config, logger *zap.Logger) ports.StatsSink {
	if !cfg.Redis.Enabled {
		logger.Info("stats sink disabled, using noop sink")
		return NewNoopSink()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("failed to connect to redis stats sink, falling back to noop", zap.Error(err))
		client.Close()
		return NewNoopSink()
	}

	logger.Info("connected to redis stats sink",
		zap.String("address", cfg.Redis.Address),
		zap.String("channel", cfg.Redis.StatsChannel))

	return NewRedisSink(client, cfg.Redis.StatsChannel, logger)
}

// CheckReady reports the stats sink's readiness. Sinks that don't implement
// ReadySink (the noop sink) are always ready.
func CheckReady(ctx context.Context, sink ports.StatsSink) error {
	rs, ok := sink.(ReadySink)
	if !ok {
		return nil
	}
	if err := rs.Ready(ctx); err != nil {
		return fmt.Errorf("stats sink not ready: %w", err)
	}
	return nil
}
