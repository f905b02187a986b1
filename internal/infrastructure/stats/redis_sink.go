package stats

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"webrtc-gateway/internal/core/domain"
	"webrtc-gateway/pkg/circuitbreaker"
	"webrtc-gateway/pkg/retry"
)

// publishBufferSize bounds the detached publish goroutine's backlog. A
// snapshot arriving while the buffer is full is dropped rather than
// blocking the caller — the next periodic snapshot supersedes it anyway.
const publishBufferSize = 8

// latestKeyTTL bounds how long the last-known-good snapshot survives in
// Redis once publishing stops, so a cross-process health read never serves
// an arbitrarily stale value.
const latestKeyTTL = 30 * time.Second

// RedisSink publishes GatewayStats snapshots to a Redis pub/sub channel and
// SETs the latest snapshot under a TTL'd key for cross-process health reads
// (§4.8, the optional external stats sink, C10). Publishing runs on a
// detached goroutine fed by a small buffered channel so a down or slow
// Redis instance never blocks the caller; the publish itself is wrapped in
// a circuit breaker and a bounded retry.
type RedisSink struct {
	client    *redis.Client
	channel   string
	latestKey string
	logger    *zap.Logger
	breaker   *circuitbreaker.CircuitBreaker
	retry     retry.Config

	publishCh chan domain.GatewayStats
	done      chan struct{}
	dropped   atomic.Uint64
}

func NewRedisSink(client *redis.Client, channel string, logger *zap.Logger) *RedisSink {
	s := &RedisSink{
		client:    client,
		channel:   channel,
		latestKey: channel + ":latest",
		logger:    logger.With(zap.String("component", "stats_sink")),
		breaker:   circuitbreaker.New(circuitbreaker.DefaultConfig()),
		retry: retry.Config{
			Enabled:      true,
			MaxAttempts:  2,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			Multiplier:   2.0,
			Jitter:       true,
		},
		publishCh: make(chan domain.GatewayStats, publishBufferSize),
		done:      make(chan struct{}),
	}
	go s.runPublishLoop()
	return s
}

// Publish never blocks the caller beyond the buffered-channel send: a
// snapshot that can't be enqueued is logged, counted, and dropped.
func (s *RedisSink) Publish(stats domain.GatewayStats) {
	select {
	case s.publishCh <- stats:
	default:
		total := s.dropped.Add(1)
		s.logger.Warn("stats publish buffer full, dropping snapshot",
			zap.Uint64("dropped_total", total))
	}
}

// Dropped reports how many snapshots have been dropped for a full buffer.
func (s *RedisSink) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *RedisSink) runPublishLoop() {
	for {
		select {
		case stats := <-s.publishCh:
			s.publishOne(stats)
		case <-s.done:
			return
		}
	}
}

func (s *RedisSink) publishOne(stats domain.GatewayStats) {
	payload, err := json.Marshal(stats)
	if err != nil {
		s.logger.Warn("failed to marshal stats snapshot", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = s.breaker.Execute(ctx, func() error {
		return retry.Retry(ctx, s.retry, func() error {
			if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
				return err
			}
			return s.client.Set(ctx, s.latestKey, payload, latestKeyTTL).Err()
		})
	})
	if err != nil {
		s.logger.Warn("failed to publish stats snapshot", zap.Error(err))
	}
}

func (s *RedisSink) Ready(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close stops the publish loop and the underlying client. Snapshots still
// queued in the buffer at shutdown are discarded, consistent with the
// publisher being a best-effort supplement, never a dependency (§4.8).
func (s *RedisSink) Close() error {
	close(s.done)
	return s.client.Close()
}
