package stats

import "webrtc-gateway/internal/core/domain"

// NoopSink discards every snapshot. It backs deployments that run without
// Redis (redis.enabled=false), the default.
type NoopSink struct{}

func NewNoopSink() *NoopSink { return &NoopSink{} }

func (NoopSink) Publish(domain.GatewayStats) {}
func (NoopSink) Close() error                { return nil }
