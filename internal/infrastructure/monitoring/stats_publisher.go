package monitoring

import (
	"context"
	"time"

	"webrtc-gateway/internal/core/domain"
	"webrtc-gateway/internal/core/ports"
)

// StatsSource produces the periodic GatewayStats reading (§4.6), folding in
// peer count and producer-connection status the metrics service itself has
// no visibility into.
type StatsSource interface {
	Snapshot(peerCount int, producerConnected bool) domain.GatewayStats
}

// PeerCounter is the narrow slice of ports.PeerManager the stats publisher
// needs.
type PeerCounter interface {
	PeerCount() int
}

// ProducerStatus reports whether the IPC producer connection is currently
// live.
type ProducerStatus interface {
	IsConnected() bool
}

// StatsPublisher ticks every interval, takes a GatewayStats snapshot, feeds
// it to the Prometheus collector, and offers it to the optional external
// sink (§4.8). It owns none of its dependencies' lifecycles.
type StatsPublisher struct {
	source    StatsSource
	peers     PeerCounter
	producer  ProducerStatus
	collector *PrometheusCollector
	sink      ports.StatsSink
	interval  time.Duration
}

func NewStatsPublisher(source StatsSource, peers PeerCounter, producer ProducerStatus, collector *PrometheusCollector, sink ports.StatsSink, interval time.Duration) *StatsPublisher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StatsPublisher{
		source:    source,
		peers:     peers,
		producer:  producer,
		collector: collector,
		sink:      sink,
		interval:  interval,
	}
}

// Run ticks until ctx is cancelled. Intended to be started in its own
// goroutine by the caller.
func (p *StatsPublisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *StatsPublisher) tick() {
	stats := p.source.Snapshot(p.peers.PeerCount(), p.producer.IsConnected())
	if p.collector != nil {
		p.collector.Observe(stats)
	}
	if p.sink != nil {
		p.sink.Publish(stats)
	}
}
