package monitoring

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"webrtc-gateway/internal/core/domain"
)

type fakeStatsSource struct{ calls atomic.Int32 }

func (f *fakeStatsSource) Snapshot(peerCount int, producerConnected bool) domain.GatewayStats {
	f.calls.Add(1)
	return domain.GatewayStats{ConnectedPeers: peerCount, ProducerConnected: producerConnected}
}

type fakePeerCounter struct{}

func (fakePeerCounter) PeerCount() int { return 3 }

type fakeProducerStatus struct{}

func (fakeProducerStatus) IsConnected() bool { return true }

type fakeSink struct{ calls atomic.Int32 }

func (f *fakeSink) Publish(stats domain.GatewayStats) { f.calls.Add(1) }
func (f *fakeSink) Close() error                      { return nil }

func TestStatsPublisher_Run_TicksUntilCancelled(t *testing.T) {
	source := &fakeStatsSource{}
	sink := &fakeSink{}
	pub := NewStatsPublisher(source, fakePeerCounter{}, fakeProducerStatus{}, nil, sink, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pub.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if source.calls.Load() == 0 {
		t.Error("expected at least one snapshot tick")
	}
	if sink.calls.Load() != int32(source.calls.Load()) {
		t.Errorf("sink calls = %d, want %d", sink.calls.Load(), source.calls.Load())
	}
}

func TestStatsPublisher_DefaultsIntervalWhenNonPositive(t *testing.T) {
	pub := NewStatsPublisher(&fakeStatsSource{}, fakePeerCounter{}, fakeProducerStatus{}, nil, &fakeSink{}, 0)
	if pub.interval != 5*time.Second {
		t.Errorf("interval = %v, want 5s default", pub.interval)
	}
}
