package services

import (
	"sync"
	"sync/atomic"
	"time"

	"webrtc-gateway/internal/core/domain"
)

// MetricsService accumulates the ingest/distribution counters and turns them
// into a GatewayStats snapshot on demand. Counters are cumulative; FPS and
// byte-rate fields in the snapshot are derived by diffing against the
// previous snapshot's counters and timestamp.
type MetricsService struct {
	totalVideoFrames   atomic.Uint64
	totalAudioFrames   atomic.Uint64
	droppedVideoFrames atomic.Uint64
	droppedAudioFrames atomic.Uint64
	videoBytes         atomic.Uint64
	audioBytes         atomic.Uint64

	mu       sync.Mutex
	lastAt   time.Time
	lastV    uint64
	lastA    uint64
	lastVB   uint64
	lastAB   uint64
}

func NewMetricsService() *MetricsService {
	return &MetricsService{lastAt: time.Now()}
}

func (m *MetricsService) RecordVideoFrame(byteSize int) {
	m.totalVideoFrames.Add(1)
	m.videoBytes.Add(uint64(byteSize))
}

func (m *MetricsService) RecordAudioFrame(byteSize int) {
	m.totalAudioFrames.Add(1)
	m.audioBytes.Add(uint64(byteSize))
}

func (m *MetricsService) RecordVideoDrop() {
	m.droppedVideoFrames.Add(1)
}

func (m *MetricsService) RecordAudioDrop() {
	m.droppedAudioFrames.Add(1)
}

// Snapshot computes a GatewayStats reading. peerCount and producerConnected
// are supplied by the caller since the metrics service has no visibility
// into the peer set or the IPC accept loop.
func (m *MetricsService) Snapshot(peerCount int, producerConnected bool) domain.GatewayStats {
	now := time.Now()
	v := m.totalVideoFrames.Load()
	a := m.totalAudioFrames.Load()
	vb := m.videoBytes.Load()
	ab := m.audioBytes.Load()

	m.mu.Lock()
	elapsed := now.Sub(m.lastAt).Seconds()
	var videoFPS, audioFPS, videoBps, audioBps float64
	if elapsed > 0 {
		videoFPS = float64(v-m.lastV) / elapsed
		audioFPS = float64(a-m.lastA) / elapsed
		videoBps = float64(vb-m.lastVB) / elapsed
		audioBps = float64(ab-m.lastAB) / elapsed
	}
	m.lastAt, m.lastV, m.lastA, m.lastVB, m.lastAB = now, v, a, vb, ab
	m.mu.Unlock()

	return domain.GatewayStats{
		Timestamp:          now,
		VideoFPS:           videoFPS,
		AudioFPS:           audioFPS,
		VideoBytesPerS:     videoBps,
		AudioBytesPerS:     audioBps,
		TotalVideoFrames:   v,
		TotalAudioFrames:   a,
		DroppedVideoFrames: m.droppedVideoFrames.Load(),
		DroppedAudioFrames: m.droppedAudioFrames.Load(),
		ConnectedPeers:     peerCount,
		ProducerConnected:  producerConnected,
	}
}
