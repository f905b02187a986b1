package monitoring

import (
	"webrtc-gateway/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exposes the gateway's GatewayStats snapshots (C7) in
// Prometheus exposition format, scraped via GET /metrics.
type PrometheusCollector struct {
	peersConnected    prometheus.Gauge
	producerConnected prometheus.Gauge

	videoFrameRate prometheus.Gauge
	audioFrameRate prometheus.Gauge
	videoBytesRate prometheus.Gauge
	audioBytesRate prometheus.Gauge

	totalVideoFrames   prometheus.Counter
	totalAudioFrames   prometheus.Counter
	droppedVideoFrames prometheus.Counter
	droppedAudioFrames prometheus.Counter

	lastVideoTotal, lastAudioTotal             uint64
	lastDroppedVideoTotal, lastDroppedAudioTotal uint64
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		peersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_peers_connected",
			Help: "Number of currently connected viewer peers",
		}),
		producerConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_producer_connected",
			Help: "Whether an IPC producer is currently connected (1) or not (0)",
		}),
		videoFrameRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_video_frames_per_second",
			Help: "Video frames received per second over the last observability interval",
		}),
		audioFrameRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_audio_frames_per_second",
			Help: "Audio frames received per second over the last observability interval",
		}),
		videoBytesRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_video_bytes_per_second",
			Help: "Video bytes received per second over the last observability interval",
		}),
		audioBytesRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_audio_bytes_per_second",
			Help: "Audio bytes received per second over the last observability interval",
		}),
		totalVideoFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_video_frames_total",
			Help: "Total video frames received since process start",
		}),
		totalAudioFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_audio_frames_total",
			Help: "Total audio frames received since process start",
		}),
		droppedVideoFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_video_frames_dropped_total",
			Help: "Total video frames dropped because the ingest queue was full",
		}),
		droppedAudioFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_audio_frames_dropped_total",
			Help: "Total audio frames dropped because the ingest queue was full",
		}),
	}
}

// Observe folds one GatewayStats snapshot into the exposed series. The
// counters track monotonic totals, so each call adds the delta against the
// last-seen total rather than setting it directly.
func (p *PrometheusCollector) Observe(stats domain.GatewayStats) {
	p.peersConnected.Set(float64(stats.ConnectedPeers))
	if stats.ProducerConnected {
		p.producerConnected.Set(1)
	} else {
		p.producerConnected.Set(0)
	}

	p.videoFrameRate.Set(stats.VideoFPS)
	p.audioFrameRate.Set(stats.AudioFPS)
	p.videoBytesRate.Set(stats.VideoBytesPerS)
	p.audioBytesRate.Set(stats.AudioBytesPerS)

	if stats.TotalVideoFrames > p.lastVideoTotal {
		p.totalVideoFrames.Add(float64(stats.TotalVideoFrames - p.lastVideoTotal))
		p.lastVideoTotal = stats.TotalVideoFrames
	}
	if stats.TotalAudioFrames > p.lastAudioTotal {
		p.totalAudioFrames.Add(float64(stats.TotalAudioFrames - p.lastAudioTotal))
		p.lastAudioTotal = stats.TotalAudioFrames
	}
	if stats.DroppedVideoFrames > p.lastDroppedVideoTotal {
		p.droppedVideoFrames.Add(float64(stats.DroppedVideoFrames - p.lastDroppedVideoTotal))
		p.lastDroppedVideoTotal = stats.DroppedVideoFrames
	}
	if stats.DroppedAudioFrames > p.lastDroppedAudioTotal {
		p.droppedAudioFrames.Add(float64(stats.DroppedAudioFrames - p.lastDroppedAudioTotal))
		p.lastDroppedAudioTotal = stats.DroppedAudioFrames
	}
}
