package domain

import "time"

// GatewayStats is a rolling snapshot of the ingest and distribution layers,
// emitted every observability interval (§4.6) and surfaced via health,
// Prometheus, and the optional stats sink.
type GatewayStats struct {
	Timestamp time.Time

	VideoFPS        float64
	AudioFPS        float64
	VideoBytesPerS  float64
	AudioBytesPerS  float64

	TotalVideoFrames  uint64
	TotalAudioFrames  uint64
	DroppedVideoFrames uint64
	DroppedAudioFrames uint64

	ConnectedPeers    int
	ProducerConnected bool
}
