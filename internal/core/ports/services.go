package ports

import (
	"context"

	"webrtc-gateway/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

// PeerManager owns the set of viewer peer sessions (C3). It is the sole
// mutator of peer state; signaling handlers and the distribution loop only
// ever reach sessions through this interface.
type PeerManager interface {
	CreatePeer(ctx context.Context, offer webrtc.SessionDescription) (domain.PeerID, webrtc.SessionDescription, error)
	AddRemoteCandidate(ctx context.Context, id domain.PeerID, candidate domain.ICECandidate) error
	DrainLocalCandidates(id domain.PeerID) ([]domain.ICECandidate, error)
	WriteVideoSample(sample *domain.VideoSample, duration int64)
	WriteAudioSample(sample *domain.AudioSample, duration int64)
	Snapshot() []domain.PeerSnapshot
	PeerCount() int
	Close(ctx context.Context) error
}

// StatsSink receives periodic GatewayStats snapshots for export to an
// external store (C10). Implementations must never block the caller for
// longer than it takes to enqueue the snapshot.
type StatsSink interface {
	Publish(stats domain.GatewayStats)
	Close() error
}

// FrameMetricsRecorder is the narrow slice of the metrics service the
// distribution loop (C6) needs: per-frame counters. It is also satisfied by
// MetricsService directly and by its batched wrapper.
type FrameMetricsRecorder interface {
	RecordVideoFrame(byteSize int)
	RecordAudioFrame(byteSize int)
}

// DropRecorder is the narrow slice of the metrics service the IPC ingest
// reader (C2) needs: the two drop counters incremented when the ingest
// queue is full.
type DropRecorder interface {
	RecordVideoDrop()
	RecordAudioDrop()
}
